package source

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/exprjit/internal/ir"
)

// exprKeys are the expression variants, one per ir node kind (nil is a
// typed null constant).
var exprKeys = map[string]bool{
	"param":    true,
	"const":    true,
	"nil":      true,
	"member":   true,
	"assign":   true,
	"compound": true,
	"binary":   true,
	"block":    true,
}

// lambdaParser builds one lambda. Node paths ("body.target.of") match the
// paths compiler errors report, so positions can be attached afterwards.
type lambdaParser struct {
	m         *Module
	b         *ir.Builder
	field     string
	scopes    []map[string]*ir.Parameter
	positions map[string]token.Pos
}

func newLambdaParser(m *Module, field string) *lambdaParser {
	return &lambdaParser{
		m:         m,
		b:         ir.NewBuilder(),
		field:     field,
		positions: make(map[string]token.Pos),
	}
}

func (p *lambdaParser) lambda(name string, v cue.Value) (*ir.Lambda, error) {
	p.push()
	defer p.pop()

	var params []*ir.Parameter
	if paramsVal := v.LookupPath(cue.ParsePath("params")); paramsVal.Exists() {
		list, err := paramsVal.List()
		if err != nil {
			return nil, formatCUEError(p.field+".params", err)
		}
		for i := 0; list.Next(); i++ {
			path := fmt.Sprintf("params[%d]", i)
			par, err := p.declare(list.Value(), path, true)
			if err != nil {
				return nil, err
			}
			params = append(params, par)
		}
	}

	ret := ir.Void
	if retVal := v.LookupPath(cue.ParsePath("returns")); retVal.Exists() {
		tname, err := retVal.String()
		if err != nil {
			return nil, formatCUEError(p.field+".returns", err)
		}
		t, err := p.typeNamed(tname, "returns", retVal)
		if err != nil {
			return nil, err
		}
		ret = t
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &Error{Field: p.field + ".body", Message: "body is required", Pos: v.Pos()}
	}
	body, err := p.expr(bodyVal, "body")
	if err != nil {
		return nil, err
	}
	lam, err := p.b.Lambda(name, ret, body, params...)
	if err != nil {
		return nil, p.wrap("", v, err)
	}
	return lam, nil
}

// declare reads {name, type, ref?} and binds the name in the innermost scope.
// Only lambda parameters may set ref.
func (p *lambdaParser) declare(v cue.Value, path string, allowRef bool) (*ir.Parameter, error) {
	p.positions[path] = v.Pos()
	field := p.field + "." + path
	name, err := stringAt(v, "name", field)
	if err != nil {
		return nil, err
	}
	tname, err := stringAt(v, "type", field)
	if err != nil {
		return nil, err
	}
	t, err := p.typeNamed(tname, path+".type", v)
	if err != nil {
		return nil, err
	}
	byRef := false
	if refVal := v.LookupPath(cue.ParsePath("ref")); refVal.Exists() {
		if !allowRef {
			return nil, &Error{Field: field + ".ref", Message: "block variables cannot be by-reference", Pos: refVal.Pos()}
		}
		if byRef, err = refVal.Bool(); err != nil {
			return nil, formatCUEError(field+".ref", err)
		}
	}
	scope := p.scopes[len(p.scopes)-1]
	if _, dup := scope[name]; dup {
		return nil, &Error{Field: field, Message: fmt.Sprintf("%q is already declared in this scope", name), Pos: v.Pos()}
	}
	par := p.b.Param(name, t, byRef)
	if err := p.b.Err(); err != nil {
		return nil, p.wrap(path, v, err)
	}
	scope[name] = par
	return par, nil
}

func (p *lambdaParser) push() { p.scopes = append(p.scopes, make(map[string]*ir.Parameter)) }
func (p *lambdaParser) pop() { p.scopes = p.scopes[:len(p.scopes)-1] }

// lookup resolves name from the innermost scope outwards, so block locals
// shadow parameters.
func (p *lambdaParser) lookup(name string) (*ir.Parameter, bool) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if par, ok := p.scopes[i][name]; ok {
			return par, true
		}
	}
	return nil, false
}

func (p *lambdaParser) typeNamed(name, path string, v cue.Value) (*ir.Type, error) {
	t, ok := p.m.Type(name)
	if !ok {
		return nil, &Error{Field: p.field + "." + path, Message: fmt.Sprintf("unknown type %q", name), Pos: v.Pos()}
	}
	return t, nil
}

// wrap attaches the position of v to an error from the builder.
func (p *lambdaParser) wrap(path string, v cue.Value, err error) error {
	field := p.field
	if path != "" {
		field += "." + path
	}
	return &Error{Field: field, Message: err.Error(), Pos: v.Pos(), Err: err}
}

func (p *lambdaParser) errorf(path string, v cue.Value, format string, args ...any) error {
	return &Error{Field: p.field + "." + path, Message: fmt.Sprintf(format, args...), Pos: v.Pos()}
}

// variant returns the single expression key of v and its value.
func (p *lambdaParser) variant(v cue.Value, path string) (string, cue.Value, error) {
	if v.IncompleteKind() != cue.StructKind {
		return "", cue.Value{}, p.errorf(path, v, "expression must be a struct, got %s", v.IncompleteKind())
	}
	iter, err := v.Fields()
	if err != nil {
		return "", cue.Value{}, formatCUEError(p.field+"."+path, err)
	}
	var keys, extra []string
	var x cue.Value
	for iter.Next() {
		label := iter.Selector().Unquoted()
		if exprKeys[label] {
			keys = append(keys, label)
			x = iter.Value()
			continue
		}
		extra = append(extra, label)
	}
	if len(keys) != 1 {
		return "", cue.Value{}, p.errorf(path, v, "expression needs exactly one of %s, got %v", variantList(), keys)
	}
	for _, label := range extra {
		if !(keys[0] == "const" && label == "type") {
			return "", cue.Value{}, p.errorf(path, v, "unexpected key %q in %s expression", label, keys[0])
		}
	}
	return keys[0], x, nil
}

func variantList() string {
	names := make([]string, 0, len(exprKeys))
	for k := range exprKeys {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (p *lambdaParser) expr(v cue.Value, path string) (ir.Node, error) {
	p.positions[path] = v.Pos()
	key, x, err := p.variant(v, path)
	if err != nil {
		return nil, err
	}

	var n ir.Node
	switch key {
	case "param":
		name, err := x.String()
		if err != nil {
			return nil, formatCUEError(p.field+"."+path+".param", err)
		}
		par, ok := p.lookup(name)
		if !ok {
			return nil, p.errorf(path, v, "%q is not declared", name)
		}
		return par, nil

	case "const":
		c, err := p.constant(v, x, path)
		if err != nil {
			return nil, err
		}
		n = c

	case "nil":
		tname, err := x.String()
		if err != nil {
			return nil, formatCUEError(p.field+"."+path+".nil", err)
		}
		t, err := p.typeNamed(tname, path+".nil", x)
		if err != nil {
			return nil, err
		}
		if !t.IsReference() {
			return nil, p.errorf(path, v, "null needs a class type, got %s", t)
		}
		n = p.b.Null(t)

	case "member":
		name, err := stringAt(x, "name", p.field+"."+path)
		if err != nil {
			return nil, err
		}
		target, err := p.required(x, "of", path+".of")
		if err != nil {
			return nil, err
		}
		n = p.b.Member(target, name)

	case "assign":
		target, value, err := p.pair(x, path)
		if err != nil {
			return nil, err
		}
		n = p.b.Assign(target, value)

	case "compound":
		op, err := p.operator(x, path)
		if err != nil {
			return nil, err
		}
		target, value, err := p.pair(x, path)
		if err != nil {
			return nil, err
		}
		n = p.b.Compound(target, op, value)

	case "binary":
		op, err := p.operator(x, path)
		if err != nil {
			return nil, err
		}
		left, err := p.required(x, "left", path+".left")
		if err != nil {
			return nil, err
		}
		right, err := p.required(x, "right", path+".right")
		if err != nil {
			return nil, err
		}
		n = p.b.Binary(op, left, right)

	case "block":
		blk, err := p.block(x, path)
		if err != nil {
			return nil, err
		}
		n = blk
	}

	if err := p.b.Err(); err != nil {
		return nil, p.wrap(path, v, err)
	}
	return n, nil
}

func (p *lambdaParser) required(x cue.Value, key, path string) (ir.Node, error) {
	v := x.LookupPath(cue.ParsePath(key))
	if !v.Exists() {
		return nil, p.errorf(path, x, "%s is required", key)
	}
	return p.expr(v, path)
}

func (p *lambdaParser) pair(x cue.Value, path string) (target, value ir.Node, err error) {
	if target, err = p.required(x, "target", path+".target"); err != nil {
		return nil, nil, err
	}
	if value, err = p.required(x, "value", path+".value"); err != nil {
		return nil, nil, err
	}
	return target, value, nil
}

func (p *lambdaParser) operator(x cue.Value, path string) (ir.BinaryOp, error) {
	s, err := stringAt(x, "op", p.field+"."+path)
	if err != nil {
		return 0, err
	}
	op, err := ir.ParseBinaryOp(s)
	if err != nil {
		return 0, p.errorf(path+".op", x, "%v", err)
	}
	return op, nil
}

// constant reads a literal. Without a type, ints, strings and bools map to
// the builtins; with one, the value is converted with ir.FromGo, so
// {const: {X: 1}, type: "Vec"} is a struct literal and a string typed
// "bytes" is a byte string.
func (p *lambdaParser) constant(v, x cue.Value, path string) (*ir.Constant, error) {
	if typeVal := v.LookupPath(cue.ParsePath("type")); typeVal.Exists() {
		tname, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(p.field+"."+path+".type", err)
		}
		t, err := p.typeNamed(tname, path+".type", typeVal)
		if err != nil {
			return nil, err
		}
		var raw any
		if err := x.Decode(&raw); err != nil {
			return nil, formatCUEError(p.field+"."+path+".const", err)
		}
		val, err := ir.FromGo(t, raw)
		if err != nil {
			return nil, p.errorf(path, v, "constant is not a %s: %v", t, err)
		}
		return p.b.Const(val, t), nil
	}

	switch x.Kind() {
	case cue.IntKind:
		n, err := x.Int64()
		if err != nil {
			return nil, formatCUEError(p.field+"."+path+".const", err)
		}
		return p.b.Int(n), nil
	case cue.StringKind:
		s, _ := x.String()
		return p.b.Str(s), nil
	case cue.BoolKind:
		b, _ := x.Bool()
		return p.b.Bool(b), nil
	case cue.BytesKind:
		raw, _ := x.Bytes()
		return p.b.Const(ir.BytesValue(raw), ir.Bytes), nil
	case cue.NullKind:
		return nil, p.errorf(path, v, "a null constant needs a type; use {nil: \"Type\"}")
	default:
		return nil, p.errorf(path, v, "unsupported constant kind %s", x.Kind())
	}
}

func (p *lambdaParser) block(x cue.Value, path string) (*ir.Block, error) {
	p.push()
	defer p.pop()

	var vars []*ir.Parameter
	if varsVal := x.LookupPath(cue.ParsePath("vars")); varsVal.Exists() {
		list, err := varsVal.List()
		if err != nil {
			return nil, formatCUEError(p.field+"."+path+".vars", err)
		}
		for i := 0; list.Next(); i++ {
			par, err := p.declare(list.Value(), fmt.Sprintf("%s.vars[%d]", path, i), false)
			if err != nil {
				return nil, err
			}
			vars = append(vars, par)
		}
	}

	exprsVal := x.LookupPath(cue.ParsePath("exprs"))
	if !exprsVal.Exists() {
		return nil, p.errorf(path, x, "exprs is required")
	}
	list, err := exprsVal.List()
	if err != nil {
		return nil, formatCUEError(p.field+"."+path+".exprs", err)
	}
	var exprs []ir.Node
	for i := 0; list.Next(); i++ {
		e, err := p.expr(list.Value(), fmt.Sprintf("%s.exprs[%d]", path, i))
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return p.b.Scope(vars, exprs...), nil
}
