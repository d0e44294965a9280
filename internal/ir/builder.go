package ir

// Builder constructs trees with a sticky first error so that nested
// construction reads like the tree it builds:
//
//	b := ir.NewBuilder()
//	value := b.Param("value", person, true)
//	lam, err := b.Lambda("SetHealth", ir.Void,
//	    b.Assign(b.Member(value, "Health"), b.Int(5)),
//	    value)
//
// After the first failure every method returns nil and Lambda/Err report the
// failure. A Builder is not safe for concurrent use; the trees it returns are.
type Builder struct {
	err error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Err returns the first construction error.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) ok(nodes ...Node) bool {
	if b.err != nil {
		return false
	}
	for _, n := range nodes {
		if isNilNode(n) {
			b.fail(mismatch("Builder", "missing operand"))
			return false
		}
	}
	return true
}

// isNilNode catches typed nil pointers wrapped in a Node interface.
func isNilNode(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *Parameter:
		return v == nil
	case *Constant:
		return v == nil
	case *MemberAccess:
		return v == nil
	case *Assign:
		return v == nil
	case *CompoundAssign:
		return v == nil
	case *Binary:
		return v == nil
	case *Block:
		return v == nil
	case *Lambda:
		return v == nil
	}
	return false
}

// Param declares a lambda parameter.
func (b *Builder) Param(name string, typ *Type, byRef bool) *Parameter {
	if b.err != nil {
		return nil
	}
	p, err := NewParameter(name, typ, byRef)
	if err != nil {
		b.fail(err)
		return nil
	}
	return p
}

// Var declares a block-local variable.
func (b *Builder) Var(name string, typ *Type) *Parameter {
	return b.Param(name, typ, false)
}

// Const creates a constant of an explicit type.
func (b *Builder) Const(v Value, typ *Type) *Constant {
	if b.err != nil {
		return nil
	}
	c, err := NewConstant(v, typ)
	if err != nil {
		b.fail(err)
		return nil
	}
	return c
}

// Int creates an int constant.
func (b *Builder) Int(n int64) *Constant { return b.Const(IntValue(n), Int) }

// Bool creates a bool constant.
func (b *Builder) Bool(v bool) *Constant { return b.Const(BoolValue(v), Bool) }

// Str creates a string constant.
func (b *Builder) Str(s string) *Constant { return b.Const(StringValue(s), String) }

// Null creates a null constant of class t.
func (b *Builder) Null(t *Type) *Constant { return b.Const(Nil(t), t) }

// Member accesses the named member of target.
func (b *Builder) Member(target Node, name string) *MemberAccess {
	if !b.ok(target) {
		return nil
	}
	m, err := NewMemberAccessByName(target, name)
	if err != nil {
		b.fail(err)
		return nil
	}
	return m
}

// Assign creates target = value.
func (b *Builder) Assign(target, value Node) *Assign {
	if !b.ok(target, value) {
		return nil
	}
	a, err := NewAssign(target, value)
	if err != nil {
		b.fail(err)
		return nil
	}
	return a
}

// Compound creates target <op>= value.
func (b *Builder) Compound(target Node, op BinaryOp, value Node) *CompoundAssign {
	if !b.ok(target, value) {
		return nil
	}
	c, err := NewCompoundAssign(target, op, value)
	if err != nil {
		b.fail(err)
		return nil
	}
	return c
}

// AddAssign creates target += value.
func (b *Builder) AddAssign(target, value Node) *CompoundAssign {
	return b.Compound(target, OpAdd, value)
}

// Binary creates left <op> right.
func (b *Builder) Binary(op BinaryOp, left, right Node) *Binary {
	if !b.ok(left, right) {
		return nil
	}
	n, err := NewBinary(op, left, right)
	if err != nil {
		b.fail(err)
		return nil
	}
	return n
}

// Block creates a block without locals.
func (b *Builder) Block(exprs ...Node) *Block {
	return b.Scope(nil, exprs...)
}

// Scope creates a block declaring vars.
func (b *Builder) Scope(vars []*Parameter, exprs ...Node) *Block {
	if !b.ok(exprs...) {
		return nil
	}
	for _, v := range vars {
		if v == nil {
			b.fail(mismatch("Builder", "missing block variable"))
			return nil
		}
	}
	blk, err := NewBlock(vars, exprs...)
	if err != nil {
		b.fail(err)
		return nil
	}
	return blk
}

// Lambda finishes the tree and reports the first error of the whole build.
func (b *Builder) Lambda(name string, ret *Type, body Node, params ...*Parameter) (*Lambda, error) {
	if !b.ok(body) {
		return nil, b.err
	}
	for _, p := range params {
		if p == nil {
			b.fail(mismatch("Builder", "missing parameter"))
			return nil, b.err
		}
	}
	lam, err := NewLambda(name, ret, body, params...)
	if err != nil {
		b.fail(err)
		return nil, err
	}
	return lam, nil
}
