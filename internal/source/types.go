package source

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/exprjit/internal/ir"
)

type typeDecl struct {
	name string
	v    cue.Value
	t    *ir.Type
}

// parseTypes declares every type first so fields may refer to types declared
// later in the file (or to their own type, for classes).
func (m *Module) parseTypes(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError("types", err)
	}

	var decls []typeDecl
	for iter.Next() {
		name := iter.Selector().Unquoted()
		field := "types." + name
		if _, builtin := ir.Builtins[name]; builtin {
			return &Error{Field: field, Message: fmt.Sprintf("type name %q shadows a builtin", name), Pos: iter.Value().Pos()}
		}
		kind, err := stringAt(iter.Value(), "kind", field)
		if err != nil {
			return err
		}
		var t *ir.Type
		switch kind {
		case "class":
			t = ir.NewClass(name)
		case "struct":
			t = ir.NewStruct(name)
		default:
			return &Error{
				Field:   field + ".kind",
				Message: fmt.Sprintf("kind must be \"class\" or \"struct\", got %q", kind),
				Pos:     iter.Value().LookupPath(cue.ParsePath("kind")).Pos(),
			}
		}
		decls = append(decls, typeDecl{name: name, v: iter.Value(), t: t})
		m.Types = append(m.Types, t)
		m.types[name] = t
	}

	for _, d := range decls {
		if err := m.parseFields(d); err != nil {
			return err
		}
	}
	if cycles := layoutCycles(m.Types); len(cycles) > 0 {
		path := cycles[0]
		return &Error{
			Field:   "types." + path[0],
			Message: fmt.Sprintf("struct contains itself by value: %s", strings.Join(path, " -> ")),
			Pos:     declPos(decls, path[0]),
		}
	}
	for _, d := range decls {
		if err := m.parseProperties(d); err != nil {
			return err
		}
	}
	return nil
}

func declPos(decls []typeDecl, name string) token.Pos {
	for _, d := range decls {
		if d.name == name {
			return d.v.Pos()
		}
	}
	return token.NoPos
}

func (m *Module) parseFields(d typeDecl) error {
	fieldsVal := d.v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return formatCUEError("types."+d.name+".fields", err)
	}
	for iter.Next() {
		fname := iter.Selector().Unquoted()
		field := "types." + d.name + ".fields." + fname
		tname, err := iter.Value().String()
		if err != nil {
			return formatCUEError(field, err)
		}
		ft, ok := m.Type(tname)
		if !ok {
			return &Error{Field: field, Message: fmt.Sprintf("unknown type %q", tname), Pos: iter.Value().Pos()}
		}
		if ft == ir.Void {
			return &Error{Field: field, Message: "fields cannot be void", Pos: iter.Value().Pos()}
		}
		d.t.AddField(fname, ft)
	}
	return nil
}

// parseProperties declares property views. A view reads and writes its
// backing field; readonly: true leaves it without a setter.
func (m *Module) parseProperties(d typeDecl) error {
	propsVal := d.v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil
	}
	iter, err := propsVal.Fields()
	if err != nil {
		return formatCUEError("types."+d.name+".properties", err)
	}
	for iter.Next() {
		pname := iter.Selector().Unquoted()
		field := "types." + d.name + ".properties." + pname
		pv := iter.Value()
		if _, taken := d.t.Member(pname); taken {
			return &Error{Field: field, Message: fmt.Sprintf("member %s.%s already declared", d.name, pname), Pos: pv.Pos()}
		}
		backingName, err := stringAt(pv, "field", field)
		if err != nil {
			return err
		}
		backing, ok := d.t.Member(backingName)
		if !ok || !backing.IsField() {
			return &Error{Field: field + ".field", Message: fmt.Sprintf("%s has no field %q", d.name, backingName), Pos: pv.Pos()}
		}
		readonly := false
		if ro := pv.LookupPath(cue.ParsePath("readonly")); ro.Exists() {
			if readonly, err = ro.Bool(); err != nil {
				return formatCUEError(field+".readonly", err)
			}
		}
		d.t.AddProperty(pname, backing.Type(), viewAccessor(d.t, backing, readonly))
	}
	return nil
}

func viewAccessor(owner *ir.Type, backing *ir.Member, readonly bool) ir.Accessor {
	off := backing.Offset()
	slot := func(recv ir.Value) *ir.Value {
		if owner.IsReference() {
			return recv.Object().Slot(off)
		}
		return recv.Elem().Slot(off)
	}
	acc := ir.Accessor{Get: func(recv ir.Value) ir.Value { return slot(recv).Clone() }}
	if !readonly {
		acc.Set = func(recv ir.Value, x ir.Value) { slot(recv).Set(x) }
	}
	return acc
}

// stringAt returns the required string at v.key.
func stringAt(v cue.Value, key, field string) (string, error) {
	x := v.LookupPath(cue.ParsePath(key))
	if !x.Exists() {
		return "", &Error{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := x.String()
	if err != nil {
		return "", formatCUEError(field+"."+key, err)
	}
	return s, nil
}
