package ir

import "fmt"

// Kind classifies a Type (and the runtime Value that inhabits it).
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindInt
	KindBool
	KindString
	KindBytes
	KindClass   // reference type: values share heap identity
	KindStruct  // value type: values are copied on every load and store
	KindPointer // runtime only: managed pointer to a storage slot
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindVoid:    "void",
	KindInt:     "int",
	KindBool:    "bool",
	KindString:  "string",
	KindBytes:   "bytes",
	KindClass:   "class",
	KindStruct:  "struct",
	KindPointer: "pointer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Type describes the static type of a node, a parameter or a member.
//
// Builtin scalar types are the package-level Int, Bool, String, Bytes and Void.
// Class and struct types are declared with NewClass and NewStruct and then
// populated with AddField/AddProperty before any tree uses them. Type identity
// is pointer identity.
type Type struct {
	name    string
	kind    Kind
	members []*Member
	nfields int
}

// Builtin types.
var (
	Void   = &Type{name: "void", kind: KindVoid}
	Int    = &Type{name: "int", kind: KindInt}
	Bool   = &Type{name: "bool", kind: KindBool}
	String = &Type{name: "string", kind: KindString}
	Bytes  = &Type{name: "bytes", kind: KindBytes}
)

// Builtins lists the builtin types by name.
var Builtins = map[string]*Type{
	"void":   Void,
	"int":    Int,
	"bool":   Bool,
	"string": String,
	"bytes":  Bytes,
}

// NewClass declares a reference type. Members are added afterwards so that
// self-referencing types (Person.BestFriend Person) can be declared.
func NewClass(name string) *Type {
	return &Type{name: name, kind: KindClass}
}

// NewStruct declares a value type.
func NewStruct(name string) *Type {
	return &Type{name: name, kind: KindStruct}
}

// Name returns the declared type name.
func (t *Type) Name() string { return t.name }

// Kind returns the type's kind.
func (t *Type) Kind() Kind { return t.kind }

// IsReference reports whether values of t are references to heap objects.
func (t *Type) IsReference() bool { return t.kind == KindClass }

// IsComposite reports whether t declares members.
func (t *Type) IsComposite() bool { return t.kind == KindClass || t.kind == KindStruct }

// Members returns the declared members in declaration order.
func (t *Type) Members() []*Member { return t.members }

// NumFields returns the number of storage slots of a composite type.
func (t *Type) NumFields() int { return t.nfields }

func (t *Type) String() string { return t.name }

// AddField declares a field and assigns it the next storage offset.
// It panics when t is not composite or the name is taken: type declaration is
// program setup, not tree construction.
func (t *Type) AddField(name string, typ *Type) *Type {
	t.mustDeclare(name, typ)
	t.members = append(t.members, &Member{
		name:   name,
		typ:    typ,
		owner:  t,
		kind:   MemberField,
		offset: t.nfields,
	})
	t.nfields++
	return t
}

// AddProperty declares a property backed by accessor functions. A nil
// acc.Set makes the property read-only.
func (t *Type) AddProperty(name string, typ *Type, acc Accessor) *Type {
	t.mustDeclare(name, typ)
	if acc.Get == nil {
		panic(fmt.Sprintf("ir: property %s.%s has no getter", t.name, name))
	}
	a := acc
	t.members = append(t.members, &Member{
		name:     name,
		typ:      typ,
		owner:    t,
		kind:     MemberProperty,
		offset:   -1,
		accessor: &a,
	})
	return t
}

func (t *Type) mustDeclare(name string, typ *Type) {
	if !t.IsComposite() {
		panic(fmt.Sprintf("ir: cannot declare member %q on %s type %s", name, t.kind, t.name))
	}
	if typ == nil || typ.kind == KindVoid {
		panic(fmt.Sprintf("ir: member %s.%s needs a non-void type", t.name, name))
	}
	if _, ok := t.Member(name); ok {
		panic(fmt.Sprintf("ir: duplicate member %s.%s", t.name, name))
	}
}

// Member looks a member up by name. Only tree construction and host-side
// helpers call this; compiled code refers to members by descriptor.
func (t *Type) Member(name string) (*Member, bool) {
	for _, m := range t.members {
		if m.name == name {
			return m, true
		}
	}
	return nil, false
}

// MemberKind distinguishes fields from properties.
type MemberKind uint8

const (
	MemberField MemberKind = iota + 1
	MemberProperty
)

func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberProperty:
		return "property"
	default:
		return fmt.Sprintf("MemberKind(%d)", k)
	}
}

// Accessor implements a property.
//
// For class owners recv is the object reference. For struct owners recv is a
// pointer to the struct storage, so Set can mutate it in place.
type Accessor struct {
	Get func(recv Value) Value
	Set func(recv Value, v Value)
}

// Member is a field or property descriptor.
type Member struct {
	name     string
	typ      *Type
	owner    *Type
	kind     MemberKind
	offset   int
	accessor *Accessor
}

func (m *Member) Name() string { return m.name }
func (m *Member) Type() *Type { return m.typ }
func (m *Member) Owner() *Type { return m.owner }
func (m *Member) Kind() MemberKind { return m.kind }
func (m *Member) Offset() int { return m.offset }
func (m *Member) Accessor() *Accessor { return m.accessor }

// IsField reports whether m is a storage field.
func (m *Member) IsField() bool { return m.kind == MemberField }

// Writable reports whether m can be assigned.
func (m *Member) Writable() bool {
	return m.kind == MemberField || m.accessor.Set != nil
}

func (m *Member) String() string { return m.owner.name + "." + m.name }

// Param describes one parameter of a delegate signature.
type Param struct {
	Name  string
	Type  *Type
	ByRef bool
}

// Signature is the declared delegate shape of a lambda.
type Signature struct {
	Params []Param
	Return *Type
}

func (s Signature) String() string {
	out := "func("
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		if p.ByRef {
			out += "ref "
		}
		out += p.Name + " " + p.Type.name
	}
	out += ")"
	if s.Return != nil && s.Return.kind != KindVoid {
		out += " " + s.Return.name
	}
	return out
}
