package ir

import (
	"bytes"
	"fmt"
)

// Value is a runtime value: the payload of a constant, a parameter slot, a
// field or an evaluation-stack entry.
//
// Struct values own their field storage. Assigning a Value copies only the
// header, so every load of a struct must go through Clone and every store
// through Set to keep value semantics. Class values are references: copies
// share the *Object.
type Value struct {
	kind   Kind
	typ    *Type // struct and class values
	num    int64
	str    string
	raw    []byte
	obj    *Object
	fields []Value
	ptr    *Value
}

// Object is a heap-allocated class instance.
type Object struct {
	typ    *Type
	fields []Value
}

// IntValue returns an int value.
func IntValue(n int64) Value { return Value{kind: KindInt, num: n} }

// BoolValue returns a bool value.
func BoolValue(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// VoidValue is the result of invoking a lambda that returns nothing.
func VoidValue() Value { return Value{kind: KindVoid} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// BytesValue returns a bytes value. A nil slice is a valid (empty) value.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// Nil returns the null reference of class type t.
func Nil(t *Type) Value { return Value{kind: KindClass, typ: t} }

// Ref returns a reference to obj.
func Ref(obj *Object) Value {
	if obj == nil {
		return Value{kind: KindClass}
	}
	return Value{kind: KindClass, typ: obj.typ, obj: obj}
}

// PointerTo returns a managed pointer to the slot v.
func PointerTo(v *Value) Value { return Value{kind: KindPointer, ptr: v} }

// Zero returns the zero value of t: 0, false, "", empty bytes, null, or a
// struct whose fields are zero.
func Zero(t *Type) Value {
	switch t.kind {
	case KindInt, KindBool, KindString, KindBytes:
		return Value{kind: t.kind}
	case KindClass:
		return Nil(t)
	case KindStruct:
		v := Value{kind: KindStruct, typ: t, fields: make([]Value, t.nfields)}
		for _, m := range t.members {
			if m.kind == MemberField {
				v.fields[m.offset] = Zero(m.typ)
			}
		}
		return v
	default:
		return Value{}
	}
}

// NewObject allocates a class instance with zeroed fields.
func NewObject(t *Type) *Object {
	if t.kind != KindClass {
		panic(fmt.Sprintf("ir: NewObject of %s type %s", t.kind, t.name))
	}
	o := &Object{typ: t, fields: make([]Value, t.nfields)}
	for _, m := range t.members {
		if m.kind == MemberField {
			o.fields[m.offset] = Zero(m.typ)
		}
	}
	return o
}

// NewStructValue returns a zeroed struct value of t.
func NewStructValue(t *Type) Value {
	if t.kind != KindStruct {
		panic(fmt.Sprintf("ir: NewStructValue of %s type %s", t.kind, t.name))
	}
	return Zero(t)
}

func (v Value) Kind() Kind { return v.kind }

// Type returns the dynamic type of struct and class values, nil otherwise.
func (v Value) Type() *Type { return v.typ }

func (v Value) Int() int64 { return v.num }
func (v Value) Bool() bool { return v.num != 0 }
func (v Value) Str() string { return v.str }
func (v Value) Raw() []byte { return v.raw }
func (v Value) Object() *Object { return v.obj }

// IsNil reports whether v is a null reference.
func (v Value) IsNil() bool { return v.kind == KindClass && v.obj == nil }

// Elem returns the slot a pointer value refers to.
func (v Value) Elem() *Value { return v.ptr }

// Clone returns a copy of v with value semantics: struct storage is copied
// deeply, references keep pointing at the same objects.
func (v Value) Clone() Value {
	if v.kind != KindStruct {
		return v
	}
	out := v
	out.fields = make([]Value, len(v.fields))
	for i, f := range v.fields {
		out.fields[i] = f.Clone()
	}
	return out
}

// Set stores a copy of src into v. When v already holds a struct of the
// same type, the fields are written into v's existing storage, recursing
// into nested structs, so a pointer taken into v before the store still
// refers to live storage afterwards.
func (v *Value) Set(src Value) {
	v.assign(src.Clone())
}

func (v *Value) assign(src Value) {
	if v.kind == KindStruct && src.kind == KindStruct && v.typ == src.typ && len(v.fields) == len(src.fields) {
		for i := range v.fields {
			v.fields[i].assign(src.fields[i])
		}
		return
	}
	*v = src
}

// Slot returns the storage slot of the field at offset of a struct value.
func (v *Value) Slot(offset int) *Value { return &v.fields[offset] }

// Field returns a copy of the named field of a struct value.
func (v Value) Field(name string) Value {
	m := mustField(v.typ, name)
	return v.fields[m.offset].Clone()
}

// SetField stores into the named field of a struct value in place.
func (v *Value) SetField(name string, x Value) {
	m := mustField(v.typ, name)
	v.fields[m.offset].Set(x)
}

// Type returns the object's class.
func (o *Object) Type() *Type { return o.typ }

// Slot returns the storage slot of the field at offset.
func (o *Object) Slot(offset int) *Value { return &o.fields[offset] }

// Field returns a copy of the named field.
func (o *Object) Field(name string) Value {
	m := mustField(o.typ, name)
	return o.fields[m.offset].Clone()
}

// SetField stores into the named field.
func (o *Object) SetField(name string, x Value) {
	m := mustField(o.typ, name)
	o.fields[m.offset].Set(x)
}

func mustField(t *Type, name string) *Member {
	if t == nil {
		panic(fmt.Sprintf("ir: field %q of untyped value", name))
	}
	m, ok := t.Member(name)
	if !ok || m.kind != MemberField {
		panic(fmt.Sprintf("ir: %s has no field %q", t.name, name))
	}
	return m
}

// AssignableTo reports whether v can be stored in a slot of type t.
func (v Value) AssignableTo(t *Type) bool {
	if v.kind != t.kind {
		return false
	}
	switch v.kind {
	case KindClass:
		return v.obj == nil || v.typ == t
	case KindStruct:
		return v.typ == t
	default:
		return true
	}
}

// Equal compares values structurally for scalars and structs and by identity
// for references and pointers.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt, KindBool:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindClass:
		return v.obj == o.obj
	case KindPointer:
		return v.ptr == o.ptr
	case KindStruct:
		if v.typ != o.typ || len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if !v.fields[i].Equal(o.fields[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(v.raw))
	case KindClass:
		if v.obj == nil {
			return "null"
		}
		return fmt.Sprintf("&%s@%p", v.typ.name, v.obj)
	case KindStruct:
		return fmt.Sprintf("%s%v", v.typ.name, v.fields)
	case KindPointer:
		return fmt.Sprintf("ptr(%p)", v.ptr)
	case KindVoid:
		return "void"
	default:
		return "<invalid>"
	}
}
