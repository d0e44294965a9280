package ir

import (
	"fmt"
	"math"
	"sort"
)

// FromGo converts decoded YAML/JSON/CUE data to a Value of type t.
//
// Scalars map directly (integral float64 is accepted for int, string for
// bytes). A nil input is the null reference for a class and the zero value
// for a struct. A map[string]any populates the fields of a new object or
// struct; unknown keys and property names are rejected.
func FromGo(t *Type, raw any) (Value, error) {
	switch t.kind {
	case KindInt:
		n, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		return IntValue(n), nil
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("expected bool, got %T", raw)
		}
		return BoolValue(b), nil
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return StringValue(s), nil
	case KindBytes:
		switch b := raw.(type) {
		case string:
			return BytesValue([]byte(b)), nil
		case []byte:
			return BytesValue(append([]byte(nil), b...)), nil
		case nil:
			return BytesValue(nil), nil
		}
		return Value{}, fmt.Errorf("expected bytes, got %T", raw)
	case KindClass:
		if raw == nil {
			return Nil(t), nil
		}
		fields, ok := raw.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("expected %s object, got %T", t.name, raw)
		}
		obj := NewObject(t)
		if err := fillFields(t, obj.fields, fields); err != nil {
			return Value{}, err
		}
		return Ref(obj), nil
	case KindStruct:
		v := Zero(t)
		if raw == nil {
			return v, nil
		}
		fields, ok := raw.(map[string]any)
		if !ok {
			return Value{}, fmt.Errorf("expected %s struct, got %T", t.name, raw)
		}
		if err := fillFields(t, v.fields, fields); err != nil {
			return Value{}, err
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("cannot convert to %s", t)
	}
}

func fillFields(t *Type, slots []Value, fields map[string]any) error {
	for name, raw := range fields {
		m, ok := t.Member(name)
		if !ok {
			return fmt.Errorf("%s has no member %q", t.name, name)
		}
		if !m.IsField() {
			return fmt.Errorf("%s is a property and cannot be initialized", m)
		}
		v, err := FromGo(m.typ, raw)
		if err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
		slots[m.offset] = v
	}
	return nil
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", raw)
	}
}

// Export snapshots v as plain Go data for comparison and display: int64,
// bool, string, nil for null, and map[string]any for objects and structs
// (fields only). An object reached again while it is being exported is
// rendered as "<cycle Type>".
func Export(v Value) any {
	return export(v, make(map[*Object]bool))
}

func export(v Value, active map[*Object]bool) any {
	switch v.kind {
	case KindInt:
		return v.num
	case KindBool:
		return v.Bool()
	case KindString:
		return v.str
	case KindBytes:
		return string(v.raw)
	case KindClass:
		if v.obj == nil {
			return nil
		}
		if active[v.obj] {
			return "<cycle " + v.typ.name + ">"
		}
		active[v.obj] = true
		defer delete(active, v.obj)
		return exportFields(v.typ, v.obj.fields, active)
	case KindStruct:
		return exportFields(v.typ, v.fields, active)
	case KindPointer:
		if v.ptr == nil {
			return nil
		}
		return export(*v.ptr, active)
	default:
		return nil
	}
}

func exportFields(t *Type, slots []Value, active map[*Object]bool) map[string]any {
	out := make(map[string]any, t.nfields)
	for _, m := range t.members {
		if m.kind == MemberField {
			out[m.name] = export(slots[m.offset], active)
		}
	}
	return out
}

// FieldNames returns the field names of t in sorted order.
func FieldNames(t *Type) []string {
	var names []string
	for _, m := range t.members {
		if m.kind == MemberField {
			names = append(names, m.name)
		}
	}
	sort.Strings(names)
	return names
}
