package ir

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes a tree as canonical JSON: object keys sorted by
// UTF-16 code units, strings NFC-normalized, no HTML escaping, no whitespace.
//
// Parameters are encoded by declaration slot rather than by pointer, and
// composite types by name and member layout, so two independently built but
// identical trees encode identically. This encoding feeds TreeHash.
func MarshalCanonical(n Node) ([]byte, error) {
	enc := &treeEncoder{slots: make(map[*Parameter]int), types: make(map[string]any)}
	body, err := enc.node(n)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{
		"ir_version": IRVersion,
		"tree":       body,
		"types":      enc.types,
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type treeEncoder struct {
	slots map[*Parameter]int
	next  int
	types map[string]any
}

func (e *treeEncoder) declare(p *Parameter) map[string]any {
	e.slots[p] = e.next
	e.next++
	return map[string]any{
		"name":   p.name,
		"type":   e.typeRef(p.typ),
		"by_ref": p.byRef,
	}
}

func (e *treeEncoder) typeRef(t *Type) string {
	if t.IsComposite() {
		if _, seen := e.types[t.name]; !seen {
			e.types[t.name] = nil // placeholder breaks recursion through self-references
			members := make([]any, len(t.members))
			for i, m := range t.members {
				members[i] = map[string]any{
					"name":     m.name,
					"type":     e.typeRef(m.typ),
					"kind":     m.kind.String(),
					"writable": m.Writable(),
				}
			}
			e.types[t.name] = map[string]any{"kind": t.kind.String(), "members": members}
		}
	}
	return t.name
}

func (e *treeEncoder) node(n Node) (any, error) {
	switch v := n.(type) {
	case *Lambda:
		params := make([]any, len(v.params))
		for i, p := range v.params {
			params[i] = e.declare(p)
		}
		body, err := e.node(v.body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"lambda": map[string]any{
			"name": v.name, "params": params, "returns": e.typeRef(v.ret), "body": body,
		}}, nil
	case *Parameter:
		slot, ok := e.slots[v]
		if !ok {
			return map[string]any{"free": v.name}, nil
		}
		return map[string]any{"param": int64(slot)}, nil
	case *Constant:
		val, err := e.value(v.value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"const": val, "type": e.typeRef(v.typ)}, nil
	case *MemberAccess:
		target, err := e.node(v.target)
		if err != nil {
			return nil, err
		}
		return map[string]any{"member": map[string]any{
			"of": target, "owner": e.typeRef(v.member.owner), "name": v.member.name,
		}}, nil
	case *Assign:
		return e.pair("assign", "", v.target, v.value)
	case *CompoundAssign:
		return e.pair("compound", v.op.String(), v.target, v.value)
	case *Binary:
		return e.pair("binary", v.op.String(), v.left, v.right)
	case *Block:
		vars := make([]any, len(v.vars))
		for i, p := range v.vars {
			vars[i] = e.declare(p)
		}
		exprs := make([]any, len(v.exprs))
		for i, x := range v.exprs {
			enc, err := e.node(x)
			if err != nil {
				return nil, fmt.Errorf("block[%d]: %w", i, err)
			}
			exprs[i] = enc
		}
		return map[string]any{"block": map[string]any{"vars": vars, "exprs": exprs}}, nil
	default:
		return nil, fmt.Errorf("unsupported node type: %T", n)
	}
}

func (e *treeEncoder) pair(kind, op string, a, b Node) (any, error) {
	left, err := e.node(a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	right, err := e.node(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	body := map[string]any{"left": left, "right": right}
	if op != "" {
		body["op"] = op
	}
	return map[string]any{kind: body}, nil
}

func (e *treeEncoder) value(v Value) (any, error) {
	switch v.kind {
	case KindInt:
		return v.num, nil
	case KindBool:
		return v.Bool(), nil
	case KindString:
		return v.str, nil
	case KindBytes:
		return map[string]any{"hex": hex.EncodeToString(v.raw)}, nil
	case KindClass:
		if v.obj == nil {
			return map[string]any{"null": true}, nil
		}
		// Object constants are embedded by identity; only their class is stable.
		return map[string]any{"object": v.typ.name}, nil
	case KindStruct:
		fields := make([]any, len(v.fields))
		for i, f := range v.fields {
			enc, err := e.value(f)
			if err != nil {
				return nil, err
			}
			fields[i] = enc
		}
		return map[string]any{"struct": e.typeRef(v.typ), "fields": fields}, nil
	default:
		return nil, fmt.Errorf("value of kind %s has no canonical form", v.kind)
	}
}

// writeCanonical serializes the plain data produced by treeEncoder.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case string:
		return writeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareUTF16)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// compareUTF16 orders keys by UTF-16 code units; Go's native string order is
// by UTF-8 bytes and differs for characters outside the BMP.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
