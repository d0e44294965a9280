package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/exprjit/internal/ir"
)

// MarshalValue renders v as JSON TEXT for storage. Objects and structs become
// objects with sorted keys, so equal state always produces equal text.
func MarshalValue(v ir.Value) (string, error) {
	return encodeJSON(ir.Export(v))
}

// MarshalValues renders vals as a JSON array. Pointer arguments are followed,
// so a by-reference argument is recorded as the value in its slot.
func MarshalValues(vals []ir.Value) (string, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = ir.Export(v)
	}
	return encodeJSON(out)
}

// encodeJSON uses json.Encoder with HTML escaping disabled; encoding/json
// sorts map keys.
func encodeJSON(x any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(x); err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func marshalOpcodes(ops []string) (string, error) {
	if ops == nil {
		ops = []string{}
	}
	return encodeJSON(ops)
}

func unmarshalOpcodes(data string) ([]string, error) {
	var ops []string
	if err := json.Unmarshal([]byte(data), &ops); err != nil {
		return nil, fmt.Errorf("unmarshal opcodes: %w", err)
	}
	return ops, nil
}
