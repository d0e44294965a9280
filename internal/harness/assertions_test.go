package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
)

func traceOf(lambdas ...string) []TraceEvent {
	trace := make([]TraceEvent, len(lambdas))
	for i, l := range lambdas {
		trace[i] = TraceEvent{Seq: int64(i + 1), Lambda: l, Args: "[]"}
	}
	return trace
}

func yamlNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return *doc.Content[0]
}

func TestAssertTraceCount(t *testing.T) {
	trace := traceOf("A", "B", "A")

	assert.NoError(t, assertTraceCount(trace, Assertion{Lambda: "A", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Lambda: "C", Count: 0}))

	err := assertTraceCount(trace, Assertion{Lambda: "B", Count: 2})
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertTraceCount, ae.Type)
	assert.Equal(t, "1 invocations", ae.Actual)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := traceOf("A", "X", "B", "A", "C")

	assert.NoError(t, assertTraceOrder(trace, Assertion{Lambdas: []string{"A", "B", "C"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Lambdas: []string{"X", "C"}}))

	err := assertTraceOrder(trace, Assertion{Lambdas: []string{"B", "A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "B (pos 3) should be before A (pos 1)")

	err = assertTraceOrder(trace, Assertion{Lambdas: []string{"A", "Z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing lambda: Z")
}

func TestAssertOpcodes(t *testing.T) {
	result := NewResult()
	result.Listings = append(result.Listings, Listing{Lambda: "L", Opcodes: []string{"ldarg", "ret"}})

	assert.NoError(t, assertOpcodes(result, Assertion{Lambda: "L", Opcodes: []string{"ldarg", "ret"}}))

	err := assertOpcodes(result, Assertion{Lambda: "L", Opcodes: []string{"ldarg", "pop", "ret"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: ldarg ret")

	err = assertOpcodes(result, Assertion{Lambda: "M", Opcodes: []string{"ret"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not compiled")
}

func TestAssertCompileError(t *testing.T) {
	result := NewResult()
	result.compileErrs["Bad"] = &compiler.CompileError{
		Code: compiler.ErrCodeNotAssignable,
		Path: "body.target",
	}

	assert.NoError(t, assertCompileError(result, Assertion{Lambda: "Bad", Code: "NOT_ASSIGNABLE"}))
	assert.NoError(t, assertCompileError(result, Assertion{Lambda: "Bad", Code: "NOT_ASSIGNABLE", Path: "body.target"}))
	assert.Error(t, assertCompileError(result, Assertion{Lambda: "Bad", Code: "NOT_ASSIGNABLE", Path: "body"}))
	assert.Error(t, assertCompileError(result, Assertion{Lambda: "Bad", Code: "NOT_SUPPORTED"}))
	assert.Error(t, assertCompileError(result, Assertion{Lambda: "Good", Code: "NOT_ASSIGNABLE"}))
}

func TestAssertOracleEquivalent(t *testing.T) {
	result := NewResult()
	assert.NoError(t, assertOracleEquivalent(result, Assertion{Lambda: "L"}))

	result.Divergences["L"] = []string{"flow[0]: result: compiled 1, reference 2"}
	err := assertOracleEquivalent(result, Assertion{Lambda: "L"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiled 1, reference 2")
}

func TestAssertFinalState(t *testing.T) {
	vec := ir.NewStruct("Vec").AddField("X", ir.Int).AddField("Y", ir.Int)
	v := ir.Zero(vec)
	v.SetField("X", ir.IntValue(3))
	n := ir.IntValue(9)
	w := &world{names: []string{"n", "v"}, slots: map[string]*ir.Value{"v": &v, "n": &n}}

	tests := []struct {
		name    string
		slot    string
		expect  string
		wantErr string
	}{
		{name: "subset", slot: "v", expect: "{X: 3}"},
		{name: "all fields", slot: "v", expect: "{X: 3, Y: 0}"},
		{name: "scalar", slot: "n", expect: "9"},
		{name: "field mismatch", slot: "v", expect: "{X: 4}", wantErr: "v.X = 3"},
		{name: "missing field", slot: "v", expect: "{Z: 1}", wantErr: "v.Z"},
		{name: "scalar mismatch", slot: "n", expect: "8", wantErr: "n = 9"},
		{name: "map against scalar", slot: "n", expect: "{X: 1}", wantErr: "n = 9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(w, Assertion{Slot: tt.slot, Expect: yamlNode(t, tt.expect)})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_CollectsAll(t *testing.T) {
	result := NewResult()
	result.Trace = traceOf("A")

	errs := evaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Lambda: "A", Count: 1},
		{Type: AssertTraceCount, Lambda: "A", Count: 2},
		{Type: AssertOpcodes, Lambda: "A", Opcodes: []string{"ret"}},
		{Type: AssertFinalState, Slot: "x"},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 4)
	assert.Contains(t, errs[2], "final_state requires slots")
	assert.Contains(t, errs[3], `unknown assertion type "bogus"`)
}

func TestNormalize(t *testing.T) {
	in := map[string]any{
		"a": 1,
		"b": []any{2.0, "x", map[string]any{"c": uint64(3)}},
		"d": 1.5,
	}
	want := map[string]any{
		"a": int64(1),
		"b": []any{int64(2), "x", map[string]any{"c": int64(3)}},
		"d": 1.5,
	}
	assert.Equal(t, want, normalize(in))
}
