package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/testutil"
	"github.com/roach88/exprjit/internal/vm"
)

// program is a lambda under test together with the model it was built from.
type program struct {
	m   *testutil.Model
	lam *ir.Lambda
}

// build constructs a lambda with a fresh model; fn receives the builder and
// returns the lambda pieces.
func build(t *testing.T, fn func(m *testutil.Model, b *ir.Builder) (*ir.Lambda, error)) program {
	t.Helper()
	m := testutil.NewModel()
	lam, err := fn(m, ir.NewBuilder())
	require.NoError(t, err)
	return program{m: m, lam: lam}
}

func mustCompile(t *testing.T, lam *ir.Lambda) *vm.Func {
	t.Helper()
	fn, err := Compile(lam)
	require.NoError(t, err)
	return fn
}

func mnemonics(t *testing.T, lam *ir.Lambda) []string {
	t.Helper()
	prog, err := CompileProgram(lam)
	require.NoError(t, err)
	return prog.Mnemonics()
}

// canonicalUpdate builds
//
//	func Update(params bytes, ref offset int, ref value Person) {
//	    value.Health = 5
//	    value.Name = "Bob"
//	}
func canonicalUpdate(m *testutil.Model, b *ir.Builder) (*ir.Lambda, error) {
	params := b.Param("params", ir.Bytes, false)
	offset := b.Param("offset", ir.Int, true)
	value := b.Param("value", m.Person, true)
	return b.Lambda("Update", ir.Void,
		b.Block(
			b.Assign(b.Member(value, "Health"), b.Int(5)),
			b.Assign(b.Member(value, "Name"), b.Str("Bob")),
		),
		params, offset, value)
}

// blockReceiver builds a compound assignment whose receiver has a side effect:
//
//	func Bump(ref offset int, ref value Person) {
//	    ({ offset += 1; value }).Health += 5
//	}
func blockReceiver(m *testutil.Model, b *ir.Builder) (*ir.Lambda, error) {
	offset := b.Param("offset", ir.Int, true)
	value := b.Param("value", m.Person, true)
	recv := b.Block(b.AddAssign(offset, b.Int(1)), value)
	return b.Lambda("Bump", ir.Void, b.AddAssign(b.Member(recv, "Health"), b.Int(5)), offset, value)
}
