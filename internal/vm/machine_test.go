package vm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exprjit/internal/ir"
	"github.com/roach88/exprjit/internal/testutil"
)

func member(t *testing.T, typ *ir.Type, name string) *ir.Member {
	t.Helper()
	m, ok := typ.Member(name)
	require.True(t, ok, "%s.%s", typ, name)
	return m
}

// canonicalProgram is the hand-assembled form of
//
//	func Update(params bytes, ref offset int, ref value Person) {
//	    value.Health = 5
//	    value.Name = "Bob"
//	}
func canonicalProgram(t *testing.T, m *testutil.Model) *Program {
	return &Program{
		Name: "Update",
		Signature: ir.Signature{
			Params: []ir.Param{
				{Name: "params", Type: ir.Bytes},
				{Name: "offset", Type: ir.Int, ByRef: true},
				{Name: "value", Type: m.Person, ByRef: true},
			},
			Return: ir.Void,
		},
		Code: []Instr{
			{Op: OpLdArg, Arg: 2},
			{Op: OpLdInd},
			{Op: OpLdInt, Arg: 5},
			{Op: OpStFld, Member: member(t, m.Person, "Health")},
			{Op: OpLdArg, Arg: 2},
			{Op: OpLdInd},
			{Op: OpLdStr, Arg: 0},
			{Op: OpStFld, Member: member(t, m.Person, "Name")},
			{Op: OpRet},
		},
		Consts:   []ir.Value{ir.StringValue("Bob")},
		MaxStack: 2,
	}
}

func TestInvoke_CanonicalProgram(t *testing.T) {
	m := testutil.NewModel()
	fn := NewFunc(canonicalProgram(t, m))

	person := m.NewPerson(1, "Ann")
	offset := ir.IntValue(0)
	out, err := fn.Invoke(ir.BytesValue(nil), ir.PointerTo(&offset), ir.PointerTo(&person))
	require.NoError(t, err)
	assert.Equal(t, ir.KindVoid, out.Kind())
	assert.Equal(t, int64(5), person.Object().Field("Health").Int())
	assert.Equal(t, "Bob", person.Object().Field("Name").Str())
	assert.Equal(t, int64(0), offset.Int())
}

func TestInvoke_NullReference(t *testing.T) {
	m := testutil.NewModel()
	fn := NewFunc(canonicalProgram(t, m))

	person := ir.Nil(m.Person)
	offset := ir.IntValue(0)
	_, err := fn.Invoke(ir.BytesValue(nil), ir.PointerTo(&offset), ir.PointerTo(&person))
	require.Error(t, err)
	assert.True(t, IsNullReference(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.PC)
	assert.Equal(t, "Update", re.Func)
}

func TestInvoke_SignatureMismatch(t *testing.T) {
	m := testutil.NewModel()
	fn := NewFunc(canonicalProgram(t, m))
	person := m.NewPerson(1, "Ann")
	offset := ir.IntValue(0)
	wrong := ir.StringValue("x")

	tests := []struct {
		name string
		args []ir.Value
	}{
		{"arity", []ir.Value{ir.BytesValue(nil)}},
		{"by-ref passed by value", []ir.Value{ir.BytesValue(nil), offset, ir.PointerTo(&person)}},
		{"slot of wrong type", []ir.Value{ir.BytesValue(nil), ir.PointerTo(&wrong), ir.PointerTo(&person)}},
		{"by-value of wrong type", []ir.Value{ir.IntValue(1), ir.PointerTo(&offset), ir.PointerTo(&person)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fn.Invoke(tt.args...)
			require.Error(t, err)
			assert.True(t, IsSignatureMismatch(err), err.Error())
		})
	}
}

func TestInvoke_DivideByZero(t *testing.T) {
	fn := NewFunc(&Program{
		Name:      "Div",
		Signature: ir.Signature{Params: []ir.Param{{Name: "a", Type: ir.Int}, {Name: "b", Type: ir.Int}}, Return: ir.Int},
		Code: []Instr{
			{Op: OpLdArg, Arg: 0},
			{Op: OpLdArg, Arg: 1},
			{Op: OpDiv},
			{Op: OpRet},
		},
		MaxStack: 2,
	})

	out, err := fn.Invoke(ir.IntValue(7), ir.IntValue(2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Int())

	_, err = fn.Invoke(ir.IntValue(7), ir.IntValue(0))
	assert.True(t, IsDivideByZero(err))
}

func TestInvoke_ByValueStructIsCopied(t *testing.T) {
	m := testutil.NewModel()
	// func Bump(v Vec) int { v.X = 9; return v.X }
	fn := NewFunc(&Program{
		Name:      "Bump",
		Signature: ir.Signature{Params: []ir.Param{{Name: "v", Type: m.Vec}}, Return: ir.Int},
		Code: []Instr{
			{Op: OpLdArgA, Arg: 0},
			{Op: OpLdInt, Arg: 9},
			{Op: OpStFld, Member: member(t, m.Vec, "X")},
			{Op: OpLdArgA, Arg: 0},
			{Op: OpLdFld, Member: member(t, m.Vec, "X")},
			{Op: OpRet},
		},
		MaxStack: 2,
	})

	v := m.NewVec(1, 2)
	out, err := fn.Invoke(v)
	require.NoError(t, err)
	assert.Equal(t, int64(9), out.Int())
	assert.Equal(t, int64(1), v.Field("X").Int(), "caller's struct is untouched")
}

func TestInvoke_StoreIntoTemporaryIsRejected(t *testing.T) {
	m := testutil.NewModel()
	fn := NewFunc(&Program{
		Name:      "Bad",
		Signature: ir.Signature{Params: []ir.Param{{Name: "v", Type: m.Vec}}, Return: ir.Void},
		Code: []Instr{
			{Op: OpLdArg, Arg: 0},
			{Op: OpLdInt, Arg: 1},
			{Op: OpStFld, Member: member(t, m.Vec, "X")},
			{Op: OpRet},
		},
		MaxStack: 2,
	})
	_, err := fn.Invoke(m.NewVec(0, 0))
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidProgram, re.Code)
}

func TestInvoke_StructPropertyThroughPointer(t *testing.T) {
	m := testutil.NewModel()
	// func SetLen(ref v Vec) { v.Len = 7 }
	fn := NewFunc(&Program{
		Name:      "SetLen",
		Signature: ir.Signature{Params: []ir.Param{{Name: "v", Type: m.Vec, ByRef: true}}, Return: ir.Void},
		Code: []Instr{
			{Op: OpLdArg, Arg: 0},
			{Op: OpLdInt, Arg: 7},
			{Op: OpCallSet, Member: member(t, m.Vec, "Len")},
			{Op: OpRet},
		},
		MaxStack: 2,
	})
	v := m.NewVec(1, 1)
	_, err := fn.Invoke(ir.PointerTo(&v))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Field("X").Int())
}

func TestInvoke_Arithmetic(t *testing.T) {
	tests := []struct {
		op   Opcode
		l, r ir.Value
		want ir.Value
	}{
		{OpAdd, ir.IntValue(2), ir.IntValue(3), ir.IntValue(5)},
		{OpSub, ir.IntValue(2), ir.IntValue(3), ir.IntValue(-1)},
		{OpMul, ir.IntValue(4), ir.IntValue(3), ir.IntValue(12)},
		{OpRem, ir.IntValue(7), ir.IntValue(3), ir.IntValue(1)},
		{OpShl, ir.IntValue(1), ir.IntValue(65), ir.IntValue(2)},
		{OpShr, ir.IntValue(-8), ir.IntValue(1), ir.IntValue(-4)},
		{OpXor, ir.BoolValue(true), ir.BoolValue(true), ir.BoolValue(false)},
		{OpAdd, ir.StringValue("a"), ir.StringValue("b"), ir.StringValue("ab")},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got, err := arith(&Program{Name: "t"}, 0, tt.op, tt.l, tt.r)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestInvoke_Concurrent(t *testing.T) {
	m := testutil.NewModel()
	fn := NewFunc(canonicalProgram(t, m))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			person := m.NewPerson(int64(i), "x")
			offset := ir.IntValue(int64(i))
			if _, err := fn.Invoke(ir.BytesValue(nil), ir.PointerTo(&offset), ir.PointerTo(&person)); err != nil {
				errs <- err
				return
			}
			if person.Object().Field("Health").Int() != 5 {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
