package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemberAccess_TypeChecks(t *testing.T) {
	person, stats := personTypes()
	p, err := NewParameter("p", person, false)
	require.NoError(t, err)

	m, err := NewMemberAccessByName(p, "Health")
	require.NoError(t, err)
	assert.Same(t, Int, m.Type())
	assert.Equal(t, 0, m.Member().Offset())

	_, err = NewMemberAccessByName(p, "Missing")
	require.Error(t, err)
	assert.True(t, IsTypeMismatch(err))

	level, _ := stats.Member("Level")
	_, err = NewMemberAccess(p, level)
	require.Error(t, err, "member of another type")
	assert.True(t, IsTypeMismatch(err))

	n, err := NewParameter("n", Int, false)
	require.NoError(t, err)
	_, err = NewMemberAccessByName(n, "Health")
	assert.True(t, IsTypeMismatch(err), "int has no members")
}

func TestNewAssign_TypeChecks(t *testing.T) {
	person, _ := personTypes()
	p, _ := NewParameter("p", person, false)
	health, _ := NewMemberAccessByName(p, "Health")
	name, _ := NewMemberAccessByName(p, "Name")
	friend, _ := NewMemberAccessByName(p, "Friend")

	five, _ := NewConstant(IntValue(5), nil)
	_, err := NewAssign(health, five)
	require.NoError(t, err)

	_, err = NewAssign(name, five)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TYPE_MISMATCH: Assign")

	null, _ := NewConstant(Nil(person), person)
	_, err = NewAssign(friend, null)
	assert.NoError(t, err)
}

func TestNewCompoundAssign_OperatorTypes(t *testing.T) {
	person, _ := personTypes()
	p, _ := NewParameter("p", person, false)
	health, _ := NewMemberAccessByName(p, "Health")
	name, _ := NewMemberAccessByName(p, "Name")
	one, _ := NewConstant(IntValue(1), nil)
	suffix, _ := NewConstant(StringValue("!"), nil)

	_, err := NewCompoundAssign(health, OpAdd, one)
	assert.NoError(t, err)
	_, err = NewCompoundAssign(name, OpAdd, suffix)
	assert.NoError(t, err, "string concatenation")
	_, err = NewCompoundAssign(name, OpSub, suffix)
	assert.True(t, IsTypeMismatch(err))
	_, err = NewCompoundAssign(health, OpAdd, suffix)
	assert.True(t, IsTypeMismatch(err))
}

func TestNewBlock_Rules(t *testing.T) {
	one, _ := NewConstant(IntValue(1), nil)

	_, err := NewBlock(nil)
	assert.True(t, IsTypeMismatch(err), "empty block")

	byRef, _ := NewParameter("r", Int, true)
	_, err = NewBlock([]*Parameter{byRef}, one)
	assert.True(t, IsTypeMismatch(err), "by-ref local")

	blk, err := NewBlock(nil, one)
	require.NoError(t, err)
	assert.Same(t, Int, blk.Type())
}

func TestNewLambda_Rules(t *testing.T) {
	one, _ := NewConstant(IntValue(1), nil)
	a, _ := NewParameter("a", Int, false)
	a2, _ := NewParameter("a", Int, false)

	_, err := NewLambda("dup", Void, one, a, a2)
	assert.True(t, IsTypeMismatch(err), "duplicate parameter names")

	_, err = NewLambda("bad", String, one)
	assert.True(t, IsTypeMismatch(err), "return type mismatch")

	lam, err := NewLambda("ok", nil, one, a)
	require.NoError(t, err)
	assert.Same(t, Void, lam.Type())
	assert.Equal(t, "func(a int)", lam.Signature().String())
}

func TestBuilder_StickyError(t *testing.T) {
	person, _ := personTypes()
	b := NewBuilder()
	p := b.Param("p", person, false)
	missing := b.Member(p, "Nope")
	assert.Nil(t, missing)
	require.Error(t, b.Err())

	// Later calls are no-ops and the first error is reported.
	assign := b.Assign(missing, b.Int(1))
	assert.Nil(t, assign)
	_, err := b.Lambda("L", Void, assign, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no member "Nope"`)
}

func TestBuilder_Canonical(t *testing.T) {
	person, _ := personTypes()
	lam := setHealthTree(person)
	assert.Equal(t, "SetHealth", lam.Name())
	require.Len(t, lam.Params(), 1)
	assert.True(t, lam.Params()[0].ByRef())

	assign, ok := lam.Body().(*Assign)
	require.True(t, ok)
	target, ok := assign.Target().(*MemberAccess)
	require.True(t, ok)
	assert.Same(t, lam.Params()[0], target.Target())
	assert.Equal(t, "Health", target.Member().Name())
}

func TestTypes_DeclarationPanics(t *testing.T) {
	person, _ := personTypes()
	assert.Panics(t, func() { person.AddField("Health", Int) }, "duplicate member")
	assert.Panics(t, func() { Int.AddField("x", Int) }, "scalar type")
	assert.Panics(t, func() { person.AddProperty("P", Int, Accessor{}) }, "property without getter")
}

func TestMember_Writable(t *testing.T) {
	person, stats := personTypes()
	title, _ := person.Member("Title")
	score, _ := stats.Member("Score")
	health, _ := person.Member("Health")
	assert.True(t, title.Writable())
	assert.False(t, score.Writable())
	assert.True(t, health.Writable())
	assert.Equal(t, -1, title.Offset())
}

func TestParseBinaryOp(t *testing.T) {
	for _, s := range []string{"add", "+"} {
		op, err := ParseBinaryOp(s)
		require.NoError(t, err)
		assert.Equal(t, OpAdd, op)
	}
	op, err := ParseBinaryOp("<<")
	require.NoError(t, err)
	assert.Equal(t, OpShl, op)
	_, err = ParseBinaryOp("**")
	assert.Error(t, err)
}
