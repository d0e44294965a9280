package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exprjit/internal/ir"
)

func TestWriteProgram_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := createTestProgram("hash-a", "Update", 1)
	p.Opcodes = []string{"ldarg", "ldind", "ldint", "stfld", "ret"}
	p.MaxStack = 2

	inserted, err := s.WriteProgram(ctx, p)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.ReadProgram(ctx, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestWriteProgram_ContentAddressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteProgram(ctx, createTestProgram("hash-a", "First", 1))
	require.NoError(t, err)

	inserted, err := s.WriteProgram(ctx, createTestProgram("hash-a", "Second", 5))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.ReadProgram(ctx, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name, "first write wins")
	assert.Equal(t, int64(1), got.Seq)
}

func TestReadProgram_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadProgram(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReadPrograms_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ReadPrograms(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, p := range []Program{
		createTestProgram("b", "B", 2),
		createTestProgram("c", "C", 1),
		createTestProgram("a", "A", 2),
	} {
		_, err := s.WriteProgram(ctx, p)
		require.NoError(t, err)
	}

	got, err := s.ReadPrograms(ctx)
	require.NoError(t, err)
	var hashes []string
	for _, p := range got {
		hashes = append(hashes, p.Hash)
	}
	assert.Equal(t, []string{"c", "a", "b"}, hashes)
}

func TestWriteInvocation_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteProgram(ctx, createTestProgram("hash-a", "Update", 1))
	require.NoError(t, err)

	inv := Invocation{
		ID:           "inv-1",
		ProgramHash:  "hash-a",
		Args:         `[{"Health":1,"Name":"Ann"}]`,
		ArgsAfter:    `[{"Health":5,"Name":"Bob"}]`,
		ErrorCode:    "NULL_REFERENCE",
		ErrorMessage: "boom",
		Seq:          2,
	}
	require.NoError(t, s.WriteInvocation(ctx, inv))
	require.NoError(t, s.WriteInvocation(ctx, inv), "duplicate ids are ignored")

	got, err := s.ReadInvocation(ctx, "inv-1")
	require.NoError(t, err)
	inv.Result = "null"
	assert.Equal(t, inv, got)
	assert.True(t, got.Failed())
}

func TestWriteInvocation_RequiresProgram(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteInvocation(context.Background(), createTestInvocation("inv-1", "missing", 1))
	assert.Error(t, err, "foreign key enforced")
}

func TestReadInvocations_FilterAndOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, p := range []Program{createTestProgram("p1", "One", 1), createTestProgram("p2", "Two", 2)} {
		_, err := s.WriteProgram(ctx, p)
		require.NoError(t, err)
	}
	for _, inv := range []Invocation{
		createTestInvocation("inv-c", "p1", 5),
		createTestInvocation("inv-b", "p2", 4),
		createTestInvocation("inv-a", "p1", 5),
		createTestInvocation("inv-d", "p1", 3),
	} {
		require.NoError(t, s.WriteInvocation(ctx, inv))
	}

	ids := func(invs []Invocation) []string {
		var out []string
		for _, inv := range invs {
			out = append(out, inv.ID)
		}
		return out
	}

	all, err := s.ReadInvocations(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-d", "inv-b", "inv-a", "inv-c"}, ids(all))

	p1, err := s.ReadInvocations(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-d", "inv-a", "inv-c"}, ids(p1))

	none, err := s.ReadInvocations(ctx, "p3")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	_, err = s.WriteProgram(ctx, createTestProgram("p1", "One", 3))
	require.NoError(t, err)
	require.NoError(t, s.WriteInvocation(ctx, createTestInvocation("inv-1", "p1", 7)))

	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestMarshalValues(t *testing.T) {
	person := ir.NewClass("Person").
		AddField("Name", ir.String).
		AddField("Health", ir.Int)
	obj := ir.NewObject(person)
	obj.SetField("Health", ir.IntValue(5))
	obj.SetField("Name", ir.StringValue("<Bob>"))
	ref := ir.Ref(obj)
	n := ir.IntValue(3)

	got, err := MarshalValues([]ir.Value{ref, ir.PointerTo(&n), ir.Nil(person), ir.BoolValue(true)})
	require.NoError(t, err)
	assert.Equal(t, `[{"Health":5,"Name":"<Bob>"},3,null,true]`, got)

	one, err := MarshalValue(ir.StringValue("x"))
	require.NoError(t, err)
	assert.Equal(t, `"x"`, one)

	void, err := MarshalValue(ir.VoidValue())
	require.NoError(t, err)
	assert.Equal(t, "null", void)
}
