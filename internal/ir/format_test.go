package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	person, _ := personTypes()
	assert.Equal(t, "func SetHealth(ref value Person) {\n\tvalue.Health = 5\n}", Format(setHealthTree(person)))

	b := NewBuilder()
	value := b.Param("value", person, true)
	offset := b.Param("offset", Int, true)
	tmp := b.Var("tmp", Int)
	lam, err := b.Lambda("Tick", Int,
		b.Scope([]*Parameter{tmp},
			b.AddAssign(b.Member(b.Block(b.AddAssign(offset, b.Int(1)), value), "Health"), b.Int(5)),
			b.Assign(tmp, b.Binary(OpMul, b.Member(value, "Health"), b.Int(2))),
			tmp,
		),
		value, offset)
	require.NoError(t, err)

	want := "func Tick(ref value Person, ref offset int) int {\n" +
		"\tvar tmp int\n" +
		"\t({\n\t\toffset += 1\n\t\tvalue\n\t}).Health += 5\n" +
		"\ttmp = value.Health * 2\n" +
		"\treturn tmp\n" +
		"}"
	assert.Equal(t, want, Format(lam))
}

func TestFormatConstant(t *testing.T) {
	person, stats := personTypes()
	assert.Equal(t, "nil", formatConstant(Nil(person)))
	assert.Equal(t, `Stats{Level: 0, Tag: ""}`, formatConstant(Zero(stats)))
	assert.Equal(t, `"hi"`, formatConstant(StringValue("hi")))
}
