package ir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_IndependentTreesMatch(t *testing.T) {
	// Two builds from separate type declarations describe the same program.
	p1, _ := personTypes()
	p2, _ := personTypes()

	a, err := MarshalCanonical(setHealthTree(p1))
	require.NoError(t, err)
	b, err := MarshalCanonical(setHealthTree(p2))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalCanonical_Compact(t *testing.T) {
	person, _ := personTypes()
	data, err := MarshalCanonical(setHealthTree(person))
	require.NoError(t, err)
	assert.False(t, bytes.ContainsAny(data, " \n\t"))
	assert.True(t, bytes.HasPrefix(data, []byte(`{"ir_version":"1","tree":`)))
}

func TestMarshalCanonical_ParametersBySlot(t *testing.T) {
	// Renaming a parameter changes its declaration but not the references.
	b := NewBuilder()
	x := b.Param("x", Int, false)
	lamX, err := b.Lambda("F", Int, x, x)
	require.NoError(t, err)

	data, err := MarshalCanonical(lamX)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body":{"param":0}`)
}

func TestMarshalCanonical_FreeParameter(t *testing.T) {
	b := NewBuilder()
	free := b.Param("outer", Int, false)
	lam, err := b.Lambda("F", Int, free)
	require.NoError(t, err)

	data, err := MarshalCanonical(lam)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"free":"outer"}`)
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	b := NewBuilder()
	lam, err := b.Lambda("F", String, b.Str("<a&b>"))
	require.NoError(t, err)
	data, err := MarshalCanonical(lam)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"<a&b>"`)
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "é" precomposed vs. "e" + combining acute.
	b := NewBuilder()
	composed, err := b.Lambda("F", String, b.Str("caf\u00e9"))
	require.NoError(t, err)
	decomposed, err := b.Lambda("F", String, b.Str("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, MustTreeHash(composed), MustTreeHash(decomposed))
}

func TestCompareUTF16(t *testing.T) {
	// U+10000 sorts after U+FFFF by UTF-8 bytes but before it by UTF-16 code units.
	assert.Negative(t, compareUTF16("\U00010000", "\uffff"))
	assert.Zero(t, compareUTF16("a", "a"))
	assert.Negative(t, compareUTF16("a", "b"))
}

func TestTreeHash(t *testing.T) {
	person, _ := personTypes()
	h := MustTreeHash(setHealthTree(person))
	assert.Len(t, h, 64)
	assert.Equal(t, h, MustTreeHash(setHealthTree(person)), "deterministic")

	b := NewBuilder()
	value := b.Param("value", person, true)
	other, err := b.Lambda("SetHealth", Void, b.Assign(b.Member(value, "Health"), b.Int(6)), value)
	require.NoError(t, err)
	assert.NotEqual(t, h, MustTreeHash(other))

	b = NewBuilder()
	byVal := b.Param("value", person, false)
	other, err = b.Lambda("SetHealth", Void, b.Assign(b.Member(byVal, "Health"), b.Int(5)), byVal)
	require.NoError(t, err)
	assert.NotEqual(t, h, MustTreeHash(other), "by-ref flag is part of the tree")
}

func TestHashWithDomain_Separator(t *testing.T) {
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
