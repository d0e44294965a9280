package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exprjit/internal/compiler"
	"github.com/roach88/exprjit/internal/ir"
)

const peopleSrc = `
types: {
	Person: {
		kind: "class"
		fields: {Health: "int", Name: "string", Pos: "Vec", Friend: "Person"}
		properties: {
			Title: {field: "Name"}
			Label: {field: "Name", readonly: true}
		}
	}
	Vec: {
		kind: "struct"
		fields: {X: "int", Y: "int"}
		properties: Horiz: {field: "X"}
	}
}

lambdas: {
	Update: {
		params: [
			{name: "params", type: "bytes"},
			{name: "offset", type: "int", ref: true},
			{name: "value", type: "Person", ref: true},
		]
		body: block: exprs: [
			{assign: {target: member: {of: param: "value", name: "Health"}, value: const: 5}},
			{assign: {target: member: {of: param: "value", name: "Name"}, value: const: "Bob"}},
		]
	}
	Bump: {
		params: [{name: "v", type: "Vec", ref: true}]
		returns: "int"
		body: compound: {
			op:     "+"
			target: member: {of: param: "v", name: "X"}
			value:  const: 10
		}
	}
	Square: {
		params: [{name: "n", type: "int"}]
		returns: "int"
		body: block: {
			vars: [{name: "t", type: "int"}]
			exprs: [
				{assign: {target: param: "t", value: param: "n"}},
				{binary: {op: "mul", left: param: "t", right: param: "t"}},
			]
		}
	}
}
`

func mustParse(t *testing.T, src string) *Module {
	t.Helper()
	m, errs := ParseBytes("test.cue", []byte(src))
	require.Empty(t, errs)
	require.NotNil(t, m)
	return m
}

func TestParse_Types(t *testing.T) {
	m := mustParse(t, peopleSrc)

	require.Len(t, m.Types, 2)
	person, ok := m.Type("Person")
	require.True(t, ok)
	assert.Equal(t, ir.KindClass, person.Kind())
	assert.Equal(t, 4, person.NumFields())

	friend, ok := person.Member("Friend")
	require.True(t, ok)
	assert.Same(t, person, friend.Type(), "class may refer to itself")

	pos, _ := person.Member("Pos")
	vec, _ := m.Type("Vec")
	assert.Same(t, vec, pos.Type(), "forward reference resolves")

	title, _ := person.Member("Title")
	assert.Equal(t, ir.MemberProperty, title.Kind())
	assert.True(t, title.Writable())
	label, _ := person.Member("Label")
	assert.False(t, label.Writable())

	intType, ok := m.Type("int")
	require.True(t, ok)
	assert.Same(t, ir.Int, intType)
}

func TestParse_CanonicalUpdateRuns(t *testing.T) {
	m := mustParse(t, peopleSrc)
	lam, ok := m.Lambda("Update")
	require.True(t, ok)

	fn, err := compiler.Compile(lam)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"ldarg", "ldind", "ldint", "stfld", "ldarg", "ldind", "ldstr", "stfld", "ret"},
		fn.Program().Mnemonics())

	person, _ := m.Type("Person")
	obj := ir.NewObject(person)
	obj.SetField("Health", ir.IntValue(1))
	obj.SetField("Name", ir.StringValue("Ann"))
	value := ir.Ref(obj)
	offset := ir.IntValue(0)

	_, err = fn.Invoke(ir.BytesValue(nil), ir.PointerTo(&offset), ir.PointerTo(&value))
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Field("Health").Int())
	assert.Equal(t, "Bob", obj.Field("Name").Str())
}

func TestParse_CompoundThroughByRefStruct(t *testing.T) {
	m := mustParse(t, peopleSrc)
	lam, _ := m.Lambda("Bump")
	fn, err := compiler.Compile(lam)
	require.NoError(t, err)

	vec, _ := m.Type("Vec")
	v := ir.Zero(vec)
	v.SetField("X", ir.IntValue(1))

	got, err := fn.Invoke(ir.PointerTo(&v))
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Int())
	assert.Equal(t, int64(11), v.Field("X").Int())
}

func TestParse_BlockLocals(t *testing.T) {
	m := mustParse(t, peopleSrc)
	lam, _ := m.Lambda("Square")
	fn, err := compiler.Compile(lam)
	require.NoError(t, err)

	got, err := fn.Invoke(ir.IntValue(7))
	require.NoError(t, err)
	assert.Equal(t, int64(49), got.Int())
}

func TestParse_PropertyViews(t *testing.T) {
	src := peopleSrc + `
lambdas: Rename: {
	params: [{name: "p", type: "Person"}, {name: "v", type: "Vec", ref: true}]
	body: block: exprs: [
		{assign: {target: member: {of: param: "p", name: "Title"}, value: const: "Zed"}},
		{compound: {op: "add", target: member: {of: param: "v", name: "Horiz"}, value: const: 2}},
	]
}
`
	m := mustParse(t, src)
	lam, _ := m.Lambda("Rename")
	fn, err := compiler.Compile(lam)
	require.NoError(t, err)

	person, _ := m.Type("Person")
	vec, _ := m.Type("Vec")
	obj := ir.NewObject(person)
	v := ir.Zero(vec)
	v.SetField("X", ir.IntValue(3))

	_, err = fn.Invoke(ir.Ref(obj), ir.PointerTo(&v))
	require.NoError(t, err)
	assert.Equal(t, "Zed", obj.Field("Name").Str())
	assert.Equal(t, int64(5), v.Field("X").Int())
}

func TestParse_TypedConstants(t *testing.T) {
	src := peopleSrc + `
lambdas: Consts: {
	params: [{name: "p", type: "Person"}, {name: "b", type: "bytes", ref: true}]
	body: block: exprs: [
		{assign: {target: member: {of: param: "p", name: "Pos"}, value: {const: {X: 4, Y: 5}, type: "Vec"}}},
		{assign: {target: member: {of: param: "p", name: "Friend"}, value: nil: "Person"}},
		{assign: {target: param: "b", value: {const: "hi", type: "bytes"}}},
	]
}
`
	m := mustParse(t, src)
	lam, _ := m.Lambda("Consts")
	fn, err := compiler.Compile(lam)
	require.NoError(t, err)

	person, _ := m.Type("Person")
	obj := ir.NewObject(person)
	obj.SetField("Friend", ir.Ref(ir.NewObject(person)))
	b := ir.BytesValue(nil)

	_, err = fn.Invoke(ir.Ref(obj), ir.PointerTo(&b))
	require.NoError(t, err)
	assert.Equal(t, int64(4), obj.Field("Pos").Field("X").Int())
	assert.Equal(t, int64(5), obj.Field("Pos").Field("Y").Int())
	assert.True(t, obj.Field("Friend").IsNil())
	assert.Equal(t, []byte("hi"), b.Raw())
}

func TestParse_LambdaErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		field    string
		mismatch bool
	}{
		{
			name:  "unknown parameter",
			body:  `body: param: "nope"`,
			field: "lambdas.Bad.body",
		},
		{
			name:     "type mismatch",
			body:     `params: [{name: "p", type: "Person"}], body: assign: {target: member: {of: param: "p", name: "Health"}, value: const: "x"}`,
			field:    "lambdas.Bad.body",
			mismatch: true,
		},
		{
			name:     "unknown member",
			body:     `params: [{name: "p", type: "Person"}], body: member: {of: param: "p", name: "Age"}`,
			field:    "lambdas.Bad.body",
			mismatch: true,
		},
		{
			name:  "two variants",
			body:  `body: {param: "x", const: 1}`,
			field: "lambdas.Bad.body",
		},
		{
			name:  "unknown operator",
			body:  `params: [{name: "n", type: "int"}], body: compound: {op: "pow", target: param: "n", value: const: 2}`,
			field: "lambdas.Bad.body.op",
		},
		{
			name:  "by-reference block variable",
			body:  `body: block: {vars: [{name: "t", type: "int", ref: true}], exprs: [{const: 1}]}`,
			field: "lambdas.Bad.body.vars[0].ref",
		},
		{
			name:  "duplicate parameter",
			body:  `params: [{name: "n", type: "int"}, {name: "n", type: "int"}], body: const: 1`,
			field: "lambdas.Bad.params[1]",
		},
		{
			name:  "untyped null",
			body:  `body: const: null`,
			field: "lambdas.Bad.body",
		},
		{
			name:  "missing body",
			body:  `params: []`,
			field: "lambdas.Bad.body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := peopleSrc + "\nlambdas: Bad: {" + tt.body + "}\n"
			m, errs := ParseBytes("test.cue", []byte(src))
			require.NotNil(t, m, "good lambdas still parse")
			require.Len(t, errs, 1)

			var serr *Error
			require.ErrorAs(t, errs[0], &serr)
			assert.Equal(t, tt.field, serr.Field)
			assert.True(t, serr.Pos.IsValid(), "error carries a position")
			assert.Equal(t, tt.mismatch, ir.IsTypeMismatch(errs[0]))

			_, ok := m.Lambda("Bad")
			assert.False(t, ok)
			_, ok = m.Lambda("Update")
			assert.True(t, ok)
		})
	}
}

func TestParse_TypeErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "unknown kind",
			src:   `types: T: {kind: "union"}`,
			field: "types.T.kind",
		},
		{
			name:  "unknown field type",
			src:   `types: T: {kind: "class", fields: {A: "float"}}`,
			field: "types.T.fields.A",
		},
		{
			name:  "builtin name",
			src:   `types: int: {kind: "struct"}`,
			field: "types.int",
		},
		{
			name:  "struct contains itself",
			src:   `types: {A: {kind: "struct", fields: {B: "B"}}, B: {kind: "struct", fields: {A: "A"}}}`,
			field: "types.A",
		},
		{
			name:  "property without backing field",
			src:   `types: T: {kind: "class", fields: {A: "int"}, properties: P: {field: "Z"}}`,
			field: "types.T.properties.P.field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, errs := ParseBytes("test.cue", []byte(tt.src))
			assert.Nil(t, m)
			require.Len(t, errs, 1)
			var serr *Error
			require.ErrorAs(t, errs[0], &serr)
			assert.Equal(t, tt.field, serr.Field)
		})
	}
}

func TestParse_ClassCycleIsFine(t *testing.T) {
	m := mustParse(t, `types: {
	A: {kind: "class", fields: {B: "B"}}
	B: {kind: "struct", fields: {A: "A"}}
}`)
	assert.Len(t, m.Types, 2)
}

func TestParse_InvalidCUE(t *testing.T) {
	m, errs := ParseBytes("broken.cue", []byte(`types: {`))
	assert.Nil(t, m)
	require.Len(t, errs, 1)
	var serr *Error
	require.ErrorAs(t, errs[0], &serr)
	assert.Equal(t, "cue", serr.Field)
}

func TestAnnotate_AttachesPosition(t *testing.T) {
	src := peopleSrc + `
lambdas: Const: {
	body: assign: {target: const: 1, value: const: 2}
}
`
	m := mustParse(t, src)
	lam, _ := m.Lambda("Const")

	_, err := compiler.Compile(lam)
	require.Error(t, err)
	require.True(t, compiler.IsNotAssignable(err))

	err = m.Annotate(lam, err)
	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, "test.cue", ce.Pos.Filename())
	assert.Equal(t, m.Pos(lam, "body.target"), ce.Pos)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.cue"), []byte(`package test

types: Counter: {kind: "class", fields: N: "int"}
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lambdas.cue"), []byte(`package test

lambdas: Inc: {
	params: [{name: "c", type: "Counter"}]
	returns: "int"
	body: compound: {op: "+", target: member: {of: param: "c", name: "N"}, value: const: 1}
}
`), 0644))

	m, errs := LoadDir(dir)
	require.Empty(t, errs)
	assert.Equal(t, 2, m.FileCount)

	lam, ok := m.Lambda("Inc")
	require.True(t, ok)
	fn, err := compiler.Compile(lam)
	require.NoError(t, err)

	counter, _ := m.Type("Counter")
	obj := ir.NewObject(counter)
	got, err := fn.Invoke(ir.Ref(obj))
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Int())
	assert.Equal(t, int64(1), obj.Field("N").Int())
}

func TestLoadDir_Errors(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.Len(t, errs, 1)

	_, errs = LoadDir(t.TempDir())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no CUE files")
}

func TestLayoutCycles(t *testing.T) {
	a := ir.NewStruct("A")
	b := ir.NewStruct("B")
	c := ir.NewClass("C")
	a.AddField("B", b)
	b.AddField("A", a)
	b.AddField("C", c)
	c.AddField("A", a)

	cycles := layoutCycles([]*ir.Type{a, b, c})
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "A"}, cycles[0])

	self := ir.NewStruct("S")
	self.AddField("S", self)
	assert.Equal(t, [][]string{{"S", "S"}}, layoutCycles([]*ir.Type{self}))

	assert.Empty(t, layoutCycles([]*ir.Type{c}))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.cue")
	require.NoError(t, os.WriteFile(path, []byte(peopleSrc), 0644))

	m, errs := ParseFile(path)
	require.Empty(t, errs)
	_, ok := m.Lambda("Square")
	assert.True(t, ok)

	_, errs = ParseFile(filepath.Join(t.TempDir(), "missing.cue"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "missing.cue")
}
