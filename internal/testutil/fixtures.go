package testutil

import "github.com/roach88/exprjit/internal/ir"

// Model is the shared type model of the compiler and runtime tests.
//
//	class  Person { Health int; Name string; Pos Vec; Friend Person; Title string (get/set); Tag string (get) }
//	struct Vec    { X int; Y int; Inner Inner; Len int (get/set) }
//	struct Inner  { Z int }
//	struct Holder { P Person; V Vec }
//
// Person.Title reads and writes Name with a "Sir " prefix. Vec.Len reads
// X+Y and its setter stores the value into X, so writes through a struct
// property are observable.
type Model struct {
	Person *ir.Type
	Vec    *ir.Type
	Inner  *ir.Type
	Holder *ir.Type
}

// NewModel declares a fresh set of fixture types. Each call returns distinct
// types, so tests never share mutable declarations.
func NewModel() *Model {
	inner := ir.NewStruct("Inner").AddField("Z", ir.Int)

	vec := ir.NewStruct("Vec").
		AddField("X", ir.Int).
		AddField("Y", ir.Int).
		AddField("Inner", inner)
	vec.AddProperty("Len", ir.Int, ir.Accessor{
		Get: func(recv ir.Value) ir.Value {
			v := recv.Elem()
			return ir.IntValue(v.Slot(0).Int() + v.Slot(1).Int())
		},
		Set: func(recv ir.Value, x ir.Value) {
			recv.Elem().Slot(0).Set(x)
		},
	})

	person := ir.NewClass("Person").
		AddField("Health", ir.Int).
		AddField("Name", ir.String).
		AddField("Pos", vec)
	person.AddField("Friend", person)
	person.AddProperty("Title", ir.String, ir.Accessor{
		Get: func(recv ir.Value) ir.Value {
			return ir.StringValue("Sir " + recv.Object().Slot(1).Str())
		},
		Set: func(recv ir.Value, x ir.Value) {
			recv.Object().Slot(1).Set(x)
		},
	})
	person.AddProperty("Tag", ir.String, ir.Accessor{
		Get: func(recv ir.Value) ir.Value {
			return ir.StringValue("#" + recv.Object().Slot(1).Str())
		},
	})

	holder := ir.NewStruct("Holder").
		AddField("P", person).
		AddField("V", vec)

	return &Model{Person: person, Vec: vec, Inner: inner, Holder: holder}
}

// NewPerson allocates a Person with the given health and name.
func (m *Model) NewPerson(health int64, name string) ir.Value {
	obj := ir.NewObject(m.Person)
	obj.SetField("Health", ir.IntValue(health))
	obj.SetField("Name", ir.StringValue(name))
	return ir.Ref(obj)
}

// NewVec returns a Vec value.
func (m *Model) NewVec(x, y int64) ir.Value {
	v := ir.NewStructValue(m.Vec)
	v.SetField("X", ir.IntValue(x))
	v.SetField("Y", ir.IntValue(y))
	return v
}
