package ir

// personTypes declares the Person class and the Stats struct used across the
// package tests:
//
//	class Person  { Health int; Name string; Stats Stats; Friend Person; Title string (property) }
//	struct Stats  { Level int; Tag string; Score int (read-only property) }
func personTypes() (person, stats *Type) {
	stats = NewStruct("Stats").
		AddField("Level", Int).
		AddField("Tag", String)
	stats.AddProperty("Score", Int, Accessor{
		Get: func(recv Value) Value {
			return IntValue(recv.Elem().Slot(0).Int() * 10)
		},
	})

	person = NewClass("Person").
		AddField("Health", Int).
		AddField("Name", String).
		AddField("Stats", stats)
	person.AddField("Friend", person)
	person.AddProperty("Title", String, Accessor{
		Get: func(recv Value) Value { return StringValue("Sir " + recv.Object().Slot(1).Str()) },
		Set: func(recv Value, v Value) { recv.Object().Slot(1).Set(v) },
	})
	return person, stats
}

// setHealthTree builds: func SetHealth(ref value Person) { value.Health = 5 }
func setHealthTree(person *Type) *Lambda {
	b := NewBuilder()
	value := b.Param("value", person, true)
	lam, err := b.Lambda("SetHealth", Void, b.Assign(b.Member(value, "Health"), b.Int(5)), value)
	if err != nil {
		panic(err)
	}
	return lam
}
