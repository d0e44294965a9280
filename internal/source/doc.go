// Package source reads type declarations and lambdas written in CUE.
//
// A source directory holds two top-level structs:
//
//	types: Person: {
//	    kind: "class"
//	    fields: {Health: "int", Name: "string"}
//	    properties: Title: {field: "Name"}
//	}
//
//	lambdas: SetHealth: {
//	    params: [{name: "value", type: "Person", ref: true}]
//	    returns: "void"
//	    body: assign: {target: member: {of: param: "value", name: "Health"}, value: const: 5}
//	}
//
// Every expression is a struct with exactly one of the keys param, const,
// nil, member, assign, compound, binary or block. Parse builds ir trees
// through ir.Builder, so type errors surface as *ir.TypeMismatchError wrapped
// in an *Error that carries the CUE position.
//
// Properties declared in CUE are views over a backing field of the same
// type; properties with computed accessors are declared in Go.
package source
