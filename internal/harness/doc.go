// Package harness runs conformance scenarios against compiled lambdas.
//
// A scenario loads types and lambdas from CUE, declares caller-side slots,
// invokes lambdas against them and checks the outcome. Every invocation goes
// through runner.Runner into an in-memory store, and the trace used by
// assertions and golden files is read back from that store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: update_person
//	description: "What this scenario validates"
//	source: ../people.cue        # or inline: cue: |
//	slots:
//	  bob: {type: Person, value: {Health: 1, Name: "Ann"}}
//	  off: {type: int, value: 0}
//	flow:
//	  - invoke: Update
//	    args:
//	      - value: "abc"           # literal, typed by the parameter
//	      - slot: off              # by-ref parameters get a pointer to the slot
//	      - slot: bob
//	    expect:
//	      error: ""                # compile or runtime error code
//	      result: null             # checked only when present
//	assertions:
//	  - type: opcodes
//	    lambda: Update
//	    opcodes: [ldarg, ldind, ldint, stfld, ldarg, ldind, ldstr, stfld, ret]
//	  - type: final_state
//	    slot: bob
//	    expect: {Health: 5}
//
// # Assertion Types
//
//   - opcodes: exact mnemonic sequence of a compiled lambda
//   - compile_error: lambda fails to compile with a code (and node path)
//   - oracle_equivalent: every step matches the reference evaluator
//   - trace_count: a lambda was invoked exactly N times
//   - trace_order: lambdas were first invoked in the given order
//   - final_state: a slot's final value (subset match for objects)
//
// # Deterministic Testing
//
// The runner is given testutil.DeterministicClock and
// testutil.SequentialIDGenerator, so seq numbers and invocation IDs are
// identical across runs and Snapshot output can be kept as a golden file.
package harness
