// Package oracle evaluates lambdas by walking the tree directly.
//
// It shares the ir value model with the vm but none of the compiler: no
// resolver, no instruction selection, no stack. Tests run a lambda through
// both and compare results and caller-visible state, so a lowering mistake in
// the compiler shows up as a disagreement.
//
// Runtime faults are reported as *vm.RuntimeError with PC -1 so callers can
// compare error codes across the two implementations.
package oracle
