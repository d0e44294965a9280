// Package vm defines the stack-machine instruction set that compiled lambdas
// run on, the interpreter that executes it, and Func, the typed callable the
// compiler hands back to the host.
//
// EXECUTION MODEL:
//
// A Program is a flat instruction list ending in ret, a constant pool, local
// slot types and the maximum evaluation-stack depth the emitter computed.
// Each invocation gets a frame holding argument slots, local slots and the
// evaluation stack. Frames come from a sync.Pool, so a Func is safe for
// concurrent use and steady-state invocation does not allocate frames.
//
// Argument slots of by-reference parameters hold a managed pointer to the
// caller's storage; ldarg pushes that pointer and ldind/stind go through it.
// By-value arguments are copied into the frame, so struct arguments never
// alias caller storage.
//
// ERRORS:
//
// Null dereferences, division by zero and signature mismatches surface as
// *RuntimeError. The interpreter does not panic on well-formed programs.
package vm
