// Package runner ties compilation, invocation and the program log together.
//
// A Runner compiles lambdas through a compiler.Cache, records each distinct
// program once in the store (keyed by ir.TreeHash) and records every call
// with the caller-visible state before and after it. Records are stamped by a
// logical clock, never wall time, and invocation IDs come from an
// IDGenerator, so a run with a deterministic clock and generator produces a
// byte-identical log.
//
// Thread-safety: Runner is safe for concurrent use. The store serializes
// writes on a single connection.
package runner
