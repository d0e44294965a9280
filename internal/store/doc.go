// Package store provides SQLite-backed storage for compiled programs and
// their invocations.
//
// The store is an append-only log with:
//   - Programs: one row per distinct lambda, keyed by ir.TreeHash, holding
//     the signature, the disassembly listing and the opcode sequence
//   - Invocations: one row per call, with the canonical JSON of the
//     arguments before and after the call, the result and any runtime error
//
// Ordering uses the seq column (a logical clock supplied by the caller),
// never timestamps. Every listing query orders by seq ASC and then by key
// with COLLATE BINARY, so results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
