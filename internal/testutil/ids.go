package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialIDGenerator hands out predictable record IDs for golden tests:
// prefix-000001, prefix-000002, ...
//
// Production code stamps records with UUIDv7; tests swap this in so that
// store dumps and traces are byte-identical across runs.
//
// Thread-safety: safe for concurrent use.
type SequentialIDGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDGenerator creates a generator. An empty prefix becomes "test".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements runner.IDGenerator.
func (g *SequentialIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%06d", g.prefix, g.n.Add(1))
}
