package runner

import "sync/atomic"

// Clock stamps records with strictly increasing sequence numbers.
// Implemented by AtomicClock and testutil.DeterministicClock.
type Clock interface {
	Next() int64
	Current() int64
}

// AtomicClock is a monotonic logical clock safe for concurrent use.
type AtomicClock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *AtomicClock {
	return &AtomicClock{}
}

// NewClockAt creates a clock whose next value is start+1. Used to resume
// after the last seq of an existing log.
func NewClockAt(start int64) *AtomicClock {
	c := &AtomicClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *AtomicClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *AtomicClock) Current() int64 {
	return c.seq.Load()
}
