package federate

import "sync/atomic"

// CycleClock stamps executive cycles with a strictly increasing sequence
// number. The sequence orders checkpoint snapshots within a run and
// survives a restart by resuming from the last persisted value.
//
// Safe for concurrent use, though the executive's single-writer design
// means only the cycle goroutine calls Next.
type CycleClock struct {
	seq atomic.Int64
}

// NewCycleClock returns a clock starting at 0.
func NewCycleClock() *CycleClock {
	return &CycleClock{}
}

// NewCycleClockAt returns a clock resuming from a checkpointed sequence.
func NewCycleClockAt(start int64) *CycleClock {
	c := &CycleClock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new sequence number.
func (c *CycleClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the sequence number without incrementing.
func (c *CycleClock) Current() int64 {
	return c.seq.Load()
}
