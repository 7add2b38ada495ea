package engine

import "sync/atomic"

// Clock is the monotonic logical clock that numbers passes.
//
// Every pass is stamped with a strictly increasing seq from this clock, so
// the pass log orders passes without relying on wall time. Clock is safe for
// concurrent use, though only the coordinating goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, e.g. from the last
// seq in a persisted pass log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
