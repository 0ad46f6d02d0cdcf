package engine

import "sync/atomic"

// Clock is the monotonic logical clock of arbitration steps.
//
// Every selection advances the clock by one, and every snapshot message is
// stamped with the current value. Wall-clock time is never used for
// ordering, so two runs of the same program with the same strategy produce
// identically numbered traces.
//
// Reads are atomic so observers on other goroutines (for example a bridge
// reporting status) can sample the step without joining the engine's
// goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific step.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new step.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current step without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
