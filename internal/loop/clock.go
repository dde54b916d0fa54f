package loop

import "sync/atomic"

// Clock is the monotonic logical clock for turn ordering.
//
// Every task the loop runs is stamped with a strictly increasing turn
// number from this clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Re-runs produce identical turn numbering
// - Causal relationships are explicit
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the loop's single-writer design means only one goroutine
// typically calls Next().
type Clock struct {
	turn atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific turn number.
// Used to resume turn numbering from a known position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.turn.Store(start)
	return c
}

// Next returns the next turn number and advances the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.turn.Add(1)
}

// Current returns the current turn number without advancing.
func (c *Clock) Current() int64 {
	return c.turn.Load()
}
