package testutil

import "sync"

// DeterministicClock provides a thread-safe logical clock for tests.
//
// Unlike loop.Clock, DeterministicClock can be reset for test reuse.
// This lets a test stamp the same trace twice and get identical turn
// values on both passes.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	turn int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
//
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{turn: 0}
}

// Next increments and returns the next turn stamp.
//
// Monotonic: always returns turn+1, never decreases.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turn++
	return c.turn
}

// Current returns the current turn stamp without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn
}

// Reset resets the clock to 0.
//
// Used for restamping. After Reset(), the next call to Next() returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turn = 0
}
