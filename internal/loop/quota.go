package loop

import (
	"errors"
	"fmt"
)

// DefaultMaxTurns is the default maximum number of turns per drain.
// This prevents a task that keeps posting follow-on work from spinning
// the loop forever.
const DefaultMaxTurns = 10000

// turnQuota tracks the number of turns taken in a single drain and
// enforces a maximum.
//
// Each RunUntilIdle call gets a fresh quota. The quota is checked before
// every task runs, so the over-quota task never starts.
//
// This catches linear explosions (a chain of follow-on posts that never
// ends) as well as accidental self-reposting loops. Because FIFO order
// bounds how much queued work precedes any task, the quota guarantees a
// drain terminates.
type turnQuota struct {
	maxTurns int // Maximum allowed turns for this drain (<= 0 disables)
	current  int // Current turn count
}

// newTurnQuota creates a quota with the given limit.
func newTurnQuota(maxTurns int) *turnQuota {
	return &turnQuota{maxTurns: maxTurns}
}

// Check increments the turn counter and validates against the limit.
//
// Returns TurnsExceededError if the quota is exceeded.
// This is called before each task runs. A non-positive limit disables
// the quota.
func (q *turnQuota) Check() error {
	q.current++
	if q.maxTurns > 0 && q.current > q.maxTurns {
		return &TurnsExceededError{
			Turns: q.current,
			Limit: q.maxTurns,
		}
	}
	return nil
}

// TurnsExceededError is returned when a drain exceeds the max turns quota.
//
// The error terminates the drain. Tasks still queued when the quota trips
// are never run.
type TurnsExceededError struct {
	Turns int // Number of turns taken
	Limit int // Maximum allowed turns
}

// Error implements the error interface.
func (e *TurnsExceededError) Error() string {
	return fmt.Sprintf("drain exceeded max turns quota: %d turns > %d limit",
		e.Turns, e.Limit)
}

// IsTurnsExceededError returns true if the error is a TurnsExceededError.
// Uses errors.As to handle wrapped errors.
func IsTurnsExceededError(err error) bool {
	var te *TurnsExceededError
	return errors.As(err, &te)
}
