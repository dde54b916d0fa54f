// Package promise implements deferred completion values for the turn loop.
//
// A Promise[T] settles exactly once, to either a value (Fulfilled) or an
// error (Rejected). Reactions attached with Then, Catch, Finally, or Done
// NEVER run synchronously: they are posted to the loop and run on a later
// turn, even when the promise is already settled at attachment time. This
// is the discipline that makes chain execution deterministic - a reaction
// attached during turn N runs on some turn after N, behind everything
// already queued.
//
// Reactions attached to one promise run in attachment order.
//
// CRITICAL: promises are loop-confined. Attach reactions and settle
// Deferreds only from the loop goroutine, or before the loop starts
// draining. There is no internal locking; the single-writer loop is the
// synchronization.
package promise
