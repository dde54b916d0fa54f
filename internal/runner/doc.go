// Package runner executes chain scripts on the turn loop.
//
// A run unfolds as a promise chain: the root turn emits the begin marker
// and resolves the start value, each step derives the next counter value
// from its predecessor's, and the terminal link emits the end marker.
// Every link runs on its own turn, so the trace interleaves exactly one
// emission per turn, in chain order.
//
// Values thread through the chain by parameter. No step reads shared
// mutable state; a step's only input is the fulfillment value of the
// link before it.
//
// ERROR HANDLING: the first failing step rejects the chain. Later steps
// are skipped, the end marker is not emitted, and the run finishes with
// status error. There are no retries.
package runner
