// Package loop implements the single-writer turn loop that drives
// deferred execution.
//
// ARCHITECTURE:
//
// Single-Writer Turn Loop:
// All posted tasks run on one goroutine, one task per turn. This ensures:
// - Predictable callback ordering (strict FIFO post order)
// - Reproducible traces on re-run
// - Simple reasoning about causality
//
// Task Processing Flow:
// 1. Tasks posted to FIFO queue (Post, from any goroutine)
// 2. Run or RunUntilIdle dequeues tasks one at a time
// 3. Each dequeued task is stamped with the next turn number
// 4. Task errors are logged and the loop continues
//
// Posting never runs a task synchronously. A task posted during turn N
// runs on a later turn, after every task that was posted before it.
//
// The loop is designed for correctness and determinism, not throughput.
// Work may be prepared on other goroutines, but task execution is
// strictly single-threaded.
//
// Logical Turns:
// Every task is stamped with a monotonic turn number from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
package loop
