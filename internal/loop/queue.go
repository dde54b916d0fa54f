package loop

import (
	"context"
	"sync"
)

// TaskFunc is a unit of deferred work. The context is the one passed to
// the Run variant executing the task.
type TaskFunc func(ctx context.Context) error

// task pairs a task function with the label used in error logs.
type task struct {
	label string
	fn    TaskFunc
}

// taskQueue is a thread-safe FIFO queue for posted tasks.
//
// The queue is unbounded so a running task can post arbitrarily many
// follow-on tasks without blocking.
//
// Thread-safety is provided for external posting (e.g., from other
// goroutines) while the loop's run goroutine dequeues. In practice,
// most usage is single-threaded.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the run loop (prevents goroutine hangs on context cancellation).
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

// newTaskQueue creates an empty task queue.
func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]task, 0, 64), // Pre-allocate for typical chain lengths
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, t)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (task{}, false) if the queue is empty.
func (q *taskQueue) TryDequeue() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return task{}, false
	}

	t := q.tasks[0]

	// CRITICAL: Nil out the slot so the closure and everything it captures
	// can be collected. Without this, the underlying array retains
	// references until reallocated, causing memory leaks under steady load.
	q.tasks[0] = task{}

	if len(q.tasks) == 1 {
		// Last element - reset to empty slice with original capacity
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return t, true
}

// Wait returns a channel that signals when tasks may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
//
// The signal coalesces, so a receive does not guarantee a task is still
// queued. Always follow up with TryDequeue.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether Close has been called.
func (q *taskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more tasks will be posted.
// Wakes any blocked waiters by closing the signal channel.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return // Already closed
	}

	q.closed = true
	close(q.signal) // Wakes all waiters
}
