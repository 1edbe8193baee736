package store

import (
	"sync"

	"github.com/roach88/placefinder/internal/intent"
)

// intentQueue is a thread-safe FIFO of dispatched intents.
//
// The queue is unbounded so that effects dispatching from inside the loop
// never block on it.
//
// Enqueue may be called from any goroutine; only the store loop dequeues.
// A buffered signal channel lets the loop wait with select alongside ctx.
type intentQueue struct {
	mu      sync.Mutex
	intents []intent.Intent
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newIntentQueue() *intentQueue {
	return &intentQueue{
		intents: make([]intent.Intent, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends in. Returns false if the queue is closed.
func (q *intentQueue) Enqueue(in intent.Intent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.intents = append(q.intents, in)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front intent without blocking.
func (q *intentQueue) TryDequeue() (intent.Intent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.intents) == 0 {
		return nil, false
	}

	in := q.intents[0]
	// Clear the slot so the backing array does not pin result payloads.
	q.intents[0] = nil

	if len(q.intents) == 1 {
		q.intents = q.intents[:0]
	} else {
		q.intents = q.intents[1:]
	}

	return in, true
}

// Wait returns a channel that signals when intents may be available.
// It is closed once the queue is closed.
func (q *intentQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued intents.
func (q *intentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.intents)
}

// Close stops accepting intents and wakes waiters.
func (q *intentQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
