// Package clock provides the two notions of time the search core uses.
//
// Clock is wall time with timers; the effect pipeline debounces with it and
// tests replace it with a manual clock. Seq is a monotonic logical counter;
// the journal orders records by it and never by wall time.
package clock

import (
	"sync/atomic"
	"time"
)

// Timer is a pending callback that can be cancelled.
// Stop reports whether the call prevented the callback from running.
type Timer interface {
	Stop() bool
}

// Clock tells time and schedules callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Seq is a monotonic logical clock. Safe for concurrent use.
type Seq struct {
	seq atomic.Int64
}

// NewSeq creates a clock whose first Next returns 1.
func NewSeq() *Seq {
	return &Seq{}
}

// NewSeqAt creates a clock resuming after start.
// Used when appending to an existing journal.
func NewSeqAt(start int64) *Seq {
	c := &Seq{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Seq) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Seq) Current() int64 {
	return c.seq.Load()
}
