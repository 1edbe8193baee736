package testutil

import (
	"sync"
	"time"

	"github.com/roach88/placefinder/internal/clock"
)

// Epoch is the instant a ManualClock starts at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualClock is a clock.Clock that only moves when told to.
//
// Timer callbacks run synchronously inside Advance/AdvanceTo, in deadline
// order (ties in creation order), with the clock set to their deadline.
// Callbacks may schedule further timers; those fire within the same Advance
// if their deadline is not past the target.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks run
// without the internal lock held.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int64
	timers []*manualTimer
}

type manualTimer struct {
	c      *ManualClock
	id     int64
	at     time.Time
	f      func()
	active bool
}

// NewManualClock creates a clock at Epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: Epoch}
}

// Now returns the current virtual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Elapsed returns the virtual time since Epoch.
func (c *ManualClock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}

// AfterFunc schedules f at Now()+d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &manualTimer{c: c, id: c.nextID, at: c.now.Add(d), f: f, active: true}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer if it has not fired.
func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if !t.active {
		return false
	}
	t.active = false
	t.c.removeLocked(t)
	return true
}

// Advance moves the clock forward by d, firing due timers.
func (c *ManualClock) Advance(d time.Duration) {
	c.AdvanceTo(c.Now().Add(d))
}

// AdvanceTo moves the clock to target, firing due timers. Moving backwards
// is a no-op.
func (c *ManualClock) AdvanceTo(target time.Time) {
	for {
		c.mu.Lock()
		next := c.earliestLocked()
		if next == nil || next.at.After(target) {
			if target.After(c.now) {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		next.active = false
		c.removeLocked(next)
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.f()
	}
}

// NextDeadline reports the earliest pending timer deadline.
func (c *ManualClock) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.earliestLocked()
	if next == nil {
		return time.Time{}, false
	}
	return next.at, true
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *ManualClock) earliestLocked() *manualTimer {
	var best *manualTimer
	for _, t := range c.timers {
		if best == nil || t.at.Before(best.at) || (t.at.Equal(best.at) && t.id < best.id) {
			best = t
		}
	}
	return best
}

func (c *ManualClock) removeLocked(t *manualTimer) {
	for i, candidate := range c.timers {
		if candidate == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}
