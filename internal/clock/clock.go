// Package clock abstracts wall-clock time and one-shot timers so the
// reminder scheduler can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable one-shot timer.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Clock provides the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is a Clock backed by the time package.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manual is a Clock whose time only moves when Advance or Set is called.
// Due callbacks run synchronously on the advancing goroutine.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[int]*manualTimer
}

// NewManual returns a manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now, timers: make(map[int]*manualTimer)}
}

type manualTimer struct {
	c    *Manual
	id   int
	when time.Time
	fn   func()
}

// Stop removes the timer if it is still pending.
func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if _, ok := t.c.timers[t.id]; !ok {
		return false
	}
	delete(t.c.timers, t.id)
	return true
}

// Now returns the clock's current time.
func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock reaches now+d.
func (c *Manual) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{c: c, id: c.seq, when: c.now.Add(d), fn: f}
	c.timers[t.id] = t
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *Manual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the clock forward by d, running every timer that becomes
// due in deadline order. Timers armed by a callback run too if they fall
// within the window.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set moves the clock to t, running due timers. Moving backwards only
// changes Now.
func (c *Manual) Set(t time.Time) {
	for {
		c.mu.Lock()
		next := c.nextDueLocked(t)
		if next == nil {
			c.now = t
			c.mu.Unlock()
			return
		}
		delete(c.timers, next.id)
		if next.when.After(c.now) {
			c.now = next.when
		}
		c.mu.Unlock()

		// Run without the lock so the callback can use the clock.
		next.fn()
	}
}

func (c *Manual) nextDueLocked(limit time.Time) *manualTimer {
	due := make([]*manualTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.when.After(limit) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].when.Equal(due[j].when) {
			return due[i].id < due[j].id
		}
		return due[i].when.Before(due[j].when)
	})
	return due[0]
}
