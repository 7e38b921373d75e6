// Package clockfake provides a manually advanced clock whose timers fire only
// when the test moves time forward.
package clockfake

import (
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/scheduler"
)

type Clock struct {
	now    time.Time
	timers []*timer
	seq    uint64
	lock   sync.Mutex
}

type timer struct {
	clock *Clock
	at    time.Time
	seq   uint64
	fn    func()
	done  bool
}

func New(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once the clock has been advanced by d.
func (c *Clock) AfterFunc(d time.Duration, fn func()) scheduler.Timer {
	c.lock.Lock()
	defer c.lock.Unlock()
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &timer{clock: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that comes due in
// chronological order. Callbacks run without the clock lock held and may
// schedule further timers, which fire in the same call if they fall inside d.
func (c *Clock) Advance(d time.Duration) {
	c.lock.Lock()
	target := c.now.Add(d)
	c.lock.Unlock()

	for {
		c.lock.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.lock.Unlock()
			return
		}
		c.now = next.at
		next.done = true
		c.remove(next)
		c.lock.Unlock()

		next.fn()
	}
}

// Pending reports the number of timers that have neither fired nor been stopped.
func (c *Clock) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.timers)
}

// NextAt returns when the earliest pending timer fires.
func (c *Clock) NextAt() (time.Time, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	c.sortTimers()
	return c.timers[0].at, true
}

func (c *Clock) nextDue(target time.Time) *timer {
	if len(c.timers) == 0 {
		return nil
	}
	c.sortTimers()
	if c.timers[0].at.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *Clock) sortTimers() {
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
}

func (c *Clock) remove(t *timer) {
	for i, existing := range c.timers {
		if existing == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

func (t *timer) Stop() bool {
	t.clock.lock.Lock()
	defer t.clock.lock.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.remove(t)
	return true
}
