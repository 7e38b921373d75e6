package scheduler

import (
	"sync"
	"time"
)

// Countdown ticks down to an expiry instant.
type Countdown struct {
	expiresAt time.Time
	tick      time.Duration
	nowFunc   func() time.Time
	afterFunc AfterFunc
	onTick    func(time.Duration)
	onDone    func()

	lock    sync.Mutex
	timer   Timer
	stopped bool
}

func (c *Countdown) schedule(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.stopped {
		return
	}
	c.timer = c.afterFunc(d, c.fire)
}

func (c *Countdown) fire() {
	remaining := c.expiresAt.Sub(c.nowFunc())

	c.lock.Lock()
	if c.stopped {
		c.lock.Unlock()
		return
	}
	if remaining <= 0 {
		c.stopped = true
		c.timer = nil
		c.lock.Unlock()
		if c.onDone != nil {
			c.onDone()
		}
		return
	}
	c.lock.Unlock()

	if c.onTick != nil {
		c.onTick(remaining)
	}
	c.schedule(min(c.tick, remaining))
}

// Stop halts the countdown without calling onDone. Safe on a nil or already
// stopped countdown.
func (c *Countdown) Stop() {
	if c == nil {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) ExpiresAt() time.Time {
	return c.expiresAt
}

func (c *Countdown) Stopped() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.stopped
}
