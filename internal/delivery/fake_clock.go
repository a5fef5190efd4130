package delivery

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose After fires immediately while still advancing
// the reported time, so a wait that would span seconds resolves in
// microseconds with the elapsed time fully accounted for. The optional
// Stepped hook runs after every advance and lets a test make an artifact
// appear at a chosen moment.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	Stepped func(now time.Time)
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward and runs the Stepped hook.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	if c.Stepped != nil {
		c.Stepped(now)
	}
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.Advance(d)

	ch := make(chan time.Time, 1)
	ch <- c.Now()

	return ch
}
