package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockClock is a manually driven Clock for deterministic tests.
//
// Time only moves through Add, Set or Advance. Timers fire when Fire (or Advance) is called and their
// deadline is not after the current mock time. Moving time and firing timers are separate steps, so a test
// can make an inbound message and a timer expiry become ready at the very same instant.
type MockClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	timers  []*mockTimer
	created int
}

var _ Clock = (*MockClock)(nil)

// NewMock creates a MockClock set to start.
func NewMock(start time.Time) *MockClock {
	c := &MockClock{now: start}
	c.cond = sync.NewCond(&c.mu)

	return c
}

// Now returns the current mock time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// NewTimer registers a timer that fires once the mock time reaches now+d.
// A timer with a non-positive duration fires immediately.
func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTimer{
		clock:    c,
		deadline: c.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.created++

	if d <= 0 {
		t.ch <- c.now
	} else {
		c.timers = append(c.timers, t)
	}
	c.cond.Broadcast()

	return t
}

// Add moves the mock time forward by d without firing any timer.
func (c *MockClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// Set moves the mock time to t without firing any timer.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

// Fire fires every pending timer whose deadline is not after the current mock time, earliest first.
// It returns the number of fired timers.
func (c *MockClock) Fire() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})

	fired := 0
	pending := c.timers[:0]
	for _, t := range c.timers {
		if t.deadline.After(c.now) {
			pending = append(pending, t)
			continue
		}
		select {
		case t.ch <- c.now:
		default:
		}
		fired++
	}
	c.timers = pending

	return fired
}

// Advance moves the mock time forward by d and fires the due timers.
func (c *MockClock) Advance(d time.Duration) int {
	c.Add(d)
	return c.Fire()
}

// PendingTimers returns the number of timers that haven't fired or been stopped.
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

// WaitTimersCreated blocks until at least n timers have been created in total, or ctx is done.
func (c *MockClock) WaitTimersCreated(ctx context.Context, n int) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.created < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cond.Wait()
	}

	return nil
}

func (c *MockClock) remove(t *mockTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

type mockTimer struct {
	clock    *MockClock
	deadline time.Time
	ch       chan time.Time
}

func (t *mockTimer) C() <-chan time.Time {
	return t.ch
}

func (t *mockTimer) Stop() {
	t.clock.remove(t)
}
