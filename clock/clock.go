// Package clock isolates "current time" and time arithmetic from the protocol engines, so that delayed
// sends and tolerance windows can be driven by a deterministic MockClock in tests.
package clock

import (
	"fmt"
	"time"
)

// TimestampLayout is the layout used when a time is rendered in log records: RFC 3339 with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Clock is the source of time for the protocol engines.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTimer creates a timer that delivers the current time on its channel after at least duration d.
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer created by a Clock.
type Timer interface {
	// C returns the channel on which the expiry time is delivered.
	C() <-chan time.Time
	// Stop prevents the timer from firing and releases it.
	// The timer must not be used after Stop.
	Stop()
}

// New returns the wall clock. Its timers are recycled through a pool.
func New() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTimer(d time.Duration) Timer {
	return &pooledTimer{t: getTimer(d)}
}

type pooledTimer struct {
	t *time.Timer
}

func (p *pooledTimer) C() <-chan time.Time {
	return p.t.C
}

func (p *pooledTimer) Stop() {
	if p.t == nil {
		return
	}
	putTimer(p.t)
	p.t = nil
}

// AddMillis returns t shifted by ms milliseconds. t is left unchanged.
func AddMillis(t time.Time, ms int64) time.Time {
	return t.Add(time.Duration(ms) * time.Millisecond)
}

// Between reports whether t lies in the closed range [from, to].
func Between(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// Window is a closed time range around an expected instant.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow returns the window [expected-tolerance, expected+tolerance].
func NewWindow(expected time.Time, tolerance time.Duration) Window {
	return Window{
		From: expected.Add(-tolerance),
		To:   expected.Add(tolerance),
	}
}

// Contains reports whether t lies inside the window, both bounds included.
func (w Window) Contains(t time.Time) bool {
	return Between(t, w.From, w.To)
}

// String returns "[from, to]" using TimestampLayout.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.From.Format(TimestampLayout), w.To.Format(TimestampLayout))
}
