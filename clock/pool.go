package clock

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// getTimer returns a timer for the given duration d from the pool.
//
// Return back the timer to the pool with putTimer.
func getTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer) // only *time.Timer values are put into the pool
		if t.Reset(d) {
			// the timer was still active, drain a stale expiry
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// putTimer returns timer to the pool.
//
// t cannot be accessed after returning to the pool.
func putTimer(t *time.Timer) {
	if !t.Stop() {
		// drain t.C if the expiry wasn't consumed by the caller
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
