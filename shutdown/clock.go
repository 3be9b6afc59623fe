package shutdown

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It reports false if the callback
	// already ran or was already stopped.
	Stop() bool
}

// Clock schedules callbacks. The controller only ever schedules, it never sleeps.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// WallClock returns the clock backed by time.AfterFunc.
func WallClock() Clock { return wallClock{} }
