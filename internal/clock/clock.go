// Package clock abstracts wall-clock reads and timer scheduling so that
// session timing can be driven deterministically in tests.
package clock

import "time"

// Timer is a pending single-shot callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing.
	Stop() bool
}

// Clock supplies time reads and timer construction. Periodic work is built
// from AfterFunc callbacks that re-arm themselves, which keeps every
// time-driven transition cancellable and testable.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// System is the real clock backed by package time.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

func (System) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool { return s.t.Stop() }
