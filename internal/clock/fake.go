package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced clock for tests. Advance fires due timers
// synchronously on the calling goroutine, in due order, so a test observes
// every time-driven transition before Advance returns.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// NewFake returns a fake clock positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, when: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that falls due,
// earliest first. Callbacks run without the clock lock held so they may
// schedule or cancel further timers; timers a callback schedules within the
// advanced window fire during the same Advance call.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for f.fireNext(target) {
	}

	f.mu.Lock()
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

func (f *Fake) fireNext(target time.Time) bool {
	f.mu.Lock()
	var due *fakeTimer
	for _, t := range f.timers {
		if t.stopped || t.when.After(target) {
			continue
		}
		if due == nil || t.when.Before(due.when) {
			due = t
		}
	}
	if due == nil {
		f.mu.Unlock()
		return false
	}
	due.stopped = true
	if due.when.After(f.now) {
		f.now = due.when
	}
	fn := due.fn
	f.mu.Unlock()
	fn()
	return true
}

// PendingTimers reports how many unfired, unstopped timers exist. Tests use
// it to assert that session teardown cancelled its callbacks.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	f.timers = live
	return len(f.timers)
}

type fakeTimer struct {
	clock   *Fake
	when    time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}
