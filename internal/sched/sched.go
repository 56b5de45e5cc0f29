// Package sched provides the timer primitives the fold and hide-token
// engines use to coalesce work. All callbacks run on the owner's event loop,
// one at a time, so engine state never needs locking.
package sched

import (
	"sync/atomic"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the callback. Returns false if it already ran or was
	// already stopped.
	Stop() bool
}

// Scheduler runs callbacks after a delay on the owner's event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

// Loop is a Scheduler backed by real timers. Expired callbacks are posted to
// Tasks() and only run when the owner executes them, which keeps every
// callback on the owner's goroutine.
type Loop struct {
	tasks chan func()
}

// NewLoop creates a loop whose task channel has the given buffer.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 16
	}
	return &Loop{tasks: make(chan func(), buffer)}
}

// Tasks returns the channel of callbacks ready to run.
func (l *Loop) Tasks() <-chan func() {
	return l.tasks
}

// Post queues fn to run on the loop as soon as possible.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn to be posted after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		if t.stopped.Load() {
			return
		}
		l.tasks <- func() {
			// Stop may have been called after posting; honour it here so
			// cancellation is exact from the loop's point of view.
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		}
	})
	return t
}

type loopTimer struct {
	timer   *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.stopped.CompareAndSwap(false, true)
}
