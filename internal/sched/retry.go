package sched

import "time"

// RetryBaseDelay is the wait before the second attempt of TryToRun; each
// later wait doubles.
const RetryBaseDelay = 250 * time.Millisecond

// TryToRun calls fn on the scheduler until it reports success, at most times
// attempts. The first attempt is deferred to the next tick. When every
// attempt fails onFailed runs. The returned func cancels outstanding
// attempts.
func TryToRun(s Scheduler, times int, fn func() bool, onFailed func()) (cancel func()) {
	if times <= 0 {
		times = 5
	}
	var (
		timer    Timer
		stopped  bool
		delay    = RetryBaseDelay
		attempts = times
	)
	var next func()
	next = func() {
		timer = nil
		if stopped {
			return
		}
		if attempts == 0 {
			if onFailed != nil {
				onFailed()
			}
			return
		}
		attempts--
		if fn() {
			return
		}
		timer = s.AfterFunc(delay, next)
		delay *= 2
	}
	timer = s.AfterFunc(0, next)
	return func() {
		stopped = true
		if timer != nil {
			timer.Stop()
		}
	}
}
