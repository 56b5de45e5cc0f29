package sched

import "time"

// DefaultNoResetWindow is how long after a (re)schedule further triggers are
// ignored instead of pushing the deadline back. A steady stream of events
// therefore still produces a call every delay+window at the latest.
const DefaultNoResetWindow = 100 * time.Millisecond

// Debouncer coalesces bursts of triggers into one call of fn.
type Debouncer struct {
	sched        Scheduler
	delay        time.Duration
	window       time.Duration
	fn           func()
	timer        Timer
	noResetUntil time.Time
}

// NewDebouncer creates a debouncer calling fn delay after the last accepted
// trigger.
func NewDebouncer(s Scheduler, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		sched:  s,
		delay:  delay,
		window: DefaultNoResetWindow,
		fn:     fn,
	}
}

// SetNoResetWindow overrides DefaultNoResetWindow.
func (d *Debouncer) SetNoResetWindow(w time.Duration) {
	d.window = w
}

// Trigger schedules fn, restarting the delay unless a call was scheduled less
// than the no-reset window ago.
func (d *Debouncer) Trigger() {
	now := d.sched.Now()
	if d.timer != nil {
		if now.Before(d.noResetUntil) {
			return
		}
		d.timer.Stop()
	}
	d.timer = d.sched.AfterFunc(d.delay, d.run)
	d.noResetUntil = now.Add(d.window)
}

// Stop cancels a pending call.
func (d *Debouncer) Stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	return d.timer != nil
}

func (d *Debouncer) run() {
	d.timer = nil
	d.fn()
}
