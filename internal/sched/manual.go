package sched

import "time"

// Manual is a Scheduler driven by an explicit clock. Nothing runs until
// Advance or Flush is called, which makes scans deterministic in tests and in
// the headless scan command.
type Manual struct {
	now    time.Time
	seq    int
	timers []*manualTimer
}

// NewManual creates a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual clock's time.
func (m *Manual) Now() time.Time {
	return m.now
}

// AfterFunc schedules fn at Now()+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	t := &manualTimer{when: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the number of callbacks still scheduled.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, running every callback that comes due
// in deadline order. Callbacks scheduled while advancing run too if they fall
// inside the window.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		t := m.next()
		if t == nil || t.when.After(target) {
			break
		}
		m.fire(t)
	}
	m.now = target
	m.compact()
}

// Flush runs every scheduled callback, advancing the clock to each deadline.
func (m *Manual) Flush() {
	for t := m.next(); t != nil; t = m.next() {
		m.fire(t)
	}
	m.compact()
}

func (m *Manual) fire(t *manualTimer) {
	if t.when.After(m.now) {
		m.now = t.when
	}
	t.done = true
	t.fn()
}

func (m *Manual) next() *manualTimer {
	var best *manualTimer
	for _, t := range m.timers {
		if t.done {
			continue
		}
		if best == nil || t.when.Before(best.when) || (t.when.Equal(best.when) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	m.timers = live
}

type manualTimer struct {
	when time.Time
	seq  int
	fn   func()
	done bool
}

func (t *manualTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	return true
}
