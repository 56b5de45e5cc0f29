// Package hidetoken hides the markup of emphasis, code, links and tasks
// while the cursor is elsewhere, and reveals it again once a selection
// touches the span.
package hidetoken

import (
	"maps"
	"slices"
	"time"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/span"
)

const (
	// InactiveLineClass marks lines no selection touches.
	InactiveLineClass = "hmd-inactive-line"

	// DefaultDelay coalesces cursor movement before a recompute.
	DefaultDelay = 100 * time.Millisecond
)

// DefaultTypes are the span types whose markup is hidden. ins, sub and sup
// are left visible.
var DefaultTypes = []span.Type{
	span.Em, span.Strong, span.Strikethrough, span.Code, span.LinkText,
	span.Task, span.Mark, span.InternalLink, span.Highlight,
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the clock used for debouncing.
func WithScheduler(s sched.Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithTypes replaces DefaultTypes.
func WithTypes(types ...span.Type) Option {
	return func(e *Engine) { e.setTypes(types) }
}

// WithSpans shares an existing span extractor instead of creating one.
func WithSpans(x *span.Extractor) Option {
	return func(e *Engine) { e.spans = x }
}

// Engine toggles hidden flags on the formatting tokens of one editor.
type Engine struct {
	ed       *editor.Editor
	spans    *span.Extractor
	ownSpans bool
	sched    sched.Scheduler
	delay    time.Duration
	debounce *sched.Debouncer

	types   map[span.Type]bool
	enabled bool

	// user ranges per line, as of the last recompute
	ranges map[int][]editor.Range
	// task marker character per line, "x" or " "
	tasks map[*editor.Line]string

	unsubs      []func()
	unsubUnload func()
}

// New creates a disabled engine for ed. Call SetEnabled to start it.
func New(ed *editor.Editor, opts ...Option) *Engine {
	e := &Engine{
		ed:     ed,
		delay:  DefaultDelay,
		ranges: make(map[int][]editor.Range),
		tasks:  make(map[*editor.Line]string),
	}
	e.setTypes(DefaultTypes)
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = sched.NewLoop(64)
	}
	if e.spans == nil {
		e.spans = span.New(ed)
		e.ownSpans = true
	}
	e.debounce = sched.NewDebouncer(e.sched, e.delay, e.UpdateImmediately)
	e.unsubUnload = ed.OnUnload(e.Close)
	return e
}

func (e *Engine) setTypes(types []span.Type) {
	e.types = make(map[span.Type]bool, len(types))
	for _, t := range types {
		e.types[t] = true
	}
}

// SetTypes changes the watched span types and recomputes every visible
// line.
func (e *Engine) SetTypes(types ...span.Type) {
	if e.enabled {
		e.revealAll()
	}
	e.setTypes(types)
	if e.enabled {
		e.refresh()
	}
}

// Types returns the watched span types, sorted.
func (e *Engine) Types() []span.Type {
	return slices.Sorted(maps.Keys(e.types))
}

// Enabled reports whether the engine is running.
func (e *Engine) Enabled() bool { return e.enabled }

// SetEnabled starts or stops the engine. Stopping reveals every token it
// hid and drops the inactive line classes.
func (e *Engine) SetEnabled(on bool) {
	if on == e.enabled || e.ed.Unloaded() {
		return
	}
	e.enabled = on
	log.Debug(log.CatHide, "hide tokens toggled", "enabled", on)
	if on {
		e.unsubs = append(e.unsubs,
			e.ed.OnSelectionChanged(func([]editor.Range) { e.Update() }),
			e.ed.OnRenderLine(e.onRenderLine),
		)
		e.computeRanges()
		e.refresh()
		return
	}
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
	e.debounce.Stop()
	e.revealAll()
}

// Update schedules a recompute after the debounce delay.
func (e *Engine) Update() {
	if e.enabled {
		e.debounce.Trigger()
	}
}

// Pending reports whether a recompute is scheduled.
func (e *Engine) Pending() bool { return e.debounce.Pending() }

// UpdateImmediately recomputes the lines that gained or lost a selection.
func (e *Engine) UpdateImmediately() {
	e.debounce.Stop()
	if !e.enabled {
		return
	}
	last := e.ranges
	e.computeRanges()

	var changed int
	for _, n := range slices.Sorted(maps.Keys(last)) {
		if _, still := e.ranges[n]; still {
			continue
		}
		if e.procLine(n) {
			changed++
		}
	}
	for _, n := range slices.Sorted(maps.Keys(e.ranges)) {
		if e.procLine(n) {
			changed++
		}
	}
	log.Debug(log.CatHide, "hide tokens recomputed", "active_lines", len(e.ranges), "changed", changed)
}

// computeRanges groups the editor's selections by the lines they cover.
func (e *Engine) computeRanges() {
	active := make(map[int][]editor.Range)
	for _, r := range e.ed.Selections() {
		from, to := r.From(), r.To()
		ordered := editor.Range{Anchor: from, Head: to}
		for line := from.Line; line <= to.Line; line++ {
			active[line] = append(active[line], ordered)
		}
	}
	e.ranges = active
}

// refresh processes every visible line.
func (e *Engine) refresh() {
	vp := e.ed.Viewport()
	for n := vp.From; n < vp.To; n++ {
		e.procLine(n)
	}
}

func (e *Engine) onRenderLine(l *editor.Line) {
	if n := e.ed.LineNumber(l); n >= 0 {
		e.procLine(n)
	}
}

// procLine hides or reveals the formatting of one line and reports whether
// anything changed.
func (e *Engine) procLine(n int) bool {
	l := e.ed.LineHandle(n)
	if l == nil {
		return false
	}
	vp := e.ed.Viewport()
	if n < vp.From || n >= vp.To {
		return false
	}
	tokens, ok := e.ed.LineTokens(n)
	if !ok {
		return false
	}

	changed := false
	userRanges := e.ranges[n]
	inactive := len(userRanges) == 0
	if inactive != e.ed.HasLineClass(l, editor.WhereText, InactiveLineClass) {
		if inactive {
			e.ed.AddLineClass(l, editor.WhereText, InactiveLineClass)
		} else {
			e.ed.RemoveLineClass(l, editor.WhereText, InactiveLineClass)
		}
		changed = true
	}

	task := false
	for _, sp := range e.spans.Extract(n, false) {
		if !e.types[sp.Type] {
			continue
		}
		task = task || sp.Head.HasClass("formatting-task")
		from, to := editor.P(n, sp.Begin), editor.P(n, sp.End)
		hide := true
		for _, r := range userRanges {
			if editor.RangesIntersect(from, to, r.Anchor, r.Head) {
				hide = false
				break
			}
		}
		if e.setSpanHidden(l, tokens, sp, hide) {
			changed = true
		}
	}
	if _, ok := e.tasks[l]; ok && !task {
		delete(e.tasks, l)
		changed = true
	}
	return changed
}

// setSpanHidden flags the leading and trailing formatting tokens of sp. A
// wiki link with an alias also hides its target and the bar.
func (e *Engine) setSpanHidden(l *editor.Line, tokens []mdtoken.Token, sp span.Span, hide bool) bool {
	changed := false
	if sp.Head.IsFormatting() {
		changed = e.setHidden(l, sp.Head, hide) || changed

		if sp.Head.HasClass("formatting-task") {
			if len(sp.Head.String) >= 2 {
				state := sp.Head.String[1:2]
				if prev, ok := e.tasks[l]; !ok || prev != state {
					e.tasks[l] = state
					changed = true
				}
			}
		}
		if i := sp.HeadIndex + 1; i < len(tokens) && tokens[i].HasClass("internal-link-url") {
			changed = e.setHidden(l, tokens[i], hide) || changed
		}
		if i := sp.HeadIndex + 2; i < len(tokens) && tokens[i].HasClass("internal-link-ref") {
			changed = e.setHidden(l, tokens[i], hide) || changed
		}
	}
	if sp.Closed && sp.TailIndex != sp.HeadIndex && sp.Tail.IsFormatting() {
		changed = e.setHidden(l, sp.Tail, hide) || changed
	}
	return changed
}

func (e *Engine) setHidden(l *editor.Line, tok mdtoken.Token, hide bool) bool {
	if e.ed.TokenHidden(l, tok.Start) == hide {
		return false
	}
	e.ed.SetTokenHidden(l, tok.Start, hide)
	return true
}

// TaskState returns the character inside the task marker of line n, as
// seen the last time the line was processed.
func (e *Engine) TaskState(n int) (string, bool) {
	s, ok := e.tasks[e.ed.LineHandle(n)]
	return s, ok
}

// revealAll clears every hidden flag and inactive class.
func (e *Engine) revealAll() {
	for n := 0; n < e.ed.LineCount(); n++ {
		l := e.ed.LineHandle(n)
		for _, start := range e.ed.HiddenTokens(l) {
			e.ed.SetTokenHidden(l, start, false)
		}
		e.ed.RemoveLineClass(l, editor.WhereText, InactiveLineClass)
	}
	clear(e.tasks)
	clear(e.ranges)
}

// Close stops the engine and releases its editor subscriptions.
func (e *Engine) Close() {
	if e.enabled && !e.ed.Unloaded() {
		e.SetEnabled(false)
	} else {
		for _, unsub := range e.unsubs {
			unsub()
		}
		e.unsubs = nil
		e.debounce.Stop()
		e.enabled = false
	}
	if e.unsubUnload != nil {
		e.unsubUnload()
		e.unsubUnload = nil
	}
	if e.ownSpans {
		e.spans.Close()
		e.ownSpans = false
	}
}
