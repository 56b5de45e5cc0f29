package fold

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/mdfold/internal/cursor"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/pubsub"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/span"
	"github.com/zjrosen/mdfold/internal/tracing"
)

// DefaultDebounce delays full scans triggered by edits and scrolling.
const DefaultDebounce = 200 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the clock used for debouncing.
func WithScheduler(s sched.Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithTracer records a span per scan.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithSpans shares an existing span extractor instead of creating one.
func WithSpans(x *span.Extractor) Option {
	return func(e *Engine) { e.spans = x }
}

// lineRange is a pending scan; from < 0 means the viewport.
type lineRange struct {
	from, to int
}

// Engine folds one editor.
type Engine struct {
	ed     *editor.Editor
	reg    *Registry
	spans  *span.Extractor
	sched  sched.Scheduler
	delay  time.Duration
	tracer trace.Tracer
	events *pubsub.Broker[Event]

	enabled map[string]bool
	folded  map[string][]*Marker
	hints   hintSet

	stream     *Stream
	debounce   *sched.Debouncer
	pending    *lineRange
	rejected   map[int]bool
	lastCRange [2]editor.Pos
	hasCRange  bool

	addons map[string]any

	unsubs   []func()
	unloaded bool
}

// New creates an engine for ed with every folder disabled and subscribes
// to ed's notifications. Enable folders with SetStatus.
func New(ed *editor.Editor, reg *Registry, opts ...Option) *Engine {
	e := &Engine{
		ed:      ed,
		reg:     reg,
		delay:   DefaultDebounce,
		tracer:  tracing.Default(),
		events:  pubsub.NewBroker[Event](),
		enabled: make(map[string]bool),
		folded:  make(map[string][]*Marker),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = sched.NewLoop(64)
	}
	if e.spans == nil {
		e.spans = span.New(ed)
		e.unsubs = append(e.unsubs, e.spans.Close)
	}
	e.stream = &Stream{Cursor: cursor.New(ed), engine: e}
	e.debounce = sched.NewDebouncer(e.sched, e.delay, e.runPending)

	e.unsubs = append(e.unsubs,
		ed.OnTextChanged(e.onChange),
		ed.OnViewportChanged(func(from, to int) { e.StartFold(from, to-1) }),
		ed.OnSelectionChanged(func([]editor.Range) { e.onCursorActivity() }),
		ed.OnUnload(e.Unload),
	)
	return e
}

// ============================================================================
// Status
// ============================================================================

// SetStatus enables or disables one fold type for this editor. Enabling
// schedules a scan; disabling clears that type's markers at once.
func (e *Engine) SetStatus(typ string, enabled bool) error {
	if !e.reg.Has(typ) {
		return fmt.Errorf("set status %q: %w", typ, ErrUnknownFolder)
	}
	if e.enabled[typ] == enabled {
		return nil
	}
	e.enabled[typ] = enabled
	log.Debug(log.CatFold, "folder status changed", "type", typ, "enabled", enabled)
	if enabled {
		e.StartFold(-1, -1)
	} else {
		e.Clear(typ)
	}
	return nil
}

// Apply sets the status of every registered folder from status; folders
// missing from the map are disabled.
func (e *Engine) Apply(status map[string]bool) {
	for _, name := range e.reg.Names() {
		_ = e.SetStatus(name, status[name])
	}
}

// Enabled reports whether typ is enabled.
func (e *Engine) Enabled(typ string) bool { return e.enabled[typ] }

// Status returns a copy of the enabled map.
func (e *Engine) Status() map[string]bool { return maps.Clone(e.enabled) }

func (e *Engine) anyEnabled() bool {
	for _, on := range e.enabled {
		if on {
			return true
		}
	}
	return false
}

// Registry returns the catalog the engine draws from.
func (e *Engine) Registry() *Registry { return e.reg }

// Editor returns the folded editor.
func (e *Engine) Editor() *editor.Editor { return e.ed }

// Addon returns the per-engine state a folder keeps under name, creating it
// on first use.
func (e *Engine) Addon(name string, create func() any) any {
	if a, ok := e.addons[name]; ok {
		return a
	}
	if e.addons == nil {
		e.addons = make(map[string]any)
	}
	a := create()
	e.addons[name] = a
	return a
}

// ============================================================================
// Markers, hints and events
// ============================================================================

// Markers returns the live markers of typ in creation order.
func (e *Engine) Markers(typ string) []*Marker {
	return slices.Clone(e.folded[typ])
}

// AllMarkers returns every live marker ordered by position.
func (e *Engine) AllMarkers() []*Marker {
	var out []*Marker
	for _, ms := range e.folded {
		out = append(out, ms...)
	}
	slices.SortStableFunc(out, func(a, b *Marker) int {
		af, _, _ := a.Find()
		bf, _, _ := b.Find()
		return af.Cmp(bf)
	})
	return out
}

// MarkerFor returns the fold marker backed by tm.
func (e *Engine) MarkerFor(tm *editor.TextMarker) (*Marker, bool) {
	for _, ms := range e.folded {
		for _, m := range ms {
			if m.text == tm {
				return m, true
			}
		}
	}
	return nil, false
}

// Hints returns the lines queued for the next quick fold.
func (e *Engine) Hints() []int { return e.hints.snapshot() }

// Subscribe returns a channel of engine events.
func (e *Engine) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return e.events.Subscribe(ctx)
}

// Handle registers a synchronous event handler.
func (e *Engine) Handle(fn func(pubsub.Event[Event])) func() {
	return e.events.Handle(fn)
}

func (e *Engine) signal(ev Event) {
	if e.unloaded {
		return
	}
	e.events.Publish(pubsub.SignalEvent, ev)
}

// ============================================================================
// Range arbitration
// ============================================================================

func (e *Engine) requestRange(from, to, cfrom, cto editor.Pos) RequestResult {
	for _, m := range e.ed.FindMarks(from, to) {
		if m.Kind != editor.KindSelection {
			e.reject(from.Line)
			return HasMarkers
		}
	}

	e.hints.add(from.Line)
	e.lastCRange = [2]editor.Pos{cfrom, cto}
	e.hasCRange = true

	for _, r := range e.ed.Selections() {
		sf, st := r.From(), r.To()
		if editor.RangesIntersect(cfrom, cto, sf, st) || editor.RangesIntersect(from, to, sf, st) {
			e.reject(from.Line)
			return CursorInside
		}
	}
	return OK
}

// reject keeps a line hinted for the rest of the pass even if another
// marker lands on it.
func (e *Engine) reject(line int) {
	e.hints.add(line)
	if e.rejected != nil {
		e.rejected[line] = true
	}
}

// ============================================================================
// Scanning
// ============================================================================

// StartFold schedules a full scan of [from, to] (to inclusive; negative
// values mean the viewport). Calls arriving before it runs widen the
// pending range.
func (e *Engine) StartFold(from, to int) {
	if e.unloaded || !e.anyEnabled() {
		return
	}
	switch {
	case e.pending == nil:
		e.pending = &lineRange{from: from, to: to}
	case from < 0 || e.pending.from < 0:
		e.pending.from, e.pending.to = -1, -1
	default:
		e.pending.from = min(e.pending.from, from)
		e.pending.to = max(e.pending.to, to)
	}
	e.debounce.Trigger()
}

// FoldPending reports whether a debounced scan is queued.
func (e *Engine) FoldPending() bool { return e.debounce.Pending() }

func (e *Engine) runPending() {
	r := e.pending
	e.pending = nil
	if r == nil {
		r = &lineRange{from: -1, to: -1}
	}
	e.StartFoldImmediately(r.from, r.to)
}

// StartQuickFold rescans the lines between the smallest and largest hint
// now. A pending full scan is cancelled and its range folded into this one.
func (e *Engine) StartQuickFold() {
	if e.unloaded || (e.hints.empty() && e.pending == nil) {
		return
	}
	from, to := -1, -1
	if !e.hints.empty() {
		from, to = e.hints.bounds()
	}
	if r := e.pending; r != nil {
		if r.from < 0 {
			vp := e.ed.Viewport()
			r = &lineRange{from: vp.From, to: vp.To - 1}
		}
		if from < 0 {
			from, to = r.from, r.to
		} else {
			from, to = min(from, r.from), max(to, r.to)
		}
	}
	e.debounce.Stop()
	e.pending = nil
	e.scan(tracing.ScanQuick, from, to)
}

// StartFoldImmediately scans [from, to] now. Negative bounds default to the
// viewport.
func (e *Engine) StartFoldImmediately(from, to int) {
	if e.unloaded {
		return
	}
	e.scan(tracing.ScanFull, from, to)
}

func (e *Engine) scan(kind string, fromLine, toLine int) {
	vp := e.ed.Viewport()
	if fromLine < 0 {
		fromLine = vp.From
	}
	if toLine < 0 {
		toLine = vp.To - 1
	}
	toLine = min(toLine, e.ed.LastLine())

	_, sp := e.tracer.Start(context.Background(), tracing.SpanFoldScan, trace.WithAttributes(
		attribute.String(tracing.AttrScanKind, kind),
		attribute.Int(tracing.AttrFromLine, fromLine),
		attribute.Int(tracing.AttrToLine, toLine),
	))
	defer sp.End()

	e.hints.drain(fromLine, toLine)
	e.rejected = make(map[int]bool)
	defer func() { e.rejected = nil }()

	created := 0
	folders := e.activeFolders()
	c := e.stream.Cursor
	c.Reload(fromLine, 0)

	for lineNo := fromLine; lineNo <= toLine && !e.unloaded; lineNo++ {
		if lineNo < c.Line() {
			continue // covered by a marker spanning lines
		}
		if lineNo > c.Line() {
			c.SetPos(lineNo, 0)
		}
		if !c.Valid() {
			continue
		}
		marked := e.markedChars(lineNo)
		tokens := c.Tokens()

	tokens:
		for c.Index() < len(tokens) {
			i := c.Index()
			tok := tokens[i]

			var m *Marker
			if foldable(marked, tok) {
				for _, f := range folders {
					if m = e.detect(f, tok); m != nil {
						e.register(f.Name, m)
						created++
						break
					}
				}
			}
			if m == nil {
				c.SetIndex(i + 1)
				continue
			}

			from, to, ok := m.Find()
			switch {
			case !ok:
				c.SetIndex(i + 1)
			case from.Line > lineNo || from.Ch > tok.Start:
				// unclaimed text sits between this token and the marker
				c.SetIndex(i + 1)
				fromCh, toCh := from.Ch, to.Ch
				if from.Line != lineNo {
					fromCh = len(marked)
				}
				if to.Line != lineNo {
					toCh = len(marked)
				}
				for k := fromCh; k < toCh && k < len(marked); k++ {
					marked[k] = true
				}
			case to.Line != lineNo:
				c.SetPos(to.Line, to.Ch)
				break tokens
			default:
				c.SetCh(to.Ch)
				if c.Index() <= i {
					c.SetIndex(i + 1)
				}
			}
		}
	}

	sp.SetAttributes(
		attribute.Int(tracing.AttrMarkersCreated, created),
		attribute.Int(tracing.AttrHintsLeft, len(e.hints.lines)),
	)
	if created > 0 {
		log.Debug(log.CatFold, "scan finished", "kind", kind, "from", fromLine, "to", toLine, "created", created)
	}
}

func (e *Engine) activeFolders() []Folder {
	var out []Folder
	for _, f := range e.reg.Ordered() {
		if e.enabled[f.Name] {
			out = append(out, f)
		}
	}
	return out
}

// markedChars flags every byte of line claimed by a non-selection marker.
func (e *Engine) markedChars(line int) []bool {
	n := len(e.ed.Line(line))
	marked := make([]bool, n)
	for _, m := range e.ed.Marks() {
		if m.Kind == editor.KindSelection {
			continue
		}
		from, to, ok := m.Find()
		if !ok || from.Line > line || to.Line < line {
			continue
		}
		f, t := 0, n
		if from.Line == line {
			f = from.Ch
		}
		if to.Line == line {
			t = to.Ch
		}
		for k := f; k < t && k < n; k++ {
			marked[k] = true
		}
	}
	return marked
}

func foldable(marked []bool, tok mdtoken.Token) bool {
	for k := tok.Start; k < tok.End && k < len(marked); k++ {
		if marked[k] {
			return false
		}
	}
	return true
}

// detect runs one detector, treating a panic as "no fold" so a broken
// folder cannot stop the scan.
func (e *Engine) detect(f Folder, tok mdtoken.Token) (m *Marker) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorErr(log.CatFold, "detector panicked", fmt.Errorf("%v", r), "type", f.Name, "line", e.stream.Line(), "ch", tok.Start)
			m = nil
		}
	}()
	e.hasCRange = false
	return f.Detect(e.stream, tok)
}

func (e *Engine) register(typ string, m *Marker) {
	m.Type = typ
	m.engine = e
	if e.hasCRange {
		m.cfrom, m.cto = e.lastCRange[0], e.lastCRange[1]
		m.hasCRange = true
	}
	e.folded[typ] = append(e.folded[typ], m)

	from, to, _ := m.text.Find()
	if !e.rejected[from.Line] {
		e.hints.remove(from.Line)
	}
	log.Debug(log.CatFold, "marker created", "type", typ, "from", from, "to", to)
	e.events.Publish(pubsub.CreatedEvent, Event{FoldType: typ, Marker: m, From: from, To: to})
}

// ============================================================================
// Editor notifications
// ============================================================================

func (e *Engine) onChange(c editor.Change) {
	if !e.anyEnabled() {
		return
	}
	newTo := c.NewTo()
	var hit []*Marker
	for _, ms := range e.folded {
		for _, m := range ms {
			if m.hasCRange {
				m.cfrom, m.cto = c.MapStart(m.cfrom), c.MapEnd(m.cto)
				if m.cto.Cmp(m.cfrom) < 0 {
					m.cto = m.cfrom
				}
			}
			from, to, ok := m.text.Find()
			if !ok {
				continue
			}
			if from == to || (from.Cmp(newTo) < 0 && to.Cmp(c.From) > 0) {
				hit = append(hit, m)
			}
		}
	}
	for _, m := range hit {
		m.Teardown()
	}
	e.StartFold(c.From.Line, newTo.Line)
}

// onCursorActivity clears markers whose clear range holds a cursor end,
// then runs a quick fold.
func (e *Engine) onCursorActivity() {
	if !e.anyEnabled() {
		return
	}
	points := make(map[int][]int)
	var lines []int
	for _, r := range e.ed.Selections() {
		for _, p := range []editor.Pos{r.Anchor, r.Head} {
			if _, seen := points[p.Line]; !seen {
				lines = append(lines, p.Line)
			}
			points[p.Line] = append(points[p.Line], p.Ch)
		}
	}

	for _, line := range lines {
		n := len(e.ed.Line(line))
		for _, m := range e.AllMarkers() {
			from, to, ok := m.Find()
			if !ok || from.Line > line || to.Line < line {
				continue
			}
			cf, ct := m.ClearRange()
			lo, hi := cf.Ch, ct.Ch
			if cf.Line < line {
				lo = 0
			}
			if ct.Line > line {
				hi = n
			}
			for _, ch := range points[line] {
				if lo <= ch && ch <= hi {
					m.Teardown()
					break
				}
			}
		}
		for _, tm := range e.ed.Marks() {
			if !tm.ClearOnEnter {
				continue
			}
			from, to, _ := tm.Find()
			for _, ch := range points[line] {
				p := editor.Pos{Line: line, Ch: ch}
				if from.Cmp(p) < 0 && to.Cmp(p) > 0 {
					tm.Clear()
					break
				}
			}
		}
	}
	e.StartQuickFold()
}

// ============================================================================
// Teardown
// ============================================================================

// Clear removes every marker of typ and cancels the pending scan.
func (e *Engine) Clear(typ string) {
	e.debounce.Stop()
	for len(e.folded[typ]) > 0 {
		ms := e.folded[typ]
		ms[len(ms)-1].Teardown()
	}
}

// ClearAll removes every marker and cancels the pending scan.
func (e *Engine) ClearAll() {
	e.debounce.Stop()
	for _, typ := range slices.Sorted(maps.Keys(e.folded)) {
		for len(e.folded[typ]) > 0 {
			ms := e.folded[typ]
			ms[len(ms)-1].Teardown()
		}
	}
}

// Unload clears every marker, detaches from the editor and closes the
// event broker. Safe to call more than once.
func (e *Engine) Unload() {
	if e.unloaded {
		return
	}
	e.ClearAll()
	e.unloaded = true
	e.pending = nil
	for _, fn := range e.unsubs {
		fn()
	}
	e.unsubs = nil
	e.events.Close()
	log.Debug(log.CatFold, "engine unloaded")
}
