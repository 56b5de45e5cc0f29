// Package editor is the host editor model the folding engine runs against:
// a line-oriented document with cached tokens, text markers, line classes,
// line widgets, per-token visibility flags, selections and a viewport.
//
// The Editor is not safe for concurrent use. All calls, including timer
// callbacks, are expected to run on one goroutine.
package editor

import (
	"slices"
	"strings"

	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/pubsub"
)

// Line is a stable handle for a document line. It survives edits that
// modify the line's text and is detached when the line is deleted.
type Line struct {
	no       int
	text     string
	tokens   []mdtoken.Token
	endState mdtoken.BlockState
	classes  map[Where][]string
	widgets  []*LineWidget
	hidden   map[int]bool
}

// Text returns the line's current text.
func (l *Line) Text() string { return l.text }

// Detached reports whether the line was removed from its document.
func (l *Line) Detached() bool { return l.no < 0 }

// Change describes one edit: [From, To) of the old document was replaced
// by Text (split into lines).
type Change struct {
	From    Pos
	To      Pos
	Text    []string
	Removed []string
	Origin  string
}

// NewTo returns where the inserted text ends in the new document.
func (c Change) NewTo() Pos {
	last := c.Text[len(c.Text)-1]
	if len(c.Text) == 1 {
		return Pos{Line: c.From.Line, Ch: c.From.Ch + len(last)}
	}
	return Pos{Line: c.From.Line + len(c.Text) - 1, Ch: len(last)}
}

// Viewport is the half-open line interval [From, To) currently on screen.
type Viewport struct {
	From int
	To   int
}

// Option configures an Editor.
type Option func(*Editor)

// WithLexer replaces the default tokenizer.
func WithLexer(lx *mdtoken.Lexer) Option {
	return func(e *Editor) { e.lexer = lx }
}

// WithViewport fixes the initial viewport instead of showing everything.
func WithViewport(from, to int) Option {
	return func(e *Editor) {
		e.viewport = Viewport{From: from, To: to}
		e.viewportSet = true
	}
}

// Editor is a markdown document plus its presentation state.
type Editor struct {
	lines    []*Line
	frontier int
	lexer    *mdtoken.Lexer

	marks       []*TextMarker
	selections  []Range
	viewport    Viewport
	viewportSet bool
	unloaded    bool

	changes    *pubsub.Broker[Change]
	selChanges *pubsub.Broker[[]Range]
	vpChanges  *pubsub.Broker[Viewport]
	renders    *pubsub.Broker[*Line]
	unloads    *pubsub.Broker[struct{}]
	redraws    *pubsub.Broker[struct{}]
}

// New creates an editor holding text with the cursor at the start.
func New(text string, opts ...Option) *Editor {
	e := &Editor{
		lexer:      mdtoken.NewLexer(),
		selections: []Range{Cursor(Pos{})},
		changes:    pubsub.NewBroker[Change](),
		selChanges: pubsub.NewBroker[[]Range](),
		vpChanges:  pubsub.NewBroker[Viewport](),
		renders:    pubsub.NewBroker[*Line](),
		unloads:    pubsub.NewBroker[struct{}](),
		redraws:    pubsub.NewBroker[struct{}](),
	}
	for i, s := range splitLines(text) {
		e.lines = append(e.lines, &Line{no: i, text: s})
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// ============================================================================
// Document access
// ============================================================================

// LineCount returns the number of lines.
func (e *Editor) LineCount() int { return len(e.lines) }

// LastLine returns the index of the last line.
func (e *Editor) LastLine() int { return len(e.lines) - 1 }

// Line returns the text of line n, or "" when n is out of range.
func (e *Editor) Line(n int) string {
	if l := e.LineHandle(n); l != nil {
		return l.text
	}
	return ""
}

// LineHandle returns the handle of line n, or nil when n is out of range.
func (e *Editor) LineHandle(n int) *Line {
	if n < 0 || n >= len(e.lines) {
		return nil
	}
	return e.lines[n]
}

// LineNumber returns the current index of l, or -1 if it was deleted.
func (e *Editor) LineNumber(l *Line) int {
	if l == nil {
		return -1
	}
	return l.no
}

// Value returns the whole document.
func (e *Editor) Value() string {
	parts := make([]string, len(e.lines))
	for i, l := range e.lines {
		parts[i] = l.text
	}
	return strings.Join(parts, "\n")
}

// GetRange returns the text between two positions.
func (e *Editor) GetRange(from, to Pos) string {
	return strings.Join(e.getLines(from, to), "\n")
}

func (e *Editor) getLines(from, to Pos) []string {
	from, to = OrderedRange(e.ClipPos(from), e.ClipPos(to))
	if from.Line == to.Line {
		return []string{e.lines[from.Line].text[from.Ch:to.Ch]}
	}
	out := []string{e.lines[from.Line].text[from.Ch:]}
	for i := from.Line + 1; i < to.Line; i++ {
		out = append(out, e.lines[i].text)
	}
	return append(out, e.lines[to.Line].text[:to.Ch])
}

// ClipPos clamps p into the document.
func (e *Editor) ClipPos(p Pos) Pos {
	if p.Line < 0 {
		return Pos{}
	}
	if p.Line > e.LastLine() {
		return Pos{Line: e.LastLine(), Ch: len(e.lines[e.LastLine()].text)}
	}
	n := len(e.lines[p.Line].text)
	switch {
	case p.Ch < 0:
		p.Ch = 0
	case p.Ch > n:
		p.Ch = n
	}
	return p
}

// ============================================================================
// Tokens
// ============================================================================

// LineTokens returns the tokens of line n. ok is false for a line that does
// not exist, which callers treat as "not found" rather than an error.
func (e *Editor) LineTokens(n int) (tokens []mdtoken.Token, ok bool) {
	if n < 0 || n >= len(e.lines) {
		return nil, false
	}
	e.tokenizeThrough(n)
	return e.lines[n].tokens, true
}

// TokenAt returns the token containing pos.Ch, preferring the token that
// ends after it.
func (e *Editor) TokenAt(pos Pos) (mdtoken.Token, bool) {
	toks, ok := e.LineTokens(pos.Line)
	if !ok || len(toks) == 0 {
		return mdtoken.Token{}, false
	}
	for _, t := range toks {
		if t.End > pos.Ch {
			return t, true
		}
	}
	return toks[len(toks)-1], true
}

// LineState returns the block state at the end of line n.
func (e *Editor) LineState(n int) mdtoken.BlockState {
	if n < 0 || n >= len(e.lines) {
		return mdtoken.BlockState{}
	}
	e.tokenizeThrough(n)
	return e.lines[n].endState
}

func (e *Editor) tokenizeThrough(n int) {
	for e.frontier <= n {
		var prev mdtoken.BlockState
		if e.frontier > 0 {
			prev = e.lines[e.frontier-1].endState
		}
		l := e.lines[e.frontier]
		l.tokens, l.endState = e.lexer.TokenizeLine(l.text, prev)
		e.frontier++
	}
}

// ============================================================================
// Editing
// ============================================================================

// ReplaceRange replaces [from, to) with text. Marker endpoints, line
// widgets and selections are remapped; then change, render-line and (if
// the selection moved) selection notifications fire, in that order.
func (e *Editor) ReplaceRange(text string, from, to Pos, origin string) {
	if e.unloaded {
		return
	}
	from, to = OrderedRange(e.ClipPos(from), e.ClipPos(to))
	change := Change{
		From:    from,
		To:      to,
		Text:    splitLines(text),
		Removed: e.getLines(from, to),
		Origin:  origin,
	}
	newTo := change.NewTo()

	first := e.lines[from.Line]
	before := first.text[:from.Ch]
	after := e.lines[to.Line].text[to.Ch:]

	for _, l := range e.lines[from.Line+1 : to.Line+1] {
		l.no = -1
		for _, w := range slices.Clone(l.widgets) {
			w.Clear()
		}
	}

	added := make([]*Line, 0, len(change.Text)-1)
	for _, s := range change.Text[1:] {
		added = append(added, &Line{text: s})
	}
	if len(added) == 0 {
		first.text = before + change.Text[0] + after
	} else {
		first.text = before + change.Text[0]
		added[len(added)-1].text += after
	}
	first.hidden = nil
	for _, l := range added {
		l.hidden = nil
	}

	e.lines = slices.Replace(e.lines, from.Line+1, to.Line+1, added...)
	for i := from.Line; i < len(e.lines); i++ {
		e.lines[i].no = i
	}
	e.frontier = min(e.frontier, from.Line)

	for _, m := range e.marks {
		f := mapStart(m.from, from, to, newTo)
		t := mapEnd(m.to, from, to, newTo)
		if t.Cmp(f) < 0 {
			f = t
		}
		m.from, m.to = f, t
	}

	oldSel := e.selections
	e.selections = make([]Range, len(oldSel))
	for i, r := range oldSel {
		e.selections[i] = Range{
			Anchor: mapSel(r.Anchor, from, to, newTo),
			Head:   mapSel(r.Head, from, to, newTo),
		}
	}

	e.changes.Publish(pubsub.UpdatedEvent, change)
	for i := from.Line; i <= newTo.Line && i < len(e.lines); i++ {
		e.renders.Publish(pubsub.UpdatedEvent, e.lines[i])
	}
	if !slices.Equal(oldSel, e.selections) {
		e.selChanges.Publish(pubsub.UpdatedEvent, e.Selections())
	}
	e.redraw()
}

// mapSel moves a cursor across a change; cursors at or inside the edit
// end up after the inserted text.
func mapSel(p, from, to, newTo Pos) Pos {
	switch {
	case p.Cmp(from) < 0:
		return p
	case p.Cmp(to) >= 0:
		return shiftPast(p, to, newTo)
	default:
		return newTo
	}
}

// ReplaceSelection replaces the primary selection with text.
func (e *Editor) ReplaceSelection(text, origin string) {
	r := e.selections[0]
	e.ReplaceRange(text, r.From(), r.To(), origin)
}

// SetValue replaces the whole document.
func (e *Editor) SetValue(text string) {
	last := e.LastLine()
	e.ReplaceRange(text, Pos{}, Pos{Line: last, Ch: len(e.lines[last].text)}, "setValue")
}

// ============================================================================
// Selection and viewport
// ============================================================================

// Selections returns a copy of the current selection ranges. The first is
// the primary selection.
func (e *Editor) Selections() []Range {
	return slices.Clone(e.selections)
}

// SetSelections replaces all selections. Nothing fires if they are equal
// to the current ones.
func (e *Editor) SetSelections(ranges []Range) {
	if e.unloaded || len(ranges) == 0 {
		return
	}
	next := make([]Range, len(ranges))
	for i, r := range ranges {
		next[i] = Range{Anchor: e.ClipPos(r.Anchor), Head: e.ClipPos(r.Head)}
	}
	if slices.Equal(next, e.selections) {
		return
	}
	e.selections = next
	e.selChanges.Publish(pubsub.UpdatedEvent, e.Selections())
	e.redraw()
}

// SetCursor collapses the selection to p.
func (e *Editor) SetCursor(p Pos) {
	e.SetSelections([]Range{Cursor(p)})
}

// Cursor returns the head of the primary selection.
func (e *Editor) Cursor() Pos {
	return e.selections[0].Head
}

// Viewport returns the visible line interval. Until SetViewport is called
// the whole document is visible.
func (e *Editor) Viewport() Viewport {
	if !e.viewportSet {
		return Viewport{From: 0, To: len(e.lines)}
	}
	return Viewport{From: max(0, e.viewport.From), To: min(len(e.lines), e.viewport.To)}
}

// SetViewport changes the visible lines. Lines that scroll into view are
// reported through OnRenderLine after the viewport notification.
func (e *Editor) SetViewport(from, to int) {
	if e.unloaded {
		return
	}
	old := e.Viewport()
	e.viewport = Viewport{From: from, To: to}
	e.viewportSet = true
	vp := e.Viewport()
	if vp == old {
		return
	}
	e.vpChanges.Publish(pubsub.UpdatedEvent, vp)
	for i := vp.From; i < vp.To; i++ {
		if i < old.From || i >= old.To {
			e.renders.Publish(pubsub.UpdatedEvent, e.lines[i])
		}
	}
	e.redraw()
}

// ============================================================================
// Notifications
// ============================================================================

// OnTextChanged registers fn for every edit. The returned func unsubscribes.
func (e *Editor) OnTextChanged(fn func(Change)) func() {
	return e.changes.Handle(func(ev pubsub.Event[Change]) { fn(ev.Payload) })
}

// OnSelectionChanged registers fn for selection changes.
func (e *Editor) OnSelectionChanged(fn func([]Range)) func() {
	return e.selChanges.Handle(func(ev pubsub.Event[[]Range]) { fn(ev.Payload) })
}

// OnViewportChanged registers fn for viewport changes.
func (e *Editor) OnViewportChanged(fn func(from, to int)) func() {
	return e.vpChanges.Handle(func(ev pubsub.Event[Viewport]) { fn(ev.Payload.From, ev.Payload.To) })
}

// OnRenderLine registers fn for every line whose presentation was rebuilt.
func (e *Editor) OnRenderLine(fn func(*Line)) func() {
	return e.renders.Handle(func(ev pubsub.Event[*Line]) { fn(ev.Payload) })
}

// OnUnload registers fn to run when the editor is torn down.
func (e *Editor) OnUnload(fn func()) func() {
	return e.unloads.Handle(func(pubsub.Event[struct{}]) { fn() })
}

// OnRedraw registers fn for presentation changes that do not alter the
// text: markers, widgets, classes and hidden tokens.
func (e *Editor) OnRedraw(fn func()) func() {
	return e.redraws.Handle(func(pubsub.Event[struct{}]) { fn() })
}

func (e *Editor) redraw() {
	if e.redraws != nil {
		e.redraws.Publish(pubsub.UpdatedEvent, struct{}{})
	}
}

// Unloaded reports whether Unload ran.
func (e *Editor) Unloaded() bool { return e.unloaded }

// Unload notifies OnUnload subscribers, then clears every marker and line
// widget and closes all notification channels.
func (e *Editor) Unload() {
	if e.unloaded {
		return
	}
	e.unloads.Publish(pubsub.DeletedEvent, struct{}{})
	e.unloaded = true
	for _, m := range slices.Clone(e.marks) {
		m.Clear()
	}
	for _, l := range e.lines {
		for _, w := range slices.Clone(l.widgets) {
			w.Clear()
		}
	}
	for _, b := range []interface{ Close() }{e.changes, e.selChanges, e.vpChanges, e.renders, e.unloads, e.redraws} {
		b.Close()
	}
}
