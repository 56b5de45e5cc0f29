package fold

import (
	"github.com/zjrosen/mdfold/internal/cursor"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/span"
)

// Stream is what a detector sees: a token cursor positioned on the token
// being considered, plus the engine calls a detector may make.
type Stream struct {
	*cursor.Cursor
	engine *Engine
}

// Editor returns the editor being scanned.
func (s *Stream) Editor() *editor.Editor { return s.engine.ed }

// Spans returns the shared span extractor.
func (s *Stream) Spans() *span.Extractor { return s.engine.spans }

// Scheduler returns the engine's scheduler for renderer retries.
func (s *Stream) Scheduler() sched.Scheduler { return s.engine.sched }

// RequestRange asks whether [from, to] may be folded, with the clear range
// equal to the folded range.
func (s *Stream) RequestRange(from, to editor.Pos) RequestResult {
	return s.engine.requestRange(from, to, from, to)
}

// RequestRangeWithClear asks whether [from, to] may be folded and remembers
// [cfrom, cto] as the clear range of the marker about to be created.
func (s *Stream) RequestRangeWithClear(from, to, cfrom, cto editor.Pos) RequestResult {
	return s.engine.requestRange(from, to, cfrom, cto)
}

// FoldOption adjusts the text marker created by Fold.
type FoldOption func(*editor.MarkerOptions)

// ClearOnEnter clears the marker as soon as the cursor lands strictly
// inside it, independent of its clear range.
func ClearOnEnter() FoldOption {
	return func(o *editor.MarkerOptions) { o.ClearOnEnter = true }
}

// Fold collapses [from, to) behind widget and returns the marker for the
// detector to return. Detectors call it only after an OK request.
func (s *Stream) Fold(from, to editor.Pos, widget *editor.Element, opts ...FoldOption) *Marker {
	mo := editor.MarkerOptions{
		Kind:      editor.KindFold,
		Collapsed: true,
		Widget:    widget,
	}
	for _, opt := range opts {
		opt(&mo)
	}
	tm := s.engine.ed.MarkText(from, to, mo)
	m := &Marker{text: tm, widget: widget}
	tm.OnClear(m.Teardown)
	return m
}

// Signal publishes a folder notification such as an image asking to load.
func (s *Stream) Signal(ev Event) {
	s.engine.signal(ev)
}

// Engine returns the engine running the scan.
func (s *Stream) Engine() *Engine { return s.engine }
