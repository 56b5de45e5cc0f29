package fold

import (
	"fmt"
	"slices"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/pubsub"
)

// Marker is a live fold: a collapsed text marker with its widget, the
// clear range the cursor must stay out of, and the teardown hooks that
// release whatever the widget's renderer allocated.
type Marker struct {
	Type string

	text       *editor.TextMarker
	widget     *editor.Element
	lineWidget *editor.LineWidget
	cfrom, cto editor.Pos
	hasCRange  bool
	unload     []func()
	engine     *Engine
	torn       bool
}

// ID returns the underlying text marker's id.
func (m *Marker) ID() string { return m.text.ID }

// Text returns the underlying text marker.
func (m *Marker) Text() *editor.TextMarker { return m.text }

// Widget returns the element drawn in place of the folded text.
func (m *Marker) Widget() *editor.Element { return m.widget }

// LineWidget returns the block widget attached by the folder, if any.
func (m *Marker) LineWidget() *editor.LineWidget { return m.lineWidget }

// SetLineWidget hands ownership of w to the marker; it is cleared on
// teardown.
func (m *Marker) SetLineWidget(w *editor.LineWidget) { m.lineWidget = w }

// Find returns the folded range; ok is false once torn down.
func (m *Marker) Find() (from, to editor.Pos, ok bool) {
	if m.torn {
		return editor.Pos{}, editor.Pos{}, false
	}
	return m.text.Find()
}

// ClearRange returns the range the cursor must not enter.
func (m *Marker) ClearRange() (from, to editor.Pos) {
	if !m.hasCRange {
		from, to, _ = m.text.Find()
		return from, to
	}
	return m.cfrom, m.cto
}

// Torn reports whether Teardown ran.
func (m *Marker) Torn() bool { return m.torn }

// OnUnload registers fn to release resources held by the widget. Hooks run
// once, newest first, when the marker is torn down.
func (m *Marker) OnUnload(fn func()) {
	if m.torn {
		runHook(m.Type, fn)
		return
	}
	m.unload = append(m.unload, fn)
}

// Changed asks the host to remeasure the widget.
func (m *Marker) Changed() {
	if m.torn {
		return
	}
	m.text.Changed()
	if m.lineWidget != nil {
		m.lineWidget.Changed()
	}
}

// Break tears the marker down and puts the cursor chOffset bytes after
// where it started, which is what clicking a widget does.
func (m *Marker) Break(chOffset int) {
	from, _, ok := m.Find()
	if !ok {
		return
	}
	ed := m.text.Editor()
	m.Teardown()
	if ed != nil {
		ed.SetCursor(editor.Pos{Line: from.Line, Ch: from.Ch + chOffset})
	}
}

// Teardown removes the marker from its engine, queues its line for the
// next quick fold, runs the unload hooks and clears the widget and text
// marker. Only the first call has any effect.
func (m *Marker) Teardown() {
	if m.torn {
		return
	}
	from, to, found := m.text.Find()
	m.torn = true

	e := m.engine
	if e != nil {
		e.folded[m.Type] = slices.DeleteFunc(e.folded[m.Type], func(x *Marker) bool { return x == m })
		if found {
			e.hints.add(from.Line)
		}
	}

	for i := len(m.unload) - 1; i >= 0; i-- {
		runHook(m.Type, m.unload[i])
	}
	m.unload = nil

	m.text.Clear()
	if m.lineWidget != nil {
		m.lineWidget.Clear()
	}
	log.Debug(log.CatFold, "marker cleared", "type", m.Type, "from", from, "to", to)

	if e != nil && !e.unloaded {
		e.events.Publish(pubsub.DeletedEvent, Event{FoldType: m.Type, Marker: m, From: from, To: to})
	}
}

// runHook calls an unload hook, containing any panic so the remaining
// markers still get cleared.
func runHook(typ string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorErr(log.CatFold, "widget unload failed", fmt.Errorf("%v", r), "type", typ)
		}
	}()
	fn()
}
