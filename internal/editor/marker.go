package editor

import (
	"slices"

	"github.com/google/uuid"
)

// MarkerKind tells consumers what a text marker is for.
type MarkerKind string

const (
	// KindSelection markers highlight selected text. They are transient
	// and never count as folds.
	KindSelection MarkerKind = "selection"
	// KindFold markers replace their range with a widget.
	KindFold MarkerKind = "fold"
	// KindStyle markers only add a class.
	KindStyle MarkerKind = "style"
)

// MarkerOptions configures MarkText.
type MarkerOptions struct {
	Kind      MarkerKind
	ClassName string
	// Collapsed hides the marked text; Widget, if set, is drawn instead.
	Collapsed bool
	Widget    *Element
	// ClearOnEnter clears the marker when a cursor lands strictly inside it.
	ClearOnEnter bool
}

// TextMarker binds a document range to presentation state. Its endpoints
// follow edits made elsewhere in the document.
type TextMarker struct {
	ID           string
	Kind         MarkerKind
	ClassName    string
	Collapsed    bool
	ClearOnEnter bool
	Widget       *Element

	ed         *Editor
	from, to   Pos
	cleared    bool
	generation int
	onClear    []func()
}

// MarkText creates a marker over [from, to).
func (e *Editor) MarkText(from, to Pos, opts MarkerOptions) *TextMarker {
	from, to = OrderedRange(e.ClipPos(from), e.ClipPos(to))
	kind := opts.Kind
	if kind == "" {
		kind = KindStyle
	}
	m := &TextMarker{
		ID:           uuid.NewString(),
		Kind:         kind,
		ClassName:    opts.ClassName,
		Collapsed:    opts.Collapsed,
		ClearOnEnter: opts.ClearOnEnter,
		Widget:       opts.Widget,
		ed:           e,
		from:         from,
		to:           to,
	}
	e.marks = append(e.marks, m)
	return m
}

// Find returns the marker's current range; ok is false once cleared.
func (m *TextMarker) Find() (from, to Pos, ok bool) {
	if m.cleared {
		return Pos{}, Pos{}, false
	}
	return m.from, m.to, true
}

// Editor returns the editor the marker belongs to.
func (m *TextMarker) Editor() *Editor {
	return m.ed
}

// Cleared reports whether Clear has run.
func (m *TextMarker) Cleared() bool {
	return m.cleared
}

// OnClear registers fn to run once when the marker is cleared, whoever
// clears it.
func (m *TextMarker) OnClear(fn func()) {
	if m.cleared {
		fn()
		return
	}
	m.onClear = append(m.onClear, fn)
}

// Clear removes the marker. Calling it again is a no-op.
func (m *TextMarker) Clear() {
	if m.cleared {
		return
	}
	m.cleared = true
	if m.ed != nil {
		m.ed.marks = slices.DeleteFunc(m.ed.marks, func(x *TextMarker) bool { return x == m })
		m.ed.redraw()
	}
	hooks := m.onClear
	m.onClear = nil
	for _, fn := range hooks {
		fn()
	}
}

// Changed tells the host that the widget's size or content changed.
func (m *TextMarker) Changed() {
	if m.cleared {
		return
	}
	m.generation++
	if m.ed != nil {
		m.ed.redraw()
	}
}

// Generation counts Changed calls.
func (m *TextMarker) Generation() int {
	return m.generation
}

// Marks returns the live markers ordered by start position.
func (e *Editor) Marks() []*TextMarker {
	out := slices.Clone(e.marks)
	slices.SortStableFunc(out, func(a, b *TextMarker) int { return a.from.Cmp(b.from) })
	return out
}

// FindMarks returns markers overlapping [from, to]. A marker that only
// touches the range at one end does not overlap it; an empty query range
// finds markers strictly containing the point.
func (e *Editor) FindMarks(from, to Pos) []*TextMarker {
	from, to = OrderedRange(from, to)
	var out []*TextMarker
	for _, m := range e.Marks() {
		if m.to.Cmp(from) > 0 && m.from.Cmp(to) < 0 {
			out = append(out, m)
			continue
		}
		// empty markers inside the range
		if m.from == m.to && m.from.Cmp(from) >= 0 && m.from.Cmp(to) <= 0 && from != to {
			out = append(out, m)
		}
	}
	return out
}

// FindMarksAt returns markers whose range contains pos, ends included.
func (e *Editor) FindMarksAt(pos Pos) []*TextMarker {
	var out []*TextMarker
	for _, m := range e.Marks() {
		if m.from.Cmp(pos) <= 0 && m.to.Cmp(pos) >= 0 {
			out = append(out, m)
		}
	}
	return out
}

// mapStart and mapEnd move a position across a change that replaced
// [from, to) and now ends at newTo.
func mapStart(p, from, to, newTo Pos) Pos {
	switch {
	case p.Cmp(from) < 0:
		return p
	case p.Cmp(to) >= 0:
		return shiftPast(p, to, newTo)
	default:
		return newTo
	}
}

func mapEnd(p, from, to, newTo Pos) Pos {
	switch {
	case p.Cmp(from) <= 0:
		return p
	case p.Cmp(to) >= 0:
		return shiftPast(p, to, newTo)
	default:
		return from
	}
}

func shiftPast(p, to, newTo Pos) Pos {
	if p.Line == to.Line {
		return Pos{Line: newTo.Line, Ch: newTo.Ch + p.Ch - to.Ch}
	}
	return Pos{Line: p.Line + newTo.Line - to.Line, Ch: p.Ch}
}

// MapStart moves a range start across c. Starts inside the replaced text
// end up after the insertion.
func (c Change) MapStart(p Pos) Pos {
	return mapStart(p, c.From, c.To, c.NewTo())
}

// MapEnd moves a range end across c. Ends inside the replaced text end up
// at the start of the change.
func (c Change) MapEnd(p Pos) Pos {
	return mapEnd(p, c.From, c.To, c.NewTo())
}

// LineHandleVisualStart returns the handle of the first line of the visual
// line containing line n: a collapsed marker that starts on an earlier line
// and ends on n joins the two.
func (e *Editor) LineHandleVisualStart(n int) *Line {
	for {
		next := n
		for _, m := range e.marks {
			if m.Collapsed && m.to.Line == n && m.from.Line < next {
				next = m.from.Line
			}
		}
		if next == n {
			return e.LineHandle(n)
		}
		n = next
	}
}
