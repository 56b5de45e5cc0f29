package editor

import (
	"maps"
	"slices"
)

// Where selects which layer of a line a class applies to.
type Where string

const (
	WhereWrap       Where = "wrap"
	WhereBackground Where = "background"
	WhereGutter     Where = "gutter"
	WhereText       Where = "text"
)

// AddLineClass adds class to l. Adding an existing class is a no-op.
func (e *Editor) AddLineClass(l *Line, where Where, class string) {
	if l == nil || l.Detached() {
		return
	}
	if slices.Contains(l.classes[where], class) {
		return
	}
	if l.classes == nil {
		l.classes = make(map[Where][]string)
	}
	l.classes[where] = append(l.classes[where], class)
	e.redraw()
}

// RemoveLineClass removes class from l.
func (e *Editor) RemoveLineClass(l *Line, where Where, class string) {
	if l == nil || !slices.Contains(l.classes[where], class) {
		return
	}
	l.classes[where] = slices.DeleteFunc(l.classes[where], func(c string) bool { return c == class })
	e.redraw()
}

// HasLineClass reports whether l carries class on the given layer.
func (e *Editor) HasLineClass(l *Line, where Where, class string) bool {
	return l != nil && slices.Contains(l.classes[where], class)
}

// LineClasses returns the classes of l on one layer.
func (e *Editor) LineClasses(l *Line, where Where) []string {
	if l == nil {
		return nil
	}
	return slices.Clone(l.classes[where])
}

// ============================================================================
// Line widgets
// ============================================================================

// LineWidget is a block element drawn below (or above) a line.
type LineWidget struct {
	Node  *Element
	Above bool

	ed         *Editor
	line       *Line
	generation int
	cleared    bool
}

// AddLineWidget attaches node below line n. It returns nil for a line that
// does not exist.
func (e *Editor) AddLineWidget(n int, node *Element, above bool) *LineWidget {
	l := e.LineHandle(n)
	if l == nil {
		return nil
	}
	w := &LineWidget{Node: node, Above: above, ed: e, line: l}
	l.widgets = append(l.widgets, w)
	e.redraw()
	return w
}

// LineWidgets returns the widgets attached to l.
func (e *Editor) LineWidgets(l *Line) []*LineWidget {
	if l == nil {
		return nil
	}
	return slices.Clone(l.widgets)
}

// Line returns the handle the widget is attached to.
func (w *LineWidget) Line() *Line { return w.line }

// Cleared reports whether Clear has run.
func (w *LineWidget) Cleared() bool { return w.cleared }

// Changed asks the host to remeasure the widget.
func (w *LineWidget) Changed() {
	if w.cleared {
		return
	}
	w.generation++
	w.ed.redraw()
}

// Generation counts Changed calls.
func (w *LineWidget) Generation() int { return w.generation }

// Clear detaches the widget. Calling it again is a no-op.
func (w *LineWidget) Clear() {
	if w.cleared {
		return
	}
	w.cleared = true
	w.line.widgets = slices.DeleteFunc(w.line.widgets, func(x *LineWidget) bool { return x == w })
	w.ed.redraw()
}

// ============================================================================
// Hidden tokens
// ============================================================================

// SetTokenHidden flags the token starting at byte offset start of l as
// hidden or visible. Flags reset when the line's text changes.
func (e *Editor) SetTokenHidden(l *Line, start int, hidden bool) {
	if l == nil || l.hidden[start] == hidden {
		return
	}
	if hidden {
		if l.hidden == nil {
			l.hidden = make(map[int]bool)
		}
		l.hidden[start] = true
	} else {
		delete(l.hidden, start)
	}
	e.redraw()
}

// TokenHidden reports whether the token starting at start is hidden.
func (e *Editor) TokenHidden(l *Line, start int) bool {
	return l != nil && l.hidden[start]
}

// HiddenTokens returns the start offsets of hidden tokens on l, ascending.
func (e *Editor) HiddenTokens(l *Line) []int {
	if l == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(l.hidden))
}
