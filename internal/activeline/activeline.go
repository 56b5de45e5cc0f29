// Package activeline styles the lines under the cursor.
package activeline

import (
	"slices"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/log"
)

// Line classes added to every active line, one per layer.
const (
	WrapClass       = "CodeMirror-activeline"
	BackgroundClass = "CodeMirror-activeline-background"
	GutterClass     = "CodeMirror-activeline-gutter"
)

// Mode selects which selections make a line active.
type Mode int

const (
	// Off disables tracking.
	Off Mode = iota
	// CursorOnly counts empty selections only.
	CursorOnly
	// NonEmpty also counts every line a non-empty selection covers.
	NonEmpty
)

func (m Mode) String() string {
	switch m {
	case CursorOnly:
		return "cursor"
	case NonEmpty:
		return "non-empty"
	}
	return "off"
}

// Tracker keeps the active line classes of one editor in sync with its
// selections.
type Tracker struct {
	ed     *editor.Editor
	mode   Mode
	active []*editor.Line

	unsubSel    func()
	unsubUnload func()
}

// New creates a tracker for ed in mode.
func New(ed *editor.Editor, mode Mode) *Tracker {
	t := &Tracker{ed: ed}
	t.unsubUnload = ed.OnUnload(t.Close)
	t.SetMode(mode)
	return t
}

// Mode returns the current mode.
func (t *Tracker) Mode() Mode { return t.mode }

// SetMode switches modes. Turning tracking off clears every class it added.
func (t *Tracker) SetMode(mode Mode) {
	if mode == t.mode || t.ed.Unloaded() {
		return
	}
	prev := t.mode
	t.mode = mode
	log.Debug(log.CatActive, "active line mode changed", "from", prev, "to", mode)
	if prev != Off {
		t.unsubSel()
		t.unsubSel = nil
		t.clear()
		t.active = nil
	}
	if mode != Off {
		t.update(t.ed.Selections())
		t.unsubSel = t.ed.OnSelectionChanged(t.update)
	}
}

// Active returns the handles of the active lines in selection order.
func (t *Tracker) Active() []*editor.Line {
	return slices.Clone(t.active)
}

// ActiveLines returns the numbers of the active lines.
func (t *Tracker) ActiveLines() []int {
	out := make([]int, 0, len(t.active))
	for _, l := range t.active {
		if n := t.ed.LineNumber(l); n >= 0 {
			out = append(out, n)
		}
	}
	return out
}

func (t *Tracker) update(ranges []editor.Range) {
	var active []*editor.Line
	for _, r := range ranges {
		if t.mode != NonEmpty && !r.Empty() {
			continue
		}
		start, end := r.Anchor.Line, r.Head.Line
		if start > end {
			start, end = end, start
		}
		for n := start; n <= end; n++ {
			l := t.ed.LineHandleVisualStart(n)
			if l != nil && (len(active) == 0 || active[len(active)-1] != l) {
				active = append(active, l)
			}
		}
	}
	if slices.Equal(t.active, active) {
		return
	}
	t.clear()
	for _, l := range active {
		t.ed.AddLineClass(l, editor.WhereWrap, WrapClass)
		t.ed.AddLineClass(l, editor.WhereBackground, BackgroundClass)
		t.ed.AddLineClass(l, editor.WhereGutter, GutterClass)
	}
	t.active = active
}

func (t *Tracker) clear() {
	for _, l := range t.active {
		t.ed.RemoveLineClass(l, editor.WhereWrap, WrapClass)
		t.ed.RemoveLineClass(l, editor.WhereBackground, BackgroundClass)
		t.ed.RemoveLineClass(l, editor.WhereGutter, GutterClass)
	}
}

// Close turns tracking off and detaches from the editor.
func (t *Tracker) Close() {
	t.SetMode(Off)
	if t.unsubUnload != nil {
		t.unsubUnload()
		t.unsubUnload = nil
	}
}
