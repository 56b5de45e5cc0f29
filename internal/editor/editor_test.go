package editor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// ============================================================================
// Positions
// ============================================================================

func TestRangesIntersect_Inclusive(t *testing.T) {
	require.True(t, RangesIntersect(P(0, 0), P(0, 5), P(0, 5), P(0, 9)), "touching ranges intersect")
	require.False(t, RangesIntersect(P(0, 0), P(0, 4), P(0, 5), P(0, 9)))
	require.True(t, RangesIntersect(P(0, 3), P(0, 3), P(0, 0), P(2, 0)), "point inside")
	require.False(t, RangesIntersect(P(3, 0), P(3, 1), P(0, 0), P(2, 9)))
}

func TestRange_FromTo(t *testing.T) {
	r := Range{Anchor: P(2, 1), Head: P(0, 4)}
	require.Equal(t, P(0, 4), r.From())
	require.Equal(t, P(2, 1), r.To())
	require.False(t, r.Empty())
	require.True(t, Cursor(P(1, 1)).Empty())
}

// ============================================================================
// Editing
// ============================================================================

func TestEditor_ReplaceRangeKeepsFirstHandle(t *testing.T) {
	e := New("one\ntwo\nthree")
	first := e.LineHandle(0)
	second := e.LineHandle(1)

	e.ReplaceRange("X\nY", P(0, 1), P(1, 1), "+input")

	require.Equal(t, "oX\nYwo\nthree", e.Value())
	require.Same(t, first, e.LineHandle(0))
	require.True(t, second.Detached())
	require.Equal(t, 2, e.LineNumber(e.LineHandle(2)))
}

func TestEditor_ChangeNotification(t *testing.T) {
	e := New("abc\ndef")
	var got []Change
	e.OnTextChanged(func(c Change) { got = append(got, c) })

	e.ReplaceRange("Z", P(0, 1), P(1, 1), "+delete")

	require.Len(t, got, 1)
	require.Equal(t, []string{"bc", "d"}, got[0].Removed)
	require.Equal(t, P(0, 2), got[0].NewTo())
	require.Equal(t, "aZef", e.Value())
}

func TestEditor_NotificationOrder(t *testing.T) {
	e := New("abc")
	e.SetCursor(P(0, 3))
	var order []string
	e.OnSelectionChanged(func([]Range) { order = append(order, "selection") })
	e.OnRenderLine(func(*Line) { order = append(order, "render") })
	e.OnTextChanged(func(Change) { order = append(order, "change") })

	e.ReplaceSelection("!", "+input")

	require.Equal(t, []string{"change", "render", "selection"}, order)
	require.Equal(t, P(0, 4), e.Cursor())
}

func TestEditor_MarkersFollowEdits(t *testing.T) {
	e := New("hello world\nnext")
	m := e.MarkText(P(0, 6), P(0, 11), MarkerOptions{Kind: KindFold})

	e.ReplaceRange("big ", P(0, 6), P(0, 6), "+input")
	from, to, ok := m.Find()
	require.True(t, ok)
	require.Equal(t, P(0, 10), from, "insertion at the start pushes the marker")
	require.Equal(t, P(0, 15), to)

	e.ReplaceRange("top\n", P(0, 0), P(0, 0), "+input")
	from, to, _ = m.Find()
	require.Equal(t, P(1, 10), from)
	require.Equal(t, P(1, 15), to)
}

func TestEditor_MarkerCollapsesWhenDeleted(t *testing.T) {
	e := New("abcdef")
	m := e.MarkText(P(0, 2), P(0, 4), MarkerOptions{})
	e.ReplaceRange("", P(0, 1), P(0, 5), "+delete")
	from, to, ok := m.Find()
	require.True(t, ok)
	require.Equal(t, from, to)
	require.Equal(t, P(0, 1), from)
}

func TestEditor_TokensCarryBlockState(t *testing.T) {
	e := New("```go\nx := `a`\n```\ntail")
	toks, ok := e.LineTokens(1)
	require.True(t, ok)
	require.Len(t, toks, 1, "fenced content is one token")

	e.ReplaceRange("", P(0, 0), P(0, 5), "+delete")
	toks, _ = e.LineTokens(1)
	require.Greater(t, len(toks), 1, "retokenized once the fence is gone")

	_, ok = e.LineTokens(99)
	require.False(t, ok)
}

// ============================================================================
// Markers
// ============================================================================

func TestEditor_FindMarksExcludesTouching(t *testing.T) {
	e := New("0123456789")
	m := e.MarkText(P(0, 2), P(0, 5), MarkerOptions{})
	require.Empty(t, e.FindMarks(P(0, 5), P(0, 8)))
	require.Equal(t, []*TextMarker{m}, e.FindMarks(P(0, 4), P(0, 8)))
	require.Equal(t, []*TextMarker{m}, e.FindMarksAt(P(0, 5)))
}

func TestTextMarker_ClearIsIdempotent(t *testing.T) {
	e := New("text")
	m := e.MarkText(P(0, 0), P(0, 2), MarkerOptions{})
	calls := 0
	m.OnClear(func() { calls++ })
	m.Clear()
	m.Clear()
	require.Equal(t, 1, calls)
	require.Empty(t, e.Marks())
	_, _, ok := m.Find()
	require.False(t, ok)
}

func TestMarkSelection_Chunks(t *testing.T) {
	e := New("a\nb\nc\nd\ne\nf\ng\nh\ni\nj")
	stop := MarkSelection(e)
	e.SetSelections([]Range{{Anchor: P(0, 0), Head: P(9, 1)}})

	marks := e.Marks()
	require.Len(t, marks, 2)
	for _, m := range marks {
		require.Equal(t, KindSelection, m.Kind)
	}

	e.SetCursor(P(1, 0))
	require.Empty(t, e.Marks())
	stop()
}

// ============================================================================
// Lines
// ============================================================================

func TestEditor_LineClassesAndWidgets(t *testing.T) {
	e := New("a\nb")
	l := e.LineHandle(1)
	e.AddLineClass(l, WhereWrap, "x")
	e.AddLineClass(l, WhereWrap, "x")
	require.Equal(t, []string{"x"}, e.LineClasses(l, WhereWrap))
	e.RemoveLineClass(l, WhereWrap, "x")
	require.False(t, e.HasLineClass(l, WhereWrap, "x"))

	w := e.AddLineWidget(1, NewElement("div", "w"), false)
	require.Len(t, e.LineWidgets(l), 1)
	e.ReplaceRange("", P(0, 1), P(1, 1), "+delete")
	require.True(t, w.Cleared(), "widgets of deleted lines are cleared")
}

func TestEditor_HiddenTokensResetOnEdit(t *testing.T) {
	e := New("**hi**")
	l := e.LineHandle(0)
	e.SetTokenHidden(l, 0, true)
	require.True(t, e.TokenHidden(l, 0))
	e.ReplaceRange("!", P(0, 6), P(0, 6), "+input")
	require.Empty(t, e.HiddenTokens(l))
}

func TestEditor_ViewportRendersNewLines(t *testing.T) {
	e := New("0\n1\n2\n3\n4", WithViewport(0, 2))
	var rendered []int
	e.OnRenderLine(func(l *Line) { rendered = append(rendered, e.LineNumber(l)) })
	e.SetViewport(1, 4)
	require.Equal(t, []int{2, 3}, rendered)
	require.Equal(t, Viewport{From: 1, To: 4}, e.Viewport())
}

func TestEditor_Unload(t *testing.T) {
	e := New("x")
	m := e.MarkText(P(0, 0), P(0, 1), MarkerOptions{})
	unloaded := false
	e.OnUnload(func() { unloaded = true })
	e.Unload()
	require.True(t, unloaded)
	require.True(t, m.Cleared())
	e.ReplaceRange("y", P(0, 0), P(0, 0), "+input")
	require.Equal(t, "x", e.Value(), "edits after unload are ignored")
}

// ============================================================================
// Elements
// ============================================================================

func TestElement_ObserveAndClickBubble(t *testing.T) {
	root := NewElement("div", "root")
	child := NewElement("span", "child")
	root.Append(child)

	mutations := 0
	detach := root.Observe(func(*Element) { mutations++ })
	child.SetText("hello")
	require.Equal(t, 1, mutations)
	detach()
	child.SetText("bye")
	require.Equal(t, 1, mutations)

	var clicks []string
	root.OnClick(func() { clicks = append(clicks, "root") })
	child.OnClick(func() { clicks = append(clicks, "child") })
	child.Click()
	require.Equal(t, []string{"child", "root"}, clicks)
	require.Same(t, child, root.Find("child"))
}

// ============================================================================
// Properties
// ============================================================================

func TestEditor_EditsMatchStringModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[ab\n]{0,20}`).Draw(t, "text")
		e := New(text)
		model := text
		for range rapid.IntRange(1, 5).Draw(t, "edits") {
			a := rapid.IntRange(0, len(model)).Draw(t, "a")
			b := rapid.IntRange(a, len(model)).Draw(t, "b")
			ins := rapid.StringMatching(`[xy\n]{0,4}`).Draw(t, "ins")
			e.ReplaceRange(ins, offsetPos(model, a), offsetPos(model, b), "+input")
			model = model[:a] + ins + model[b:]
			if e.Value() != model {
				t.Fatalf("value %q, want %q", e.Value(), model)
			}
		}
		for i := range e.LineCount() {
			if e.LineNumber(e.LineHandle(i)) != i {
				t.Fatalf("line %d misnumbered", i)
			}
		}
	})
}

func offsetPos(s string, off int) Pos {
	p := Pos{}
	for i := 0; i < off; i++ {
		if s[i] == '\n' {
			p.Line++
			p.Ch = 0
		} else {
			p.Ch++
		}
	}
	return p
}

func TestElement_RemoveClassNotifies(t *testing.T) {
	el := NewElement("img", "hmd-image hmd-image-loading")
	n := 0
	el.Observe(func(*Element) { n++ })

	el.RemoveClass("hmd-image-loading")
	el.RemoveClass("absent")
	require.Equal(t, "hmd-image", el.Class)
	require.Equal(t, 1, n)
}
