package cursor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mdfold/internal/editor"
)

func TestSetPos_FindsTokenUnderChar(t *testing.T) {
	e := editor.New("a **b** c")
	c := New(e)
	c.SetPos(0, 3)
	tok, ok := c.Token(-1)
	require.True(t, ok)
	require.Equal(t, "**", tok.String)
	require.Equal(t, 1, c.Index())

	c.SetCh(4)
	tok, _ = c.Token(-1)
	require.Equal(t, "b", tok.String)
	require.Contains(t, c.TokenType(), "strong")

	c.SetCh(0)
	require.Equal(t, 0, c.Index(), "moving backwards on the same line restarts the scan")
}

func TestSetPos_MissingLineIsTolerated(t *testing.T) {
	e := editor.New("x")
	c := New(e)
	c.SetPos(5, 0)
	require.False(t, c.Valid())
	_, ok := c.FindNext(Class("formatting"))
	require.False(t, ok)
	_, ok = c.FindPrev(Class("formatting"))
	require.False(t, ok)
	from, to := c.ExpandRange(Class("strong"), true)
	require.Equal(t, from, to)
}

func TestFindNext_WithinLine(t *testing.T) {
	e := editor.New("![alt](img.png) and [l](u)")
	c := New(e)
	c.SetPos(0, 0)
	f, ok := c.FindNext(Class("formatting-link-string"))
	require.True(t, ok)
	require.Equal(t, "(", f.Token.String)

	f2, ok := c.FindNext(Class("formatting-link-string"), StartAt(f.Index+1))
	require.True(t, ok)
	require.Equal(t, ")", f2.Token.String)

	f3, ok := c.FindNext(Class("formatting-link"), Since(editor.P(0, 16)))
	require.True(t, ok)
	require.Equal(t, "[", f3.Token.String)
	require.Equal(t, 20, f3.Token.Start)
}

func TestFindNext_SpanLines(t *testing.T) {
	e := editor.New("$$\nx^2\n$$ tail")
	c := New(e)
	c.SetPos(0, 0)
	_, ok := c.FindNext(Class("formatting-math-end"))
	require.False(t, ok, "single-line search stops at the line end")

	f, ok := c.FindNext(Class("formatting-math-end"), SpanLines())
	require.True(t, ok)
	require.Equal(t, 2, f.Line)
	require.Equal(t, 0, f.Index)
}

func TestFindPrev(t *testing.T) {
	e := editor.New("**a**\nplain *b*")
	c := New(e)
	c.SetPos(1, 9)
	f, ok := c.FindPrev(Class("formatting-em"))
	require.True(t, ok)
	require.Equal(t, 1, f.Line)
	require.Equal(t, 8, f.Token.Start, "closing delimiter is nearest")

	c.SetPos(1, 0)
	f, ok = c.FindPrev(Class("formatting-strong"), SpanLines())
	require.True(t, ok)
	require.Equal(t, 0, f.Line)
	require.Equal(t, 3, f.Token.Start, "nearest match comes first")
}

func TestExpandRange(t *testing.T) {
	e := editor.New("x **bold *both* bold** y")
	c := New(e)
	c.SetPos(0, 6)
	from, to := c.ExpandRange(Class("strong"), false)
	require.Equal(t, "**", from.Token.String)
	require.Equal(t, 2, from.Token.Start)
	require.Equal(t, "**", to.Token.String)
	require.Equal(t, 20, to.Token.Start)
}

func TestExpandRange_SpanLines(t *testing.T) {
	e := editor.New("```\na\nb\n```\nafter")
	c := New(e)
	c.SetPos(1, 0)
	from, to := c.ExpandRange(Class("HyperMD-codeblock"), true)
	require.Equal(t, 0, from.Line)
	require.Equal(t, 3, to.Line)
}

func TestExpandRange_SpanLinesStopsAtNonMatchingNeighbour(t *testing.T) {
	e := editor.New("plain\n```\na\n```\nafter")
	c := New(e)
	c.SetPos(2, 0)
	from, to := c.ExpandRange(Class("HyperMD-codeblock"), true)
	require.Equal(t, 1, from.Line)
	require.Equal(t, "```", from.Token.String)
	require.Equal(t, 0, from.Index)
	require.Equal(t, 3, to.Line)
	require.Equal(t, "```", to.Token.String)
}
