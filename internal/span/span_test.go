package span

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/mdtoken"
)

func spansOf(t *testing.T, text string) []Span {
	t.Helper()
	x := New(editor.New(text))
	return x.Extract(0, false)
}

func byType(spans []Span, typ Type) []Span {
	var out []Span
	for _, sp := range spans {
		if sp.Type == typ {
			out = append(out, sp)
		}
	}
	return out
}

// ============================================================================
// Extraction
// ============================================================================

func TestExtract_Strong(t *testing.T) {
	spans := byType(spansOf(t, "a **hi** b"), Strong)
	require.Len(t, spans, 1)
	sp := spans[0]
	require.Equal(t, 2, sp.Begin)
	require.Equal(t, 8, sp.End)
	require.Equal(t, "**hi**", sp.Text)
	require.Equal(t, "**", sp.Head.String)
	require.Equal(t, 6, sp.Tail.Start)
	require.True(t, sp.Closed)
}

func TestExtract_UnclosedRunsToLineEnd(t *testing.T) {
	spans := byType(spansOf(t, "x ~~gone~~ ~~y"), Strikethrough)
	require.Len(t, spans, 1, "a delimiter without closer is literal")
	require.Equal(t, "~~gone~~", spans[0].Text)
}

func TestExtract_LinkTextAndHref(t *testing.T) {
	spans := spansOf(t, "[text](http://x.y) end")
	lt := byType(spans, LinkText)
	require.Len(t, lt, 1)
	require.Equal(t, "[text]", lt[0].Text)

	lh := byType(spans, LinkHref)
	require.Len(t, lh, 1)
	require.Equal(t, "(http://x.y)", lh[0].Text)
}

func TestExtract_ImageAltIsNotLinkText(t *testing.T) {
	require.Empty(t, byType(spansOf(t, "![alt](a.png)"), LinkText))
}

func TestExtract_TaskIsSingleToken(t *testing.T) {
	spans := byType(spansOf(t, "- [ ] todo"), Task)
	require.Len(t, spans, 1)
	require.Equal(t, spans[0].HeadIndex, spans[0].TailIndex)
	require.Equal(t, "[ ]", spans[0].Text)
}

func TestExtract_HighlightAlias(t *testing.T) {
	spans := spansOf(t, "==hot==")
	require.Len(t, byType(spans, Mark), 1)
	require.Len(t, byType(spans, Highlight), 1)
}

func TestExtract_InternalLinkClosesAtEnd(t *testing.T) {
	spans := byType(spansOf(t, "see [[Note]] here"), InternalLink)
	require.Len(t, spans, 1)
	require.Equal(t, "[[Note]]", spans[0].Text)
}

// ============================================================================
// Cache
// ============================================================================

func TestExtractor_CacheTruncatedOnEdit(t *testing.T) {
	e := editor.New("**a**\n*b*\n`c`")
	x := New(e)
	for i := range 3 {
		x.Extract(i, false)
	}
	require.Len(t, x.caches, 3)

	e.ReplaceRange("x", editor.P(1, 0), editor.P(1, 0), "+input")
	require.Len(t, x.caches, 1)

	spans := byType(x.Extract(1, false), Em)
	require.Len(t, spans, 1)
	require.Equal(t, 1, spans[0].Begin, "spans reflect the edited text")
}

func TestExtractor_CloseStopsInvalidation(t *testing.T) {
	e := editor.New("*a*")
	x := New(e)
	x.Extract(0, false)
	x.Close()
	e.ReplaceRange("b", editor.P(0, 0), editor.P(0, 0), "+input")
	require.Len(t, x.caches, 1)
}

func TestFindSpansAt(t *testing.T) {
	x := New(editor.New("x **a *b* c** y"))
	got := x.FindSpansAt(editor.P(0, 7))
	var types []Type
	for _, sp := range got {
		types = append(types, sp.Type)
	}
	require.ElementsMatch(t, []Type{Strong, Em}, types)

	sp, ok := x.FindSpanWithTypeAt(editor.P(0, 2), Strong)
	require.True(t, ok, "span ends are inclusive")
	require.Equal(t, 2, sp.Begin)

	_, ok = x.FindSpanWithTypeAt(editor.P(0, 0), Strong)
	require.False(t, ok)
}

// ============================================================================
// Properties
// ============================================================================

func TestExtract_SpansPairAndNeverOverlap(t *testing.T) {
	atoms := []string{"a", " ", "**", "*", "~~", "==", "`", "[", "]", "(u)", "#t", "[[n]]", "- [ ] ", "++", "^"}
	rapid.Check(t, func(t *rapid.T) {
		line := strings.Join(rapid.SliceOfN(rapid.SampledFrom(atoms), 0, 20).Draw(t, "atoms"), "")
		e := editor.New(line)
		spans := NewFromSource(e).Extract(0, true)

		last := map[Type]int{}
		for _, sp := range spans {
			if sp.Begin >= sp.End {
				t.Fatalf("empty %s span in %q", sp.Type, line)
			}
			if end, ok := last[sp.Type]; ok && sp.Begin < end {
				t.Fatalf("%s spans overlap in %q", sp.Type, line)
			}
			last[sp.Type] = sp.End
			if !sp.Closed && sp.End != len(line) {
				t.Fatalf("unclosed %s span must run to the line end in %q", sp.Type, line)
			}
		}

		toks, _ := e.LineTokens(0)
		for _, typ := range []Type{Em, Strong, Strikethrough, Mark, Ins, Sup, Code, Hashtag, LinkHref} {
			enter, leave := 0, 0
			active := false
			for i, tok := range toks {
				var prev *mdtoken.Token
				if i > 0 {
					prev = &toks[i-1]
				}
				f := TokenFlags(tok, prev)[typ]
				if f&Is != 0 && !active {
					enter++
				}
				if f&Leaving != 0 {
					leave++
				}
				active = f&Is != 0
			}
			if active {
				leave++ // implicit exit at line end
			}
			if enter != leave {
				t.Fatalf("%s: %d entering vs %d exiting in %q", typ, enter, leave, line)
			}
			if n := len(byType(spans, typ)); n != enter {
				t.Fatalf("%s: %d entering transitions but %d spans in %q", typ, enter, n, line)
			}
		}
	})
}
