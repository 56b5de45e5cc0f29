// Package span derives semantic spans (emphasis, link text, tasks, ...)
// from the style transitions between neighbouring tokens of a line, and
// caches them per line until the line is edited.
package span

import (
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
)

// Type names a span style.
type Type string

const (
	Em            Type = "em"
	Strikethrough Type = "strikethrough"
	Strong        Type = "strong"
	Mark          Type = "mark"
	Ins           Type = "ins"
	Sub           Type = "sub"
	Sup           Type = "sup"
	Code          Type = "code"
	InternalLink  Type = "internalLink"
	LinkText      Type = "linkText"
	LinkHref      Type = "linkHref"
	Task          Type = "task"
	Hashtag       Type = "hashtag"
	// Highlight is an alias of Mark; both spans are produced.
	Highlight Type = "highlight"
)

// Types lists every span type in extraction order.
var Types = []Type{Em, Strikethrough, Strong, Mark, Ins, Sub, Sup, Code, InternalLink, LinkText, LinkHref, Task, Hashtag, Highlight}

// Flag is the per-token state of one span type.
type Flag uint8

const (
	// Is means the style is active on the token.
	Is Flag = 1 << iota
	// Leaving means the style was active on the previous token and ends here.
	Leaving
)

// Span is a maximal run of tokens sharing one style on a single line.
type Span struct {
	Type      Type
	Begin     int
	End       int
	Head      mdtoken.Token
	HeadIndex int
	Tail      mdtoken.Token
	TailIndex int
	Text      string
	// Closed is false when the style was still open at the end of the line;
	// Tail is then just the last token of the line.
	Closed bool
}

// TokenFlags computes the flag of every span type for tok given the token
// before it (nil at line start).
func TokenFlags(tok mdtoken.Token, prev *mdtoken.Token) map[Type]Flag {
	var ps mdtoken.State
	if prev != nil {
		ps = prev.State
	}
	s := tok.State
	flags := map[Type]Flag{
		Em:            transition(s.Em, ps.Em),
		Strikethrough: transition(s.Strikethrough, ps.Strikethrough),
		Strong:        transition(s.Strong, ps.Strong),
		Mark:          transition(s.Highlight, ps.Highlight),
		Ins:           transition(s.Ins, ps.Ins),
		Sub:           transition(s.Sub, ps.Sub),
		Sup:           transition(s.Sup, ps.Sup),
		Code:          transition(s.Code > 0, ps.Code > 0),
		Hashtag:       transition(s.Hashtag, ps.Hashtag),
	}

	switch {
	case tok.HasClass("formatting-link-end"):
		flags[InternalLink] = Leaving
	case tok.HasClass("formatting-link-start") || tok.HasClass("hmd-internal-link"):
		flags[InternalLink] = Is
	}

	switch {
	case s.LinkText:
		if s.LinkType == mdtoken.LinkNormal || s.LinkType == mdtoken.LinkBare2 || s.LinkType == mdtoken.LinkWiki {
			flags[LinkText] = Is
		}
	case ps.LinkText:
		flags[LinkText] = Leaving
	}

	switch {
	case s.LinkHref && !s.LinkText:
		flags[LinkHref] = Is
	case !s.LinkHref && !s.LinkText && ps.LinkHref && !ps.LinkText:
		flags[LinkHref] = Leaving
	}

	if tok.HasClass("formatting-task") {
		flags[Task] = Is | Leaving
	}
	flags[Highlight] = flags[Mark]
	return flags
}

func transition(now, before bool) Flag {
	switch {
	case now:
		return Is
	case before:
		return Leaving
	}
	return 0
}

// Source provides line text and tokens. *editor.Editor satisfies it.
type Source interface {
	LineTokens(n int) ([]mdtoken.Token, bool)
	Line(n int) string
}

// Extractor caches spans per line.
type Extractor struct {
	src    Source
	caches [][]Span
	cached []bool
	unsub  func()
}

// New returns an extractor over e whose cache is truncated at every edited
// line. Construct it before anything else that subscribes to e so the
// cache is fresh when they run.
func New(e *editor.Editor) *Extractor {
	x := NewFromSource(e)
	x.unsub = e.OnTextChanged(func(c editor.Change) { x.Invalidate(c.From.Line) })
	return x
}

// NewFromSource returns an extractor that the caller invalidates.
func NewFromSource(src Source) *Extractor {
	return &Extractor{src: src}
}

// Close stops listening for edits.
func (x *Extractor) Close() {
	if x.unsub != nil {
		x.unsub()
		x.unsub = nil
	}
}

// Invalidate drops the cache for line and every line after it, since an
// edit may shift all following line numbers.
func (x *Extractor) Invalidate(line int) {
	line = max(line, 0)
	if len(x.caches) > line {
		log.Debug(log.CatSpan, "span cache truncated", "line", line, "dropped", len(x.caches)-line)
		x.caches = x.caches[:line]
		x.cached = x.cached[:line]
	}
}

// Extract returns the spans of line n, ordered by Begin. Cached spans are
// returned unless force is set.
func (x *Extractor) Extract(n int, force bool) []Span {
	if !force && n < len(x.cached) && x.cached[n] {
		return x.caches[n]
	}
	tokens, ok := x.src.LineTokens(n)
	if !ok {
		return nil
	}
	text := x.src.Line(n)
	spans := extract(tokens, text)

	for len(x.caches) <= n {
		x.caches = append(x.caches, nil)
		x.cached = append(x.cached, false)
	}
	x.caches[n] = spans
	x.cached[n] = true
	return spans
}

func extract(tokens []mdtoken.Token, text string) []Span {
	var out []Span
	open := make(map[Type]int) // type -> index into out
	for i, tok := range tokens {
		var prev *mdtoken.Token
		if i > 0 {
			prev = &tokens[i-1]
		}
		flags := TokenFlags(tok, prev)
		for _, typ := range Types {
			f := flags[typ]
			idx, isOpen := open[typ]
			if f&Is != 0 && !isOpen {
				out = append(out, Span{
					Type:      typ,
					Begin:     tok.Start,
					End:       len(text),
					Head:      tok,
					HeadIndex: i,
					Tail:      tokens[len(tokens)-1],
					TailIndex: len(tokens) - 1,
					Text:      text[tok.Start:],
				})
				idx, isOpen = len(out)-1, true
				open[typ] = idx
			}
			if f&Leaving != 0 && isOpen {
				sp := &out[idx]
				sp.Tail, sp.TailIndex = tok, i
				sp.End = tok.End
				sp.Text = text[sp.Begin:sp.End]
				sp.Closed = true
				delete(open, typ)
			}
		}
	}
	return out
}

// FindSpansAt returns the spans of pos.Line covering pos.Ch, ends included.
func (x *Extractor) FindSpansAt(pos editor.Pos) []Span {
	var out []Span
	for _, sp := range x.Extract(pos.Line, false) {
		if sp.Begin > pos.Ch {
			break
		}
		if pos.Ch >= sp.Begin && sp.End >= pos.Ch {
			out = append(out, sp)
		}
	}
	return out
}

// FindSpanWithTypeAt returns the first span of typ covering pos.
func (x *Extractor) FindSpanWithTypeAt(pos editor.Pos, typ Type) (Span, bool) {
	for _, sp := range x.Extract(pos.Line, false) {
		if sp.Begin > pos.Ch {
			break
		}
		if pos.Ch >= sp.Begin && sp.End >= pos.Ch && sp.Type == typ {
			return sp, true
		}
	}
	return Span{}, false
}
