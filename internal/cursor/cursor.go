// Package cursor walks the token stream of a document: it positions on the
// token under a character, searches forward or backward for tokens matching
// a predicate (optionally across lines) and expands a position to the run
// of neighbouring tokens sharing a style.
package cursor

import (
	"regexp"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/mdtoken"
)

// Source provides tokens per line. *editor.Editor satisfies it.
type Source interface {
	LineTokens(n int) ([]mdtoken.Token, bool)
	LineCount() int
}

// Predicate decides whether tokens[i] matches.
type Predicate func(tok mdtoken.Token, tokens []mdtoken.Token, i int) bool

// Class matches tokens carrying class.
func Class(class string) Predicate {
	return func(tok mdtoken.Token, _ []mdtoken.Token, _ int) bool {
		return tok.HasClass(class)
	}
}

// AnyClass matches tokens carrying at least one of classes.
func AnyClass(classes ...string) Predicate {
	return func(tok mdtoken.Token, _ []mdtoken.Token, _ int) bool {
		for _, c := range classes {
			if tok.HasClass(c) {
				return true
			}
		}
		return false
	}
}

// Match matches tokens whose type matches re.
func Match(re *regexp.Regexp) Predicate {
	return func(tok mdtoken.Token, _ []mdtoken.Token, _ int) bool {
		return re.MatchString(tok.Type)
	}
}

// Found is a search hit.
type Found struct {
	Line  int
	Token mdtoken.Token
	Index int
}

// FindOption tweaks FindNext and FindPrev.
type FindOption func(*findOpts)

type findOpts struct {
	spanLines bool
	startAt   int
	hasStart  bool
	since     *editor.Pos
}

// SpanLines lets a search continue onto following (or preceding) lines.
func SpanLines() FindOption {
	return func(o *findOpts) { o.spanLines = true }
}

// StartAt begins the search at token index i instead of next to the
// current token.
func StartAt(i int) FindOption {
	return func(o *findOpts) {
		o.startAt = i
		o.hasStart = true
	}
}

// Since skips tokens starting before pos.
func Since(pos editor.Pos) FindOption {
	return func(o *findOpts) { o.since = &pos }
}

// Cursor is positioned on one token of one line.
type Cursor struct {
	src    Source
	line   int
	tokens []mdtoken.Token
	index  int
	valid  bool
}

// New returns a cursor over src. It is not positioned until SetPos.
func New(src Source) *Cursor {
	return &Cursor{src: src, line: -1}
}

// SetPos moves to the first token of line that ends after ch. Moving on
// the same line scans forward from the current token. A line that does
// not exist leaves the cursor invalid; searches then find nothing.
func (c *Cursor) SetPos(line, ch int) {
	i := 0
	if !c.valid || line != c.line {
		c.line = line
		c.tokens, c.valid = c.src.LineTokens(line)
		if !c.valid {
			c.tokens = nil
			c.index = 0
			return
		}
	} else {
		i = c.index
		if i >= len(c.tokens) || c.tokens[i].Start > ch {
			i = 0
		}
	}
	c.index = seekCh(c.tokens, i, ch)
}

// SetCh moves within the current line.
func (c *Cursor) SetCh(ch int) {
	c.SetPos(c.line, ch)
}

// Reload refetches the current line's tokens and repositions at ch.
func (c *Cursor) Reload(line, ch int) {
	c.valid = false
	c.SetPos(line, ch)
}

func seekCh(tokens []mdtoken.Token, i, ch int) int {
	for ; i < len(tokens); i++ {
		if tokens[i].End > ch {
			break
		}
	}
	return i
}

// Valid reports whether the cursor sits on an existing line.
func (c *Cursor) Valid() bool { return c.valid }

// Line returns the current line number.
func (c *Cursor) Line() int { return c.line }

// Index returns the current token index. It equals len(Tokens()) past the
// last token.
func (c *Cursor) Index() int { return c.index }

// SetIndex moves to token i of the current line.
func (c *Cursor) SetIndex(i int) { c.index = i }

// Tokens returns the current line's tokens.
func (c *Cursor) Tokens() []mdtoken.Token { return c.tokens }

// Token returns the token at index i (the current one when i < 0).
func (c *Cursor) Token(i int) (mdtoken.Token, bool) {
	if i < 0 {
		i = c.index
	}
	if i >= len(c.tokens) {
		return mdtoken.Token{}, false
	}
	return c.tokens[i], true
}

// TokenType returns the type of the current token, or "".
func (c *Cursor) TokenType() string {
	tok, _ := c.Token(-1)
	return tok.Type
}

// FindNext returns the first matching token after the current one.
func (c *Cursor) FindNext(pred Predicate, opts ...FindOption) (Found, bool) {
	if !c.valid {
		return Found{}, false
	}
	o := findOpts{startAt: c.index + 1}
	for _, opt := range opts {
		opt(&o)
	}
	i := o.startAt
	tokens := c.tokens
	if o.since != nil {
		switch {
		case o.since.Line > c.line:
			i = len(tokens)
		case o.since.Line == c.line:
			i = skipBefore(tokens, max(i, 0), o.since.Ch)
		}
	}
	for i = max(i, 0); i < len(tokens); i++ {
		if pred(tokens[i], tokens, i) {
			return Found{Line: c.line, Token: tokens[i], Index: i}, true
		}
	}
	if !o.spanLines {
		return Found{}, false
	}

	start := c.line + 1
	if o.since != nil {
		start = max(o.since.Line, start)
	}
	for n := start; n < c.src.LineCount(); n++ {
		tokens, ok := c.src.LineTokens(n)
		if !ok {
			break
		}
		i := 0
		if o.since != nil && n == o.since.Line {
			i = skipBefore(tokens, 0, o.since.Ch)
		}
		for ; i < len(tokens); i++ {
			if pred(tokens[i], tokens, i) {
				return Found{Line: n, Token: tokens[i], Index: i}, true
			}
		}
	}
	return Found{}, false
}

// FindPrev returns the nearest matching token before the current one.
func (c *Cursor) FindPrev(pred Predicate, opts ...FindOption) (Found, bool) {
	if !c.valid {
		return Found{}, false
	}
	o := findOpts{startAt: c.index - 1}
	for _, opt := range opts {
		opt(&o)
	}
	i := o.startAt
	tokens := c.tokens
	if o.since != nil {
		switch {
		case o.since.Line < c.line:
			i = -1
		case o.since.Line == c.line:
			i = skipBefore(tokens, max(i, 0), o.since.Ch)
		}
	}
	for i = min(i, len(tokens)-1); i >= 0; i-- {
		if pred(tokens[i], tokens, i) {
			return Found{Line: c.line, Token: tokens[i], Index: i}, true
		}
	}
	if !o.spanLines {
		return Found{}, false
	}

	start := c.line - 1
	if o.since != nil {
		start = min(o.since.Line, start)
	}
	for n := start; n >= 0; n-- {
		tokens, ok := c.src.LineTokens(n)
		if !ok {
			continue
		}
		i := len(tokens) - 1
		if o.since != nil && n == o.since.Line {
			i = min(skipBefore(tokens, 0, o.since.Ch), len(tokens)-1)
		}
		for ; i >= 0; i-- {
			if pred(tokens[i], tokens, i) {
				return Found{Line: n, Token: tokens[i], Index: i}, true
			}
		}
	}
	return Found{}, false
}

func skipBefore(tokens []mdtoken.Token, i, ch int) int {
	for ; i < len(tokens); i++ {
		if tokens[i].Start >= ch {
			break
		}
	}
	return i
}

// ExpandRange walks left and right from the current token while tokens
// satisfy pred and returns the outermost matching tokens. When spanLines is
// set the walk continues across whole matching lines. If the current token
// does not match, both ends are the current token.
func (c *Cursor) ExpandRange(pred Predicate, spanLines bool) (from, to Found) {
	cur, ok := c.Token(-1)
	from = Found{Line: c.line, Token: cur, Index: c.index}
	to = from
	if !c.valid || !ok {
		return from, to
	}

	tokens, i, line := c.tokens, c.index, c.line
	for {
		stopped := false
		for ; i >= 0; i-- {
			if !pred(tokens[i], tokens, i) {
				stopped = true
				break
			}
			from = Found{Line: line, Token: tokens[i], Index: i}
		}
		if stopped || !spanLines || line <= 0 {
			break
		}
		prev, ok := c.src.LineTokens(line - 1)
		if !ok || len(prev) == 0 {
			break
		}
		line--
		tokens, i = prev, len(prev)-1
	}

	tokens, i, line = c.tokens, c.index, c.line
	for {
		stopped := false
		for ; i < len(tokens); i++ {
			if !pred(tokens[i], tokens, i) {
				stopped = true
				break
			}
			to = Found{Line: line, Token: tokens[i], Index: i}
		}
		if stopped || !spanLines || line >= c.src.LineCount()-1 {
			break
		}
		next, ok := c.src.LineTokens(line + 1)
		if !ok || len(next) == 0 {
			break
		}
		line++
		tokens, i = next, 0
	}
	return from, to
}
