package codefold

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/zjrosen/mdfold/internal/editor"
)

// KnownLanguage matches any language chroma has a lexer for.
func KnownLanguage(lang string) bool {
	return lexers.Get(lang) != nil
}

// Highlighter renders code as chroma-styled spans.
type Highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
}

// NewHighlighter returns a highlighter using the named chroma style
// (falling back to chroma's default).
func NewHighlighter(theme string) *Highlighter {
	return &Highlighter{style: styles.Get(theme), formatter: formatters.Get("terminal256")}
}

// Render implements RenderFunc. The element has one span per token,
// classed by token type and carrying its color, plus the terminal
// rendering in data-ansi for hosts that print escape sequences.
func (h *Highlighter) Render(code string, ctx Context) (Result, error) {
	lexer := lexers.Get(ctx.Lang)
	if lexer == nil {
		return Result{}, fmt.Errorf("no lexer for %q", ctx.Lang)
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return Result{}, fmt.Errorf("tokenise %s: %w", ctx.Lang, err)
	}
	tokens := it.Tokens()

	pre := editor.NewElement("pre", "hmd-code-highlight lang-"+ctx.Lang)
	for _, c := range ctx.Attributes.Classes() {
		pre.AddClass(c)
	}
	for _, tok := range tokens {
		sp := editor.NewElement("span", "hl-"+strings.ToLower(tok.Type.String()))
		sp.Text = tok.Value
		if entry := h.style.Get(tok.Type); entry.Colour.IsSet() {
			sp.SetAttr("color", entry.Colour.String())
		}
		pre.Append(sp)
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, chroma.Literator(tokens...)); err == nil {
		pre.SetAttr("data-ansi", buf.String())
	}
	return Result{Element: pre}, nil
}
