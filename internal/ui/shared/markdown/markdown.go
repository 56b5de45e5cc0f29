// Package markdown renders markdown fragments for widgets: embedded note
// sections and admonition bodies.
package markdown

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
)

// noMarginStyle is a JSON style that removes document margins.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// Styles accepted by New besides a path to a JSON style file.
const (
	StyleDark  = "dark"
	StyleLight = "light"
	// StylePlain produces uncolored output, used for widgets in
	// non-terminal hosts and in tests.
	StylePlain = "notty"
)

// Renderer wraps glamour with widget-friendly settings.
type Renderer struct {
	renderer *glamour.TermRenderer
	width    int
	style    string
}

// New creates a markdown renderer with the given width and style.
// An empty style means dark. A fixed style is used instead of
// WithAutoStyle, which queries the terminal and leaks the OSC replies
// into the preview's input.
func New(width int, style string) (*Renderer, error) {
	if style == "" {
		style = StyleDark
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, err
	}
	return &Renderer{renderer: r, width: width, style: style}, nil
}

// Width returns the configured word wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Style returns the style the renderer was built with.
func (r *Renderer) Style() string {
	return r.style
}

// Render transforms markdown to styled terminal output.
func (r *Renderer) Render(markdown string) (string, error) {
	return r.renderer.Render(markdown)
}

// RenderText renders markdown and strips the escape sequences, leaving the
// laid-out text.
func (r *Renderer) RenderText(markdown string) (string, error) {
	out, err := r.renderer.Render(markdown)
	if err != nil {
		return "", err
	}
	return ansi.Strip(out), nil
}
