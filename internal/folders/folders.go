// Package folders holds the built-in fold types: images, link urls, math,
// inline html, emoji and note embeds. Fenced code lives in codefold.
package folders

import (
	"regexp"
	"strings"

	"github.com/zjrosen/mdfold/internal/cursor"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/vault"
)

// Fold type names.
const (
	Image = "image"
	Link  = "link"
	Math  = "math"
	HTML  = "html"
	Emoji = "emoji"
	Embed = "embed"
)

// Options configures the built-in folders. Every field is optional.
type Options struct {
	// Vault resolves relative image, html and embed targets.
	Vault *vault.Vault
	// SourcePath is the vault-relative path of the edited note; embeds
	// without a file part point back at it.
	SourcePath string
	// MathRenderer builds the renderer of each math widget.
	MathRenderer MathRendererFunc
	// HTMLChecker vetoes html before it is folded.
	HTMLChecker func(html string) bool
	// Emoji maps extra shortcodes to their glyphs; it is consulted before
	// the GitHub dictionary.
	Emoji map[string]string
	// Embed renders note sections; nil uses a renderer over Vault.
	Embed *EmbedRenderer
}

// Register adds the built-in folders to reg in detection order.
func Register(reg *fold.Registry, opts Options) error {
	if opts.Embed == nil {
		opts.Embed = NewEmbedRenderer(opts.Vault)
	}
	for _, f := range []fold.Folder{
		{Name: Image, Detect: NewImageFolder(opts.Vault).Detect, Suggested: true},
		{Name: Link, Detect: DetectLink, Suggested: true},
		{Name: Math, Detect: NewMathFolder(opts.MathRenderer).Detect, Suggested: true},
		{Name: HTML, Detect: NewHTMLFolder(opts.Vault, opts.HTMLChecker).Detect},
		{Name: Emoji, Detect: NewEmojiFolder(opts.Emoji).Detect, Suggested: true},
		{Name: Embed, Detect: NewEmbedFolder(opts.Embed, opts.SourcePath).Detect, Suggested: true},
	} {
		if err := reg.Register(f, false); err != nil {
			return err
		}
	}
	return nil
}

var (
	imageExtRE = regexp.MustCompile(`\.(jpe?g|png|gif|svg|bmp)`)
	remoteRE   = regexp.MustCompile(`^(app|http|https)://`)
)

// urlDelims matches the tokens around a link target: "(" ")" for normal
// links and images, "![[" "]]" for embeds.
var urlDelims = cursor.AnyClass("formatting-link-string", "formatting-link")

// breakOnClick makes clicking el tear m down and put the cursor chOffset
// bytes into the unfolded text.
func breakOnClick(el *editor.Element, m *fold.Marker, chOffset int) {
	el.OnClick(func() { m.Break(chOffset) })
}

// slice returns line[from:to] clamped, or "" for an inverted range.
func slice(line string, from, to int) string {
	from, to = max(from, 0), min(to, len(line))
	if from >= to {
		return ""
	}
	return line[from:to]
}

func unquote(title string) string {
	if strings.HasPrefix(title, `"`) && len(title) >= 2 {
		title = strings.ReplaceAll(title[1:len(title)-1], `\"`, `"`)
	}
	return title
}
