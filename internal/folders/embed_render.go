package folders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/zjrosen/mdfold/internal/cachemanager"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/ui/shared/markdown"
	"github.com/zjrosen/mdfold/internal/vault"
)

// Embed target kinds, used in the embed-type-* widget class.
const (
	EmbedPage   = "page"
	EmbedHeader = "header"
	EmbedBlock  = "block"
)

// DefaultEmbedTTL is how long a rendered section stays cached.
const DefaultEmbedTTL = 10 * time.Minute

var (
	// ErrNoVault is returned when an embed is rendered without a vault.
	ErrNoVault = errors.New("no vault open")
	// ErrSectionNotFound is returned for a heading or block id missing
	// from the target note.
	ErrSectionNotFound = errors.New("section not found")

	frontmatterRE = regexp.MustCompile(`(?s)\A---\r?\n.*?\r?\n---\r?\n?`)
)

// EmbedTarget is a parsed ![[file#fragment]] target.
type EmbedTarget struct {
	File     string
	Fragment string
}

// ParseEmbedTarget splits "file#heading", "file#^block" or "file" and
// drops any "|alias" suffix.
func ParseEmbedTarget(raw string) EmbedTarget {
	raw, _, _ = strings.Cut(raw, "|")
	file, frag, _ := strings.Cut(strings.TrimSpace(raw), "#")
	return EmbedTarget{File: strings.TrimSpace(file), Fragment: strings.TrimSpace(frag)}
}

// Kind reports whether the target is a whole page, a heading section or a
// block reference.
func (t EmbedTarget) Kind() string {
	switch {
	case strings.HasPrefix(t.Fragment, "^"):
		return EmbedBlock
	case t.Fragment != "":
		return EmbedHeader
	}
	return EmbedPage
}

type embedRequest struct {
	rel    string
	data   []byte
	target EmbedTarget
}

// EmbedOption configures an EmbedRenderer.
type EmbedOption func(*EmbedRenderer)

// WithEmbedStyle sets the markdown style and wrap width of rendered
// sections.
func WithEmbedStyle(style string, width int) EmbedOption {
	return func(r *EmbedRenderer) {
		r.style, r.width = style, width
	}
}

// WithEmbedTTL overrides DefaultEmbedTTL.
func WithEmbedTTL(ttl time.Duration) EmbedOption {
	return func(r *EmbedRenderer) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithEmbedCache replaces the in-memory section cache.
func WithEmbedCache(c cachemanager.CacheManager[string, string]) EmbedOption {
	return func(r *EmbedRenderer) { r.store = c }
}

// EmbedRenderer reads embedded notes from a vault, cuts out the referenced
// section and renders it for display. Results are cached per file and
// fragment until the file is invalidated.
type EmbedRenderer struct {
	vault *vault.Vault
	style string
	width int
	ttl   time.Duration
	store cachemanager.CacheManager[string, string]
	cache *cachemanager.ReadThroughCache[string, string, embedRequest]

	once sync.Once
	md   *markdown.Renderer
	err  error
}

// NewEmbedRenderer returns a renderer over v, which may be nil.
func NewEmbedRenderer(v *vault.Vault, opts ...EmbedOption) *EmbedRenderer {
	r := &EmbedRenderer{vault: v, style: markdown.StylePlain, width: 80, ttl: DefaultEmbedTTL}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = cachemanager.NewInMemoryCacheManager[string, string]("embed", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval)
	}
	r.cache = cachemanager.NewReadThroughCache(r.store, r.render, false)
	return r
}

// Render returns the rendered text of raw, an embed target written in the
// note at source. An empty file part refers to source itself.
func (r *EmbedRenderer) Render(ctx context.Context, raw, source string) (string, error) {
	if r.vault == nil {
		return "", ErrNoVault
	}
	t := ParseEmbedTarget(raw)
	file := t.File
	if file == "" {
		file = source
	}
	rel, data, err := r.vault.ReadLink(file)
	if err != nil {
		return "", err
	}
	key := cachemanager.Key[string](rel, t.Fragment)
	return r.cache.GetWithRefresh(ctx, key, embedRequest{rel: rel, data: data, target: t}, r.ttl)
}

// Invalidate drops cached sections of the vault-relative file rel.
func (r *EmbedRenderer) Invalidate(ctx context.Context, rel string) {
	if n := r.cache.InvalidateFile(ctx, rel); n > 0 {
		log.Debug(log.CatRender, "embed cache invalidated", "file", rel, "entries", n)
	}
}

func (r *EmbedRenderer) render(_ context.Context, req embedRequest) (string, error) {
	section, err := ExtractSection(req.data, req.target)
	if err != nil {
		return "", fmt.Errorf("%s#%s: %w", req.rel, req.target.Fragment, err)
	}
	r.once.Do(func() { r.md, r.err = markdown.New(r.width, r.style) })
	if r.err != nil {
		return "", r.err
	}
	out, err := r.md.RenderText(section)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}

// ExtractSection returns the markdown t refers to inside a note: the whole
// note without frontmatter, a heading with everything up to the next
// heading of the same or a higher level, or the block carrying ^id.
func ExtractSection(src []byte, t EmbedTarget) (string, error) {
	src = frontmatterRE.ReplaceAll(src, nil)
	switch t.Kind() {
	case EmbedHeader:
		return headingSection(src, t.Fragment)
	case EmbedBlock:
		return blockSection(src, strings.TrimPrefix(t.Fragment, "^"))
	}
	return string(src), nil
}

func parseNote(src []byte) ast.Node {
	return goldmark.New().Parser().Parse(text.NewReader(src))
}

func headingSection(src []byte, name string) (string, error) {
	doc := parseNote(src)
	start, level := -1, 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		if start >= 0 {
			if h.Level <= level {
				return string(src[start:lineStart(src, seg.Start)]), nil
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(string(seg.Value(src))), name) {
			start, level = lineStart(src, seg.Start), h.Level
		}
	}
	if start < 0 {
		return "", ErrSectionNotFound
	}
	return string(src[start:]), nil
}

func blockSection(src []byte, id string) (string, error) {
	marker := []byte(" ^" + id)
	doc := parseNote(src)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		from, to, ok := nodeSpan(n)
		if !ok {
			continue
		}
		block := src[lineStart(src, from):to]
		for _, line := range bytes.Split(block, []byte("\n")) {
			if bytes.HasSuffix(bytes.TrimRight(line, " \t\r"), marker) {
				return strings.TrimRight(strings.Replace(string(block), string(marker), "", 1), "\n"), nil
			}
		}
	}
	return "", ErrSectionNotFound
}

// nodeSpan returns the byte range covered by n's descendants' lines.
func nodeSpan(n ast.Node) (from, to int, ok bool) {
	from = -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := c.Lines()
		for i := range lines.Len() {
			seg := lines.At(i)
			if from < 0 || seg.Start < from {
				from = seg.Start
			}
			to = max(to, seg.Stop)
		}
		return ast.WalkContinue, nil
	})
	return from, to, from >= 0
}

func lineStart(src []byte, off int) int {
	return bytes.LastIndexByte(src[:off], '\n') + 1
}
