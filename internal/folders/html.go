package folders

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/zjrosen/mdfold/internal/cursor"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/vault"
)

// HTML widget classes.
const (
	HTMLStub         = "<HTML>"
	HTMLWrapperClass = "rendered-html-block-wrapper"
)

var (
	htmlBreakRE    = regexp.MustCompile(`(?i)^<(?:br)`)
	htmlUnsafeRE   = regexp.MustCompile(`(?i)<(?:script|style|link|meta|object|embed)`)
	htmlHandlerRE  = regexp.MustCompile(`(?i)\son\w+\s*=`)
	htmlJSURLRE    = regexp.MustCompile(`(?i)(src|background|href)\s*=\s*["']?javascript:`)
	htmlBoundaryRE = regexp.MustCompile(`hmd-html-(begin|end)`)
	htmlTagRE      = regexp.MustCompile(`^<([\w\-]+)((?:\s+[^>]*?)?)\s*/?>`)
	htmlPropRE     = regexp.MustCompile(`([\w:\-]+)(?:\s*=\s*("[^"]*"|'[^']*'|\S+))?\s*`)
	isolatedTagRE  = regexp.MustCompile(`^(?:div|pre|details|form|mark|table|iframe|ul|ol|input|textarea|p|summary|a)$`)
)

// DefaultHTMLChecker refuses line breaks (not worth a widget) and anything
// that could run script.
func DefaultHTMLChecker(html string) bool {
	switch {
	case htmlBreakRE.MatchString(html),
		htmlUnsafeRE.MatchString(html),
		htmlHandlerRE.MatchString(html),
		htmlJSURLRE.MatchString(html):
		return false
	}
	return true
}

// HTMLFolder folds inline and block html into a sanitized element tree.
type HTMLFolder struct {
	vault   *vault.Vault
	check   func(string) bool
	policy  *bluemonday.Policy
	textPol *bluemonday.Policy
}

// NewHTMLFolder returns an html folder. A nil check uses
// DefaultHTMLChecker.
func NewHTMLFolder(v *vault.Vault, check func(string) bool) *HTMLFolder {
	if check == nil {
		check = DefaultHTMLChecker
	}
	p := bluemonday.UGCPolicy()
	p.AllowElements("iframe")
	p.AllowAttrs("src", "width", "height", "frameborder", "allowfullscreen", "title").OnElements("iframe")
	p.AllowAttrs("style", "class").Globally()
	return &HTMLFolder{vault: v, check: check, policy: p, textPol: bluemonday.StrictPolicy()}
}

// Detect implements fold.Detector.
func (f *HTMLFolder) Detect(s *fold.Stream, tok mdtoken.Token) *fold.Marker {
	if !tok.HasClass("hmd-html-begin") {
		return nil
	}
	ed := s.Editor()
	lineNo := s.Line()
	from := editor.P(lineNo, tok.Start)

	var to editor.Pos
	if tok.HasClass("hmd-html-end") {
		to = editor.P(lineNo, tok.End)
	} else {
		end, ok := s.FindNext(cursor.Match(htmlBoundaryRE), cursor.SpanLines())
		if !ok || !end.Token.HasClass("hmd-html-end") {
			return nil
		}
		to = editor.P(end.Line, end.Token.End)
	}

	html := ed.GetRange(from, to)
	if !f.check(html) {
		return nil
	}
	if s.RequestRange(from, to) != fold.OK {
		return nil
	}

	el := f.render(html)
	if el == nil {
		return nil
	}
	inline := from.Ch != 0 || to.Ch < len(ed.Line(to.Line))
	if inline {
		return f.foldInline(s, from, to, el)
	}
	return f.foldBlock(s, from, to, el)
}

func (f *HTMLFolder) foldInline(s *fold.Stream, from, to editor.Pos, el *editor.Element) *fold.Marker {
	stub := editor.NewElement("span", "hmd-fold-html-stub omittable")
	stub.Text = HTMLStub
	wrap := editor.NewElement("span", "hmd-fold-html rendered-widget")
	wrap.Append(stub, el)

	m := s.Fold(from, to, wrap)
	breakOnClick(stub, m, 1)
	if !isolatedTagRE.MatchString(el.Tag) {
		breakOnClick(el, m, 1)
	}
	m.OnUnload(el.Observe(func(*editor.Element) { m.Changed() }))
	return m
}

func (f *HTMLFolder) foldBlock(s *fold.Stream, from, to editor.Pos, el *editor.Element) *fold.Marker {
	ed := s.Editor()
	stub := editor.NewElement("span", "hmd-fold-html-stub")
	stub.Text = HTMLStub

	m := s.Fold(from, to, stub)
	breakOnClick(stub, m, 1)

	wrap := editor.NewElement("div", "rendered-html rendered-html-block rendered-widget")
	wrap.Append(el)
	if !isolatedTagRE.MatchString(el.Tag) {
		breakOnClick(el, m, 1)
	}
	m.SetLineWidget(ed.AddLineWidget(to.Line, wrap, false))

	line := ed.LineHandle(from.Line)
	ed.AddLineClass(line, editor.WhereWrap, HTMLWrapperClass)
	m.OnUnload(func() { ed.RemoveLineClass(line, editor.WhereWrap, HTMLWrapperClass) })
	m.OnUnload(wrap.Observe(func(*editor.Element) { m.Changed() }))
	return m
}

// render sanitizes html and turns its outer element into an Element. The
// inner markup is flattened to text.
func (f *HTMLFolder) render(html string) *editor.Element {
	clean := strings.TrimSpace(f.policy.Sanitize(html))
	m := htmlTagRE.FindStringSubmatch(clean)
	if m == nil {
		log.Debug(log.CatRender, "html dropped by sanitizer", "html", html)
		return nil
	}
	tag := strings.ToLower(m[1])
	el := editor.NewElement(tag, "")
	for _, p := range htmlPropRE.FindAllStringSubmatch(m[2], -1) {
		key := strings.ToLower(p[1])
		val := strings.Trim(p[2], `"'`)
		if key == "class" {
			el.AddClass(val)
			continue
		}
		el.SetAttr(key, val)
	}

	if tag == "a" {
		el.SetAttr("target", "_blank")
	}
	for _, attr := range urlAttrs(tag) {
		if v, ok := el.Attrs[attr]; ok && f.vault != nil && !remoteRE.MatchString(v) {
			if rel, ok := f.vault.Resolve(v); ok {
				el.SetAttr(attr, f.vault.ResourcePath(rel))
				el.AddClass("internal-link")
			}
		}
	}

	inner := strings.TrimPrefix(clean, m[0])
	inner = strings.TrimSuffix(inner, "</"+m[1]+">")
	if text := strings.TrimSpace(f.textPol.Sanitize(inner)); text != "" {
		el.Text = text
	}
	return el
}

func urlAttrs(tag string) []string {
	switch tag {
	case "a":
		return []string{"href"}
	case "img", "iframe":
		return []string{"src"}
	}
	return nil
}
