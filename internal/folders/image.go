package folders

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/zjrosen/mdfold/internal/cursor"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/vault"
)

var (
	imageTitleRE = regexp.MustCompile(`^([^"]+)("(?:[^"\\]+|\\.)+"|[^"\s].*)?`)
	urlDimsRE    = regexp.MustCompile(`^([^|]+)\|(.*)$`)
	altDimsRE    = regexp.MustCompile(`^(?:([^|]*)\|)?([0-9x]+)$`)
	dimsRE       = regexp.MustCompile(`^([0-9]+)x?([0-9]+)?$`)
)

// Image widget classes.
const (
	ImageClass        = "hmd-image"
	ImageLoadingClass = "hmd-image-loading"
	ImageErrorClass   = "hmd-image-error"
)

// ImageFolder folds ![alt](url "title") and ![[file.png|WxH]] into an img
// element. The host loads it after the ImageReadyToLoad signal and reports
// back through ImageLoaded.
type ImageFolder struct {
	vault *vault.Vault
}

// NewImageFolder returns an image folder resolving relative urls in v
// (which may be nil).
func NewImageFolder(v *vault.Vault) *ImageFolder {
	return &ImageFolder{vault: v}
}

// Detect implements fold.Detector.
func (f *ImageFolder) Detect(s *fold.Stream, tok mdtoken.Token) *fold.Marker {
	if !(tok.HasClass("image-marker") || tok.HasClass("formatting-embed")) || (tok.String != "!" && tok.String != "![[") {
		return nil
	}
	lineNo := s.Line()
	text := s.Editor().Line(lineNo)

	begin, ok := s.FindNext(urlDelims, cursor.StartAt(0), cursor.Since(editor.P(lineNo, tok.Start)))
	if !ok {
		return nil
	}
	end, ok := s.FindNext(urlDelims, cursor.StartAt(begin.Index+1))
	if !ok {
		return nil
	}
	rawURL := slice(text, begin.Token.End, end.Token.Start)
	if !imageExtRE.MatchString(rawURL) {
		return nil
	}

	from := editor.P(lineNo, tok.Start)
	to := editor.P(lineNo, end.Token.End)
	if s.RequestRangeWithClear(from, to, from, from) != fold.OK {
		return nil
	}

	u, title := splitImageLink(rawURL)
	var dims string
	if m := urlDimsRE.FindStringSubmatch(u); m != nil {
		u, dims = m[1], m[2]
	}
	alt := slice(text, from.Ch+2, begin.Token.Start-1)
	if m := altDimsRE.FindStringSubmatch(alt); m != nil {
		dims = m[2]
	}

	img := editor.NewElement("img", ImageClass+" "+ImageLoadingClass)
	img.SetAttr("alt", alt)
	img.SetAttr("title", title)

	src, path := f.resolve(u)
	if src == "" {
		img.SetAttr("alt", "⚠️")
	}
	img.SetAttr("data-src", src)
	img.SetAttr("src", src)
	if path != "" {
		img.SetAttr("data-path", path)
	}
	if style := dimensionStyle(dims); style != "" {
		img.SetAttr("style", style)
	}

	m := s.Fold(from, to, img, fold.ClearOnEnter())
	img.OnClick(func() {
		s.Signal(fold.Event{FoldType: Image, Signal: fold.SignalImageClicked, Marker: m, From: from, To: to})
	})
	breakOnClick(img, m, 0)

	s.Signal(fold.Event{
		FoldType: Image,
		Signal:   fold.SignalImageReadyToLoad,
		Marker:   m,
		From:     from,
		To:       to,
		Attrs:    map[string]string{"src": src, "path": path, "alt": img.Attr("alt"), "title": title},
	})
	return m
}

// resolve maps an image url to something loadable: remote urls pass
// through, everything else is looked up in the vault.
func (f *ImageFolder) resolve(u string) (src, path string) {
	if remoteRE.MatchString(u) {
		return u, ""
	}
	if f.vault == nil {
		return "", ""
	}
	name := u
	if dec, err := url.PathUnescape(u); err == nil {
		name = dec
	}
	rel, ok := f.vault.Resolve(name)
	if !ok {
		log.Debug(log.CatRender, "image not found in vault", "url", u)
		return "", ""
	}
	return f.vault.ResourcePath(rel), rel
}

// ImageLoaded records the host's load outcome on an image marker's widget
// and asks for a remeasure.
func ImageLoaded(m *fold.Marker, err error) {
	img := m.Widget()
	if img == nil || m.Torn() {
		return
	}
	img.RemoveClass(ImageLoadingClass)
	if err != nil {
		img.AddClass(ImageErrorClass)
		log.Warn(log.CatRender, "image failed to load", "src", img.Attr("src"), "error", err.Error())
	}
	m.Changed()
}

// splitImageLink separates `url "title"` (or `url title`).
func splitImageLink(content string) (u, title string) {
	content = strings.TrimSpace(content)
	u = content
	if m := imageTitleRE.FindStringSubmatch(content); m != nil {
		u, title = m[1], unquote(m[2])
	}
	return strings.TrimSpace(u), title
}

// dimensionStyle turns "300" or "300x200" into a css size declaration.
func dimensionStyle(dims string) string {
	m := dimsRE.FindStringSubmatch(dims)
	if m == nil {
		return ""
	}
	var parts []string
	if m[1] != "" {
		parts = append(parts, fmt.Sprintf("width: %spx;", m[1]))
	}
	if m[2] != "" {
		parts = append(parts, fmt.Sprintf("height: %spx;", m[2]))
	}
	return strings.Join(parts, " ")
}
