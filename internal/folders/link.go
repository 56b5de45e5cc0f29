package folders

import (
	"regexp"
	"strings"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/span"
)

var linkTitleRE = regexp.MustCompile(`^(\S+)\s+("(?:[^"\\]+|\\.)+"|[^"\s].*)`)

// LinkIconClass marks the widget replacing a link's (url "title") part.
const LinkIconClass = "hmd-link-icon"

// DetectLink folds the (url "title") part of [text](url) into a link icon.
// The clear range runs from the link text to the url, so the cursor
// anywhere in the text reveals the url.
func DetectLink(s *fold.Stream, tok mdtoken.Token) *fold.Marker {
	if tok.String != "[" || !tok.State.LinkText || tok.State.LinkTitle || tok.HasClass("image") {
		return nil
	}
	lineNo := s.Line()
	spans := s.Spans()
	text, ok := spans.FindSpanWithTypeAt(editor.P(lineNo, tok.Start), span.LinkText)
	if !ok {
		return nil
	}
	href, ok := spans.FindSpanWithTypeAt(editor.P(lineNo, text.End+1), span.LinkHref)
	if !ok {
		return nil
	}

	hrefFrom := editor.P(lineNo, href.Begin)
	hrefTo := editor.P(lineNo, href.End)
	linkFrom := editor.P(lineNo, text.Begin)
	if s.RequestRangeWithClear(hrefFrom, hrefTo, linkFrom, hrefFrom) != fold.OK {
		return nil
	}

	raw := s.Editor().GetRange(hrefFrom, hrefTo)
	u, title := splitLink(slice(raw, 1, len(raw)-1))

	icon := editor.NewElement("span", LinkIconClass)
	icon.SetAttr("title", u+"\n"+title)
	icon.SetAttr("data-url", u)

	m := s.Fold(hrefFrom, hrefTo, icon)
	breakOnClick(icon, m, 0)
	return m
}

// splitLink separates a link target from its optional title.
func splitLink(content string) (u, title string) {
	content = strings.TrimSpace(content)
	u = content
	if m := linkTitleRE.FindStringSubmatch(content); m != nil {
		u, title = m[1], unquote(m[2])
	}
	return u, title
}
