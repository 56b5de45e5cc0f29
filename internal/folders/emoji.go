package folders

import (
	"regexp"

	"github.com/yuin/goldmark-emoji/definition"

	"github.com/zjrosen/mdfold/internal/cursor"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/mdtoken"
)

// Shortcodes longer than this are not looked up.
const maxEmojiName = 55

var emojiNameRE = regexp.MustCompile(`^[\w+-]+$`)

var isColon cursor.Predicate = func(t mdtoken.Token, _ []mdtoken.Token, _ int) bool { return t.String == ":" }

// EmojiFolder folds :shortcode: into its glyph.
type EmojiFolder struct {
	custom map[string]string
	github definition.Emojis
}

// NewEmojiFolder returns an emoji folder that checks custom before the
// GitHub shortcode set.
func NewEmojiFolder(custom map[string]string) *EmojiFolder {
	return &EmojiFolder{custom: custom, github: definition.Github()}
}

// Lookup returns the glyph for a shortcode name (without colons).
func (f *EmojiFolder) Lookup(name string) (string, bool) {
	if g, ok := f.custom[name]; ok {
		return g, true
	}
	if e, ok := f.github.Get(name); ok {
		return string(e.Unicode), true
	}
	return "", false
}

// Detect implements fold.Detector.
func (f *EmojiFolder) Detect(s *fold.Stream, tok mdtoken.Token) *fold.Marker {
	if tok.String != ":" {
		return nil
	}
	name, ok := s.Token(s.Index() + 1)
	if !ok || name.Type != tok.Type {
		return nil
	}
	closing, ok := s.FindNext(isColon)
	if !ok || closing.Index != s.Index()+2 || closing.Token.Type != tok.Type {
		return nil
	}
	if len(name.String) > maxEmojiName || !emojiNameRE.MatchString(name.String) {
		return nil
	}
	glyph, ok := f.Lookup(name.String)
	if !ok {
		return nil
	}

	lineNo := s.Line()
	from := editor.P(lineNo, tok.Start)
	to := editor.P(lineNo, closing.Token.End)
	if s.RequestRange(from, to) != fold.OK {
		return nil
	}

	el := editor.NewElement("span", "hmd-emoji")
	el.SetAttr("title", ":"+name.String+":")
	el.Text = glyph
	m := s.Fold(from, to, el)
	breakOnClick(el, m, 1)
	return m
}
