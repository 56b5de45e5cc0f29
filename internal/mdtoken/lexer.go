package mdtoken

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	fenceRE  = regexp.MustCompile("^( {0,3})(`{3,}|~{3,})(.*)$")
	headerRE = regexp.MustCompile(`^(#{1,6})(\s+|$)`)
	quoteRE  = regexp.MustCompile(`^ {0,3}>\s?`)
	listRE   = regexp.MustCompile(`^(\s*)([-*+]|\d{1,9}[.)])(\s+|$)`)
	taskRE   = regexp.MustCompile(`^\[([ xX])\](\s|$)`)
	hrRE     = regexp.MustCompile(`^ {0,3}([-*_])( *[-*_]){2,} *$`)
	openTag  = regexp.MustCompile(`^<([A-Za-z][A-Za-z0-9-]*)(\s[^<>]*?)?(/?)>`)
	closeTag = regexp.MustCompile(`^</([A-Za-z][A-Za-z0-9-]*)\s*>`)
	emojiRE  = regexp.MustCompile(`^:([\w+-]+):`)
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Lexer tokenizes markdown lines. It holds no per-document state; callers
// carry BlockState from one line to the next.
type Lexer struct{}

// NewLexer creates a Lexer.
func NewLexer() *Lexer {
	return &Lexer{}
}

// TokenizeLine splits text into tokens given the block state left by the
// previous line, and returns the block state for the next line. An empty
// line yields no tokens.
func (l *Lexer) TokenizeLine(text string, prev BlockState) ([]Token, BlockState) {
	s := &scanner{text: text, st: State{Block: prev}}
	s.run()
	return s.tokens, s.st.Block
}

type scanner struct {
	text     string
	pos      int
	runStart int
	st       State
	tokens   []Token

	// pending link structure found by lookahead at the opening bracket
	linkClose int // index of "]" ending link text, -1 if none
	hrefOpen  int // index of "(" or "[" starting the href part
	hrefClose int // index of ")" or "]" ending the href part
}

func (s *scanner) run() {
	s.linkClose, s.hrefOpen, s.hrefClose = -1, -1, -1
	if s.text == "" {
		// a blank line terminates an html block
		if s.st.Block.HTMLTag != "" {
			s.st.Block.HTMLTag, s.st.Block.HTMLDepth = "", 0
		}
		return
	}

	switch {
	case s.st.Block.Fence != "":
		s.codeBlockLine()
		return
	case s.st.Block.MathBlock:
		if !s.mathBlockLine() {
			return
		}
	default:
		if s.fenceOpen() {
			return
		}
		if hrRE.MatchString(s.text) {
			s.emit(len(s.text), "hr")
			return
		}
		s.prefixes()
	}

	s.inline()
	s.flush()
}

// ============================================================================
// Block level
// ============================================================================

func (s *scanner) codeBlockLine() {
	fence := s.st.Block.Fence
	trimmed := strings.TrimLeft(s.text, " ")
	if len(s.text)-len(trimmed) <= 3 && strings.HasPrefix(trimmed, fence) &&
		strings.Trim(trimmed, fence[:1]+" \t") == "" {
		s.st.Block.Fence, s.st.Block.FenceLang = "", ""
		s.emit(len(s.text), "formatting formatting-code-block HyperMD-codeblock HyperMD-codeblock-end")
		return
	}
	typ := "HyperMD-codeblock"
	if s.st.Block.FenceLang != "" {
		typ += " lang-" + s.st.Block.FenceLang
	}
	s.emit(len(s.text), typ)
}

func (s *scanner) fenceOpen() bool {
	m := fenceRE.FindStringSubmatch(s.text)
	if m == nil {
		return false
	}
	info := strings.TrimSpace(m[3])
	if m[2][0] == '`' && strings.Contains(info, "`") {
		return false
	}
	s.st.Block.Fence = m[2]
	s.st.Block.FenceLang = ""
	if f := strings.Fields(info); len(f) > 0 {
		s.st.Block.FenceLang = strings.ToLower(strings.TrimLeft(f[0], "{."))
	}
	s.emit(len(s.text), "formatting formatting-code-block HyperMD-codeblock HyperMD-codeblock-begin")
	return true
}

// mathBlockLine handles a line inside a multi-line $$ block. It returns true
// when the block closed and the remainder should be scanned inline.
func (s *scanner) mathBlockLine() bool {
	s.st.Math = 2
	k := strings.Index(s.text, "$$")
	if k < 0 {
		s.pos = len(s.text)
		s.flush()
		return false
	}
	s.pos = k
	s.flush()
	end := s.typ("formatting-math", "formatting-math-end")
	s.st.Math = 0
	s.st.Block.MathBlock = false
	s.emitAt(k+2, end)
	return true
}

func (s *scanner) prefixes() {
	for {
		rest := s.text[s.pos:]
		if m := quoteRE.FindString(rest); m != "" && s.st.Header == 0 {
			s.st.Quote++
			s.emitAt(s.pos+len(m), "formatting formatting-quote formatting-quote-"+strconv.Itoa(s.st.Quote)+" quote quote-"+strconv.Itoa(s.st.Quote))
			continue
		}
		break
	}
	rest := s.text[s.pos:]
	if m := headerRE.FindStringSubmatch(rest); m != nil {
		s.st.Header = len(m[1])
		n := strconv.Itoa(s.st.Header)
		s.emitAt(s.pos+len(m[0]), "formatting formatting-header formatting-header-"+n+" "+s.classes())
		return
	}
	if m := listRE.FindStringSubmatch(rest); m != nil {
		if m[1] != "" {
			s.pos += len(m[1])
			s.flush()
		}
		kind := "formatting-list-ul"
		if m[2][0] >= '0' && m[2][0] <= '9' {
			kind = "formatting-list-ol"
		}
		s.emitAt(s.pos+len(m[2])+len(m[3]), "formatting formatting-list "+kind+" list-1")
		if t := taskRE.FindStringSubmatch(s.text[s.pos:]); t != nil {
			typ := "formatting formatting-task"
			if t[1] != " " {
				typ += " property"
			}
			s.emitAt(s.pos+3, typ)
		}
	}
}

// ============================================================================
// Inline
// ============================================================================

func (s *scanner) inline() {
	for s.pos < len(s.text) {
		if s.pos == s.linkClose {
			s.closeLinkText()
			continue
		}
		if s.pos == s.hrefOpen {
			s.openHref()
			continue
		}
		if s.st.Math > 0 {
			s.mathContent()
			continue
		}

		c := s.text[s.pos]
		handled := false
		switch c {
		case '\\':
			handled = s.escape()
		case '`':
			handled = s.codeSpan()
		case '$':
			handled = s.math()
		case '*', '_':
			handled = s.emphasis(c)
		case '~':
			if s.peek(1) == '~' {
				handled = s.toggle("~~", &s.st.Strikethrough, "formatting-strikethrough")
			} else {
				handled = s.toggle("~", &s.st.Sub, "formatting-sub")
			}
		case '=':
			if s.peek(1) == '=' {
				handled = s.toggle("==", &s.st.Highlight, "formatting-highlight")
			}
		case '+':
			if s.peek(1) == '+' {
				handled = s.toggle("++", &s.st.Ins, "formatting-ins")
			}
		case '^':
			handled = s.toggle("^", &s.st.Sup, "formatting-sup")
		case '!':
			handled = s.bang()
		case '[':
			handled = s.bracket()
		case '#':
			handled = s.hashtag()
		case '<':
			handled = s.htmlTag()
		case ':':
			handled = s.emoji()
		}
		if !handled {
			_, size := utf8.DecodeRuneInString(s.text[s.pos:])
			s.pos += size
		}
	}
	// inline state does not survive the line
	if s.st.Math == 2 && !s.st.Block.MathBlock {
		s.st.Block.MathBlock = true
	}
}

func (s *scanner) escape() bool {
	if s.pos+1 >= len(s.text) || !isASCIIPunct(s.text[s.pos+1]) {
		return false
	}
	s.flush()
	s.emitAt(s.pos+1, s.typ("formatting-escape"))
	s.pos++ // escaped char joins the next plain run
	return true
}

func (s *scanner) codeSpan() bool {
	n := runLen(s.text, s.pos, '`')
	closeAt := -1
	for i := s.pos + n; i < len(s.text); {
		if s.text[i] != '`' {
			i++
			continue
		}
		m := runLen(s.text, i, '`')
		if m == n {
			closeAt = i
			break
		}
		i += m
	}
	if closeAt < 0 {
		s.pos += n
		return true
	}
	s.flush()
	s.st.Code = n
	s.emitAt(s.pos+n, s.typ("formatting-code"))
	s.pos = closeAt
	s.flush()
	closing := s.typ("formatting-code")
	s.st.Code = 0
	s.emitAt(closeAt+n, closing)
	return true
}

func (s *scanner) math() bool {
	if s.peek(1) == '$' {
		s.flush()
		s.st.Math = 2
		s.emitAt(s.pos+2, s.typ("formatting-math", "formatting-math-begin"))
		return true
	}
	next := s.peek(1)
	if next == 0 || next == ' ' || next == '\t' {
		return false
	}
	closeAt := -1
	for i := s.pos + 2; i < len(s.text); i++ {
		if s.text[i] == '\\' {
			i++
			continue
		}
		if s.text[i] == '$' && s.text[i-1] != ' ' && (i+1 >= len(s.text) || !isDigit(s.text[i+1])) {
			closeAt = i
			break
		}
	}
	if closeAt < 0 {
		return false
	}
	s.flush()
	s.st.Math = 1
	s.emitAt(s.pos+1, s.typ("formatting-math", "formatting-math-begin"))
	return true
}

// mathContent consumes expression text up to the closing delimiter.
func (s *scanner) mathContent() {
	delim := "$"
	if s.st.Math == 2 {
		delim = "$$"
	}
	k := strings.Index(s.text[s.pos:], delim)
	for k >= 0 && s.st.Math == 1 && k > 0 && s.text[s.pos+k-1] == '\\' {
		next := strings.Index(s.text[s.pos+k+1:], delim)
		if next < 0 {
			k = -1
			break
		}
		k += next + 1
	}
	if k < 0 {
		s.pos = len(s.text)
		s.flush()
		if s.st.Math == 1 {
			s.st.Math = 0
		}
		return
	}
	s.pos += k
	s.flush()
	closing := s.typ("formatting-math", "formatting-math-end")
	s.st.Math = 0
	s.emitAt(s.pos+len(delim), closing)
}

func (s *scanner) emphasis(c byte) bool {
	n := runLen(s.text, s.pos, c)
	prev, next := s.prevByte(), byteAt(s.text, s.pos+n)
	canClose := prev != 0 && !isSpace(prev)
	canOpen := next != 0 && !isSpace(next)
	if c == '_' {
		canOpen = canOpen && !isAlnum(prev)
		canClose = canClose && !isAlnum(next)
	}

	if canClose {
		switch {
		case n >= 2 && s.st.Strong && !(s.st.Em && s.st.emAfterStrong):
			s.delimiter(2, "formatting-strong", func() { s.st.Strong = false })
			return true
		case s.st.Em:
			s.delimiter(1, "formatting-em", func() { s.st.Em = false; s.st.emAfterStrong = false })
			return true
		}
	}
	if canOpen {
		if n >= 2 && !s.st.Strong && s.hasCloser(string([]byte{c, c}), s.pos+2) {
			s.st.emAfterStrong = false
			s.flush()
			s.st.Strong = true
			s.emitAt(s.pos+2, s.typ("formatting-strong"))
			return true
		}
		if !s.st.Em && s.hasCloser(string(c), s.pos+1) {
			s.flush()
			s.st.Em = true
			s.st.emAfterStrong = s.st.Strong
			s.emitAt(s.pos+1, s.typ("formatting-em"))
			return true
		}
	}
	s.pos += n
	return true
}

// delimiter emits a closing run of n bytes; clear runs after the type is
// computed so the closing token still carries the style class.
func (s *scanner) delimiter(n int, class string, clear func()) {
	s.flush()
	typ := s.typ(class)
	clear()
	s.emitAt(s.pos+n, typ)
}

// toggle handles symmetric delimiters such as ~~ and ==.
func (s *scanner) toggle(delim string, flag *bool, class string) bool {
	n := len(delim)
	if *flag {
		if isSpace(s.prevByte()) {
			return false
		}
		s.delimiter(n, class, func() { *flag = false })
		return true
	}
	next := byteAt(s.text, s.pos+n)
	if next == 0 || isSpace(next) || (n == 1 && next == delim[0]) || !s.hasCloser(delim, s.pos+n) {
		return false
	}
	s.flush()
	*flag = true
	s.emitAt(s.pos+n, s.typ(class))
	return true
}

// hasCloser looks for delim preceded by a non-space byte after from, skipping
// code spans.
func (s *scanner) hasCloser(delim string, from int) bool {
	for i := from; i < len(s.text); i++ {
		switch s.text[i] {
		case '\\':
			i++
		case '`':
			n := runLen(s.text, i, '`')
			j := strings.Index(s.text[i+n:], strings.Repeat("`", n))
			if j >= 0 {
				i += n + j + n - 1
			}
		default:
			if strings.HasPrefix(s.text[i:], delim) && i > from && !isSpace(s.text[i-1]) {
				return true
			}
		}
	}
	return false
}

// ============================================================================
// Links, images and embeds
// ============================================================================

func (s *scanner) bang() bool {
	if strings.HasPrefix(s.text[s.pos:], "![[") {
		return s.wikiLink(3, true)
	}
	if s.peek(1) != '[' || s.linkClose >= 0 {
		return false
	}
	closeText := matchBracket(s.text, s.pos+1)
	if closeText < 0 || closeText+1 >= len(s.text) || s.text[closeText+1] != '(' {
		return false
	}
	closeHref := matchParen(s.text, closeText+1)
	if closeHref < 0 {
		return false
	}
	s.flush()
	s.emitAt(s.pos+1, "formatting formatting-image image image-marker "+s.classes())
	s.st.LinkText = true
	s.st.LinkType = LinkImage
	s.linkClose, s.hrefOpen, s.hrefClose = closeText, closeText+1, closeHref
	s.emitAt(s.pos+1, s.typ("formatting-image"))
	return true
}

func (s *scanner) bracket() bool {
	if s.st.Code > 0 {
		return false
	}
	if s.peek(1) == '[' {
		return s.wikiLink(2, false)
	}
	if s.linkClose >= 0 {
		return false
	}
	closeText := matchBracket(s.text, s.pos)
	if closeText < 0 || closeText == s.pos+1 {
		return false
	}
	linkType := LinkBare
	hrefOpen, hrefClose := -1, -1
	if closeText+1 < len(s.text) {
		switch s.text[closeText+1] {
		case '(':
			if e := matchParen(s.text, closeText+1); e >= 0 {
				linkType, hrefOpen, hrefClose = LinkNormal, closeText+1, e
			}
		case '[':
			if e := matchBracket(s.text, closeText+1); e >= 0 {
				linkType, hrefOpen, hrefClose = LinkBare2, closeText+1, e
			}
		}
	}
	if linkType == LinkBare && strings.HasPrefix(s.text[s.pos:], "[^") {
		return false
	}
	s.flush()
	s.st.LinkText = true
	s.st.LinkType = linkType
	s.linkClose, s.hrefOpen, s.hrefClose = closeText, hrefOpen, hrefClose
	s.emitAt(s.pos+1, s.typ("formatting-link"))
	return true
}

func (s *scanner) closeLinkText() {
	s.flush()
	class := "formatting-link"
	if s.st.LinkType == LinkImage {
		class = "formatting-image"
	}
	typ := s.typ(class)
	s.st.LinkText = false
	if s.hrefOpen < 0 {
		s.st.LinkType = LinkNone
	}
	s.linkClose = -1
	s.emitAt(s.pos+1, typ)
}

func (s *scanner) openHref() {
	s.flush()
	s.st.LinkHref = true
	s.emitAt(s.pos+1, s.typ("formatting-link-string"))
	end := s.hrefClose
	if end > s.pos {
		s.emitAt(end, s.classes())
	}
	closing := s.typ("formatting-link-string")
	s.st.LinkHref = false
	s.st.LinkType = LinkNone
	s.hrefOpen, s.hrefClose = -1, -1
	s.emitAt(end+1, closing)
}

// wikiLink handles [[target]], [[target|alias]] and ![[embed]].
func (s *scanner) wikiLink(openLen int, embed bool) bool {
	inner := s.pos + openLen
	k := strings.Index(s.text[inner:], "]]")
	if k <= 0 {
		return false
	}
	closeAt := inner + k
	s.flush()
	extra := ""
	if embed {
		extra = " formatting-embed hmd-embed"
	}
	s.st.InternalLink = true
	s.st.LinkType = LinkWiki
	s.emitAt(inner, s.typ("formatting-link", "formatting-link-start")+extra)
	target := s.text[inner:closeAt]
	if bar := strings.IndexByte(target, '|'); bar > 0 && !embed {
		s.emitAt(inner+bar, s.classes()+" internal-link-url")
		s.emitAt(inner+bar+1, "formatting "+s.classes()+" internal-link-ref")
		if closeAt > s.pos {
			s.emitAt(closeAt, s.classes())
		}
	} else {
		s.emitAt(closeAt, s.classes()+strings.Replace(extra, " formatting-embed", "", 1))
	}
	closing := s.typ("formatting-link", "formatting-link-end") + strings.Replace(extra, " formatting-embed", "", 1)
	s.st.InternalLink = false
	s.st.LinkType = LinkNone
	s.emitAt(closeAt+2, closing)
	return true
}

// ============================================================================
// Hashtags, html, emoji
// ============================================================================

func (s *scanner) hashtag() bool {
	if s.st.LinkText || s.st.LinkHref || s.st.InternalLink {
		return false
	}
	if p := s.prevByte(); p != 0 && !isSpace(p) {
		return false
	}
	end := s.pos + 1
	hasNonDigit := false
	for end < len(s.text) {
		r, size := utf8.DecodeRuneInString(s.text[end:])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '/') {
			break
		}
		if !unicode.IsDigit(r) {
			hasNonDigit = true
		}
		end += size
	}
	if end == s.pos+1 || !hasNonDigit {
		return false
	}
	s.flush()
	s.st.Hashtag = true
	s.emitAt(s.pos+1, "formatting formatting-hashtag hashtag-begin "+s.classes())
	typ := s.classes() + " hashtag-end"
	s.st.Hashtag = false
	s.emitAt(end, typ)
	return true
}

func (s *scanner) htmlTag() bool {
	rest := s.text[s.pos:]
	b := &s.st.Block
	if m := closeTag.FindStringSubmatch(rest); m != nil {
		name := strings.ToLower(m[1])
		s.flush()
		typ := "tag " + s.classes()
		if b.HTMLTag == name {
			b.HTMLDepth--
			if b.HTMLDepth == 0 {
				b.HTMLTag = ""
				typ = "tag hmd-html-end " + s.classes()
			}
		}
		s.emitAt(s.pos+len(m[0]), strings.TrimSpace(typ))
		return true
	}
	m := openTag.FindStringSubmatch(rest)
	if m == nil {
		return false
	}
	name := strings.ToLower(m[1])
	s.flush()
	typ := "tag"
	switch {
	case b.HTMLTag == name:
		b.HTMLDepth++
	case b.HTMLTag != "":
	case voidElements[name] || m[3] == "/":
		typ = "tag hmd-html-begin hmd-html-end"
	default:
		b.HTMLTag, b.HTMLDepth = name, 1
		typ = "tag hmd-html-begin"
	}
	s.emitAt(s.pos+len(m[0]), strings.TrimSpace(typ+" "+s.classes()))
	return true
}

// emoji splits ":name:" into three tokens sharing the surrounding type, so
// the emoji folder can see the colons on their own.
func (s *scanner) emoji() bool {
	m := emojiRE.FindStringSubmatch(s.text[s.pos:])
	if m == nil {
		return false
	}
	s.flush()
	typ := s.classes()
	s.emitAt(s.pos+1, typ)
	s.emitAt(s.pos+len(m[1]), typ)
	s.emitAt(s.pos+1, typ)
	return true
}

// ============================================================================
// Emission
// ============================================================================

// classes renders the style classes implied by the current state.
func (s *scanner) classes() string {
	var c []string
	if s.st.Header > 0 {
		n := strconv.Itoa(s.st.Header)
		c = append(c, "header", "header-"+n)
	}
	if s.st.Quote > 0 {
		c = append(c, "quote", "quote-"+strconv.Itoa(s.st.Quote))
	}
	if s.st.Em {
		c = append(c, "em")
	}
	if s.st.Strong {
		c = append(c, "strong")
	}
	if s.st.Strikethrough {
		c = append(c, "strikethrough")
	}
	if s.st.Highlight {
		c = append(c, "highlight")
	}
	if s.st.Ins {
		c = append(c, "ins")
	}
	if s.st.Sub {
		c = append(c, "sub")
	}
	if s.st.Sup {
		c = append(c, "sup")
	}
	if s.st.Code > 0 {
		c = append(c, "comment")
	}
	if s.st.Math > 0 {
		c = append(c, "math")
		if s.st.Math == 2 {
			c = append(c, "math-block")
		}
	}
	if s.st.LinkText {
		if s.st.LinkType == LinkImage {
			c = append(c, "image", "image-alt-text")
		}
		c = append(c, "link")
	}
	if s.st.LinkHref {
		c = append(c, "string", "url")
	}
	if s.st.InternalLink {
		c = append(c, "hmd-internal-link")
	}
	if s.st.Hashtag {
		c = append(c, "hashtag", "meta", "tag")
	}
	return strings.Join(c, " ")
}

// typ builds a formatting token type: "formatting <classes...> <state classes>".
func (s *scanner) typ(formatting ...string) string {
	t := "formatting " + strings.Join(formatting, " ")
	if c := s.classes(); c != "" {
		t += " " + c
	}
	return t
}

// flush emits the pending plain run ending at pos.
func (s *scanner) flush() {
	if s.runStart < s.pos {
		s.emitTok(s.runStart, s.pos, s.classes())
	}
	s.runStart = s.pos
}

// emitAt emits a token from pos to end and moves pos past it.
func (s *scanner) emitAt(end int, typ string) {
	if end > len(s.text) {
		end = len(s.text)
	}
	if end <= s.pos {
		return
	}
	s.emitTok(s.pos, end, typ)
	s.pos = end
	s.runStart = end
}

func (s *scanner) emit(end int, typ string) {
	s.emitAt(end, typ)
}

func (s *scanner) emitTok(start, end int, typ string) {
	s.tokens = append(s.tokens, Token{
		Start:  start,
		End:    end,
		Type:   strings.TrimSpace(typ),
		String: s.text[start:end],
		State:  s.st,
	})
}

func (s *scanner) peek(n int) byte {
	return byteAt(s.text, s.pos+n)
}

func (s *scanner) prevByte() byte {
	if s.pos == 0 {
		return 0
	}
	return s.text[s.pos-1]
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func runLen(s string, i int, c byte) int {
	n := 0
	for i+n < len(s) && s[i+n] == c {
		n++
	}
	return n
}

// matchBracket returns the index of the "]" closing the "[" at open.
func matchBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchParen returns the index of the ")" closing the "(" at open.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isASCIIPunct(c byte) bool {
	return strings.IndexByte("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", c) >= 0
}
