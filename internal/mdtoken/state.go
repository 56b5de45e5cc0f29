package mdtoken

// LinkType distinguishes the link syntaxes sharing the linkText state.
type LinkType uint8

const (
	LinkNone   LinkType = iota
	LinkNormal          // [text](url)
	LinkBare            // [text]
	LinkBare2           // [text][ref]
	LinkWiki            // [[target]]
	LinkImage           // ![alt](url)
)

// BlockState is the part of the parser state that survives a line break.
type BlockState struct {
	Fence     string // opening fence run, empty outside fenced code
	FenceLang string
	MathBlock bool   // inside a $$ block spanning lines
	HTMLTag   string // element opened on an earlier line and not yet closed
	HTMLDepth int
}

// InBlock reports whether the line after this state continues a block.
func (b BlockState) InBlock() bool {
	return b.Fence != "" || b.MathBlock || b.HTMLTag != ""
}

// State is the parser state after a token.
type State struct {
	Block BlockState

	Header int // header level of the current line
	Quote  int // blockquote depth of the current line

	Em            bool
	Strong        bool
	Strikethrough bool
	Highlight     bool
	Ins           bool
	Sub           bool
	Sup           bool
	Code          int // backtick run length of the open code span
	Math          int // 1 inside $...$, 2 inside $$...$$

	LinkText     bool
	LinkHref     bool
	LinkTitle    bool
	LinkType     LinkType
	InternalLink bool
	Hashtag      bool

	// emAfterStrong records nesting so "***x***" closes em before strong.
	emAfterStrong bool
}
