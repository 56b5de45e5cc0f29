// Package mdtoken tokenizes markdown one line at a time.
//
// Tokens carry a space separated class list in the style of a syntax
// highlighting mode ("formatting formatting-strong strong") plus the parser
// State after the token. Detectors match on classes; span extraction reads
// the State transitions between neighbouring tokens.
package mdtoken

import "strings"

// Token is one lexical unit of a line.
//
// Contract: tokens of a line are ordered, non-overlapping and contiguous,
// the first starts at 0 and the last ends at len(line). Start and End are
// byte offsets.
type Token struct {
	Start  int
	End    int
	Type   string
	String string
	State  State
}

// HasClass reports whether class appears in the token's class list.
func (t Token) HasClass(class string) bool {
	return HasClass(t.Type, class)
}

// IsFormatting reports whether the token is markup syntax rather than content.
func (t Token) IsFormatting() bool {
	return strings.Contains(t.Type, "formatting-")
}

// HasClass reports whether class appears in the space separated list typ.
func HasClass(typ, class string) bool {
	for len(typ) > 0 {
		i := strings.IndexByte(typ, ' ')
		if i < 0 {
			return typ == class
		}
		if typ[:i] == class {
			return true
		}
		typ = typ[i+1:]
	}
	return false
}
