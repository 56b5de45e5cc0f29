package editor

import "fmt"

// Pos is a position in the document. Ch is a byte offset into the line.
type Pos struct {
	Line int
	Ch   int
}

// P is shorthand for Pos{Line: line, Ch: ch}.
func P(line, ch int) Pos {
	return Pos{Line: line, Ch: ch}
}

// Cmp returns -1, 0 or 1 as p is before, equal to or after o.
func (p Pos) Cmp(o Pos) int {
	switch {
	case p.Line < o.Line:
		return -1
	case p.Line > o.Line:
		return 1
	case p.Ch < o.Ch:
		return -1
	case p.Ch > o.Ch:
		return 1
	}
	return 0
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Ch)
}

// MinPos returns the earlier of a and b.
func MinPos(a, b Pos) Pos {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// MaxPos returns the later of a and b.
func MaxPos(a, b Pos) Pos {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Range is a selection. Anchor is where it started, Head is where the
// cursor is; either may come first.
type Range struct {
	Anchor Pos
	Head   Pos
}

// Cursor returns an empty range at p.
func Cursor(p Pos) Range {
	return Range{Anchor: p, Head: p}
}

// From returns the earlier endpoint.
func (r Range) From() Pos { return MinPos(r.Anchor, r.Head) }

// To returns the later endpoint.
func (r Range) To() Pos { return MaxPos(r.Anchor, r.Head) }

// Empty reports whether the range is a bare cursor.
func (r Range) Empty() bool { return r.Anchor == r.Head }

// OrderedRange returns a and b sorted.
func OrderedRange(a, b Pos) (Pos, Pos) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// RangesIntersect reports whether [from1, to1] and [from2, to2] share at
// least one position. Both ends are inclusive, so ranges that touch
// intersect.
func RangesIntersect(from1, to1, from2, to2 Pos) bool {
	return !(to1.Cmp(from2) < 0 || from1.Cmp(to2) > 0)
}
