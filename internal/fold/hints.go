package fold

import "slices"

// hintSet is the ordered set of lines a quick fold should revisit.
type hintSet struct {
	lines []int
}

func (h *hintSet) add(line int) {
	if line < 0 {
		return
	}
	i, found := slices.BinarySearch(h.lines, line)
	if !found {
		h.lines = slices.Insert(h.lines, i, line)
	}
}

func (h *hintSet) remove(line int) {
	if i, found := slices.BinarySearch(h.lines, line); found {
		h.lines = slices.Delete(h.lines, i, i+1)
	}
}

// drain removes every hint within [from, to].
func (h *hintSet) drain(from, to int) {
	h.lines = slices.DeleteFunc(h.lines, func(l int) bool { return l >= from && l <= to })
}

func (h *hintSet) empty() bool {
	return len(h.lines) == 0
}

// bounds returns the smallest and largest hinted line.
func (h *hintSet) bounds() (from, to int) {
	return h.lines[0], h.lines[len(h.lines)-1]
}

func (h *hintSet) snapshot() []int {
	return slices.Clone(h.lines)
}
