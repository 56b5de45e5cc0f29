package editor

// SelectedTextClass is the class of selection highlight markers.
const SelectedTextClass = "CodeMirror-selectedtext"

// markChunk bounds how many lines one selection marker covers.
const markChunk = 8

// MarkSelection keeps KindSelection markers over every non-empty
// selection, refreshed on selection and text changes. The returned func
// stops it and clears the markers.
func MarkSelection(e *Editor) (stop func()) {
	var marks []*TextMarker
	reset := func() {
		for _, m := range marks {
			m.Clear()
		}
		marks = marks[:0]
		for _, r := range e.Selections() {
			if r.Empty() {
				continue
			}
			from, to := r.From(), r.To()
			for from.Cmp(to) < 0 {
				end := Pos{Line: from.Line + markChunk, Ch: 0}
				if end.Cmp(to) > 0 {
					end = to
				}
				marks = append(marks, e.MarkText(from, end, MarkerOptions{
					Kind:      KindSelection,
					ClassName: SelectedTextClass,
				}))
				from = end
			}
		}
	}
	reset()
	unsubSel := e.OnSelectionChanged(func([]Range) { reset() })
	unsubChange := e.OnTextChanged(func(Change) { reset() })
	return func() {
		unsubSel()
		unsubChange()
		for _, m := range marks {
			m.Clear()
		}
		marks = nil
	}
}
