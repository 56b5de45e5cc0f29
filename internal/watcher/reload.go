package watcher

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/mdfold/internal/editor"
)

// ReloadOrigin is the change origin of edits made by Reload.
const ReloadOrigin = "+reload"

// Reload brings ed's document to text with one ReplaceRange per changed
// block of lines, so markers, hidden tokens and selections outside the
// changed lines survive. It returns the number of edits made.
func Reload(ed *editor.Editor, text string) int {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	old := ed.Value()
	if old == text {
		return 0
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, text)
	// DiffCleanupMerge orders every delete before its paired insert.
	diffs := dmp.DiffCharsToLines(dmp.DiffCleanupMerge(dmp.DiffMain(a, b, false)), lines)

	edits := 0
	line := 0
	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			line += strings.Count(d.Text, "\n")
			continue
		case diffmatchpatch.DiffInsert:
			ed.ReplaceRange(d.Text, editor.P(line, 0), editor.P(line, 0), ReloadOrigin)
			line += strings.Count(d.Text, "\n")
		case diffmatchpatch.DiffDelete:
			deleted := strings.Count(d.Text, "\n")
			if !strings.HasSuffix(d.Text, "\n") {
				deleted++
			}
			insert := ""
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				insert = diffs[i+1].Text
				i++
			}
			ed.ReplaceRange(insert, editor.P(line, 0), ed.ClipPos(editor.P(line+deleted, 0)), ReloadOrigin)
			line += strings.Count(insert, "\n")
		}
		edits++
	}
	return edits
}
