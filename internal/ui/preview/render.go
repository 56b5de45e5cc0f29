package preview

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/rivo/uniseg"

	"github.com/zjrosen/mdfold/internal/activeline"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/ui/styles"
)

// View implements tea.Model.
func (m Model) View() string {
	clear(m.widgets)

	h := m.textHeight()
	gutter := len(strconv.Itoa(m.ed.LineCount()))
	rows := make([]string, 0, h)
	for n := m.top; n < m.ed.LineCount() && len(rows) < h; n++ {
		l := m.ed.LineHandle(n)
		if m.ed.LineHandleVisualStart(n) != l {
			// Folded into the row above; its widgets still show.
			for _, w := range m.ed.LineWidgets(l) {
				rows = append(rows, m.renderLineWidget(w, gutter)...)
			}
			continue
		}
		for _, w := range m.ed.LineWidgets(l) {
			if w.Above {
				rows = append(rows, m.renderLineWidget(w, gutter)...)
			}
		}
		rows = append(rows, m.renderLine(n, gutter))
		for _, w := range m.ed.LineWidgets(l) {
			if !w.Above {
				rows = append(rows, m.renderLineWidget(w, gutter)...)
			}
		}
	}
	if len(rows) > h {
		rows = rows[:h]
	}
	for len(rows) < h {
		rows = append(rows, styles.GutterStyle.Render("~"))
	}

	var b strings.Builder
	b.WriteString(strings.Join(rows, "\n"))
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
		b.WriteString("\n")
	}
	b.WriteString(m.statusBar())
	return zone.Scan(m.logs.Overlay(b.String()))
}

// renderLine draws visual line n: its text, and the text of every line a
// collapsed marker pulls onto it.
func (m Model) renderLine(n, gutter int) string {
	l := m.ed.LineHandle(n)
	active := m.ed.HasLineClass(l, editor.WhereBackground, activeline.BackgroundClass)

	num := fmt.Sprintf("%*d ", gutter, n+1)
	if active {
		num = styles.ActiveGutterStyle.Render(num)
	} else {
		num = styles.GutterStyle.Render(num)
	}

	var b strings.Builder
	pos := editor.P(n, 0)
	for {
		text := m.ed.Line(pos.Line)
		mk := m.nextCollapsed(pos)
		if mk == nil {
			b.WriteString(m.renderText(pos.Line, pos.Ch, len(text)))
			break
		}
		from, to, _ := mk.Find()
		b.WriteString(m.renderText(pos.Line, pos.Ch, from.Ch))
		b.WriteString(m.renderWidget(mk))
		pos = to
	}
	if c := m.ed.Cursor(); c.Line == pos.Line && c.Ch == len(m.ed.Line(pos.Line)) {
		b.WriteString(styles.CursorStyle.Render(" "))
	}

	textWidth := max(0, m.width-gutter-1)
	line := ansi.Truncate(b.String(), textWidth, "…")
	if active {
		line += strings.Repeat(" ", max(0, textWidth-lipgloss.Width(line)))
		line = styles.ActiveLineStyle.Render(line)
	}
	return num + line
}

// nextCollapsed returns the first collapsed marker starting at or after pos
// on pos's line.
func (m Model) nextCollapsed(pos editor.Pos) *editor.TextMarker {
	end := editor.P(pos.Line, len(m.ed.Line(pos.Line)))
	for _, tm := range m.ed.Marks() {
		if !tm.Collapsed {
			continue
		}
		from, to, ok := tm.Find()
		if !ok || from.Line != pos.Line || from.Cmp(pos) < 0 || from.Cmp(end) > 0 || from == to {
			continue
		}
		return tm
	}
	return nil
}

// renderText draws line n's bytes [from, to), skipping hidden tokens and
// styling the cursor and selections grapheme by grapheme.
func (m Model) renderText(n, from, to int) string {
	if from >= to {
		return ""
	}
	text := m.ed.Line(n)
	l := m.ed.LineHandle(n)
	hidden := make([]bool, len(text))
	if toks, ok := m.ed.LineTokens(n); ok {
		for _, tok := range toks {
			if m.ed.TokenHidden(l, tok.Start) {
				for i := tok.Start; i < tok.End && i < len(hidden); i++ {
					hidden[i] = true
				}
			}
		}
	}
	cur := m.ed.Cursor()
	sels := m.ed.Selections()

	var b strings.Builder
	var run strings.Builder
	runStyle := 0
	flush := func() {
		if run.Len() == 0 {
			return
		}
		switch runStyle {
		case 1:
			b.WriteString(styles.SelectionStyle.Render(run.String()))
		case 2:
			b.WriteString(styles.CursorStyle.Render(run.String()))
		default:
			b.WriteString(run.String())
		}
		run.Reset()
	}

	state := -1
	for ch := from; ch < to; {
		cluster, _, _, next := uniseg.FirstGraphemeClusterInString(text[ch:to], state)
		if cluster == "" {
			break
		}
		state = next
		at := editor.P(n, ch)
		style := 0
		switch {
		case cur == at:
			style = 2
		case selected(sels, at):
			style = 1
		}
		if hidden[ch] && style != 2 {
			ch += len(cluster)
			continue
		}
		if style != runStyle {
			flush()
			runStyle = style
		}
		run.WriteString(cluster)
		ch += len(cluster)
	}
	flush()
	return b.String()
}

func selected(sels []editor.Range, p editor.Pos) bool {
	for _, r := range sels {
		if !r.Empty() && r.From().Cmp(p) <= 0 && p.Cmp(r.To()) < 0 {
			return true
		}
	}
	return false
}

// renderWidget flattens a fold widget to one styled, clickable span.
func (m Model) renderWidget(tm *editor.TextMarker) string {
	foldType := ""
	if fm, ok := m.opts.Session.Engine().MarkerFor(tm); ok {
		foldType = fm.Type
	}
	label := widgetLabel(foldType, tm.Widget)
	s := styles.WidgetStyle.Foreground(styles.WidgetColor(foldType)).Render(label)
	if tm.Widget == nil {
		return s
	}
	id := m.prefix + tm.ID
	m.widgets[id] = tm.Widget
	return zone.Mark(id, s)
}

var widgetIcons = map[string]string{
	"image": "▣ ",
	"link":  "↗",
	"math":  "∑ ",
	"html":  "‹› ",
	"embed": "⧉ ",
}

func widgetLabel(foldType string, el *editor.Element) string {
	if el == nil {
		return "…"
	}
	text := strings.Join(strings.Fields(el.TextContent()), " ")
	if text == "" {
		for _, attr := range []string{"alt", "title", "src", "href"} {
			if v := el.Attr(attr); v != "" {
				text = v
				break
			}
		}
	}
	if foldType == "image" && text == "" {
		text = "image"
	}
	return widgetIcons[foldType] + text
}

// renderLineWidget draws a block widget as a ruled, wrapped paragraph
// aligned with the text column.
func (m Model) renderLineWidget(w *editor.LineWidget, gutter int) []string {
	if w.Node == nil {
		return nil
	}
	text := strings.TrimRight(w.Node.TextContent(), "\n")
	if text == "" {
		return nil
	}
	width := max(10, m.width-gutter-3)
	body := styles.LineWidgetStyle.Render(wordwrap.String(text, width))
	return strings.Split(indent.String(body, uint(gutter+1)), "\n")
}

func (m Model) statusBar() string {
	name := filepath.Base(m.opts.Path)
	if name == "." || name == "" {
		name = "[scratch]"
	}

	st := m.opts.Session.Status()
	toggles := make([]string, 0, len(m.keys.Folds)+2)
	for _, f := range m.keys.Folds {
		style := styles.ToggleOffStyle
		if st.Fold[f.FoldType] {
			style = styles.ToggleOnStyle
		}
		toggles = append(toggles, style.Render(f.FoldType))
	}
	left := name + "  " + strings.Join(toggles, " ")

	cur := m.ed.Cursor()
	col := uniseg.GraphemeClusterCount(m.ed.Line(cur.Line)[:cur.Ch]) + 1
	right := fmt.Sprintf("Ln %d, Col %d", cur.Line+1, col)
	if m.status != "" {
		msg := m.status
		if m.statusErr {
			msg = styles.ErrorStyle.Render(msg)
		}
		right = msg + "  " + right
	}

	// Pad by display width; labels may hold wide characters.
	gap := m.width - 2 - runewidth.StringWidth(ansi.Strip(left)) - runewidth.StringWidth(ansi.Strip(right))
	line := left + strings.Repeat(" ", max(1, gap)) + right
	return styles.StatusBarStyle.Render(ansi.Truncate(line, max(0, m.width-2), "…"))
}
