// Package logpane is the preview's log viewer: a box over the document
// showing the newest buffered log entries, filtered by level and category.
package logpane

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/ui/styles"
)

const (
	viewportMaxHeight = 20
	viewportMinHeight = 3
	boxMaxWidth       = 140
	boxMinWidth       = 30
	chrome            = 6 // header, footer, dividers and borders
)

// CloseMsg is sent when the pane closes itself.
type CloseMsg struct{}

// Model is the log pane state.
type Model struct {
	visible  bool
	minLevel log.Level
	category log.Category // empty shows every category
	follow   bool
	width    int
	height   int
	viewport viewport.Model
}

// New creates a hidden pane showing info and above.
func New() Model {
	return Model{minLevel: log.LevelInfo, follow: true}
}

// Update handles keys while the pane is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "c":
		log.ClearBuffer()
	case "d":
		m.minLevel = log.LevelDebug
	case "i":
		m.minLevel = log.LevelInfo
	case "w":
		m.minLevel = log.LevelWarn
	case "e":
		m.minLevel = log.LevelError
	case "tab":
		m.category = nextCategory(m.category)
	case "j", "down":
		m.viewport.ScrollDown(1)
		m.follow = m.viewport.AtBottom()
		return m, nil
	case "k", "up":
		m.viewport.ScrollUp(1)
		m.follow = false
		return m, nil
	case "g":
		m.viewport.GotoTop()
		m.follow = false
		return m, nil
	case "G":
		m.viewport.GotoBottom()
		m.follow = true
		return m, nil
	case "esc", "ctrl+x", "q":
		m.visible = false
		return m, func() tea.Msg { return CloseMsg{} }
	default:
		return m, nil
	}
	m.Refresh()
	return m, nil
}

func nextCategory(c log.Category) log.Category {
	if c == "" {
		return log.Categories[0]
	}
	for i, cat := range log.Categories {
		if cat == c && i+1 < len(log.Categories) {
			return log.Categories[i+1]
		}
	}
	return ""
}

// Refresh reloads the buffered entries. The view stays pinned to the
// newest entry unless the user scrolled up.
func (m *Model) Refresh() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := max(viewportMinHeight, min(viewportMaxHeight, m.height-chrome))
	offset := m.viewport.YOffset
	m.viewport = viewport.New(m.contentWidth(), h)
	m.viewport.SetContent(m.content())
	if m.follow {
		m.viewport.GotoBottom()
	} else {
		m.viewport.SetYOffset(offset)
	}
}

func (m Model) content() string {
	var lines []string
	for _, entry := range log.GetRecentLogs(log.BufferSize) {
		if m.matches(entry) {
			lines = append(lines, m.colorize(entry))
		}
	}
	if len(lines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).Italic(true).Render("No logs to display")
	}
	return strings.Join(lines, "\n")
}

func entryLevel(entry string) (log.Level, bool) {
	for _, l := range []log.Level{log.LevelError, log.LevelWarn, log.LevelInfo, log.LevelDebug} {
		if strings.Contains(entry, "["+l.String()+"]") {
			return l, true
		}
	}
	return 0, false
}

func (m Model) matches(entry string) bool {
	if m.category != "" && !strings.Contains(entry, "] ["+string(m.category)+"] ") {
		return false
	}
	l, ok := entryLevel(entry)
	return !ok || l >= m.minLevel
}

func (m Model) colorize(entry string) string {
	entry = strings.TrimSuffix(entry, "\n")
	if w := m.contentWidth(); ansi.StringWidth(entry) > w {
		entry = ansi.Truncate(entry, w, "…")
	}
	color := styles.TextPrimaryColor
	if l, ok := entryLevel(entry); ok {
		switch l {
		case log.LevelError:
			color = styles.StatusErrorColor
		case log.LevelWarn:
			color = styles.StatusWarningColor
		case log.LevelDebug:
			color = styles.TextMutedColor
		}
	}
	return lipgloss.NewStyle().Foreground(color).Render(entry)
}

// View renders the pane box, or "" when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	w := m.boxWidth()
	divider := lipgloss.NewStyle().Foreground(styles.BorderDefaultColor).Render(strings.Repeat("─", w))

	title := "Logs"
	if m.category != "" {
		title += " · " + string(m.category)
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).PaddingLeft(1).Render(title))
	b.WriteString("\n" + divider + "\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n" + divider + "\n")
	b.WriteString(m.hints())

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.BorderDefaultColor).
		Width(w).
		Render(b.String())
}

// hints lists the pane keys, the active level in bold.
func (m Model) hints() string {
	hint := lipgloss.NewStyle().Foreground(styles.TextMutedColor)
	active := lipgloss.NewStyle().Foreground(styles.TextPrimaryColor).Bold(true)
	parts := []string{hint.Render("[c] clear"), hint.Render("[tab] category")}
	for _, lv := range []struct {
		key   string
		level log.Level
	}{{"d", log.LevelDebug}, {"i", log.LevelInfo}, {"w", log.LevelWarn}, {"e", log.LevelError}} {
		s := "[" + lv.key + "] " + strings.ToLower(lv.level.String())
		if lv.level == m.minLevel {
			parts = append(parts, active.Render(s))
		} else {
			parts = append(parts, hint.Render(s))
		}
	}
	return ansi.Truncate(strings.Join(parts, "  "), m.contentWidth(), "…")
}

// Overlay draws the pane centered over bg.
func (m Model) Overlay(bg string) string {
	if !m.visible {
		return bg
	}
	return place(m.View(), bg, m.width, m.height)
}

// place writes fg over the middle of bg, keeping the styling of the bg
// cells left and right of it.
func place(fg, bg string, width, height int) string {
	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")
	for len(bgLines) < height {
		bgLines = append(bgLines, "")
	}
	x := max(0, (width-lipgloss.Width(fg))/2)
	y := max(0, (height-len(fgLines))/2)

	for i, line := range fgLines {
		row := y + i
		if row >= len(bgLines) {
			break
		}
		under := bgLines[row]
		left := ansi.Truncate(under, x, "")
		if w := ansi.StringWidth(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		right := ""
		if end := x + ansi.StringWidth(line); end < ansi.StringWidth(under) {
			right = ansi.TruncateLeft(under, end, "")
		}
		bgLines[row] = left + line + right
	}
	return strings.Join(bgLines, "\n")
}

// Visible reports whether the pane is showing.
func (m Model) Visible() bool { return m.visible }

// Toggle shows or hides the pane.
func (m *Model) Toggle() {
	m.visible = !m.visible
	if m.visible {
		m.follow = true
		m.Refresh()
	}
}

// SetSize records the screen size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.Refresh()
}

func (m Model) boxWidth() int {
	return max(min(m.width-4, boxMaxWidth), boxMinWidth)
}

func (m Model) contentWidth() int {
	return m.boxWidth() - 2
}
