package logpane

import (
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mdfold/internal/log"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newPane(t *testing.T) Model {
	t.Helper()
	log.InitWriter(nil, log.LevelDebug)
	log.ClearBuffer()
	m := New()
	m.SetSize(100, 30)
	m.Toggle()
	return m
}

func TestPane_FiltersByLevel(t *testing.T) {
	log.InitWriter(nil, log.LevelDebug)
	log.ClearBuffer()
	log.Debug(log.CatFold, "scan started")
	log.Warn(log.CatRender, "katex missing")

	m := New()
	m.SetSize(100, 30)
	m.Toggle()
	v := ansi.Strip(m.View())
	require.NotContains(t, v, "scan started")
	require.Contains(t, v, "katex missing")

	m, _ = m.Update(keyMsg("d"))
	require.Contains(t, ansi.Strip(m.View()), "scan started")

	m, _ = m.Update(keyMsg("e"))
	require.Contains(t, ansi.Strip(m.View()), "No logs to display")
}

func TestPane_CyclesCategories(t *testing.T) {
	m := newPane(t)
	log.Info(log.CatFold, "folded")
	log.Info(log.CatWatcher, "changed")
	m.Refresh()

	m, _ = m.Update(keyMsg("tab"))
	v := ansi.Strip(m.View())
	require.Contains(t, v, "Logs · fold")
	require.Contains(t, v, "folded")
	require.NotContains(t, v, "changed")

	for range len(log.Categories) {
		m, _ = m.Update(keyMsg("tab"))
	}
	v = ansi.Strip(m.View())
	require.NotContains(t, v, "Logs ·")
	require.Contains(t, v, "changed")
}

func TestPane_ClearAndClose(t *testing.T) {
	m := newPane(t)
	log.Info(log.CatUI, "hello")
	m.Refresh()
	require.Contains(t, ansi.Strip(m.View()), "hello")

	m, _ = m.Update(keyMsg("c"))
	require.Contains(t, ansi.Strip(m.View()), "No logs to display")

	m, cmd := m.Update(keyMsg("esc"))
	require.False(t, m.Visible())
	require.Equal(t, CloseMsg{}, cmd())
	require.Empty(t, m.View())
}

func TestPane_FollowsNewestEntry(t *testing.T) {
	m := newPane(t)
	for i := range 60 {
		log.Info(log.CatFold, "entry", "n", i)
	}
	m.Refresh()
	require.Contains(t, ansi.Strip(m.View()), "n=59")

	m, _ = m.Update(keyMsg("g"))
	log.Info(log.CatFold, "entry", "n", 60)
	m.Refresh()
	v := ansi.Strip(m.View())
	require.Contains(t, v, "n=0")
	require.NotContains(t, v, "n=60")
}

func TestOverlay_CentersOverBackground(t *testing.T) {
	bg := strings.Repeat(strings.Repeat("A", 10)+"\n", 4) + strings.Repeat("A", 10)
	out := place("XX\nXX", bg, 10, 5)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "AAAAAAAAAA", lines[0])
	require.Equal(t, "AAAAXXAAAA", lines[1])
	require.Equal(t, "AAAAXXAAAA", lines[2])
}

func TestOverlay_HiddenLeavesBackground(t *testing.T) {
	m := New()
	require.Equal(t, "bg", m.Overlay("bg"))
}
