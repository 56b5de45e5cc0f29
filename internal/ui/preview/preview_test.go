package preview

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/teatest"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mdfold/internal/config"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/folders"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/session"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

type harness struct {
	m     Model
	clock *sched.Manual
	sess  *session.Session
}

func newHarness(t *testing.T, text string, cur editor.Pos, opts Options) *harness {
	t.Helper()
	ed := editor.New(text)
	ed.SetCursor(cur)
	cfg := config.Defaults()
	cfg.Theme = "notty"
	h := &harness{clock: sched.NewManual(time.Unix(0, 0))}
	sess, err := session.New(ed, session.Options{Config: cfg, Scheduler: h.clock})
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	h.sess = sess

	opts.Session = sess
	h.m = New(opts)
	h.send(tea.WindowSizeMsg{Width: 80, Height: 12})
	h.clock.Advance(time.Second)
	return h
}

func (h *harness) send(msg tea.Msg) {
	mm, _ := h.m.Update(msg)
	h.m = mm.(Model)
}

func (h *harness) press(keys string) {
	switch keys {
	case "ctrl+s":
		h.send(tea.KeyMsg{Type: tea.KeyCtrlS})
	case "ctrl+x":
		h.send(tea.KeyMsg{Type: tea.KeyCtrlX})
	case "esc":
		h.send(tea.KeyMsg{Type: tea.KeyEsc})
	default:
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	}
	h.clock.Advance(time.Second)
}

func (h *harness) view() string { return ansi.Strip(h.m.View()) }

func TestView_FoldsAndHidesMarkup(t *testing.T) {
	h := newHarness(t, "**b** ![a](https://x.io/a.png)\nnext", editor.P(1, 0), Options{})

	v := h.view()
	require.Contains(t, v, "b ▣ a")
	require.NotContains(t, v, "**b**")
	require.NotContains(t, v, "https://x.io/a.png")
	require.Contains(t, v, "Ln 2, Col 1")
}

func TestView_ToggleImageFolding(t *testing.T) {
	h := newHarness(t, "![a](https://x.io/a.png)\nnext", editor.P(1, 0), Options{})
	require.NotContains(t, h.view(), "https://x.io/a.png")

	h.press("1")
	require.Contains(t, h.view(), "https://x.io/a.png")
	require.Contains(t, h.view(), "image folding off")
	require.False(t, h.sess.Status().Fold[folders.Image])

	h.press("1")
	require.NotContains(t, h.view(), "https://x.io/a.png")
}

func TestView_CursorMovesOntoMarkup(t *testing.T) {
	h := newHarness(t, "**b**\nnext", editor.P(1, 0), Options{})
	require.NotContains(t, h.view(), "**b**")

	h.press("k")
	require.Equal(t, editor.P(0, 0), h.sess.Editor().Cursor())
	require.Contains(t, h.view(), "**b**")
	require.Contains(t, h.view(), "Ln 1, Col 1")
}

func TestView_GraphemeMovement(t *testing.T) {
	h := newHarness(t, "é👍🏽x", editor.P(0, 0), Options{})
	h.press("l")
	require.Equal(t, editor.P(0, len("é")), h.sess.Editor().Cursor())
	h.press("l")
	require.Equal(t, editor.P(0, len("é👍🏽")), h.sess.Editor().Cursor())
	require.Contains(t, h.view(), "Col 3")
	h.press("h")
	require.Equal(t, editor.P(0, len("é")), h.sess.Editor().Cursor())
}

func TestView_ExtendSelectionKeepsAnchor(t *testing.T) {
	h := newHarness(t, "abc\ndef", editor.P(0, 1), Options{})
	h.press("J")
	sel := h.sess.Editor().Selections()[0]
	require.Equal(t, editor.P(0, 1), sel.Anchor)
	require.Equal(t, editor.P(1, 1), sel.Head)
}

func TestView_LineWidgetBelowFoldedBlock(t *testing.T) {
	h := newHarness(t, "```dataview\nlist\n```\nafter", editor.P(3, 0), Options{})
	v := h.view()
	require.Contains(t, v, "Unable to find the Dataview plugin")
	require.NotContains(t, v, "```dataview")
	require.Contains(t, v, "after")
}

func TestView_ToggleHideTokensAndActiveLine(t *testing.T) {
	h := newHarness(t, "**b**\nnext", editor.P(1, 0), Options{})
	h.press("t")
	require.Contains(t, h.view(), "**b**")
	require.Contains(t, h.view(), "hide markup off")

	h.press("a")
	require.Contains(t, h.view(), "active line off")
	require.False(t, h.sess.Status().ActiveLine)
}

func TestView_ClickWidgetBreaksFold(t *testing.T) {
	h := newHarness(t, "![a](https://x.io/a.png)\nnext", editor.P(1, 0), Options{})
	_ = h.m.View()
	require.Len(t, h.m.widgets, 1)
	for _, el := range h.m.widgets {
		el.Click()
	}
	require.Empty(t, h.sess.Engine().Markers(folders.Image))
	require.Equal(t, 0, h.sess.Editor().Cursor().Line)
}

func TestSave_WritesToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	h := newHarness(t, "x", editor.P(0, 0), Options{ConfigPath: path})

	h.press("5")
	h.press("ctrl+s")
	require.Contains(t, h.view(), "saved to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "html: true")
	require.Contains(t, string(data), "hide_token:")
}

func TestSave_WithoutConfigPath(t *testing.T) {
	h := newHarness(t, "x", editor.P(0, 0), Options{})
	h.press("ctrl+s")
	require.Contains(t, h.view(), "no config file")
}

func TestVaultChange_ReloadsNote(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo"), 0o644))
	h := newHarness(t, "one\ntwo", editor.P(0, 0), Options{Path: path})

	require.NoError(t, os.WriteFile(path, []byte("one\n**2**"), 0o644))
	h.send(vaultChangedMsg{paths: []string{"note.md"}})
	h.clock.Advance(time.Second)

	require.Equal(t, "one\n**2**", h.sess.Editor().Value())
	require.Contains(t, h.view(), "reloaded (1 edits)")
}

func TestLogPane_ShowsSessionLogs(t *testing.T) {
	log.InitWriter(nil, log.LevelDebug)
	h := newHarness(t, "x", editor.P(0, 0), Options{})

	h.press("ctrl+x")
	v := h.view()
	require.Contains(t, v, "Logs")
	require.Contains(t, v, "session started")

	// Keys go to the pane while it is open.
	h.press("1")
	require.True(t, h.sess.Status().Fold[folders.Image])

	h.press("esc")
	require.NotContains(t, h.view(), "session started")
	h.press("1")
	require.False(t, h.sess.Status().Fold[folders.Image])
}

func TestProgram_RendersFoldsFromRealTimers(t *testing.T) {
	ed := editor.New("see ![a](https://x.io/a.png)\nnext")
	ed.SetCursor(editor.P(1, 0))
	cfg := config.Defaults()
	cfg.Theme = "notty"
	loop := sched.NewLoop(64)
	sess, err := session.New(ed, session.Options{Config: cfg, Scheduler: loop})
	require.NoError(t, err)

	tm := teatest.NewTestModel(t, New(Options{Session: sess, Loop: loop}), teatest.WithInitialTermSize(80, 10))
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("▣ a"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}
