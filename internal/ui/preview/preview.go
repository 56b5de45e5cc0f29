// Package preview is a terminal viewer for one Markdown note. It drives a
// session's engines from the Bubble Tea loop and draws the editor state:
// folded widgets, hidden markup, active lines and line widgets.
package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/rivo/uniseg"

	"github.com/zjrosen/mdfold/internal/config"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/folders"
	"github.com/zjrosen/mdfold/internal/keys"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/pubsub"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/session"
	"github.com/zjrosen/mdfold/internal/ui/logpane"
	"github.com/zjrosen/mdfold/internal/vault"
	"github.com/zjrosen/mdfold/internal/watcher"
)

// Options wires a preview to its session.
type Options struct {
	Session *session.Session
	// Loop must be the scheduler the session was built with; the preview
	// runs its expired timers on the Bubble Tea goroutine.
	Loop *sched.Loop
	// Path is the note on disk, reloaded when Changes reports it.
	Path string
	// ConfigPath receives toggles saved with ctrl+s. Empty disables saving.
	ConfigPath string
	Vault      *vault.Vault
	Embed      *folders.EmbedRenderer
	// Changes delivers vault-relative paths from a watcher. Optional.
	Changes <-chan []string
}

type taskMsg struct{ fn func() }

type vaultChangedMsg struct{ paths []string }

type foldEventMsg struct{ ev pubsub.Event[fold.Event] }

type logMsg struct{}

// Model is the preview state.
type Model struct {
	opts   Options
	ed     *editor.Editor
	ctx    context.Context
	cancel context.CancelFunc
	events *pubsub.Listener[fold.Event]

	keys     keys.KeyMap
	help     help.Model
	showHelp bool
	logs     logpane.Model
	logFeed  *log.LogListener

	prefix  string
	widgets map[string]*editor.Element

	width, height int
	top           int
	status        string
	statusErr     bool
}

// New creates a preview model.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		opts:    opts,
		ed:      opts.Session.Editor(),
		ctx:     ctx,
		cancel:  cancel,
		keys:    keys.DefaultKeyMap(),
		help:    help.New(),
		logs:    logpane.New(),
		prefix:  zone.NewPrefix(),
		widgets: make(map[string]*editor.Element),
		width:   80,
		height:  24,
	}
	m.events = pubsub.NewListener(ctx, opts.Session.Subscribe(ctx), func(ev pubsub.Event[fold.Event]) tea.Msg {
		return foldEventMsg{ev: ev}
	})
	m.logFeed = log.NewListener(ctx, func(log.LogEvent) tea.Msg { return logMsg{} })
	return m
}

// Close stops the listeners started by Init.
func (m Model) Close() {
	m.cancel()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listenTasks(), m.events.Next(), m.listenChanges(), m.logFeed.Next())
}

func (m Model) listenTasks() tea.Cmd {
	if m.opts.Loop == nil {
		return nil
	}
	tasks := m.opts.Loop.Tasks()
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case fn := <-tasks:
			return taskMsg{fn: fn}
		}
	}
}

func (m Model) listenChanges() tea.Cmd {
	if m.opts.Changes == nil {
		return nil
	}
	ch := m.opts.Changes
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case paths, ok := <-ch:
			if !ok {
				return nil
			}
			return vaultChangedMsg{paths: paths}
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskMsg:
		msg.fn()
		return m, m.listenTasks()

	case foldEventMsg:
		m.onFoldEvent(msg.ev)
		return m, m.events.Next()

	case vaultChangedMsg:
		m.onVaultChanged(msg.paths)
		return m, m.listenChanges()

	case logMsg:
		if m.logs.Visible() {
			m.logs.Refresh()
		}
		return m, m.logFeed.Next()

	case logpane.CloseMsg:
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.logs.SetSize(msg.Width, msg.Height)
		m.scrollToCursor()
		return m, nil

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.click(msg)
		}
		return m, nil

	case tea.KeyMsg:
		if m.logs.Visible() && msg.Type != tea.KeyCtrlC {
			var cmd tea.Cmd
			m.logs, cmd = m.logs.Update(msg)
			return m, cmd
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.opts.Session
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
	case key.Matches(msg, m.keys.Up):
		m.moveLine(-1, false)
	case key.Matches(msg, m.keys.Down):
		m.moveLine(1, false)
	case key.Matches(msg, m.keys.Left):
		m.moveChar(-1, false)
	case key.Matches(msg, m.keys.Right):
		m.moveChar(1, false)
	case key.Matches(msg, m.keys.SelectUp):
		m.moveLine(-1, true)
	case key.Matches(msg, m.keys.SelectDown):
		m.moveLine(1, true)
	case key.Matches(msg, m.keys.SelectLeft):
		m.moveChar(-1, true)
	case key.Matches(msg, m.keys.SelectRight):
		m.moveChar(1, true)
	case key.Matches(msg, m.keys.LineHome):
		m.setHead(editor.P(m.ed.Cursor().Line, 0), false)
	case key.Matches(msg, m.keys.LineEnd):
		n := m.ed.Cursor().Line
		m.setHead(editor.P(n, len(m.ed.Line(n))), false)
	case key.Matches(msg, m.keys.PageUp):
		m.moveLine(-m.textHeight(), false)
	case key.Matches(msg, m.keys.PageDown):
		m.moveLine(m.textHeight(), false)
	case key.Matches(msg, m.keys.Top):
		m.setHead(editor.P(0, 0), false)
	case key.Matches(msg, m.keys.Bottom):
		m.setHead(editor.P(m.ed.LastLine(), 0), false)
	case key.Matches(msg, m.keys.HideTokens):
		m.setStatus(fmt.Sprintf("hide markup %s", onOff(sess.ToggleHideTokens())), false)
	case key.Matches(msg, m.keys.ActiveLine):
		m.setStatus(fmt.Sprintf("active line %s", onOff(sess.ToggleActiveLine())), false)
	case key.Matches(msg, m.keys.Refold):
		vp := m.ed.Viewport()
		sess.Engine().StartFoldImmediately(vp.From, vp.To-1)
	case key.Matches(msg, m.keys.Unfold):
		sess.Engine().ClearAll()
		m.setStatus("unfolded", false)
	case key.Matches(msg, m.keys.Save):
		m.save()
	case key.Matches(msg, m.keys.Logs):
		m.logs.Toggle()
	default:
		if typ, ok := m.keys.FoldFor(msg.String()); ok {
			on, err := sess.ToggleFold(typ)
			if err != nil {
				m.setStatus(err.Error(), true)
				break
			}
			m.setStatus(fmt.Sprintf("%s folding %s", typ, onOff(on)), false)
		}
	}
	return m, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) save() {
	if m.opts.ConfigPath == "" {
		m.setStatus("no config file to save to", true)
		return
	}
	st := m.opts.Session.Status()
	if err := config.SaveFoldToggles(m.opts.ConfigPath, st.Fold, st.Code); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	if err := config.SaveEditorToggles(m.opts.ConfigPath, st.HideTokens, st.ActiveLine); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.setStatus("saved to "+m.opts.ConfigPath, false)
}

// ============================================================================
// Cursor movement
// ============================================================================

// setHead moves the primary selection head. extend keeps the anchor.
func (m *Model) setHead(p editor.Pos, extend bool) {
	p = m.ed.ClipPos(p)
	if extend {
		sel := m.ed.Selections()[0]
		m.ed.SetSelections([]editor.Range{{Anchor: sel.Anchor, Head: p}})
	} else {
		m.ed.SetCursor(p)
	}
	m.scrollToCursor()
}

func (m *Model) moveLine(delta int, extend bool) {
	cur := m.ed.Cursor()
	n := cur.Line + delta
	// Step over lines folded into the line above.
	for delta > 0 && n < m.ed.LastLine() && m.ed.LineHandleVisualStart(n) != m.ed.LineHandle(n) {
		n++
	}
	n = max(0, min(n, m.ed.LastLine()))
	if vs := m.ed.LineHandleVisualStart(n); vs != nil {
		n = m.ed.LineNumber(vs)
	}
	m.setHead(editor.P(n, cur.Ch), extend)
}

// moveChar moves one grapheme, wrapping across line ends.
func (m *Model) moveChar(delta int, extend bool) {
	cur := m.ed.Cursor()
	text := m.ed.Line(cur.Line)
	switch {
	case delta < 0 && cur.Ch == 0:
		if cur.Line > 0 {
			m.setHead(editor.P(cur.Line-1, len(m.ed.Line(cur.Line-1))), extend)
		}
	case delta < 0:
		m.setHead(editor.P(cur.Line, prevGrapheme(text, cur.Ch)), extend)
	case cur.Ch >= len(text):
		if cur.Line < m.ed.LastLine() {
			m.setHead(editor.P(cur.Line+1, 0), extend)
		}
	default:
		m.setHead(editor.P(cur.Line, nextGrapheme(text, cur.Ch)), extend)
	}
}

// nextGrapheme returns the byte offset after the grapheme at ch.
func nextGrapheme(s string, ch int) int {
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(s[ch:], -1)
	return ch + max(1, len(cluster))
}

// prevGrapheme returns the byte offset of the grapheme ending at ch.
func prevGrapheme(s string, ch int) int {
	prev := 0
	for off, state := 0, -1; off < ch; {
		cluster, _, _, next := uniseg.FirstGraphemeClusterInString(s[off:], state)
		if cluster == "" {
			break
		}
		prev = off
		off += len(cluster)
		state = next
	}
	return prev
}

func (m *Model) helpHeight() int {
	rows := 0
	for _, group := range m.keys.FullHelp() {
		rows = max(rows, len(group))
	}
	return rows
}

func (m *Model) textHeight() int {
	h := m.height - 1
	if m.showHelp {
		h -= m.helpHeight()
	}
	return max(1, h)
}

// scrollToCursor keeps the cursor line on screen and publishes the new
// viewport, which lets the engines fold lines that scrolled in.
func (m *Model) scrollToCursor() {
	n := m.ed.Cursor().Line
	h := m.textHeight()
	if n < m.top {
		m.top = n
	}
	if n >= m.top+h {
		m.top = n - h + 1
	}
	m.top = max(0, min(m.top, m.ed.LastLine()))
	m.ed.SetViewport(m.top, m.top+h)
}

// ============================================================================
// Events
// ============================================================================

func (m *Model) onFoldEvent(ev pubsub.Event[fold.Event]) {
	p := ev.Payload
	switch ev.Type {
	case pubsub.CreatedEvent:
		log.Debug(log.CatUI, "fold created", "type", p.FoldType, "from", p.From)
	case pubsub.SignalEvent:
		switch p.Signal {
		case fold.SignalLinkOpen:
			m.setStatus("open "+p.Attrs["target"], false)
		case fold.SignalImageClicked:
			if p.Marker != nil && p.Marker.Widget() != nil {
				m.setStatus("image "+p.Marker.Widget().Attr("src"), false)
			}
		case fold.SignalMathPreview:
			m.setStatus(p.Attrs["expr"], false)
		case fold.SignalMathPreviewHide:
			m.setStatus("", false)
		}
	}
}

func (m *Model) onVaultChanged(paths []string) {
	if v := m.opts.Vault; v != nil {
		if err := v.Refresh(); err != nil {
			log.ErrorErr(log.CatWatcher, "vault refresh failed", err)
		}
	}
	if m.opts.Embed != nil {
		for _, p := range paths {
			m.opts.Embed.Invalidate(m.ctx, p)
		}
	}
	if m.opts.Path != "" && slices.Contains(paths, m.relPath()) {
		data, err := os.ReadFile(m.opts.Path)
		if err != nil {
			m.setStatus(err.Error(), true)
			return
		}
		if n := watcher.Reload(m.ed, string(data)); n > 0 {
			m.setStatus(fmt.Sprintf("reloaded (%d edits)", n), false)
		}
	}
	// Embeds of changed files render again on the next scan.
	m.opts.Session.Engine().Clear(folders.Embed)
	m.opts.Session.Engine().StartFold(-1, -1)
}

// relPath is the note's path relative to the watched vault root.
func (m *Model) relPath() string {
	if m.opts.Vault == nil {
		return filepath.Base(m.opts.Path)
	}
	abs, err := filepath.Abs(m.opts.Path)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(m.opts.Vault.Root(), abs)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (m *Model) click(msg tea.MouseMsg) {
	for id, el := range m.widgets {
		if zone.Get(id).InBounds(msg) {
			log.Debug(log.CatUI, "widget clicked", "zone", id)
			el.Click()
			return
		}
	}
}
