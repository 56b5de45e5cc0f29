package codefold

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/ui/shared/markdown"
)

type fakePlugin struct {
	version string
	calls   int
	removed bool
}

func (p *fakePlugin) Version() string { return p.version }

func (p *fakePlugin) Render(code string, ctx Context) (Result, error) {
	p.calls++
	el := editor.NewElement("div", "fake")
	el.Text = ctx.Lang + ":" + code
	return Result{Element: el, OnRemove: func() { p.removed = true }}, nil
}

type harness struct {
	ed     *editor.Editor
	eng    *fold.Engine
	clock  *sched.Manual
	folder *Folder
}

func newHarness(t *testing.T, text string, cur editor.Pos, host PluginHost, enabled map[string]bool) *harness {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, host, "monokai"))
	folder := NewFolder(reg, enabled)

	folds := fold.NewRegistry()
	require.NoError(t, folds.Register(folder.Folder(), false))

	h := &harness{clock: sched.NewManual(time.Unix(0, 0)), folder: folder}
	h.ed = editor.New(text)
	h.ed.SetCursor(cur)
	h.eng = fold.New(h.ed, folds, fold.WithScheduler(h.clock))
	t.Cleanup(h.eng.Unload)
	require.NoError(t, h.eng.SetStatus(FoldType, true))
	h.clock.Advance(fold.DefaultDebounce)
	return h
}

func (h *harness) content(t *testing.T) *editor.Element {
	t.Helper()
	ms := h.eng.Markers(FoldType)
	require.Len(t, ms, 1)
	lw := ms[0].LineWidget()
	require.NotNil(t, lw)
	return lw.Node.Find("hmd-fold-code-content")
}

func spanOf(t *testing.T, m *fold.Marker) string {
	t.Helper()
	from, to, ok := m.Find()
	require.True(t, ok)
	return from.String() + "-" + to.String()
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()
	noop := func(string, Context) (Result, error) { return Result{}, nil }
	require.NoError(t, reg.Register(Renderer{Name: "a", Match: Exact("a"), Render: noop}, false))
	require.NoError(t, reg.Register(Renderer{Name: "b", Match: Exact("b"), Render: noop, Priority: 5}, false))

	require.ErrorIs(t, reg.Register(Renderer{Name: "a", Match: Exact("x"), Render: noop}, false), ErrRendererExists)
	require.NoError(t, reg.Register(Renderer{Name: "a", Match: Exact("x"), Render: noop, Suggested: true}, true))
	require.Equal(t, []string{"b", "a"}, reg.Names())
	require.True(t, reg.Suggested()["a"])

	require.Error(t, reg.Register(Renderer{Name: "c"}, false))
}

func TestRegistry_MatchSkipsDisabled(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, nil, ""))

	on := func(string) bool { return true }
	r, ok := reg.Match("dataviewjs", on)
	require.True(t, ok)
	require.Equal(t, Dataview, r.Name)

	r, ok = reg.Match("ad-warning", on)
	require.True(t, ok)
	require.Equal(t, Admonition, r.Name)

	r, ok = reg.Match("go", on)
	require.True(t, ok)
	require.Equal(t, Highlight, r.Name)

	_, ok = reg.Match("dataview", func(name string) bool { return name != Dataview })
	require.False(t, ok)
}

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		in   string
		want Attributes
	}{
		{"", Attributes{}},
		{"  ", Attributes{}},
		{`{k=v}`, Attributes{"k": "v"}},
		{`{k=v k2="v 2" .wide .dark #main}`, Attributes{"k": "v", "k2": "v 2", "class": "wide dark", "id": "main"}},
		{`{title='Hi there'}`, Attributes{"title": "Hi there"}},
		{`no braces`, Attributes{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, ParseAttributes(tt.in))
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	require.True(t, versionAtLeast("1.4.0", "1.4.0"))
	require.True(t, versionAtLeast("v1.10.0", "1.4.0"))
	require.False(t, versionAtLeast("1.3.9", "1.4.0"))
	require.False(t, versionAtLeast("latest", "1.4.0"))
}

func TestFolder_FoldsDataviewToClosingFence(t *testing.T) {
	h := newHarness(t, "```dataview\nTABLE x\n```\nafter", editor.P(3, 0), nil, nil)

	ms := h.eng.Markers(FoldType)
	require.Len(t, ms, 1)
	require.Equal(t, "0:0-2:3", spanOf(t, ms[0]))
	require.Equal(t, Stub, ms[0].Widget().Text)

	content := h.content(t)
	require.True(t, content.HasClass("hmd-fold-code-dataview"))
	require.Equal(t, "Error: Unable to find the Dataview plugin", content.TextContent())

	lw := ms[0].LineWidget()
	require.Equal(t, 2, h.ed.LineNumber(lw.Line()), "widget sits under the closing fence")
	line := h.ed.LineHandle(0)
	require.True(t, h.ed.HasLineClass(line, editor.WhereWrap, BlockWrapperClass))
	require.True(t, h.ed.HasLineClass(line, editor.WhereWrap, "rendered-dataview-wrapper"))
}

func TestFolder_NoClosingFenceNoFold(t *testing.T) {
	h := newHarness(t, "```dataview\nTABLE x\nmore", editor.P(0, 0), nil, nil)
	require.Empty(t, h.eng.Markers(FoldType))
}

func TestFolder_CursorInsideBlock(t *testing.T) {
	h := newHarness(t, "```dataview\nTABLE x\n```\nafter", editor.P(1, 2), nil, nil)
	require.Empty(t, h.eng.Markers(FoldType))

	h.ed.SetCursor(editor.P(3, 0))
	require.Len(t, h.eng.Markers(FoldType), 1)
}

func TestFolder_PluginRendersWithAttributes(t *testing.T) {
	p := &fakePlugin{version: "0.5.0"}
	h := newHarness(t, "```DataviewJS {.wide}\nlist\nfrom x\n```\n", editor.P(4, 0), Plugins{DataviewPlugin: p}, nil)

	content := h.content(t)
	require.Equal(t, "dataviewjs:list\nfrom x", content.TextContent())
	require.Equal(t, 1, p.calls)

	h.eng.ClearAll()
	require.True(t, p.removed)
	require.False(t, content.Observed(), "observer disconnected on teardown")
	require.False(t, h.ed.HasLineClass(h.ed.LineHandle(0), editor.WhereWrap, BlockWrapperClass))
}

func TestFolder_OutdatedPlugin(t *testing.T) {
	old := &fakePlugin{version: "1.3.2"}
	h := newHarness(t, "```tasks\nnot done\n```\n", editor.P(3, 0), Plugins{TasksPlugin: old}, nil)

	require.Contains(t, h.content(t).TextContent(), "Tasks plugin is outdated")
	require.Zero(t, old.calls)
}

func TestFolder_HighlightIsOptIn(t *testing.T) {
	text := "```go\nfunc main() {}\n```\n"
	h := newHarness(t, text, editor.P(3, 0), nil, nil)
	require.Empty(t, h.eng.Markers(FoldType))

	h = newHarness(t, text, editor.P(3, 0), nil, map[string]bool{Highlight: true})
	pre := h.content(t).Find("hmd-code-highlight")
	require.NotNil(t, pre)
	require.Equal(t, "func main() {}", strings.TrimRight(pre.TextContent(), "\n"))
	require.NotEmpty(t, pre.Attr("data-ansi"))

	keyword := false
	for _, c := range pre.Children {
		if strings.HasPrefix(c.Class, "hl-keyword") && c.Text == "func" {
			keyword = true
			require.NotEmpty(t, c.Attr("color"))
		}
	}
	require.True(t, keyword, "func is highlighted as a keyword")
}

func TestFolder_SetEnabled(t *testing.T) {
	h := newHarness(t, "x", editor.P(0, 0), nil, nil)
	require.ErrorIs(t, h.folder.SetEnabled("nope", true), fold.ErrUnknownFolder)
	require.NoError(t, h.folder.SetEnabled(Chart, false))
	require.False(t, h.folder.Status()[Chart])
}

func TestFolder_LateRendererUsesSuggestedDefault(t *testing.T) {
	reg := NewRegistry()
	folder := NewFolder(reg, map[string]bool{"off": true})
	noop := func(string, Context) (Result, error) { return Result{}, nil }

	require.NoError(t, reg.Register(Renderer{Name: "late", Match: Exact("late"), Render: noop, Suggested: true}, false))
	require.NoError(t, reg.Register(Renderer{Name: "quiet", Match: Exact("quiet"), Render: noop}, false))
	require.True(t, folder.Enabled("late"))
	require.False(t, folder.Enabled("quiet"))
	require.False(t, folder.Enabled("missing"))
	require.Equal(t, map[string]bool{"late": true, "quiet": false}, folder.Status())

	require.NoError(t, folder.SetEnabled("late", false))
	require.False(t, folder.Enabled("late"))
}

func TestFolder_AsyncAdmonition(t *testing.T) {
	md, err := markdown.New(60, markdown.StylePlain)
	require.NoError(t, err)
	host := Plugins{AdmonitionPlugin: NewBuiltinAdmonition(md)}

	h := newHarness(t, "```ad-warning\ntitle: Careful\nDo **not** run this.\n```\n", editor.P(4, 0), host, nil)

	box := h.content(t).Find("admonition")
	require.NotNil(t, box, "async phase ran during the scan's timer window")
	require.True(t, box.HasClass("admonition-warning"))
	require.Equal(t, "Careful", box.Find("admonition-title").Text)
	require.Contains(t, box.Find("admonition-content").Text, "not")
	require.Nil(t, h.content(t).Find("hmd-fold-code-pending"))

	lw := h.eng.Markers(FoldType)[0].LineWidget()
	gen := lw.Generation()
	h.clock.Advance(remeasureDelay)
	require.Greater(t, lw.Generation(), gen, "observer remeasures after the debounce")
}

func TestFolder_RendererFailuresStayInline(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Renderer{Name: "boom", Match: Exact("boom"), Suggested: true,
		Render: func(string, Context) (Result, error) { panic("kaboom") }}, false))
	require.NoError(t, reg.Register(Renderer{Name: "fail", Match: Exact("fail"), Suggested: true,
		Render: func(string, Context) (Result, error) { return Result{}, errors.New("bad input") }}, false))
	folder := NewFolder(reg, nil)
	folds := fold.NewRegistry()
	require.NoError(t, folds.Register(folder.Folder(), false))

	clock := sched.NewManual(time.Unix(0, 0))
	ed := editor.New("```boom\nx\n```\n```fail\ny\n```\n")
	ed.SetCursor(editor.P(6, 0))
	eng := fold.New(ed, folds, fold.WithScheduler(clock))
	t.Cleanup(eng.Unload)
	require.NoError(t, eng.SetStatus(FoldType, true))
	clock.Advance(fold.DefaultDebounce)

	ms := eng.Markers(FoldType)
	require.Len(t, ms, 2)
	require.Contains(t, ms[0].LineWidget().Node.TextContent(), "kaboom")
	require.Equal(t, "bad input", ms[1].LineWidget().Node.TextContent())
}

func TestFolder_StubClickBreaks(t *testing.T) {
	h := newHarness(t, "```chart\ntype: bar\n```\nafter", editor.P(3, 0), nil, nil)
	m := h.eng.Markers(FoldType)[0]

	m.Widget().Click()
	require.True(t, m.Torn())
	require.Equal(t, editor.P(0, 0), h.ed.Cursor())
}
