package codefold

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/sched"
)

// FoldType is the fold type name code blocks are registered under.
const FoldType = "code"

// Code widget bits.
const (
	Stub              = "<CODE>"
	BlockWrapperClass = "rendered-code-block-wrapper"
	ErrorClass        = "hmd-fold-code-error"

	remeasureDelay = 250 * time.Millisecond
)

var infoRE = regexp.MustCompile(`([-\w]+)(\s*|\s+\{.+\}\s*)$`)

// Folder is the fold detector for fenced code. Each editor gets its own
// Folder so renderers can be toggled per editor.
type Folder struct {
	reg     *Registry
	enabled map[string]bool
}

// NewFolder returns a folder over reg. Renderers missing from enabled,
// including ones registered later, use their Suggested default.
func NewFolder(reg *Registry, enabled map[string]bool) *Folder {
	overrides := make(map[string]bool, len(enabled))
	maps.Copy(overrides, enabled)
	return &Folder{reg: reg, enabled: overrides}
}

// Registry returns the renderer catalog.
func (f *Folder) Registry() *Registry { return f.reg }

// SetEnabled toggles one renderer. Existing folds are left alone; the
// caller refolds.
func (f *Folder) SetEnabled(name string, on bool) error {
	if _, ok := f.reg.Get(name); !ok {
		return fmt.Errorf("code renderer %q: %w", name, fold.ErrUnknownFolder)
	}
	f.enabled[name] = on
	return nil
}

// Enabled reports whether a renderer is on.
func (f *Folder) Enabled(name string) bool {
	if on, ok := f.enabled[name]; ok {
		return on
	}
	r, ok := f.reg.Get(name)
	return ok && r.Suggested
}

// Status returns the state of every registered renderer.
func (f *Folder) Status() map[string]bool {
	status := f.reg.Suggested()
	for name := range status {
		status[name] = f.Enabled(name)
	}
	return status
}

// Folder returns the fold registry entry for this folder.
func (f *Folder) Folder() fold.Folder {
	return fold.Folder{Name: FoldType, Detect: f.Detect, Suggested: true}
}

// Detect implements fold.Detector.
func (f *Folder) Detect(s *fold.Stream, tok mdtoken.Token) *fold.Marker {
	if tok.Start != 0 || !tok.HasClass("HyperMD-codeblock-begin") {
		return nil
	}
	info := infoRE.FindStringSubmatch(tok.String)
	if info == nil {
		return nil
	}
	lang := strings.ToLower(info[1])
	r, ok := f.reg.Match(lang, f.Enabled)
	if !ok {
		return nil
	}

	ed := s.Editor()
	open := s.Line()
	closing := -1
	for n := open + 1; n <= ed.LastLine(); n++ {
		toks, ok := ed.LineTokens(n)
		if !ok {
			break
		}
		if len(toks) > 0 && toks[0].HasClass("HyperMD-codeblock-end") {
			closing = n
			break
		}
	}
	if closing < 0 {
		return nil
	}

	from := editor.P(open, 0)
	to := editor.P(closing, len(ed.Line(closing)))
	if s.RequestRange(from, to) != fold.OK {
		return nil
	}

	lines := make([]string, 0, closing-open-1)
	for n := open + 1; n < closing; n++ {
		lines = append(lines, ed.Line(n))
	}
	ctx := Context{
		Lang:       lang,
		Attributes: ParseAttributes(info[2]),
		Editor:     ed,
		Scheduler:  s.Scheduler(),
		Line:       open,
	}
	res := render(r, strings.Join(lines, "\n"), ctx)
	return f.insert(s, r.Name, from, to, res)
}

func (f *Folder) insert(s *fold.Stream, name string, from, to editor.Pos, res Result) *fold.Marker {
	ed := s.Editor()
	stub := editor.NewElement("span", "hmd-fold-code-stub hmd-fold-code-"+name)
	stub.Text = Stub
	m := s.Fold(from, to, stub)
	stub.OnClick(func() { m.Break(0) })

	content := editor.NewElement("div", "hmd-fold-code-content hmd-fold-code-"+name)
	content.Append(res.Element)
	holder := editor.NewElement("div", "rendered-code-block rendered-widget")
	holder.Append(content)
	lw := ed.AddLineWidget(to.Line, holder, false)
	m.SetLineWidget(lw)

	line := ed.LineHandle(from.Line)
	typeClass := "rendered-" + name + "-wrapper"
	ed.AddLineClass(line, editor.WhereWrap, BlockWrapperClass)
	ed.AddLineClass(line, editor.WhereWrap, typeClass)

	d := sched.NewDebouncer(s.Scheduler(), remeasureDelay, lw.Changed)
	detach := content.Observe(func(*editor.Element) { d.Trigger() })

	m.OnUnload(func() {
		if res.OnRemove != nil {
			res.OnRemove()
		}
		ed.RemoveLineClass(line, editor.WhereWrap, BlockWrapperClass)
		ed.RemoveLineClass(line, editor.WhereWrap, typeClass)
		detach()
		d.Stop()
	})

	if res.AsyncRender != nil {
		res.AsyncRender(m.Changed)
	}
	s.Signal(fold.Event{FoldType: FoldType, Signal: fold.SignalCodeRendered, Marker: m, From: from, To: to,
		Attrs: map[string]string{"renderer": name}})
	return m
}

// render runs the renderer, turning errors and panics into an inline
// error element so the block still folds.
func render(r Renderer, code string, ctx Context) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Error(log.CatRender, "code renderer panicked", "renderer", r.Name, "panic", fmt.Sprint(p))
			res = ErrorResult(fmt.Sprintf("Error: %s renderer failed: %v", r.Name, p))
		}
	}()
	res, err := r.Render(code, ctx)
	if err != nil {
		log.Debug(log.CatRender, "code render failed", "renderer", r.Name, "error", err.Error())
		return ErrorResult(err.Error())
	}
	if res.Element == nil {
		res.Element = editor.NewElement("div", "")
	}
	return res
}

// ErrorResult is a result showing msg in place of the rendered block.
func ErrorResult(msg string) Result {
	el := editor.NewElement("div", ErrorClass)
	el.Text = msg
	return Result{Element: el}
}
