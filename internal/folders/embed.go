package folders

import (
	"context"
	"strings"
	"time"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/sched"
)

// Embed widget bits.
const (
	EmbedStub         = "<EMBED>"
	EmbedWrapperClass = "rendered-embed-wrapper"
	EmbedErrorClass   = "embed-error"

	embedRemeasureDelay = 250 * time.Millisecond
)

// EmbedFolder folds ![[note#section]] into the rendered section.
type EmbedFolder struct {
	renderer *EmbedRenderer
	source   string
}

// NewEmbedFolder returns an embed folder. source is the vault-relative
// path of the note being edited.
func NewEmbedFolder(r *EmbedRenderer, source string) *EmbedFolder {
	return &EmbedFolder{renderer: r, source: source}
}

// Detect implements fold.Detector.
func (f *EmbedFolder) Detect(s *fold.Stream, tok mdtoken.Token) *fold.Marker {
	if !tok.HasClass("formatting-embed") || tok.String != "![[" {
		return nil
	}
	ed := s.Editor()
	lineNo := s.Line()
	text := ed.Line(lineNo)

	end, ok := s.FindNext(urlDelims)
	if !ok {
		return nil
	}
	raw := slice(text, tok.End, end.Token.Start)
	target := ParseEmbedTarget(raw)
	if imageExtRE.MatchString(target.File) {
		return nil
	}

	from := editor.P(lineNo, tok.Start)
	to := editor.P(lineNo, end.Token.End)
	if s.RequestRangeWithClear(from, to, from, from) != fold.OK {
		return nil
	}

	kind := target.Kind()
	content := editor.NewElement("div", "hmd-embed-content")
	var m *fold.Marker
	if from.Ch != 0 || to.Ch < len(text) {
		m = f.foldInline(s, tok, from, to, kind, target, content)
	} else {
		m = f.foldBlock(s, from, to, kind, content)
	}

	link := target.File
	if link == "" {
		link = f.source
	}
	content.OnClick(func() {
		s.Signal(fold.Event{FoldType: Embed, Signal: fold.SignalLinkOpen, Marker: m, From: from, To: to,
			Attrs: map[string]string{"target": link, "fragment": target.Fragment}})
	})

	d := sched.NewDebouncer(s.Scheduler(), embedRemeasureDelay, m.Changed)
	m.OnUnload(d.Stop)
	m.OnUnload(content.Observe(func(*editor.Element) { d.Trigger() }))

	timer := s.Scheduler().AfterFunc(0, func() {
		if m.Torn() {
			return
		}
		f.fill(content, raw)
		m.Changed()
	})
	m.OnUnload(func() { timer.Stop() })
	return m
}

func (f *EmbedFolder) foldInline(s *fold.Stream, tok mdtoken.Token, from, to editor.Pos, kind string, target EmbedTarget, content *editor.Element) *fold.Marker {
	el := editor.NewElement("span", "rendered-inline-embed rendered-widget embed-type-"+kind)
	el.SetAttr("style", "display: inline-block")
	el.SetAttr("aria-label", target.File)

	stubClass := "hmd-fold-embed-stub omittable"
	if tok.Start < 7 {
		stubClass += " flip-stub"
	}
	stub := editor.NewElement("span", stubClass)
	stub.Text = EmbedStub

	wrap := editor.NewElement("span", "hmd-fold-embed")
	el.Append(content)
	wrap.Append(stub, el)

	m := s.Fold(from, to, wrap)
	breakOnClick(stub, m, 3)
	return m
}

func (f *EmbedFolder) foldBlock(s *fold.Stream, from, to editor.Pos, kind string, content *editor.Element) *fold.Marker {
	ed := s.Editor()
	stub := editor.NewElement("span", "hmd-fold-embed-stub hmd-fold-embed")
	stub.Text = EmbedStub

	m := s.Fold(from, to, stub)
	breakOnClick(stub, m, 3)

	wrap := editor.NewElement("div", "rendered-embed rendered-widget embed-type-"+kind)
	wrap.Append(content)
	m.SetLineWidget(ed.AddLineWidget(to.Line, wrap, false))

	line := ed.LineHandle(from.Line)
	ed.AddLineClass(line, editor.WhereWrap, EmbedWrapperClass)
	m.OnUnload(func() { ed.RemoveLineClass(line, editor.WhereWrap, EmbedWrapperClass) })
	return m
}

func (f *EmbedFolder) fill(content *editor.Element, raw string) {
	out, err := f.renderer.Render(context.Background(), raw, f.source)
	if err != nil {
		log.Debug(log.CatRender, "embed render failed", "target", raw, "error", err.Error())
		content.AddClass(EmbedErrorClass)
		content.SetText("Failed to render embed: " + err.Error())
		return
	}
	content.SetText(strings.TrimRight(out, " \n"))
}

