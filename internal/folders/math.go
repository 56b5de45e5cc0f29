package folders

import (
	"errors"
	"strings"

	"github.com/zjrosen/mdfold/internal/cursor"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/mdtoken"
	"github.com/zjrosen/mdfold/internal/sched"
)

// MathRenderAttempts bounds how often a renderer that is not ready is
// retried before the fold is dropped.
const MathRenderAttempts = 5

// MathRenderer draws one formula into its container.
type MathRenderer interface {
	// IsReady reports whether Render may be called yet.
	IsReady() bool
	Render(expr string) error
	// Clear releases whatever Render attached to the container.
	Clear()
}

// MathRendererFunc creates the renderer of one widget. changed must be
// called whenever the rendered output changes size.
type MathRendererFunc func(container *editor.Element, display bool, changed func()) MathRenderer

// MathFolder folds $inline$ and $$display$$ formulas.
type MathFolder struct {
	newRenderer MathRendererFunc
}

// NewMathFolder returns a math folder; a nil fn uses NewTextMathRenderer.
func NewMathFolder(fn MathRendererFunc) *MathFolder {
	if fn == nil {
		fn = NewTextMathRenderer
	}
	return &MathFolder{newRenderer: fn}
}

// mathPreview tracks the formula being edited in one engine, publishing a
// preview when it changes and a hide when editing stops.
type mathPreview struct {
	expr string
}

func (p *mathPreview) set(s *fold.Stream, expr string) {
	if expr == p.expr {
		return
	}
	p.expr = expr
	if expr != "" {
		s.Signal(fold.Event{FoldType: Math, Signal: fold.SignalMathPreview, Attrs: map[string]string{"expr": expr}})
	} else {
		s.Signal(fold.Event{FoldType: Math, Signal: fold.SignalMathPreviewHide})
	}
}

func preview(s *fold.Stream) *mathPreview {
	return s.Engine().Addon("math-preview", func() any { return &mathPreview{} }).(*mathPreview)
}

// Detect implements fold.Detector.
func (f *MathFolder) Detect(s *fold.Stream, tok mdtoken.Token) *fold.Marker {
	if !tok.HasClass("formatting-math-begin") {
		return nil
	}
	ed := s.Editor()
	lineNo := s.Line()
	maySpanLines := tok.HasClass("math-block")
	tokenLength := 1
	if maySpanLines {
		tokenLength = 2
	}

	var opts []cursor.FindOption
	if maySpanLines {
		opts = append(opts, cursor.SpanLines())
	}
	from := editor.P(lineNo, tok.Start)
	var to editor.Pos
	noEnd := false
	if end, ok := s.FindNext(cursor.Class("formatting-math-end"), opts...); ok {
		to = editor.P(end.Line, end.Token.Start+tokenLength)
	} else if maySpanLines {
		last := ed.LastLine()
		to = editor.P(last, len(ed.Line(last)))
		noEnd = true
	} else {
		return nil
	}

	exprTo := to
	if !noEnd {
		exprTo.Ch -= tokenLength
	}
	expr := strings.TrimSpace(ed.GetRange(editor.P(from.Line, from.Ch+tokenLength), exprTo))

	switch s.RequestRange(from, to) {
	case fold.OK:
	case fold.CursorInside:
		preview(s).set(s, expr)
		return nil
	default:
		return nil
	}

	m := f.insert(s, from, to, expr, tokenLength, tokenLength > 1)
	preview(s).set(s, "")
	return m
}

func (f *MathFolder) insert(s *fold.Stream, from, to editor.Pos, expr string, tokenLength int, display bool) *fold.Marker {
	mode := "math-1"
	if display {
		mode = "math-2"
	}
	el := editor.NewElement("span", "hmd-fold-math "+mode)
	el.SetAttr("title", expr)
	placeholder := editor.NewElement("span", "hmd-fold-math-placeholder")
	placeholder.Text = expr
	el.Append(placeholder)

	m := s.Fold(from, to, el)
	breakOnClick(el, m, tokenLength)

	r := f.newRenderer(el, display, m.Changed)
	m.OnUnload(r.Clear)

	cancel := sched.TryToRun(s.Scheduler(), MathRenderAttempts, func() bool {
		if !r.IsReady() {
			return false
		}
		if err := r.Render(expr); err != nil {
			log.Debug(log.CatRender, "math render failed", "expr", expr, "error", err.Error())
		}
		return true
	}, func() {
		log.Warn(log.CatRender, "math renderer never became ready", "expr", expr, "from", from)
		m.Text().Clear()
	})
	m.OnUnload(cancel)
	return m
}

// ============================================================================
// Text renderer
// ============================================================================

// ErrUnbalancedBraces is reported for a formula whose groups do not close.
var ErrUnbalancedBraces = errors.New("unbalanced braces")

var texSymbols = strings.NewReplacer(
	`\alpha`, "α", `\beta`, "β", `\gamma`, "γ", `\delta`, "δ", `\epsilon`, "ε",
	`\theta`, "θ", `\lambda`, "λ", `\mu`, "μ", `\pi`, "π", `\sigma`, "σ",
	`\phi`, "φ", `\omega`, "ω", `\Delta`, "Δ", `\Sigma`, "Σ", `\Omega`, "Ω",
	`\infty`, "∞", `\pm`, "±", `\times`, "×", `\cdot`, "·", `\leq`, "≤",
	`\geq`, "≥", `\neq`, "≠", `\approx`, "≈", `\to`, "→", `\rightarrow`, "→",
	`\leftarrow`, "←", `\sum`, "∑", `\prod`, "∏", `\int`, "∫", `\sqrt`, "√",
	`\partial`, "∂", `\nabla`, "∇", `\in`, "∈", `\forall`, "∀", `\exists`, "∃",
	"^2", "²", "^3", "³", "^n", "ⁿ", "_0", "₀", "_1", "₁", "_2", "₂", "_i", "ᵢ",
	`\,`, " ", `\;`, " ", `\!`, "",
)

// TextMathRenderer renders TeX as plain unicode text, which is what a
// terminal can show.
type TextMathRenderer struct {
	container *editor.Element
	el        *editor.Element
	changed   func()
}

// NewTextMathRenderer is the default MathRendererFunc.
func NewTextMathRenderer(container *editor.Element, display bool, changed func()) MathRenderer {
	class := "hmd-math-text"
	if display {
		class += " hmd-math-text-display"
	}
	return &TextMathRenderer{container: container, el: editor.NewElement("span", class), changed: changed}
}

// IsReady implements MathRenderer.
func (r *TextMathRenderer) IsReady() bool { return true }

// Render implements MathRenderer.
func (r *TextMathRenderer) Render(expr string) error {
	r.container.SetText("")
	r.container.Append(r.el)
	defer r.changed()

	if depth := braceDepth(expr); depth != 0 {
		r.el.AddClass("hmd-math-error")
		r.el.SetText(expr)
		return ErrUnbalancedBraces
	}
	out := texSymbols.Replace(expr)
	out = strings.NewReplacer("{", "", "}", "").Replace(out)
	r.el.SetText(strings.Join(strings.Fields(out), " "))
	return nil
}

// Clear implements MathRenderer.
func (r *TextMathRenderer) Clear() {
	r.el.SetText("")
}

func braceDepth(expr string) int {
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return depth
			}
		}
	}
	return depth
}
