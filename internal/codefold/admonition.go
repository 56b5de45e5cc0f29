package codefold

import (
	"regexp"
	"strings"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/ui/shared/markdown"
)

var admonitionParamRE = regexp.MustCompile(`^(title|collapse|icon|color):\s*(.*)$`)

// BuiltinAdmonition renders ad-* blocks through glamour. It stands in for
// the admonition plugin when none is installed.
type BuiltinAdmonition struct {
	md *markdown.Renderer
}

// NewBuiltinAdmonition returns the built-in admonition plugin.
func NewBuiltinAdmonition(md *markdown.Renderer) *BuiltinAdmonition {
	return &BuiltinAdmonition{md: md}
}

// Version implements Plugin.
func (a *BuiltinAdmonition) Version() string { return AdmonitionMinVersion }

// Render implements Plugin.
func (a *BuiltinAdmonition) Render(code string, ctx Context) (Result, error) {
	kind := strings.TrimPrefix(ctx.Lang, "ad-")
	params, body := splitAdmonition(code)

	title, ok := params["title"]
	if !ok && kind != "" {
		title = strings.ToUpper(kind[:1]) + kind[1:]
	}

	box := editor.NewElement("div", "admonition admonition-"+kind)
	if c := params["collapse"]; c == "open" || c == "closed" {
		box.AddClass("admonition-collapsible")
		box.SetAttr("data-collapse", c)
	}
	if c := params["color"]; c != "" {
		box.SetAttr("style", "--admonition-color: "+c)
	}
	if title != "" {
		t := editor.NewElement("div", "admonition-title")
		t.Text = title
		box.Append(t)
	}

	rendered, err := a.md.RenderText(body)
	if err != nil {
		return Result{}, err
	}
	content := editor.NewElement("div", "admonition-content")
	content.Text = strings.Trim(rendered, "\n")
	box.Append(content)
	return Result{Element: box}, nil
}

// splitAdmonition separates the leading "key: value" parameter lines.
func splitAdmonition(code string) (map[string]string, string) {
	params := map[string]string{}
	lines := strings.Split(code, "\n")
	i := 0
	for ; i < len(lines); i++ {
		m := admonitionParamRE.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			break
		}
		params[m[1]] = strings.TrimSpace(m[2])
	}
	return params, strings.Join(lines[i:], "\n")
}
