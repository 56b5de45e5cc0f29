package codefold

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/zjrosen/mdfold/internal/editor"
)

// Plugin renders code blocks on behalf of a third-party extension.
type Plugin interface {
	Version() string
	Render(code string, ctx Context) (Result, error)
}

// PluginHost looks up installed plugins by id.
type PluginHost interface {
	Plugin(id string) (Plugin, bool)
}

// Plugins is a PluginHost backed by a map.
type Plugins map[string]Plugin

// Plugin implements PluginHost.
func (p Plugins) Plugin(id string) (Plugin, bool) {
	pl, ok := p[id]
	return pl, ok
}

// Plugin ids of the renderers registered by RegisterBuiltins.
const (
	DataviewPlugin   = "dataview"
	QueryPlugin      = "global-search"
	TasksPlugin      = "obsidian-tasks-plugin"
	AdmonitionPlugin = "obsidian-admonition"
	ChartsPlugin     = "obsidian-charts"
)

// pluginSpec describes a plugin-backed renderer.
type pluginSpec struct {
	id         string
	title      string
	minVersion string
	async      bool
}

// pluginRender returns a RenderFunc delegating to the plugin, or showing
// why it cannot.
func pluginRender(host PluginHost, spec pluginSpec) RenderFunc {
	return func(code string, ctx Context) (Result, error) {
		var p Plugin
		ok := false
		if host != nil {
			p, ok = host.Plugin(spec.id)
		}
		if !ok {
			return ErrorResult(fmt.Sprintf("Error: Unable to find the %s plugin", spec.title)), nil
		}
		if spec.minVersion != "" && !versionAtLeast(p.Version(), spec.minVersion) {
			return ErrorResult(fmt.Sprintf("Error: The %s plugin is outdated (need %s or newer, found %s)",
				spec.title, spec.minVersion, p.Version())), nil
		}
		if !spec.async || ctx.Scheduler == nil {
			return p.Render(code, ctx)
		}
		return asyncPluginResult(p, code, ctx), nil
	}
}

// asyncPluginResult shows a placeholder and renders through the plugin
// after insertion.
func asyncPluginResult(p Plugin, code string, ctx Context) Result {
	holder := Result{Element: editor.NewElement("div", "hmd-fold-code-pending")}
	var inner Result
	holder.AsyncRender = func(changed func()) {
		ctx.Scheduler.AfterFunc(0, func() {
			res, err := p.Render(code, ctx)
			if err != nil {
				res = ErrorResult(err.Error())
			}
			inner = res
			holder.Element.RemoveClass("hmd-fold-code-pending")
			holder.Element.Append(res.Element)
			if res.AsyncRender != nil {
				res.AsyncRender(changed)
			}
			changed()
		})
	}
	holder.OnRemove = func() {
		if inner.OnRemove != nil {
			inner.OnRemove()
		}
	}
	return holder
}

// versionAtLeast compares plugin versions written with or without the
// leading "v". Unparseable versions are treated as too old.
func versionAtLeast(have, want string) bool {
	h, w := canonical(have), canonical(want)
	if !semver.IsValid(h) || !semver.IsValid(w) {
		return false
	}
	return semver.Compare(h, w) >= 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
