package codefold

// Built-in renderer names.
const (
	Dataview   = "dataview"
	Query      = "query"
	Tasks      = "tasks"
	Admonition = "admonition"
	Chart      = "chart"
	Highlight  = "highlight"
)

// Minimum plugin versions.
const (
	TasksMinVersion      = "1.4.0"
	AdmonitionMinVersion = "6.3.6"
)

// RegisterBuiltins adds the stock renderers. host may be nil, in which
// case the plugin-backed ones render an error. theme is the chroma style
// of the highlight renderer.
func RegisterBuiltins(reg *Registry, host PluginHost, theme string) error {
	renderers := []Renderer{
		{
			Name:      Dataview,
			Match:     Pattern(`^dataview(js)?$`),
			Render:    pluginRender(host, pluginSpec{id: DataviewPlugin, title: "Dataview"}),
			Suggested: true,
		},
		{
			Name:      Query,
			Match:     Pattern(`^query$`),
			Render:    pluginRender(host, pluginSpec{id: QueryPlugin, title: "Search"}),
			Suggested: true,
		},
		{
			Name:      Tasks,
			Match:     Pattern(`^tasks$`),
			Render:    pluginRender(host, pluginSpec{id: TasksPlugin, title: "Tasks", minVersion: TasksMinVersion}),
			Suggested: true,
		},
		{
			Name:      Admonition,
			Match:     Pattern(`^ad-[a-z]+$`),
			Render:    pluginRender(host, pluginSpec{id: AdmonitionPlugin, title: "Admonition", minVersion: AdmonitionMinVersion, async: true}),
			Suggested: true,
		},
		{
			Name:      Chart,
			Match:     Pattern(`^chart$`),
			Render:    pluginRender(host, pluginSpec{id: ChartsPlugin, title: "Charts"}),
			Suggested: true,
		},
		{
			Name:     Highlight,
			Match:    KnownLanguage,
			Render:   NewHighlighter(theme).Render,
			Priority: -100,
		},
	}
	for _, r := range renderers {
		if err := reg.Register(r, false); err != nil {
			return err
		}
	}
	return nil
}
