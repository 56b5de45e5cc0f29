// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// FoldToggle binds a key to one fold type.
type FoldToggle struct {
	FoldType string
	Binding  key.Binding
}

// KeyMap defines the keybindings of the preview.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	LineHome key.Binding
	LineEnd  key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding

	// Selection
	SelectUp    key.Binding
	SelectDown  key.Binding
	SelectLeft  key.Binding
	SelectRight key.Binding

	// Folding
	Folds      []FoldToggle
	Refold     key.Binding
	Unfold     key.Binding
	HideTokens key.Binding
	ActiveLine key.Binding
	Save       key.Binding
	Logs       key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		// Navigation
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "line up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "line down"),
		),
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "char left"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "char right"),
		),
		LineHome: key.NewBinding(
			key.WithKeys("0", "home"),
			key.WithHelp("0", "line start"),
		),
		LineEnd: key.NewBinding(
			key.WithKeys("$", "end"),
			key.WithHelp("$", "line end"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("ctrl+u", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("ctrl+d", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "bottom"),
		),

		// Selection
		SelectUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "extend up"),
		),
		SelectDown: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "extend down"),
		),
		SelectLeft: key.NewBinding(
			key.WithKeys("H", "shift+left"),
			key.WithHelp("H", "extend left"),
		),
		SelectRight: key.NewBinding(
			key.WithKeys("L", "shift+right"),
			key.WithHelp("L", "extend right"),
		),

		// Folding
		Folds: []FoldToggle{
			{"image", key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "images"))},
			{"link", key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "links"))},
			{"code", key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "code"))},
			{"math", key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "math"))},
			{"html", key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "html"))},
			{"emoji", key.NewBinding(key.WithKeys("6"), key.WithHelp("6", "emoji"))},
			{"embed", key.NewBinding(key.WithKeys("7"), key.WithHelp("7", "embeds"))},
		},
		Refold: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refold view"),
		),
		Unfold: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "unfold all"),
		),
		HideTokens: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "hide markup"),
		),
		ActiveLine: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "active line"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save toggles"),
		),
		Logs: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "logs"),
		),

		// General
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// FoldFor returns the fold type bound to msg, if any.
func (k KeyMap) FoldFor(msg string) (string, bool) {
	for _, f := range k.Folds {
		for _, s := range f.Binding.Keys() {
			if s == msg {
				return f.FoldType, true
			}
		}
	}
	return "", false
}

// ShortHelp returns keybindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.HideTokens, k.ActiveLine, k.Help, k.Quit}
}

// FullHelp returns keybindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	folds := make([]key.Binding, 0, len(k.Folds))
	for _, f := range k.Folds {
		folds = append(folds, f.Binding)
	}
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.LineHome, k.LineEnd, k.PageUp, k.PageDown, k.Top, k.Bottom}, // Navigation
		{k.SelectUp, k.SelectDown, k.SelectLeft, k.SelectRight},                                       // Selection
		folds, // Fold types
		{k.Refold, k.Unfold, k.HideTokens, k.ActiveLine, k.Save, k.Logs, k.Help, k.Quit}, // General
	}
}
