// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"} // Document text
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BBBBBB"} // Status bar
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#696969"} // Gutter, hints

	// Semantic color names - Border
	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"} // Line widget rule

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Enabled toggles
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"} // Warnings
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Errors

	// Editor surfaces
	ActiveLineBgColor = lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#2A2A2A"}
	SelectionBgColor  = lipgloss.AdaptiveColor{Light: "#C8D8F0", Dark: "#3A4A6A"}

	// Widget colors per fold type (Catppuccin Mocha)
	WidgetImageColor = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"} // mauve
	WidgetLinkColor  = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"} // blue
	WidgetMathColor  = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#94E2D5"} // teal
	WidgetHTMLColor  = lipgloss.AdaptiveColor{Light: "#FE640B", Dark: "#FAB387"} // peach
	WidgetEmojiColor = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"} // yellow
	WidgetEmbedColor = lipgloss.AdaptiveColor{Light: "#40A02B", Dark: "#A6E3A1"} // green
	WidgetOtherColor = lipgloss.AdaptiveColor{Light: "#9CA0B0", Dark: "#6C7086"} // overlay0

	GutterStyle       = lipgloss.NewStyle().Foreground(TextMutedColor)
	ActiveGutterStyle = lipgloss.NewStyle().Foreground(TextPrimaryColor).Bold(true)
	ActiveLineStyle   = lipgloss.NewStyle().Background(ActiveLineBgColor)
	SelectionStyle    = lipgloss.NewStyle().Background(SelectionBgColor)
	CursorStyle       = lipgloss.NewStyle().Reverse(true)

	WidgetStyle     = lipgloss.NewStyle().Underline(true)
	LineWidgetStyle = lipgloss.NewStyle().
			Foreground(TextPrimaryColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(BorderDefaultColor).
			PaddingLeft(1)

	ToggleOnStyle  = lipgloss.NewStyle().Foreground(StatusSuccessColor)
	ToggleOffStyle = lipgloss.NewStyle().Foreground(TextMutedColor).Strikethrough(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	// Error display
	ErrorStyle = lipgloss.NewStyle().
			Foreground(StatusErrorColor).
			Bold(true)
)

// WidgetColor returns the accent color of a fold type's widgets.
func WidgetColor(foldType string) lipgloss.AdaptiveColor {
	switch foldType {
	case "image":
		return WidgetImageColor
	case "link":
		return WidgetLinkColor
	case "math":
		return WidgetMathColor
	case "html":
		return WidgetHTMLColor
	case "emoji":
		return WidgetEmojiColor
	case "embed":
		return WidgetEmbedColor
	}
	return WidgetOtherColor
}
