package fold

import "github.com/zjrosen/mdfold/internal/editor"

// Signals carried by pubsub.SignalEvent events.
const (
	SignalImageReadyToLoad = "image-ready-to-load"
	SignalImageClicked     = "image-clicked"
	SignalMathPreview      = "math-preview"
	SignalMathPreviewHide  = "math-preview-hide"
	SignalCodeRendered     = "code-rendered"
	SignalLinkOpen         = "open-link"
)

// Event is published on the engine's broker. Marker lifecycle uses
// pubsub.CreatedEvent and pubsub.DeletedEvent; folder-specific
// notifications use pubsub.SignalEvent with Signal set.
type Event struct {
	FoldType string
	Signal   string
	Marker   *Marker
	From     editor.Pos
	To       editor.Pos
	// Attrs carries signal details such as "url", "title" or "expr".
	Attrs map[string]string
}
