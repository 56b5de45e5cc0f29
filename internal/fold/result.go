package fold

// RequestResult is the outcome of Stream.RequestRange.
type RequestResult string

const (
	// OK means the range may be folded.
	OK RequestResult = "ok"
	// CursorInside means a selection touches the range or its clear range;
	// it would be foldable once the cursor leaves.
	CursorInside RequestResult = "ci"
	// HasMarkers means another marker already owns part of the range.
	HasMarkers RequestResult = "hm"
)
