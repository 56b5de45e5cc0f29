package tracing

// Span names.
const (
	SpanFoldScan    = "fold.scan"
	SpanFoldRequest = "fold.request_range"
	SpanCodeRender  = "codefold.render"
	SpanHideUpdate  = "hidetoken.update"
)

// Attribute keys.
const (
	AttrScanKind       = "fold.scan.kind" // "full" or "quick"
	AttrFromLine       = "fold.scan.from_line"
	AttrToLine         = "fold.scan.to_line"
	AttrMarkersCreated = "fold.markers.created"
	AttrHintsLeft      = "fold.hints.left"
	AttrFoldType       = "fold.type"
	AttrCodeLang       = "codefold.lang"
	AttrRenderer       = "codefold.renderer"
	AttrLines          = "hidetoken.lines"
	AttrErrorMessage   = "error.message"
)

// Scan kinds.
const (
	ScanFull  = "full"
	ScanQuick = "quick"
)
