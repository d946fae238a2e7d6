// Package aigateway defines the single abstraction the core depends on for
// text/JSON generation, PDF ingestion, and video synthesis. Concrete
// providers (Gemini, etc.) live outside this module; prompts and
// provider-specific wire formats are deliberately opaque here.
package aigateway

import "context"

// Tool names recognised by generate_structured's tools parameter.
const (
	ToolWebSearchGrounding = "web-search-grounding"
	ToolURLInlineContext   = "url-inline-context"
)

// Document is the opaque JSON shape exchanged at the AI boundary. Stage
// handlers decode a Document into a typed result struct (via mapstructure)
// immediately after receiving it; what they send is a prompt string plus a
// fixed schema Document.
type Document = map[string]any

// VideoSegmentResult is what GenerateVideoSegment returns: a provider handle
// usable as a later continuity reference, plus the raw bytes of the clip.
type VideoSegmentResult struct {
	Handle string
	Bytes  []byte
}

// Gateway is the AI provider abstraction the scheduler calls into from
// stage handlers. Every method is expected to be long-latency (tens of
// seconds to minutes) and to occasionally fail transiently; retry and
// timeout policy live in the scheduler, not here.
type Gateway interface {
	// GenerateStructured produces a JSON document conforming to schema,
	// optionally using the named tools (web search grounding, inline URL
	// context).
	GenerateStructured(ctx context.Context, prompt string, schema Document, tools ...string) (Document, error)

	// GenerateFromPDF ingests a PDF's bytes and produces a JSON document
	// conforming to schema.
	GenerateFromPDF(ctx context.Context, pdf []byte, prompt string, schema Document) (Document, error)

	// GenerateVideoSegment synthesizes one video segment. continuityRef, if
	// non-empty, is the Handle from a prior call, so the provider can keep
	// character/visual identity consistent across segments.
	GenerateVideoSegment(ctx context.Context, prompt string, durationSeconds int, resolution, aspectRatio, continuityRef string) (VideoSegmentResult, error)

	// ConcatVideos merges segment bytes, in order, into one video.
	ConcatVideos(ctx context.Context, segments [][]byte) ([]byte, error)
}
