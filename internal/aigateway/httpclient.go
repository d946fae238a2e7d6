package aigateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/journeyforge/orchestrator/internal/errtax"
)

// HTTPGateway is a concrete Gateway backed by a single JSON HTTP
// endpoint. The wire format of the provider is deliberately opaque: every
// request is a generic "operation" envelope and every response is decoded as
// an untyped Document.
type HTTPGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
	tracer   trace.Tracer
}

// NewHTTPGateway builds a Gateway that calls endpoint for every operation,
// authenticating with apiKey via a bearer header.
func NewHTTPGateway(endpoint, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		tracer: otel.Tracer("journeyforge-aigateway"),
	}
}

func (g *HTTPGateway) GenerateStructured(ctx context.Context, prompt string, schema Document, tools ...string) (Document, error) {
	ctx, span := g.tracer.Start(ctx, "aigateway.generate_structured",
		trace.WithAttributes(attribute.StringSlice("tools", tools)))
	defer span.End()

	var out Document
	err := g.call(ctx, "generate_structured", map[string]any{
		"prompt": prompt,
		"schema": schema,
		"tools":  tools,
	}, &out)
	return out, err
}

func (g *HTTPGateway) GenerateFromPDF(ctx context.Context, pdf []byte, prompt string, schema Document) (Document, error) {
	ctx, span := g.tracer.Start(ctx, "aigateway.generate_from_pdf")
	defer span.End()

	var out Document
	err := g.call(ctx, "generate_from_pdf", map[string]any{
		"prompt": prompt,
		"schema": schema,
		"pdf":    pdf,
	}, &out)
	return out, err
}

func (g *HTTPGateway) GenerateVideoSegment(ctx context.Context, prompt string, durationSeconds int, resolution, aspectRatio, continuityRef string) (VideoSegmentResult, error) {
	ctx, span := g.tracer.Start(ctx, "aigateway.generate_video_segment",
		trace.WithAttributes(attribute.Int("duration_seconds", durationSeconds)))
	defer span.End()

	var out struct {
		Handle string `json:"handle"`
		Bytes  []byte `json:"bytes"`
	}
	err := g.call(ctx, "generate_video_segment", map[string]any{
		"prompt":           prompt,
		"duration_seconds": durationSeconds,
		"resolution":       resolution,
		"aspect_ratio":     aspectRatio,
		"continuity_ref":   continuityRef,
	}, &out)
	if err != nil {
		return VideoSegmentResult{}, err
	}
	return VideoSegmentResult{Handle: out.Handle, Bytes: out.Bytes}, nil
}

func (g *HTTPGateway) ConcatVideos(ctx context.Context, segments [][]byte) ([]byte, error) {
	ctx, span := g.tracer.Start(ctx, "aigateway.concat_videos",
		trace.WithAttributes(attribute.Int("segment_count", len(segments))))
	defer span.End()

	var out struct {
		Bytes []byte `json:"bytes"`
	}
	err := g.call(ctx, "concat_videos", map[string]any{"segments": segments}, &out)
	return out.Bytes, err
}

// call POSTs a JSON envelope {"operation": op, "input": input} to g.endpoint
// and decodes the response body into out. Errors are classified per
// spec.md §7: connection/timeout failures and 429/5xx responses are
// transient (retryable by the scheduler); any other 4xx is permanent.
func (g *HTTPGateway) call(ctx context.Context, op string, input map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"operation": op, "input": input})
	if err != nil {
		return errtax.Internal(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return errtax.Internal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagationHeaderCarrier{req.Header})

	resp, err := g.client.Do(req)
	if err != nil {
		return errtax.Transient(fmt.Errorf("ai gateway request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return errtax.Transient(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return errtax.Transient(fmt.Errorf("ai gateway %s: http %d: %s", op, resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode >= 400 {
		return errtax.Permanent(fmt.Errorf("ai gateway %s: http %d: %s", op, resp.StatusCode, string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errtax.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

type propagationHeaderCarrier struct{ h http.Header }

func (c propagationHeaderCarrier) Get(key string) string       { return c.h.Get(key) }
func (c propagationHeaderCarrier) Set(key, value string)       { c.h.Set(key, value) }
func (c propagationHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.h))
	for k := range c.h {
		keys = append(keys, k)
	}
	return keys
}
