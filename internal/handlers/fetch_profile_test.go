package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/journeyforge/orchestrator/internal/aigateway"
	"github.com/journeyforge/orchestrator/internal/config"
	"github.com/journeyforge/orchestrator/internal/errtax"
	"github.com/journeyforge/orchestrator/internal/fetcher"
	"github.com/journeyforge/orchestrator/internal/task"
)

type capturingGateway struct {
	lastPrompt string
	doc        aigateway.Document
	err        error
}

func (g *capturingGateway) GenerateStructured(ctx context.Context, prompt string, schema aigateway.Document, tools ...string) (aigateway.Document, error) {
	g.lastPrompt = prompt
	if g.err != nil {
		return nil, g.err
	}
	return g.doc, nil
}
func (g *capturingGateway) GenerateFromPDF(ctx context.Context, pdf []byte, prompt string, schema aigateway.Document) (aigateway.Document, error) {
	return nil, errors.New("not used")
}
func (g *capturingGateway) GenerateVideoSegment(ctx context.Context, prompt string, durationSeconds int, resolution, aspectRatio, continuityRef string) (aigateway.VideoSegmentResult, error) {
	return aigateway.VideoSegmentResult{}, errors.New("not used")
}
func (g *capturingGateway) ConcatVideos(ctx context.Context, segments [][]byte) ([]byte, error) {
	return nil, errors.New("not used")
}

func validProfileDoc() aigateway.Document {
	return aigateway.Document{
		"name":  "Grace Hopper",
		"title": "Rear Admiral, Computer Scientist",
	}
}

func TestFetchProfileAnchorsOnCredentialWhenLinked(t *testing.T) {
	gw := &capturingGateway{doc: validProfileDoc()}
	h := NewFetchProfile(Deps{
		Gateway: gw,
		Fetcher: fetcher.New(fetcher.Config{}),
		Config:  config.Config{FetchBlockedHosts: []string{"walledsite.example"}},
	})

	plan := task.NewPlan("plan_fp1", "job_fp1", task.SourceRef{
		Kind: task.SourceKindURL, URL: "https://walledsite.example/in/gracehopper",
	}, nil, map[string]any{"platform_credential": "tok_abc"})

	tk := &task.Task{TaskID: "task_001", Kind: task.KindFetchProfile}
	_, err := h.Execute(context.Background(), "job_fp1", plan, tk, func(int, string) {})
	if err != nil {
		t.Fatalf("Execute returned %v", err)
	}
	if !strings.Contains(gw.lastPrompt, "verified owner-linked credential") {
		t.Errorf("prompt with a linked credential should anchor on owner-linked fields, got: %s", gw.lastPrompt)
	}
}

func TestFetchProfileFallsBackToSearchGroundingWithoutCredential(t *testing.T) {
	gw := &capturingGateway{doc: validProfileDoc()}
	h := NewFetchProfile(Deps{
		Gateway: gw,
		Fetcher: fetcher.New(fetcher.Config{}),
		Config:  config.Config{FetchBlockedHosts: []string{"walledsite.example"}},
	})

	plan := task.NewPlan("plan_fp2", "job_fp2", task.SourceRef{
		Kind: task.SourceKindURL, URL: "https://walledsite.example/in/gracehopper",
	}, nil, nil)

	tk := &task.Task{TaskID: "task_001", Kind: task.KindFetchProfile}
	_, err := h.Execute(context.Background(), "job_fp2", plan, tk, func(int, string) {})
	if err != nil {
		t.Fatalf("Execute returned %v", err)
	}
	if strings.Contains(gw.lastPrompt, "verified owner-linked credential") {
		t.Errorf("prompt without a linked credential must not claim an owner-linked anchor, got: %s", gw.lastPrompt)
	}
}

func TestFetchProfileRejectsImplausibleProfileAsDomainError(t *testing.T) {
	gw := &capturingGateway{doc: aigateway.Document{"name": ""}}
	h := NewFetchProfile(Deps{Gateway: gw, Config: config.Config{}})

	plan := task.NewPlan("plan_fp3", "job_fp3", task.SourceRef{
		Kind: task.SourceKindURL, URL: "https://example.dev/me",
	}, nil, nil)

	tk := &task.Task{TaskID: "task_001", Kind: task.KindFetchProfile}
	_, err := h.Execute(context.Background(), "job_fp3", plan, tk, func(int, string) {})
	if err == nil {
		t.Fatalf("expected an error for an implausible profile")
	}
	if errtax.ClassOf(err) != errtax.ClassDomain {
		t.Errorf("ClassOf(err) = %v, want ClassDomain", errtax.ClassOf(err))
	}
}
