package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/journeyforge/orchestrator/internal/aigateway"
	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/store"
	"github.com/journeyforge/orchestrator/internal/task"
)

type stubGateway struct {
	doc aigateway.Document
	err error
}

func (g *stubGateway) GenerateStructured(ctx context.Context, prompt string, schema aigateway.Document, tools ...string) (aigateway.Document, error) {
	return g.doc, g.err
}
func (g *stubGateway) GenerateFromPDF(ctx context.Context, pdf []byte, prompt string, schema aigateway.Document) (aigateway.Document, error) {
	return nil, errors.New("not used")
}
func (g *stubGateway) GenerateVideoSegment(ctx context.Context, prompt string, durationSeconds int, resolution, aspectRatio, continuityRef string) (aigateway.VideoSegmentResult, error) {
	return aigateway.VideoSegmentResult{}, errors.New("not used")
}
func (g *stubGateway) ConcatVideos(ctx context.Context, segments [][]byte) ([]byte, error) {
	return nil, errors.New("not used")
}

type stubOwnerStore struct {
	rows []store.HistoryRow
}

func (s *stubOwnerStore) CreateJobRow(ctx context.Context, ownerRef, sourceRef string) (string, error) {
	return "hist_1", nil
}
func (s *stubOwnerStore) WriteField(ctx context.Context, historyID, key string, document any) error {
	return nil
}
func (s *stubOwnerStore) ReadStructured(ctx context.Context, historyID string) (map[string]any, error) {
	return nil, errors.New("not used")
}
func (s *stubOwnerStore) ListByOwner(ctx context.Context, ownerRef string) ([]store.HistoryRow, error) {
	return s.rows, nil
}
func (s *stubOwnerStore) FetchBlob(ctx context.Context, handle string) ([]byte, error) {
	return nil, errors.New("not used")
}
func (s *stubOwnerStore) DeleteBlob(ctx context.Context, handle string) error { return nil }
func (s *stubOwnerStore) UploadBlob(ctx context.Context, name string, data []byte) (string, error) {
	return "", errors.New("not used")
}

func TestAggregateHistoryFirstRecordSkipsGateway(t *testing.T) {
	gw := &stubGateway{err: errors.New("should never be called")}
	h := NewAggregateHistory(Deps{Gateway: gw, Store: &stubOwnerStore{}})

	plan := task.NewPlan("plan_a1", "job_a1", task.SourceRef{}, nil, map[string]any{"guest_id": "guest_1"})
	plan.ResultData[task.KindEnrichProfile] = domain.EnrichedProfile{Profile: domain.Profile{Name: "New Person"}}

	tk := &task.Task{TaskID: "task_003", Kind: task.KindAggregateHistory}
	out, err := h.Execute(context.Background(), "job_a1", plan, tk, func(int, string) {})
	if err != nil {
		t.Fatalf("Execute returned %v, want nil (first record never calls the gateway)", err)
	}
	merged, ok := out.(domain.MergedProfile)
	if !ok || !merged.FirstRecord || merged.Aggregated {
		t.Fatalf("out = %+v, want FirstRecord=true, Aggregated=false", out)
	}
}

func TestAggregateHistoryPropagatesGatewayFailureWhenMergeIsNeeded(t *testing.T) {
	gw := &stubGateway{err: errors.New("gateway unavailable")}
	priorRows := []store.HistoryRow{{HistoryID: "hist_old", Data: map[string]any{"name": "Prior Person"}}}
	h := NewAggregateHistory(Deps{Gateway: gw, Store: &stubOwnerStore{rows: priorRows}})

	plan := task.NewPlan("plan_a2", "job_a2", task.SourceRef{}, nil, map[string]any{"guest_id": "guest_1"})
	plan.ResultData[task.KindEnrichProfile] = domain.EnrichedProfile{Profile: domain.Profile{Name: "New Person"}}

	tk := &task.Task{TaskID: "task_003", Kind: task.KindAggregateHistory}
	_, err := h.Execute(context.Background(), "job_a2", plan, tk, func(int, string) {})
	if err == nil {
		t.Fatalf("expected the gateway failure to propagate when there are prior records to merge")
	}
}
