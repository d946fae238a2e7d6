package handlers

import (
	"context"
	"fmt"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/errtax"
	"github.com/journeyforge/orchestrator/internal/scheduler"
	"github.com/journeyforge/orchestrator/internal/store"
	"github.com/journeyforge/orchestrator/internal/task"
)

const documentarySchemaPrompt = `Craft a short documentary with: ` +
	`title, tagline, duration_estimate, opening_hook, closing_statement, and ` +
	`segments[{id, order, title, duration_seconds (8), visual_description (required), ` +
	`narration (required, 10-15 words), mood, background_music_hint, data_visualization}].`

// GenerateDocumentary implements GENERATE_DOCUMENTARY (spec.md §4.F.6). It
// also serves the documentary-only replan mode, reading the persisted
// profile/journey from the store instead of the plan's result map when no
// prior tasks ran in this plan.
type GenerateDocumentary struct{ Deps }

func NewGenerateDocumentary(d Deps) *GenerateDocumentary { return &GenerateDocumentary{Deps: d} }

func (h *GenerateDocumentary) Execute(ctx context.Context, jobID string, plan *task.Plan, t *task.Task, report scheduler.ReportProgress) (any, error) {
	profile, journey, err := h.resolveInputs(ctx, plan)
	if err != nil {
		return nil, err
	}

	report(20, "generating documentary script")
	doc, err := h.Gateway.GenerateStructured(ctx,
		fmt.Sprintf("%s Subject: %s. Headline: %s.", documentarySchemaPrompt, profile.Name, journey.Summary.Headline),
		documentarySchema())
	if err != nil {
		return nil, fmt.Errorf("generate_structured: %w", err)
	}

	var documentary domain.Documentary
	if err := decode(doc, &documentary); err != nil {
		return nil, err
	}

	if !documentary.Valid() {
		return nil, errtax.Domain(fmt.Errorf("documentary rejected: segments empty or none carry both narration and visual_description"))
	}

	if historyID, _ := plan.Options["history_id"].(string); h.Store != nil && historyID != "" {
		if err := h.Store.WriteField(ctx, historyID, store.FieldStructuredDocu, documentary); err != nil {
			report(90, fmt.Sprintf("documentary persisted with a non-fatal store error: %v", err))
		}
	}

	report(100, "documentary complete")
	return documentary, nil
}

func (h *GenerateDocumentary) resolveInputs(ctx context.Context, plan *task.Plan) (domain.Profile, domain.Journey, error) {
	if journey, ok := plan.ResultData[task.KindStructureJourney].(domain.Journey); ok {
		return resolveProfile(plan), journey, nil
	}

	// documentary-only mode: nothing ran earlier in this plan, read from store.
	historyID, _ := plan.Options["history_id"].(string)
	if h.Store == nil || historyID == "" {
		return domain.Profile{}, domain.Journey{}, errtax.Domain(fmt.Errorf("generate_documentary: no journey in plan and no history_id to load one from the store"))
	}
	merged, err := h.Store.ReadStructured(ctx, historyID)
	if err != nil {
		return domain.Profile{}, domain.Journey{}, fmt.Errorf("read_structured: %w", err)
	}
	var profile domain.Profile
	var journey domain.Journey
	_ = decode(merged, &profile)
	_ = decode(merged, &journey)
	return profile, journey, nil
}

func documentarySchema() map[string]any {
	return map[string]any{
		"type":   "documentary",
		"fields": []string{"title", "tagline", "duration_estimate", "segments", "opening_hook", "closing_statement"},
	}
}
