package handlers

import (
	"context"
	"fmt"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/scheduler"
	"github.com/journeyforge/orchestrator/internal/task"
)

const timelineSchemaPrompt = `Build a timeline visualization with: ` +
	`events[{id, date, end_date, title, subtitle, description, category, media, tags[]}] ` +
	`and eras[{name, start_date, end_date, color}].`

// GenerateTimeline implements GENERATE_TIMELINE (spec.md §4.F.5).
type GenerateTimeline struct{ Deps }

func NewGenerateTimeline(d Deps) *GenerateTimeline { return &GenerateTimeline{Deps: d} }

func (h *GenerateTimeline) Execute(ctx context.Context, jobID string, plan *task.Plan, t *task.Task, report scheduler.ReportProgress) (any, error) {
	journey, _ := plan.ResultData[task.KindStructureJourney].(domain.Journey)

	report(20, "generating timeline")
	doc, err := h.Gateway.GenerateStructured(ctx, timelineSchemaPrompt+" Headline: "+journey.Summary.Headline, timelineSchema())
	if err != nil {
		return nil, fmt.Errorf("generate_structured: %w", err)
	}

	var timeline domain.Timeline
	if err := decode(doc, &timeline); err != nil {
		return nil, err
	}
	// category -> color/icon is a fixed mapping, never left to the model.
	timeline.ApplyCategoryMappings()

	report(100, "timeline generated")
	return timeline, nil
}

func timelineSchema() map[string]any {
	return map[string]any{
		"type":   "timeline",
		"fields": []string{"events", "eras"},
	}
}
