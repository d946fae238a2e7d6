package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/scheduler"
	"github.com/journeyforge/orchestrator/internal/task"
)

const journeySchemaPrompt = `Transform the profile into a narrative structure with: ` +
	`summary{headline, narrative, career_span, key_themes[]}, ` +
	`milestones[{date, title, description, category, significance, impact_statement}], ` +
	`career_chapters[{title, period, narrative, key_learnings[]}], ` +
	`skills_evolution[{period, stage, milestone, description, skills_acquired[]}], ` +
	`impact_metrics{years_experience, companies_count, projects_count, skills_count}.`

// StructureJourney implements STRUCTURE_JOURNEY (spec.md §4.F.4). On AI
// failure it synthesises a minimal fallback document rather than failing
// the task, per the spec's explicit fallback rule.
type StructureJourney struct{ Deps }

func NewStructureJourney(d Deps) *StructureJourney { return &StructureJourney{Deps: d} }

func (h *StructureJourney) Execute(ctx context.Context, jobID string, plan *task.Plan, t *task.Task, report scheduler.ReportProgress) (any, error) {
	profile := resolveProfile(plan)

	report(20, "structuring narrative")
	doc, err := h.Gateway.GenerateStructured(ctx, journeySchemaPrompt+" Profile name: "+profile.Name, journeySchema())
	if err != nil {
		slog.Warn("structure_journey: ai generation failed, using fallback", "job_id", jobID, "error", err)
		report(100, "using fallback narrative after ai failure")
		return domain.FallbackJourney(profile, err.Error()), nil
	}

	var journey domain.Journey
	if err := decode(doc, &journey); err != nil {
		slog.Warn("structure_journey: decode failed, using fallback", "job_id", jobID, "error", err)
		return domain.FallbackJourney(profile, fmt.Sprintf("decode error: %v", err)), nil
	}

	report(100, "journey structured")
	return journey, nil
}

// resolveProfile reads the merged profile if AGGREGATE_HISTORY ran,
// otherwise the enriched one, otherwise the raw fetched one. Shared by every
// handler downstream of FETCH_PROFILE.
func resolveProfile(plan *task.Plan) domain.Profile {
	if merged, ok := plan.ResultData[task.KindAggregateHistory].(domain.MergedProfile); ok {
		return merged.Profile
	}
	if enriched, ok := plan.ResultData[task.KindEnrichProfile].(domain.EnrichedProfile); ok {
		return enriched.Profile
	}
	if profile, ok := plan.ResultData[task.KindFetchProfile].(domain.Profile); ok {
		return profile
	}
	return domain.Profile{}
}

func journeySchema() map[string]any {
	return map[string]any{
		"type": "journey",
		"fields": []string{
			"summary", "milestones", "career_chapters", "skills_evolution", "impact_metrics",
		},
	}
}
