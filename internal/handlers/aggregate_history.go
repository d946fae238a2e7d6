package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/scheduler"
	"github.com/journeyforge/orchestrator/internal/store"
	"github.com/journeyforge/orchestrator/internal/task"
)

// AggregateHistory implements AGGREGATE_HISTORY (spec.md §4.F.3).
type AggregateHistory struct{ Deps }

func NewAggregateHistory(d Deps) *AggregateHistory { return &AggregateHistory{Deps: d} }

func (h *AggregateHistory) Execute(ctx context.Context, jobID string, plan *task.Plan, t *task.Task, report scheduler.ReportProgress) (any, error) {
	enrichedAny := plan.ResultData[task.KindEnrichProfile]
	enriched, _ := enrichedAny.(domain.EnrichedProfile)

	ownerRef, _ := plan.Options["guest_id"].(string)
	historyID, _ := plan.Options["history_id"].(string)

	report(10, "loading prior history")
	var priorRows []store.HistoryRow
	if h.Store != nil && ownerRef != "" {
		rows, err := h.Store.ListByOwner(ctx, ownerRef)
		if err != nil {
			slog.Warn("aggregate_history: list_by_owner failed, treating as first record", "job_id", jobID, "error", err)
		} else {
			priorRows = excludeHistoryID(rows, historyID)
		}
	}

	if len(enriched.ScrapedContent) == 0 && len(priorRows) == 0 {
		merged := domain.MergedProfile{Profile: enriched.Profile, Aggregated: false, FirstRecord: true}
		h.persist(ctx, jobID, historyID, merged)
		report(100, "first record, nothing to merge")
		return merged, nil
	}

	report(40, "merging with prior records and scraped sources")
	prompt := buildMergePrompt(enriched, priorRows)
	doc, err := h.Gateway.GenerateStructured(ctx, prompt, profileSchema())
	if err != nil {
		return nil, fmt.Errorf("generate_structured: %w", err)
	}

	var profile domain.Profile
	if err := decode(doc, &profile); err != nil {
		return nil, err
	}
	merged := domain.MergedProfile{Profile: profile, Aggregated: true, FirstRecord: false}

	h.persistRaw(ctx, jobID, historyID, enriched)
	h.persist(ctx, jobID, historyID, merged)

	report(100, "aggregation complete")
	return merged, nil
}

func excludeHistoryID(rows []store.HistoryRow, excludeID string) []store.HistoryRow {
	if excludeID == "" {
		return withNonEmptyData(rows)
	}
	var out []store.HistoryRow
	for _, r := range rows {
		if r.HistoryID != excludeID {
			out = append(out, r)
		}
	}
	return withNonEmptyData(out)
}

func withNonEmptyData(rows []store.HistoryRow) []store.HistoryRow {
	var out []store.HistoryRow
	for _, r := range rows {
		if len(r.Data) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func buildMergePrompt(enriched domain.EnrichedProfile, priorRows []store.HistoryRow) string {
	return fmt.Sprintf(
		"Merge the current profile with %d prior history records and %d scraped sources. "+
			"Chronologically merge experiences and projects, deduplicate, track skill evolution, "+
			"and enrich achievements from the scraped sources. Current profile name: %s.",
		len(priorRows), len(enriched.ScrapedContent), enriched.Profile.Name,
	)
}

func (h *AggregateHistory) persist(ctx context.Context, jobID, historyID string, merged domain.MergedProfile) {
	if h.Store == nil || historyID == "" {
		return
	}
	if err := h.Store.WriteField(ctx, historyID, store.FieldStructuredMerged, merged); err != nil {
		slog.Warn("aggregate_history: persist merged profile failed", "job_id", jobID, "error", err)
	}
}

func (h *AggregateHistory) persistRaw(ctx context.Context, jobID, historyID string, enriched domain.EnrichedProfile) {
	if h.Store == nil || historyID == "" {
		return
	}
	if err := h.Store.WriteField(ctx, historyID, store.FieldRaw, enriched); err != nil {
		slog.Warn("aggregate_history: persist raw input failed", "job_id", jobID, "error", err)
	}
}
