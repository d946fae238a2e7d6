// Package planner builds the per-job Task DAG. It has no state of its own:
// given a source reference and options it returns one of three prebuilt
// shapes, per spec.md §4.G.
package planner

import (
	"github.com/google/uuid"

	"github.com/journeyforge/orchestrator/internal/task"
)

// Mode selects which prebuilt task shape to emit.
type Mode string

const (
	// ModeStandard is the full six-task chain from a fresh profile source.
	ModeStandard Mode = "standard"
	// ModeDocumentaryOnly regenerates just the documentary from a persisted
	// profile/journey.
	ModeDocumentaryOnly Mode = "documentary_only"
	// ModeVideoOnly regenerates just the video from a persisted documentary.
	ModeVideoOnly Mode = "video_only"
)

// NewJobID mints a job id: "prof_" followed by 12 hex characters.
func NewJobID() string {
	return "prof_" + shortHex()
}

// NewPlanID mints a plan id: "plan_" followed by 12 hex characters.
func NewPlanID() string {
	return "plan_" + shortHex()
}

func shortHex() string {
	id := uuid.New()
	enc := id.String()
	// strip hyphens, take the first 12 hex characters
	out := make([]byte, 0, 12)
	for i := 0; i < len(enc) && len(out) < 12; i++ {
		if enc[i] == '-' {
			continue
		}
		out = append(out, enc[i])
	}
	return string(out)
}

// Plan builds a Plan for jobID in the given mode. ref and options are carried
// onto the Plan unchanged; handlers interpret them.
func Plan(jobID string, ref task.SourceRef, mode Mode, options map[string]any) *task.Plan {
	var tasks []*task.Task
	switch mode {
	case ModeDocumentaryOnly:
		tasks = documentaryOnlyChain()
	case ModeVideoOnly:
		tasks = videoOnlyChain()
	default:
		tasks = standardChain()
	}
	return task.NewPlan(NewPlanID(), jobID, ref, tasks, options)
}

// standardChain is the reference six-task pipeline:
// FETCH_PROFILE -> ENRICH_PROFILE -> AGGREGATE_HISTORY -> STRUCTURE_JOURNEY
// -> {GENERATE_TIMELINE, GENERATE_DOCUMENTARY}.
//
// task_005 and task_006 declare a dependency on task_001 in addition to
// task_004, which is transitively already satisfied by task_004's own chain
// back to task_001. The declaration is redundant but preserved, per
// spec.md's Open Question #1.
func standardChain() []*task.Task {
	return []*task.Task{
		{
			TaskID:           "task_001",
			Kind:             task.KindFetchProfile,
			Name:             "Extracting Profile Data",
			Description:      "Fetching and analyzing profile data from the source",
			Order:            1,
			Deps:             nil,
			Critical:         true,
			MaxRetries:       2,
			EstimatedSeconds: 60,
			Status:           task.StatusPending,
		},
		{
			TaskID:           "task_002",
			Kind:             task.KindEnrichProfile,
			Name:             "Enriching Profile",
			Description:      "Discovering and aggregating data from related sources",
			Order:            2,
			Deps:             []string{"task_001"},
			Critical:         false,
			MaxRetries:       2,
			EstimatedSeconds: 30,
			Status:           task.StatusPending,
		},
		{
			TaskID:           "task_003",
			Kind:             task.KindAggregateHistory,
			Name:             "Aggregating History",
			Description:      "Merging with existing profile history for comprehensive view",
			Order:            3,
			Deps:             []string{"task_002"},
			Critical:         false,
			MaxRetries:       2,
			EstimatedSeconds: 25,
			Status:           task.StatusPending,
		},
		{
			TaskID:           "task_004",
			Kind:             task.KindStructureJourney,
			Name:             "Structuring Journey",
			Description:      "Transforming profile data into a narrative structure",
			Order:            4,
			Deps:             []string{"task_003"},
			Critical:         false,
			MaxRetries:       2,
			EstimatedSeconds: 20,
			Status:           task.StatusPending,
		},
		{
			TaskID:           "task_005",
			Kind:             task.KindGenerateTimeline,
			Name:             "Generating Timeline",
			Description:      "Creating timeline visualization data",
			Order:            5,
			Deps:             []string{"task_001", "task_004"},
			Critical:         false,
			MaxRetries:       2,
			EstimatedSeconds: 20,
			Status:           task.StatusPending,
		},
		{
			TaskID:           "task_006",
			Kind:             task.KindGenerateDocumentary,
			Name:             "Creating Documentary",
			Description:      "Crafting documentary narrative and video segments",
			Order:            6,
			Deps:             []string{"task_001", "task_004"},
			Critical:         false,
			MaxRetries:       2,
			EstimatedSeconds: 20,
			Status:           task.StatusPending,
		},
	}
}

func documentaryOnlyChain() []*task.Task {
	return []*task.Task{
		{
			TaskID:           "task_001",
			Kind:             task.KindGenerateDocumentary,
			Name:             "Creating Documentary",
			Description:      "Crafting documentary narrative and video segments from a persisted journey",
			Order:            1,
			Deps:             nil,
			Critical:         true,
			MaxRetries:       2,
			EstimatedSeconds: 20,
			Status:           task.StatusPending,
		},
	}
}

func videoOnlyChain() []*task.Task {
	return []*task.Task{
		{
			TaskID:           "task_001",
			Kind:             task.KindGenerateVideo,
			Name:             "Generating Video",
			Description:      "Synthesizing video segments from a persisted documentary",
			Order:            1,
			Deps:             nil,
			Critical:         true,
			MaxRetries:       2,
			EstimatedSeconds: 120,
			Status:           task.StatusPending,
		},
	}
}
