// Package events fans out per-job progress events to any number of
// subscribers, in the publish-then-release-lock shape the scheduler needs
// to avoid a slow peer blocking the rest.
package events

import (
	"time"

	"github.com/journeyforge/orchestrator/internal/task"
)

// Kind enumerates the wire event kinds a job can emit.
type Kind string

const (
	KindConnected      Kind = "connected"
	KindPlanStarted    Kind = "plan_started"
	KindTaskStarted    Kind = "task_started"
	KindTaskProgress   Kind = "task_progress"
	KindTaskCompleted  Kind = "task_completed"
	KindTaskRetrying   Kind = "task_retrying"
	KindTaskFailed     Kind = "task_failed"
	KindPlanCompleted  Kind = "plan_completed"
	KindPlanFailed     Kind = "plan_failed"
	KindInitialStatus  Kind = "initial_status"
	KindStatusResponse Kind = "status_response"
)

// Payload carries either a task snapshot (plus plan progress) or a plan
// snapshot, per spec.md §6 "Event schema (wire)".
type Payload struct {
	Task         *task.TaskSnapshot `json:"task,omitempty"`
	PlanProgress *int               `json:"plan_progress,omitempty"`
	Plan         *task.Snapshot     `json:"plan,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Event is one message published on the bus for a given job.
type Event struct {
	EventKind Kind      `json:"event"`
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      Payload   `json:"data"`
}

// TaskEvent builds a task-shaped event stamped with the current time.
func TaskEvent(kind Kind, jobID string, t task.TaskSnapshot, planProgress int) Event {
	return Event{
		EventKind: kind,
		JobID:     jobID,
		Timestamp: time.Now(),
		Data: Payload{
			Task:         &t,
			PlanProgress: &planProgress,
		},
	}
}

// PlanEvent builds a plan-shaped event stamped with the current time.
func PlanEvent(kind Kind, jobID string, p task.Snapshot) Event {
	return Event{
		EventKind: kind,
		JobID:     jobID,
		Timestamp: time.Now(),
		Data: Payload{
			Plan: &p,
		},
	}
}

// PlanFailedEvent builds a plan_failed event carrying the causing error.
func PlanFailedEvent(jobID string, p task.Snapshot, cause string) Event {
	return Event{
		EventKind: KindPlanFailed,
		JobID:     jobID,
		Timestamp: time.Now(),
		Data: Payload{
			Plan:  &p,
			Error: cause,
		},
	}
}
