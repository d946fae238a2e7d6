// Package task defines the DAG node and job shapes shared by the planner,
// scheduler, handlers, and job registry.
package task

import (
	"sync"
	"time"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// Terminal reports whether s is one of the states that ends a task's life.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Kind enumerates the stage types the planner can emit.
type Kind string

const (
	KindFetchProfile        Kind = "FETCH_PROFILE"
	KindEnrichProfile       Kind = "ENRICH_PROFILE"
	KindAggregateHistory    Kind = "AGGREGATE_HISTORY"
	KindStructureJourney    Kind = "STRUCTURE_JOURNEY"
	KindGenerateTimeline    Kind = "GENERATE_TIMELINE"
	KindGenerateDocumentary Kind = "GENERATE_DOCUMENTARY"
	KindGenerateVideo       Kind = "GENERATE_VIDEO"
)

// Task is one node in a Plan's DAG.
type Task struct {
	TaskID           string   `json:"task_id"`
	Kind             Kind     `json:"kind"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Order            int      `json:"order"`
	Deps             []string `json:"dependencies"`
	Critical         bool     `json:"critical"`
	MaxRetries       int      `json:"max_retries"`
	EstimatedSeconds int      `json:"estimated_seconds"`

	// Mutable fields; only the scheduler and the task's own handler may
	// write these, and only while holding the owning Plan's lock.
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Outputs     any        `json:"outputs,omitempty"`
}

// Clone returns a value copy of t, safe to hand to callers outside the lock.
func (t *Task) Clone() Task {
	cp := *t
	if t.Deps != nil {
		cp.Deps = append([]string(nil), t.Deps...)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	return cp
}

// SourceKind distinguishes the two ways a job can be seeded.
type SourceKind string

const (
	SourceKindURL    SourceKind = "url"
	SourceKindResume SourceKind = "resume"
)

// SourceRef names what FETCH_PROFILE should pull from.
type SourceRef struct {
	Kind SourceKind `json:"source_kind"`
	// URL is set when Kind == SourceKindURL.
	URL string `json:"url,omitempty"`
	// DocumentHandle is an opaque blob reference when Kind == SourceKindResume.
	DocumentHandle string `json:"document_handle,omitempty"`
}

// PlanStatus mirrors Status but is tracked independently at the plan level;
// both use the same string values so wire payloads share one vocabulary.
type PlanStatus = Status

// Plan is one job: an ordered DAG of tasks plus shared execution state.
type Plan struct {
	mu sync.RWMutex

	PlanID        string
	JobID         string
	SourceRef     SourceRef
	Tasks         []*Task
	Options       map[string]any
	Status        PlanStatus
	CurrentTaskID string
	CreatedAt     time.Time
	CompletedAt   *time.Time
	ResultData    map[Kind]any
}

// NewPlan constructs a Plan in PENDING status with the given ordered tasks.
func NewPlan(planID, jobID string, ref SourceRef, tasks []*Task, options map[string]any) *Plan {
	if options == nil {
		options = map[string]any{}
	}
	return &Plan{
		PlanID:     planID,
		JobID:      jobID,
		SourceRef:  ref,
		Tasks:      tasks,
		Options:    options,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
		ResultData: make(map[Kind]any),
	}
}

// Lock/Unlock/RLock/RUnlock expose the plan's mutex so the scheduler can take
// an exclusive borrow for the duration of one task's execution, and readers
// (status polling, event snapshot building) can take a shared borrow.
func (p *Plan) Lock()    { p.mu.Lock() }
func (p *Plan) Unlock()  { p.mu.Unlock() }
func (p *Plan) RLock()   { p.mu.RLock() }
func (p *Plan) RUnlock() { p.mu.RUnlock() }

// TaskByID returns the task with the given id, or nil. Caller must hold a
// lock (shared is sufficient for reads).
func (p *Plan) TaskByID(id string) *Task {
	for _, t := range p.Tasks {
		if t.TaskID == id {
			return t
		}
	}
	return nil
}

// Progress computes floor(completed / total * 100) over terminal-completed
// tasks. Caller must hold a lock.
func (p *Plan) Progress() int {
	if len(p.Tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range p.Tasks {
		if t.Status == StatusCompleted {
			completed++
		}
	}
	return completed * 100 / len(p.Tasks)
}

// CompletedTasks counts tasks in StatusCompleted. Caller must hold a lock.
func (p *Plan) CompletedTasks() int {
	n := 0
	for _, t := range p.Tasks {
		if t.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// Snapshot is the wire/storage representation of a Plan, safe to marshal
// after releasing the plan's lock.
type Snapshot struct {
	PlanID        string         `json:"plan_id"`
	JobID         string         `json:"job_id"`
	SourceRef     SourceRef      `json:"source_ref"`
	Status        PlanStatus     `json:"status"`
	Progress      int            `json:"progress"`
	CurrentTaskID string         `json:"current_task_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Tasks         []TaskSnapshot `json:"tasks"`
	TotalTasks    int            `json:"total_tasks"`
	CompletedTask int            `json:"completed_tasks"`
}

// TaskSnapshot is the wire representation of a Task.
type TaskSnapshot struct {
	TaskID           string     `json:"task_id"`
	Kind             Kind       `json:"kind"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Order            int        `json:"order"`
	Status           Status     `json:"status"`
	Progress         int        `json:"progress"`
	Message          string     `json:"message"`
	Dependencies     []string   `json:"dependencies"`
	Error            string     `json:"error,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	EstimatedSeconds int        `json:"estimated_seconds"`
	Critical         bool       `json:"critical"`
}

// ToSnapshot converts t to its wire shape.
func (t *Task) ToSnapshot() TaskSnapshot {
	return TaskSnapshot{
		TaskID:           t.TaskID,
		Kind:             t.Kind,
		Name:             t.Name,
		Description:      t.Description,
		Order:            t.Order,
		Status:           t.Status,
		Progress:         t.Progress,
		Message:          t.Message,
		Dependencies:     append([]string(nil), t.Deps...),
		Error:            t.Error,
		StartedAt:        t.StartedAt,
		CompletedAt:      t.CompletedAt,
		EstimatedSeconds: t.EstimatedSeconds,
		Critical:         t.Critical,
	}
}

// ToSnapshot converts the plan to its wire shape. Caller must hold at least
// a read lock.
func (p *Plan) ToSnapshot() Snapshot {
	tasks := make([]TaskSnapshot, len(p.Tasks))
	for i, t := range p.Tasks {
		tasks[i] = t.ToSnapshot()
	}
	return Snapshot{
		PlanID:        p.PlanID,
		JobID:         p.JobID,
		SourceRef:     p.SourceRef,
		Status:        p.Status,
		Progress:      p.Progress(),
		CurrentTaskID: p.CurrentTaskID,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
		Tasks:         tasks,
		TotalTasks:    len(p.Tasks),
		CompletedTask: p.CompletedTasks(),
	}
}
