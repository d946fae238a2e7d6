// Package scheduler drives a Plan's DAG to completion: it picks tasks in
// ascending order, skips those whose dependencies did not land in a
// COMPLETED or SKIPPED state, retries failed non-terminal attempts with
// exponential backoff, and reports every transition through the event bus.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/journeyforge/orchestrator/internal/errtax"
	"github.com/journeyforge/orchestrator/internal/events"
	"github.com/journeyforge/orchestrator/internal/task"
)

// ReportProgress lets a handler push an interim progress/message update for
// the task it is currently executing, without touching task.Status (that
// remains the scheduler's exclusive responsibility).
type ReportProgress func(progress int, message string)

// Handler is the common per-stage contract, per spec.md §4's "Common
// contract". Execute returns the task's output document, or an error which
// the scheduler treats as a single failed attempt for retry accounting.
type Handler interface {
	Execute(ctx context.Context, jobID string, plan *task.Plan, t *task.Task, report ReportProgress) (any, error)
}

// ErrAlreadyExecuting is returned by Execute when jobID is already running.
var ErrAlreadyExecuting = errors.New("scheduler: job already executing")

// Scheduler owns the dispatch table and the duplicate-execution guard. One
// Scheduler instance is shared by every job in the process.
type Scheduler struct {
	bus      *events.Bus
	handlers map[task.Kind]Handler

	mu        sync.Mutex
	executing map[string]context.CancelFunc

	tracer trace.Tracer

	retries  metric.Int64Counter
	skips    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// New constructs a Scheduler. handlers maps each stage kind to the handler
// that implements it; a kind absent from the map fails any task of that kind
// as an internal error.
func New(bus *events.Bus, handlers map[task.Kind]Handler) *Scheduler {
	meter := otel.GetMeterProvider().Meter("journeyforge-scheduler")
	retries, _ := meter.Int64Counter("journey_scheduler_task_retries_total")
	skips, _ := meter.Int64Counter("journey_scheduler_task_skipped_total")
	failures, _ := meter.Int64Counter("journey_scheduler_task_failures_total")
	duration, _ := meter.Float64Histogram("journey_scheduler_task_duration_ms")
	return &Scheduler{
		bus:       bus,
		handlers:  handlers,
		executing: make(map[string]context.CancelFunc),
		tracer:    otel.Tracer("journeyforge-scheduler"),
		retries:   retries,
		skips:     skips,
		failures:  failures,
		duration:  duration,
	}
}

// Execute drives plan's tasks to completion. It returns ErrAlreadyExecuting
// if plan.JobID is already running, and is a no-op (nil error) if the plan is
// already in a terminal state. Callers normally invoke this in a goroutine;
// it blocks until the plan reaches a terminal state or ctx is cancelled.
func (s *Scheduler) Execute(ctx context.Context, plan *task.Plan) error {
	plan.RLock()
	terminalAlready := plan.Status.Terminal()
	plan.RUnlock()
	if terminalAlready {
		return nil
	}

	execCtx, cancel := context.WithCancel(ctx)
	if !s.beginExecution(plan.JobID, cancel) {
		cancel()
		return ErrAlreadyExecuting
	}
	defer s.endExecution(plan.JobID)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "scheduler.execute_plan",
		trace.WithAttributes(attribute.String("job_id", plan.JobID), attribute.String("plan_id", plan.PlanID)))
	defer span.End()

	plan.Lock()
	plan.Status = task.StatusRunning
	snap := plan.ToSnapshot()
	plan.Unlock()
	s.bus.Publish(ctx, events.PlanEvent(events.KindPlanStarted, plan.JobID, snap))

	ordered := orderedTasks(plan)

	var failCause string
	for _, t := range ordered {
		if execCtx.Err() != nil {
			failCause = "cancelled"
			break
		}

		plan.Lock()
		depsOK := depsSatisfied(plan, t)
		if !depsOK {
			t.Status = task.StatusSkipped
			now := time.Now()
			t.StartedAt = &now
			t.CompletedAt = &now
			t.Message = "skipped: unmet dependency"
			snap := t.ToSnapshot()
			progress := plan.Progress()
			plan.CurrentTaskID = t.TaskID
			plan.Unlock()
			if s.skips != nil {
				s.skips.Add(ctx, 1, metric.WithAttributes(attribute.String("task_kind", string(t.Kind))))
			}
			s.bus.Publish(ctx, events.TaskEvent(events.KindTaskCompleted, plan.JobID, snap, progress))
			continue
		}
		plan.CurrentTaskID = t.TaskID
		plan.Unlock()

		s.runTaskWithRetry(ctx, plan, t)

		plan.RLock()
		finalStatus := t.Status
		critical := t.Critical
		plan.RUnlock()

		if finalStatus == task.StatusFailed && critical {
			failCause = fmt.Sprintf("critical task %s failed: %s", t.TaskID, t.Error)
			break
		}
	}

	plan.Lock()
	if failCause != "" {
		plan.Status = task.StatusFailed
		now := time.Now()
		plan.CompletedAt = &now
		snap := plan.ToSnapshot()
		plan.Unlock()
		s.bus.Publish(ctx, events.PlanFailedEvent(plan.JobID, snap, failCause))
		return nil
	}
	plan.Status = task.StatusCompleted
	now := time.Now()
	plan.CompletedAt = &now
	snap = plan.ToSnapshot()
	// A plan reaching COMPLETED is done by definition, even when some
	// non-critical tasks landed SKIPPED rather than COMPLETED and would
	// otherwise leave Progress() short of 100.
	snap.Progress = 100
	plan.Unlock()
	s.bus.Publish(ctx, events.PlanEvent(events.KindPlanCompleted, plan.JobID, snap))
	return nil
}

// Cancel marks plan.JobID for cancellation at the next task boundary. It
// does not abort an in-flight handler call; the running task is allowed to
// finish (or fail) before the scheduler observes the cancellation.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.executing[jobID]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (s *Scheduler) beginExecution(jobID string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.executing[jobID]; running {
		return false
	}
	s.executing[jobID] = cancel
	return true
}

func (s *Scheduler) endExecution(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executing, jobID)
}

// runTaskWithRetry executes t, retrying up to t.MaxRetries times on handler
// error with exponential backoff (2^retry_count seconds), publishing events
// at every transition. Only errors classified transient by errtax consume a
// retry; permanent, domain, internal, and unclassified errors fail the task
// on the first attempt, per spec.md §7's propagation policy. It mutates
// t.Status/Progress/Error/RetryCount under plan's lock and leaves t in a
// terminal status on return.
func (s *Scheduler) runTaskWithRetry(ctx context.Context, plan *task.Plan, t *task.Task) {
	handler, ok := s.handlers[t.Kind]
	if !ok {
		s.finishTask(ctx, plan, t, task.StatusFailed, fmt.Sprintf("no handler registered for kind %s", t.Kind), nil)
		return
	}

	plan.Lock()
	t.Status = task.StatusRunning
	started := time.Now()
	t.StartedAt = &started
	t.Progress = 0
	snap := t.ToSnapshot()
	progress := plan.Progress()
	plan.Unlock()
	s.bus.Publish(ctx, events.TaskEvent(events.KindTaskStarted, plan.JobID, snap, progress))

	report := func(progress int, message string) {
		plan.Lock()
		t.Progress = progress
		t.Message = message
		snap := t.ToSnapshot()
		planProgress := plan.Progress()
		plan.Unlock()
		s.bus.Publish(ctx, events.TaskEvent(events.KindTaskProgress, plan.JobID, snap, planProgress))
	}

	var lastErr error
	for attempt := 0; attempt <= t.MaxRetries; attempt++ {
		spanCtx, span := s.tracer.Start(ctx, "scheduler.run_task",
			trace.WithAttributes(
				attribute.String("task_id", t.TaskID),
				attribute.String("task_kind", string(t.Kind)),
				attribute.Int("attempt", attempt),
			))
		start := time.Now()
		output, err := handler.Execute(spanCtx, plan.JobID, plan, t, report)
		span.End()

		if err == nil {
			if s.duration != nil {
				s.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
					metric.WithAttributes(attribute.String("task_kind", string(t.Kind))))
			}
			s.finishTask(ctx, plan, t, task.StatusCompleted, "", output)
			return
		}

		lastErr = err
		if attempt == t.MaxRetries || !errtax.Retryable(err) {
			break
		}

		plan.Lock()
		t.RetryCount = attempt + 1
		t.Message = fmt.Sprintf("retrying after error: %v", err)
		snap := t.ToSnapshot()
		planProgress := plan.Progress()
		plan.Unlock()
		if s.retries != nil {
			s.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("task_kind", string(t.Kind))))
		}
		s.bus.Publish(ctx, events.TaskEvent(events.KindTaskRetrying, plan.JobID, snap, planProgress))

		backoff := time.Duration(1<<uint(t.RetryCount)) * time.Second
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = t.MaxRetries
		}
	}

	if s.failures != nil {
		s.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("task_kind", string(t.Kind))))
	}
	s.finishTask(ctx, plan, t, task.StatusFailed, lastErr.Error(), nil)
}

func (s *Scheduler) finishTask(ctx context.Context, plan *task.Plan, t *task.Task, status task.Status, errMsg string, output any) {
	plan.Lock()
	t.Status = status
	now := time.Now()
	t.CompletedAt = &now
	if status == task.StatusCompleted {
		t.Progress = 100
		t.Outputs = output
		plan.ResultData[t.Kind] = output
	} else {
		t.Error = errMsg
	}
	snap := t.ToSnapshot()
	progress := plan.Progress()
	plan.Unlock()

	kind := events.KindTaskCompleted
	if status == task.StatusFailed {
		kind = events.KindTaskFailed
	}
	s.bus.Publish(ctx, events.TaskEvent(kind, plan.JobID, snap, progress))
}

// orderedTasks returns plan.Tasks sorted by ascending Order. Caller need not
// hold the plan lock: Tasks/Order are set once at planning time and never
// mutated afterward.
func orderedTasks(plan *task.Plan) []*task.Task {
	ordered := make([]*task.Task, len(plan.Tasks))
	copy(ordered, plan.Tasks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	return ordered
}

// depsSatisfied reports whether every dependency of t is COMPLETED or
// SKIPPED. Caller must hold plan's lock.
func depsSatisfied(plan *task.Plan, t *task.Task) bool {
	for _, depID := range t.Deps {
		dep := plan.TaskByID(depID)
		if dep == nil {
			continue
		}
		if dep.Status != task.StatusCompleted && dep.Status != task.StatusSkipped {
			return false
		}
	}
	return true
}
