package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/journeyforge/orchestrator/internal/events"
	"github.com/journeyforge/orchestrator/internal/task"
)

func newTerminalPlan(jobID string, completedAt time.Time) *task.Plan {
	plan := task.NewPlan("plan_"+jobID, jobID, task.SourceRef{}, nil, nil)
	plan.Status = task.StatusCompleted
	plan.CompletedAt = &completedAt
	return plan
}

func TestSweepEvictsOnlyPlansOlderThanMaxAge(t *testing.T) {
	bus := events.NewBus(nil)
	meter := otel.GetMeterProvider().Meter("registry-test")
	reg, err := New(Config{
		SweepInterval: time.Hour, // never fires on its own during the test
		MaxPlanAge:    time.Minute,
	}, bus, meter)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer reg.Stop(context.Background())

	old := newTerminalPlan("job_old", time.Now().Add(-2*time.Hour))
	recent := newTerminalPlan("job_recent", time.Now().Add(-time.Second))
	stillRunning := task.NewPlan("plan_running", "job_running", task.SourceRef{}, nil, nil)
	stillRunning.Status = task.StatusRunning

	reg.Put(old)
	reg.Put(recent)
	reg.Put(stillRunning)

	if got := reg.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3 before sweep", got)
	}

	reg.sweep()

	if got := reg.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2 after sweep (only job_old evicted)", got)
	}
	if _, ok := reg.Get("job_old"); ok {
		t.Errorf("job_old should have been evicted")
	}
	if _, ok := reg.Get("job_recent"); !ok {
		t.Errorf("job_recent should still be registered")
	}
	if _, ok := reg.Get("job_running"); !ok {
		t.Errorf("job_running should still be registered (not terminal)")
	}
}

func TestSweepArchivesBeforeEvictionWhenArchivePathSet(t *testing.T) {
	bus := events.NewBus(nil)
	meter := otel.GetMeterProvider().Meter("registry-test-archive")
	archivePath := filepath.Join(t.TempDir(), "archive.bolt")
	reg, err := New(Config{
		SweepInterval: time.Hour,
		MaxPlanAge:    time.Minute,
		ArchivePath:   archivePath,
	}, bus, meter)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer reg.Stop(context.Background())

	old := newTerminalPlan("job_archived", time.Now().Add(-2*time.Hour))
	reg.Put(old)
	reg.sweep()

	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after sweep", reg.Len())
	}
	snap, ok, err := reg.ReadArchived("job_archived")
	if err != nil {
		t.Fatalf("ReadArchived returned %v", err)
	}
	if !ok {
		t.Fatalf("expected job_archived to be archived before eviction")
	}
	if snap.JobID != "job_archived" {
		t.Errorf("archived snapshot JobID = %q, want job_archived", snap.JobID)
	}
}

func TestReadArchivedWithArchivalDisabled(t *testing.T) {
	bus := events.NewBus(nil)
	meter := otel.GetMeterProvider().Meter("registry-test-noarchive")
	reg, err := New(Config{SweepInterval: time.Hour, MaxPlanAge: time.Minute}, bus, meter)
	if err != nil {
		t.Fatalf("New returned %v", err)
	}
	defer reg.Stop(context.Background())

	_, ok, err := reg.ReadArchived("anything")
	if err != nil {
		t.Fatalf("ReadArchived returned %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false when archival is disabled")
	}
}
