// Package registry holds the process-singleton set of in-flight and
// recently-terminal plans, and periodically evicts terminal ones, optionally
// archiving them to a durable bbolt store first. One Registry is shared by
// every job in the process, the same way the scheduler and event bus are.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/journeyforge/orchestrator/internal/events"
	"github.com/journeyforge/orchestrator/internal/task"
)

var bucketArchivedPlans = []byte("archived_plans")

// Entry is one registered job's live state.
type Entry struct {
	Plan      *task.Plan
	Started   bool
	CreatedAt time.Time
}

// Registry is the in-memory job table plus its eviction sweep. ArchivePath,
// when non-empty, opens a bbolt database and writes a JSON snapshot of every
// evicted terminal plan into it before dropping it from memory.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	bus *events.Bus
	cron *cron.Cron

	archive *bbolt.DB

	maxAge time.Duration

	evicted metric.Int64Counter
	active  metric.Int64UpDownCounter
}

// Config controls sweep cadence, retention, and optional archival.
type Config struct {
	SweepInterval time.Duration
	MaxPlanAge    time.Duration
	ArchivePath   string // empty disables durable archival
}

// New constructs a Registry and starts its periodic sweep. Call Stop to
// release the cron scheduler and close the archive database.
func New(cfg Config, bus *events.Bus, meter metric.Meter) (*Registry, error) {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.MaxPlanAge <= 0 {
		cfg.MaxPlanAge = 30 * time.Minute
	}

	var archive *bbolt.DB
	if cfg.ArchivePath != "" {
		db, err := bbolt.Open(cfg.ArchivePath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("open archive db: %w", err)
		}
		if err := db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketArchivedPlans)
			return err
		}); err != nil {
			db.Close()
			return nil, fmt.Errorf("create archive bucket: %w", err)
		}
		archive = db
	}

	evicted, _ := meter.Int64Counter("journeyforge_registry_evictions_total")
	active, _ := meter.Int64UpDownCounter("journeyforge_registry_active_plans")

	r := &Registry{
		entries: make(map[string]*Entry),
		bus:     bus,
		cron:    cron.New(cron.WithSeconds()),
		archive: archive,
		maxAge:  cfg.MaxPlanAge,
		evicted: evicted,
		active:  active,
	}

	every := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if _, err := r.cron.AddFunc(every, r.sweep); err != nil {
		if archive != nil {
			archive.Close()
		}
		return nil, fmt.Errorf("add sweep schedule: %w", err)
	}
	r.cron.Start()

	return r, nil
}

// Stop halts the sweep and closes the archive database, if any.
func (r *Registry) Stop(ctx context.Context) error {
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.archive != nil {
		return r.archive.Close()
	}
	return nil
}

// Put registers a plan, keyed by its job id.
func (r *Registry) Put(plan *task.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[plan.JobID] = &Entry{Plan: plan, CreatedAt: time.Now()}
	if r.active != nil {
		r.active.Add(context.Background(), 1)
	}
}

// Get returns the entry for jobID, or false if absent.
func (r *Registry) Get(jobID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[jobID]
	return e, ok
}

// MarkStarted flags jobID's entry as having begun execution at least once.
func (r *Registry) MarkStarted(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[jobID]; ok {
		e.Started = true
	}
}

// Remove drops jobID from the table and its event-bus subscribers.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	delete(r.entries, jobID)
	r.mu.Unlock()
	if r.bus != nil {
		r.bus.UnsubscribeAll(jobID)
	}
	if r.active != nil {
		r.active.Add(context.Background(), -1)
	}
}

// Len reports the number of registered jobs, for diagnostics and tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// sweep evicts terminal plans older than maxAge, archiving each first when
// archival is enabled. Run on the cron schedule; safe to call directly from
// tests.
func (r *Registry) sweep() {
	now := time.Now()

	r.mu.RLock()
	var toEvict []*Entry
	for _, e := range r.entries {
		e.Plan.RLock()
		status := e.Plan.Status
		completedAt := e.Plan.CompletedAt
		e.Plan.RUnlock()

		if !status.Terminal() || completedAt == nil {
			continue
		}
		if now.Sub(*completedAt) > r.maxAge {
			toEvict = append(toEvict, e)
		}
	}
	r.mu.RUnlock()

	for _, e := range toEvict {
		if r.archive != nil {
			if err := r.archivePlan(e.Plan); err != nil {
				slog.Warn("registry: archive before eviction failed", "job_id", e.Plan.JobID, "error", err)
			}
		}
		r.Remove(e.Plan.JobID)
		if r.evicted != nil {
			e.Plan.RLock()
			status := string(e.Plan.Status)
			e.Plan.RUnlock()
			r.evicted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
		}
		slog.Info("registry: evicted terminal plan", "job_id", e.Plan.JobID)
	}
}

func (r *Registry) archivePlan(plan *task.Plan) error {
	plan.RLock()
	snapshot := plan.ToSnapshot()
	plan.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return r.archive.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketArchivedPlans)
		return bucket.Put([]byte(plan.JobID), data)
	})
}

// ReadArchived loads a previously archived plan snapshot by job id. Returns
// ok=false if archival is disabled or the job was never archived.
func (r *Registry) ReadArchived(jobID string) (snapshot task.Snapshot, ok bool, err error) {
	if r.archive == nil {
		return task.Snapshot{}, false, nil
	}
	err = r.archive.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketArchivedPlans)
		data := bucket.Get([]byte(jobID))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &snapshot)
	})
	return snapshot, ok, err
}
