// Command orchestrator runs one journey job end to end and prints its
// progress events to stdout. It has no HTTP/WebSocket surface (spec.md §1
// scopes that to an external transport layer); this binary exists to wire
// every internal package together the way a transport layer eventually
// would, and to exercise the pipeline from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/journeyforge/orchestrator/internal/aigateway"
	"github.com/journeyforge/orchestrator/internal/config"
	"github.com/journeyforge/orchestrator/internal/events"
	"github.com/journeyforge/orchestrator/internal/fetcher"
	"github.com/journeyforge/orchestrator/internal/githubstats"
	"github.com/journeyforge/orchestrator/internal/handlers"
	"github.com/journeyforge/orchestrator/internal/planner"
	"github.com/journeyforge/orchestrator/internal/platform/logging"
	"github.com/journeyforge/orchestrator/internal/platform/otelinit"
	"github.com/journeyforge/orchestrator/internal/registry"
	"github.com/journeyforge/orchestrator/internal/scheduler"
	"github.com/journeyforge/orchestrator/internal/store"
	"github.com/journeyforge/orchestrator/internal/task"
)

func main() {
	const service = "journeyforge-orchestrator"
	logging.Init(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := otelinit.InitTracer(ctx, service)
	shutdownMetrics, promHandler, _ := otelinit.InitMetrics(ctx, service)

	cfg := config.Load()

	sourceURL := flag.String("url", "", "profile URL to run a job against")
	resumeHandle := flag.String("resume-handle", "", "blob handle of an uploaded resume, instead of -url")
	mode := flag.String("mode", "standard", "standard | documentary_only | video_only")
	guestID := flag.String("guest-id", "", "owner reference for history aggregation")
	healthAddr := flag.String("health-addr", ":8080", "address for the /health endpoint (and /metrics when a Prometheus handler is available)")
	flag.Parse()

	bus := events.NewBus(otel.GetMeterProvider().Meter("journeyforge-events"))

	reg, err := registry.New(registry.Config{
		SweepInterval: cfg.SweepInterval,
		MaxPlanAge:    cfg.MaxPlanAge,
		ArchivePath:   cfg.ArchivePath,
	}, bus, otel.GetMeterProvider().Meter("journeyforge-registry"))
	if err != nil {
		slog.Error("registry init failed", "error", err)
		os.Exit(1)
	}

	gateway := newGateway(cfg)
	artifactStore := store.NewMemStore()
	webFetcher := fetcher.New(fetcher.Config{
		MaxConcurrent:  cfg.FetchMaxConcurrent,
		ConnectTimeout: cfg.FetchConnectTimeout,
		TotalTimeout:   cfg.FetchTotalTimeout,
		RetryAttempts:  cfg.FetchRetryAttempts,
		MinSpacing:     cfg.FetchMinSpacing,
		BlockedHosts:   cfg.FetchBlockedHosts,
	})

	githubClient := githubstats.NewHTTPClient(cfg.GitHubAPIToken)

	deps := handlers.Deps{Gateway: gateway, Store: artifactStore, Fetcher: webFetcher, GitHub: githubClient, Config: cfg}
	dispatch := map[task.Kind]scheduler.Handler{
		task.KindFetchProfile:        handlers.NewFetchProfile(deps),
		task.KindEnrichProfile:       handlers.NewEnrichProfile(deps),
		task.KindAggregateHistory:    handlers.NewAggregateHistory(deps),
		task.KindStructureJourney:    handlers.NewStructureJourney(deps),
		task.KindGenerateTimeline:    handlers.NewGenerateTimeline(deps),
		task.KindGenerateDocumentary: handlers.NewGenerateDocumentary(deps),
		task.KindGenerateVideo:       handlers.NewGenerateVideo(deps),
	}
	sched := scheduler.New(bus, dispatch)

	srv := startHealthServer(*healthAddr, promHandler)
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if *sourceURL != "" || *resumeHandle != "" {
		runJob(ctx, sched, reg, bus, *sourceURL, *resumeHandle, *mode, *guestID)
	} else {
		slog.Info("no -url or -resume-handle given; idling with health/metrics server up", "addr", *healthAddr)
		<-ctx.Done()
	}

	slog.Info("shutdown initiated")
	shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	otelinit.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	_ = reg.Stop(shutdownCtx)
	slog.Info("shutdown complete")
}

func runJob(ctx context.Context, sched *scheduler.Scheduler, reg *registry.Registry, bus *events.Bus, sourceURL, resumeHandle, modeFlag, guestID string) {
	ref := task.SourceRef{Kind: task.SourceKindURL, URL: sourceURL}
	if resumeHandle != "" {
		ref = task.SourceRef{Kind: task.SourceKindResume, DocumentHandle: resumeHandle}
	}

	var m planner.Mode
	switch modeFlag {
	case "documentary_only":
		m = planner.ModeDocumentaryOnly
	case "video_only":
		m = planner.ModeVideoOnly
	default:
		m = planner.ModeStandard
	}

	jobID := planner.NewJobID()
	plan := planner.Plan(jobID, ref, m, map[string]any{"guest_id": guestID})
	reg.Put(plan)

	sub := events.NewSubscriber("cli-"+jobID, 64)
	bus.Subscribe(jobID, sub)
	defer bus.Unsubscribe(jobID, sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.C() {
			fmt.Printf("[%s] %s\n", ev.EventKind, describeEvent(ev))
			if ev.EventKind == events.KindPlanCompleted || ev.EventKind == events.KindPlanFailed {
				return
			}
		}
	}()

	reg.MarkStarted(jobID)
	if err := sched.Execute(ctx, plan); err != nil {
		slog.Error("job execution failed to start", "job_id", jobID, "error", err)
	}
	<-done
}

func describeEvent(ev events.Event) string {
	if ev.Data.Task != nil {
		return fmt.Sprintf("task=%s status=%s progress=%d", ev.Data.Task.TaskID, ev.Data.Task.Status, ev.Data.Task.Progress)
	}
	if ev.Data.Plan != nil {
		return fmt.Sprintf("plan=%s status=%s progress=%d", ev.Data.Plan.PlanID, ev.Data.Plan.Status, ev.Data.Plan.Progress)
	}
	return ev.Data.Error
}

func startHealthServer(addr string, promHandler any) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h, ok := promHandler.(http.Handler); ok {
		mux.Handle("/metrics", h)
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()
	return srv
}

// newGateway builds the AI gateway backed by the configured provider
// endpoint. Outside of CI/dev, JOURNEY_AI_ENDPOINT must be set to a real
// provider; a blank endpoint still produces a working Gateway value, it will
// simply fail every call with a connection error, surfaced as a task retry.
func newGateway(cfg config.Config) aigateway.Gateway {
	return aigateway.NewHTTPGateway(cfg.AIProviderEndpoint, cfg.AIProviderAPIKey)
}
