package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"NewsOnboarding/internal/clock"
	"NewsOnboarding/internal/config"
	"NewsOnboarding/internal/infrastructure/parser"
	"NewsOnboarding/internal/infrastructure/scheduler"
	"NewsOnboarding/internal/infrastructure/storage"
	"NewsOnboarding/internal/logging"
	"NewsOnboarding/internal/metrics"
	"NewsOnboarding/internal/random"
	"NewsOnboarding/internal/scanner"
	"NewsOnboarding/internal/usecase"
	"NewsOnboarding/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *storage.SQLStore
	metrics    *metrics.Metrics
	onboarding *usecase.Onboarding
	cron       *scheduler.CronScheduler
	scheduler  *usecase.Scheduler
}

// New opens the store and builds the onboarding components from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewNewsAPIScanner(nil, cfg.NewsAPI.Endpoint, cfg.NewsAPI.APIKey,
		baseLogger.With("component", "scanner.newsapi")))
	registry.Register(parser.NewHTMLScanner(nil, baseLogger.With("component", "scanner.html")))

	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	m := metrics.New()
	clk := clock.System{}
	rnd := random.NewTimeSeeded()

	batches := usecase.NewBatchManager(usecase.BatchManagerDeps{
		Store:   store,
		Source:  source,
		Clock:   clk,
		Random:  rnd,
		Metrics: m,
		Logger:  baseLogger.With("component", "batches"),
		Settings: usecase.BatchSettings{
			Topics:         cfg.Onboarding.Topics,
			TopicsPerBatch: cfg.Onboarding.TopicsPerBatch,
			CandidateLimit: cfg.Onboarding.CandidateLimit,
			MinItems:       cfg.Onboarding.AssignmentCount,
			FetchTimeout:   cfg.Onboarding.FetchTimeout,
		},
	})
	allocator := usecase.NewAllocator(usecase.AllocatorDeps{
		Store:   store,
		Clock:   clk,
		Random:  rnd,
		Metrics: m,
		Logger:  baseLogger.With("component", "allocator"),
	})
	recorder := usecase.NewRecorder(usecase.RecorderDeps{
		Store:   store,
		Clock:   clk,
		Metrics: m,
		Logger:  baseLogger.With("component", "recorder"),
	})
	onboarding := usecase.NewOnboarding(usecase.OnboardingDeps{
		Store:           store,
		Batches:         batches,
		Allocator:       allocator,
		Recorder:        recorder,
		Clock:           clk,
		Logger:          baseLogger.With("component", "onboarding"),
		AssignmentCount: cfg.Onboarding.AssignmentCount,
	})

	cron := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), logger.Cron(baseLogger))

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		metrics:    m,
		onboarding: onboarding,
		cron:       cron,
		scheduler:  usecase.NewScheduler(cron, onboarding, baseLogger.With("component", "scheduler")),
	}, nil
}

// Onboarding exposes the use cases to an API layer.
func (a *Application) Onboarding() *usecase.Onboarding {
	return a.onboarding
}

// RunOnce performs a single batch refresh.
func (a *Application) RunOnce(ctx context.Context, force bool) error {
	_, err := a.onboarding.RunBatchRefresh(ctx, force)
	return err
}

// Run starts the refresh schedule and the ops listener, blocking until ctx is done.
// With runNow set, one refresh runs before the first scheduled tick.
func (a *Application) Run(ctx context.Context, runNow bool) error {
	if runNow {
		if err := a.RunOnce(ctx, false); err != nil {
			a.logger.Error("initial batch refresh failed", "error", err)
		}
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("batch refresh scheduled", "cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(), "next", a.cron.Next())

	var srv *http.Server
	serveErr := make(chan error, 1)
	if addr := a.cfg.Metrics.Address; addr != "" {
		srv = &http.Server{Addr: addr, Handler: a.Router(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.logger.Info("ops listener started", "address", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
		a.logger.Error("ops listener failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("ops listener shutdown", "error", err)
		}
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler shutdown", "error", err)
	}
	return runErr
}

// Router serves Prometheus metrics and a store-backed health check.
func (a *Application) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Handle("/metrics", a.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := a.store.Ping(req.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}
