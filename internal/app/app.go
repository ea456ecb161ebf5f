package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"MarketScanner/internal/config"
	"MarketScanner/internal/domain"
	"MarketScanner/internal/infrastructure/changes"
	"MarketScanner/internal/infrastructure/fetch"
	"MarketScanner/internal/infrastructure/llm"
	"MarketScanner/internal/infrastructure/notify"
	"MarketScanner/internal/infrastructure/scheduler"
	"MarketScanner/internal/infrastructure/search"
	"MarketScanner/internal/infrastructure/settings"
	"MarketScanner/internal/infrastructure/storage"
	"MarketScanner/internal/logging"
	"MarketScanner/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	store        *storage.Store
	settings     *settings.Loader
	orchestrator *usecase.Orchestrator
	tasks        *usecase.TaskHandler
	scheduler    *scheduler.Scheduler
	queue        *scheduler.MemoryStore
	now          func() time.Time
}

// New opens and migrates the database and builds every adapter.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := storage.Open(ctx, storage.Dialect(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Pipeline.FetchTimeout}

	searchers, err := buildSearch(cfg.Search, httpClient)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ai, err := llm.FromConfig(ctx, cfg.AI, nil, baseLogger.With("component", "llm"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ai providers: %w", err)
	}

	loader := settings.NewLoader(store, domain.ProjectSettings{
		AIProvider:     cfg.AI.Provider,
		AIEnabled:      cfg.AI.Provider != "",
		SearchProvider: cfg.Search.Provider,
		FreshnessDays:  cfg.Search.FreshnessDays,
	}, cfg.Pipeline.SettingsCacheTTL)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:    store,
		Settings: loader,
		Search:   searchers,
		AI:       ai,
		Fetcher:  fetch.New(httpClient),
		Changes:  changes.NewDetector(store),
		Notifier: notify.Multi{
			notify.NewEmail(cfg.Notifications.SMTP),
			notify.NewTelegram(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID),
		},
		Logger: baseLogger.With("component", "orchestrator"),
		Config: usecase.OrchestratorConfig{
			Discovery: usecase.DiscoveryConfig{
				MaxQueries:    cfg.Pipeline.MaxQueries,
				NumResults:    cfg.Search.NumResults,
				FreshnessDays: cfg.Search.FreshnessDays,
				SearchRate:    cfg.Search.RatePerSecond,
			},
			Extraction: usecase.ExtractionConfig{
				FetchTimeout:    cfg.Pipeline.FetchTimeout,
				MaxContentChars: cfg.Pipeline.MaxContentChars,
			},
			HistoryRuns: cfg.Pipeline.HistoryRuns,
		},
	})

	tasks := usecase.NewTaskHandler(store, orchestrator, usecase.TaskConfig{
		RerunSpacing: cfg.Scheduler.RerunSpacing,
		LogRetention: cfg.Scheduler.LogRetention,
		CleanupEvery: cfg.Scheduler.CleanupEvery,
	}, baseLogger.With("component", "tasks"))

	queue := scheduler.NewMemoryStore()
	sched := scheduler.New(queue, tasks, scheduler.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		Backoff:      cfg.Scheduler.Backoff,
		Concurrency:  cfg.Scheduler.Concurrency,
	}, baseLogger)
	tasks.UseScheduler(sched)

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		store:        store,
		settings:     loader,
		orchestrator: orchestrator,
		tasks:        tasks,
		scheduler:    sched,
		queue:        queue,
		now:          time.Now,
	}, nil
}

func buildSearch(cfg config.SearchConfig, client *http.Client) (*search.Registry, error) {
	registry := search.NewRegistry(cfg.Provider)
	registry.Register(search.NewDuckDuckGo(client, cfg.DuckDuckGoURL))
	registry.Register(search.NewGoogleNews(client, cfg.GoogleNewsURL))
	if cfg.Serper.APIKey != "" {
		serper, err := search.NewSerper(client, cfg.Serper.Endpoint, cfg.Serper.APIKey)
		if err != nil {
			return nil, err
		}
		registry.Register(serper)
	}
	return registry, nil
}

// Close releases the database.
func (a *Application) Close() error {
	return a.store.Close()
}

// StartRun creates a run for projectID and executes it synchronously. A
// failed run is returned as the outcome together with its error.
func (a *Application) StartRun(ctx context.Context, projectID string) (usecase.RunOutcome, error) {
	if _, err := a.store.GetProject(ctx, projectID); err != nil {
		return usecase.RunOutcome{}, err
	}
	run, err := a.store.CreateRun(ctx, projectID)
	if err != nil {
		return usecase.RunOutcome{}, fmt.Errorf("create run: %w", err)
	}
	a.logger.Info("run created", "run_id", run.ID, "project_id", projectID)

	outcome, err := a.orchestrator.Run(ctx, run.ID)
	if err != nil && usecase.IsRunFailure(err) {
		if reloaded, getErr := a.store.GetRun(context.WithoutCancel(ctx), run.ID); getErr == nil {
			outcome.Run = reloaded
		}
	}
	return outcome, err
}

// Report returns the stored markdown report of runID.
func (a *Application) Report(ctx context.Context, runID string) (domain.Report, error) {
	return a.store.GetReport(ctx, runID)
}

// RunLogs returns the progress stream of runID.
func (a *Application) RunLogs(ctx context.Context, runID string) ([]domain.RunLogLine, error) {
	return a.store.RunLogs(ctx, runID)
}

// Serve starts the scheduler, seeds the periodic tasks and blocks until ctx
// is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	a.scheduler.Start(ctx)

	if err := a.seedTasks(ctx); err != nil {
		a.stop()
		return err
	}
	a.logger.Info("scheduler started", "poll_interval", a.cfg.Scheduler.PollInterval)

	<-ctx.Done()
	a.logger.Info("shutting down")
	a.stop()
	return nil
}

func (a *Application) stop() {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	a.tasks.Wait()
}

// seedTasks enqueues CLEANUP now and the next AUTO_RERUN of every project
// with an auto-rerun interval.
func (a *Application) seedTasks(ctx context.Context) error {
	now := a.now()
	if _, err := a.scheduler.Schedule(ctx, domain.ScheduledTask{Type: domain.TaskCleanup, ScheduledFor: now}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	var errs []error
	for _, p := range projects {
		if p.AutoRerunDays <= 0 {
			continue
		}
		at := now
		latest, ok, err := a.store.LatestRun(ctx, p.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("latest run of %s: %w", p.ID, err))
			continue
		}
		if ok {
			if next := latest.CreatedAt.Add(time.Duration(p.AutoRerunDays) * 24 * time.Hour); next.After(now) {
				at = next
			}
		}
		if _, err := a.scheduler.Schedule(ctx, domain.ScheduledTask{
			Type:         domain.TaskAutoRerun,
			ScheduledFor: at,
			ProjectID:    p.ID,
		}); err != nil {
			errs = append(errs, fmt.Errorf("schedule rerun of %s: %w", p.ID, err))
			continue
		}
		a.logger.Info("auto rerun scheduled", "project_id", p.ID, "at", at)
	}
	return errors.Join(errs...)
}
