package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const (
	defaultRerunSpacing = 7 * 24 * time.Hour
	defaultLogRetention = 30 * 24 * time.Hour
	defaultCleanupEvery = 24 * time.Hour
	rerunCreditCost     = 1
)

// RunExecutor runs one pipeline execution.
type RunExecutor interface {
	Run(ctx context.Context, runID string) (RunOutcome, error)
}

// TaskConfig tunes the scheduled task handlers.
type TaskConfig struct {
	RerunSpacing time.Duration
	LogRetention time.Duration
	CleanupEvery time.Duration
}

// TaskHandler executes scheduled tasks. It implements ports.TaskRunner.
type TaskHandler struct {
	store     ports.Store
	runs      RunExecutor
	scheduler ports.TaskScheduler
	logger    *slog.Logger
	cfg       TaskConfig
	now       func() time.Time

	inflight sync.WaitGroup
}

var _ ports.TaskRunner = (*TaskHandler)(nil)

// NewTaskHandler builds the handler. The scheduler used for rescheduling is
// attached later with UseScheduler since the scheduler itself needs the handler.
func NewTaskHandler(store ports.Store, runs RunExecutor, cfg TaskConfig, logger *slog.Logger) *TaskHandler {
	if cfg.RerunSpacing <= 0 {
		cfg.RerunSpacing = defaultRerunSpacing
	}
	if cfg.LogRetention <= 0 {
		cfg.LogRetention = defaultLogRetention
	}
	if cfg.CleanupEvery <= 0 {
		cfg.CleanupEvery = defaultCleanupEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		store:  store,
		runs:   runs,
		cfg:    cfg,
		logger: logger.With("component", "tasks"),
		now:    time.Now,
	}
}

// UseScheduler sets where follow-up tasks are enqueued.
func (h *TaskHandler) UseScheduler(s ports.TaskScheduler) {
	h.scheduler = s
}

// Wait blocks until every run started by AUTO_RERUN has finished.
func (h *TaskHandler) Wait() {
	h.inflight.Wait()
}

// Run dispatches one task by type.
func (h *TaskHandler) Run(ctx context.Context, task domain.ScheduledTask) domain.TaskResult {
	switch task.Type {
	case domain.TaskAutoRerun:
		return h.autoRerun(ctx, task)
	case domain.TaskCleanup:
		return h.cleanup(ctx, task)
	case domain.TaskEmailNotification:
		h.logger.Info("email notification task", "task_id", task.ID, "project_id", task.ProjectID, "run_id", task.RunID)
		return domain.Ok(task, "email notification is not delivered by the scheduler")
	default:
		return domain.Err(task, fmt.Errorf("unknown task type %q", task.Type))
	}
}

func (h *TaskHandler) autoRerun(ctx context.Context, task domain.ScheduledTask) domain.TaskResult {
	project, err := h.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return domain.Err(task, fmt.Errorf("load project: %w", err))
	}
	defer h.rescheduleRerun(ctx, project)

	if project.OwnerID != "" {
		balance, err := h.store.CreditBalance(ctx, project.OwnerID)
		if err != nil {
			return domain.Err(task, fmt.Errorf("credit balance: %w", err))
		}
		if balance < rerunCreditCost {
			return domain.Err(task, domain.ErrInsufficientCredits)
		}
	}

	latest, ok, err := h.store.LatestRun(ctx, project.ID)
	if err != nil {
		return domain.Err(task, fmt.Errorf("latest run: %w", err))
	}
	if ok {
		if since := h.now().Sub(latest.CreatedAt); since < h.cfg.RerunSpacing {
			return domain.Err(task, fmt.Errorf("%w: last run %s ago", domain.ErrRerunTooSoon, since.Round(time.Minute)))
		}
	}

	run, err := h.store.CreateRun(ctx, project.ID)
	if err != nil {
		return domain.Err(task, fmt.Errorf("create run: %w", err))
	}
	if project.OwnerID != "" {
		if err := h.store.ConsumeCredit(ctx, project.OwnerID, rerunCreditCost); err != nil {
			note := "Skipped: " + err.Error()
			if uerr := h.store.UpdateRunStatus(ctx, run.ID, domain.RunUpdate{Status: domain.RunStatusSkipped, Note: note, At: h.now()}); uerr != nil {
				err = errors.Join(err, uerr)
			}
			return domain.Err(task, fmt.Errorf("consume credit: %w", err))
		}
	}

	// The run outlives the task; its own failures mark the run ERROR.
	runCtx := context.WithoutCancel(ctx)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		if _, err := h.runs.Run(runCtx, run.ID); err != nil {
			h.logger.Error("auto rerun failed", "project_id", project.ID, "run_id", run.ID, "error", err)
			return
		}
		h.logger.Info("auto rerun finished", "project_id", project.ID, "run_id", run.ID)
	}()

	return domain.Ok(task, "started run "+run.ID)
}

func (h *TaskHandler) rescheduleRerun(ctx context.Context, project domain.ProjectProfile) {
	if h.scheduler == nil || project.AutoRerunDays <= 0 {
		return
	}
	next := domain.ScheduledTask{
		Type:         domain.TaskAutoRerun,
		ScheduledFor: h.now().Add(time.Duration(project.AutoRerunDays) * 24 * time.Hour),
		ProjectID:    project.ID,
	}
	if _, err := h.scheduler.Schedule(ctx, next); err != nil {
		h.logger.Error("reschedule auto rerun", "project_id", project.ID, "error", err)
	}
}

func (h *TaskHandler) cleanup(ctx context.Context, task domain.ScheduledTask) domain.TaskResult {
	cutoff := h.now().Add(-h.cfg.LogRetention)
	deleted, err := h.store.DeleteRunLogsBefore(ctx, cutoff)

	if h.scheduler != nil {
		next := domain.ScheduledTask{Type: domain.TaskCleanup, ScheduledFor: h.now().Add(h.cfg.CleanupEvery), Priority: task.Priority}
		if _, serr := h.scheduler.Schedule(ctx, next); serr != nil {
			h.logger.Error("reschedule cleanup", "error", serr)
		}
	}

	if err != nil {
		return domain.Err(task, fmt.Errorf("delete run logs: %w", err))
	}
	return domain.Ok(task, fmt.Sprintf("deleted %d run log lines", deleted))
}
