package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

// Config tunes the polling loop.
type Config struct {
	PollInterval time.Duration
	Backoff      time.Duration
	Concurrency  int
}

// Scheduler polls a TaskStore and runs due tasks in bounded batches.
type Scheduler struct {
	store  ports.TaskStore
	runner ports.TaskRunner
	logger *slog.Logger
	cfg    Config
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ ports.TaskScheduler = (*Scheduler)(nil)

// New builds a scheduler; zero config values take the defaults
// (30s poll, 60s backoff, 3 concurrent tasks).
func New(store ports.TaskStore, runner ports.TaskRunner, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 60 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:  store,
		runner: runner,
		logger: logger.With("component", "scheduler"),
		cfg:    cfg,
		now:    time.Now,
	}
}

// Schedule enqueues task and starts the loop when idle. After Stop the task is
// only queued; the loop stays down until an explicit Start.
func (s *Scheduler) Schedule(ctx context.Context, task domain.ScheduledTask) (string, error) {
	if _, err := domain.ParseTaskType(string(task.Type)); err != nil {
		return "", err
	}
	if task.ID == "" {
		task.ID = newTaskID()
	}
	if task.ScheduledFor.IsZero() {
		task.ScheduledFor = s.now()
	}
	if err := s.store.Push(ctx, task); err != nil {
		return "", fmt.Errorf("push task: %w", err)
	}
	s.logger.Debug("task scheduled", "task_id", task.ID, "type", task.Type, "at", task.ScheduledFor)
	s.mu.Lock()
	if !s.stopped {
		s.startLocked(context.WithoutCancel(ctx))
	}
	s.mu.Unlock()
	return task.ID, nil
}

// Cancel removes a pending task; it reports false when the task already ran.
func (s *Scheduler) Cancel(ctx context.Context, id string) (bool, error) {
	return s.store.Remove(ctx, id)
}

// Start launches the polling loop once. The loop runs until Stop or until
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
	s.startLocked(ctx)
}

func (s *Scheduler) startLocked(ctx context.Context) {
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
}

// Stop halts the loop and waits for the current batch to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error("scheduler loop failed, backing off", "error", err, "backoff", s.cfg.Backoff)
			timer := time.NewTimer(s.cfg.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

// poll takes every due task off the queue and runs them in batches. Task
// failures are logged and never returned.
func (s *Scheduler) poll(ctx context.Context) error {
	ready, err := s.store.TakeReady(ctx, s.now())
	if err != nil {
		return fmt.Errorf("take ready tasks: %w", err)
	}

	for start := 0; start < len(ready); start += s.cfg.Concurrency {
		end := min(start+s.cfg.Concurrency, len(ready))

		var g errgroup.Group
		for _, task := range ready[start:end] {
			g.Go(func() error {
				s.report(s.execute(ctx, task))
				return nil
			})
		}
		_ = g.Wait()
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, task domain.ScheduledTask) (res domain.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Err(task, fmt.Errorf("task panicked: %v", r))
		}
	}()
	return s.runner.Run(ctx, task)
}

func (s *Scheduler) report(res domain.TaskResult) {
	if res.OK() {
		s.logger.Info("task finished", "task_id", res.TaskID, "type", res.Type, "note", res.Note)
		return
	}
	s.logger.Warn("task failed", "task_id", res.TaskID, "type", res.Type, "error", res.Err)
}
