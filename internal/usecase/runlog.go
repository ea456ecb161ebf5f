package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

// runLog mirrors progress lines to slog and to the persisted run log stream.
type runLog struct {
	repo   ports.RunLogRepository
	logger *slog.Logger
	runID  string
	now    func() time.Time
}

func newRunLog(repo ports.RunLogRepository, logger *slog.Logger, runID string, now func() time.Time) runLog {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return runLog{repo: repo, logger: logger.With("run_id", runID), runID: runID, now: now}
}

func (l runLog) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, domain.LogInfo, slog.LevelInfo, msg, args)
}

func (l runLog) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, domain.LogWarn, slog.LevelWarn, msg, args)
}

func (l runLog) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, domain.LogError, slog.LevelError, msg, args)
}

func (l runLog) Fatal(ctx context.Context, msg string, args ...any) {
	l.write(ctx, domain.LogFatal, slog.LevelError, msg, args)
}

func (l runLog) write(ctx context.Context, level domain.LogLevel, slogLevel slog.Level, msg string, args []any) {
	l.logger.Log(ctx, slogLevel, msg, args...)
	if l.repo == nil {
		return
	}
	line := domain.RunLogLine{
		RunID:     l.runID,
		Level:     level,
		Message:   formatLine(msg, args),
		CreatedAt: l.now(),
	}
	// The run log must survive a cancelled run context.
	if err := l.repo.AppendRunLog(context.WithoutCancel(ctx), line); err != nil {
		l.logger.Warn("append run log", "error", err)
	}
}

func formatLine(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
