package domain

import (
	"fmt"
	"time"
)

// RunStatus enumerates pipeline milestones of a single analysis run.
type RunStatus string

const (
	RunStatusNew          RunStatus = "NEW"
	RunStatusDiscovering  RunStatus = "DISCOVERING"
	RunStatusExtracting   RunStatus = "EXTRACTING"
	RunStatusSynthesizing RunStatus = "SYNTHESIZING"
	RunStatusQA           RunStatus = "QA"
	RunStatusComplete     RunStatus = "COMPLETE"
	RunStatusError        RunStatus = "ERROR"
	RunStatusSkipped      RunStatus = "SKIPPED"
)

// ParseRunStatus validates a persisted status string.
func ParseRunStatus(s string) (RunStatus, error) {
	switch RunStatus(s) {
	case RunStatusNew, RunStatusDiscovering, RunStatusExtracting, RunStatusSynthesizing,
		RunStatusQA, RunStatusComplete, RunStatusError, RunStatusSkipped:
		return RunStatus(s), nil
	default:
		return "", fmt.Errorf("unknown run status %q", s)
	}
}

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusComplete, RunStatusError, RunStatusSkipped:
		return true
	default:
		return false
	}
}

// StampsStart reports whether entering s records Run.StartedAt.
func (s RunStatus) StampsStart() bool {
	return s == RunStatusDiscovering
}

// Run identifies one pipeline execution for a project.
type Run struct {
	ID          string
	ProjectID   string
	Status      RunStatus
	LastNote    string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// RunUpdate is a single persisted status transition.
type RunUpdate struct {
	Status RunStatus
	Note   string
	At     time.Time
}

// LogLevel classifies run log lines.
type LogLevel string

const (
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
	LogFatal LogLevel = "FATAL"
)

// RunLogLine is one entry of a run's progress/error stream.
type RunLogLine struct {
	RunID     string
	Level     LogLevel
	Message   string
	CreatedAt time.Time
}
