package domain

import (
	"fmt"
	"time"
)

// TaskType enumerates scheduler task kinds.
type TaskType string

const (
	TaskAutoRerun         TaskType = "AUTO_RERUN"
	TaskEmailNotification TaskType = "EMAIL_NOTIFICATION"
	TaskCleanup           TaskType = "CLEANUP"
)

// ParseTaskType validates a task type string.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TaskAutoRerun, TaskEmailNotification, TaskCleanup:
		return TaskType(s), nil
	default:
		return "", fmt.Errorf("unknown task type %q", s)
	}
}

// ScheduledTask is a process-local unit of deferred work.
type ScheduledTask struct {
	ID           string
	Type         TaskType
	ScheduledFor time.Time
	Priority     int
	ProjectID    string
	RunID        string
	Data         map[string]string
}

// Ready reports whether the task is due at now.
func (t ScheduledTask) Ready(now time.Time) bool {
	return !t.ScheduledFor.After(now)
}

// TaskResult is the explicit outcome of one task execution.
type TaskResult struct {
	TaskID string
	Type   TaskType
	Note   string
	Err    error
}

// OK reports whether the task succeeded.
func (r TaskResult) OK() bool {
	return r.Err == nil
}

// Ok builds a successful result.
func Ok(task ScheduledTask, note string) TaskResult {
	return TaskResult{TaskID: task.ID, Type: task.Type, Note: note}
}

// Err builds a failed result.
func Err(task ScheduledTask, err error) TaskResult {
	return TaskResult{TaskID: task.ID, Type: task.Type, Err: err}
}
