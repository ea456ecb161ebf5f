package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound         = errors.New("run not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrRerunTooSoon        = errors.New("rerun requested too soon")
	ErrTaskNotFound        = errors.New("task not found")
	ErrReportNotFound      = errors.New("report not found")
)

// Stage names the pipeline phase an error escaped from.
type Stage string

const (
	StageSetup      Stage = "setup"
	StageDiscovery  Stage = "discovery"
	StageExtraction Stage = "extraction"
	StageSynthesis  Stage = "synthesis"
	StageQA         Stage = "qa"
	StageFinalize   Stage = "finalize"
)

// StageError wraps a fatal pipeline failure with its stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStage returns nil for a nil err.
func WrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
