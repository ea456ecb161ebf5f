package usecase

import (
	"context"
	"fmt"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const (
	minSources          = 5
	minCapabilities     = 10
	maxFetchFailureRate = 0.3
)

// GuardrailState is the slice of run state the data-quality checks read.
type GuardrailState struct {
	Sources      []domain.Source
	Capabilities []domain.Capability
	Competitors  []domain.Competitor
	Findings     []domain.Finding
}

// CheckGuardrails returns human-readable data-quality issues; an empty list
// means every check passed. It never fails and never touches run status.
func CheckGuardrails(state GuardrailState) []string {
	var issues []string

	uncited := 0
	for _, f := range state.Findings {
		if len(f.Citations) == 0 {
			uncited++
		}
	}
	if uncited > 0 {
		issues = append(issues, fmt.Sprintf("Citation coverage: %d of %d findings have no citations", uncited, len(state.Findings)))
	}

	if n := len(state.Sources); n < minSources {
		issues = append(issues, fmt.Sprintf("Low source count: %d (expected at least %d)", n, minSources))
	}
	if n := len(state.Capabilities); n < minCapabilities {
		issues = append(issues, fmt.Sprintf("Low capability count: %d (expected at least %d)", n, minCapabilities))
	}
	if len(state.Competitors) == 0 {
		issues = append(issues, "No competitors identified")
	}

	stale, failed := 0, 0
	for _, s := range state.Sources {
		if s.Stale() {
			stale++
		}
		if s.Status == domain.SourceError {
			failed++
		}
	}
	if stale > 0 {
		issues = append(issues, fmt.Sprintf("Stale sources: %d outside the freshness window", stale))
	}
	if total := len(state.Sources); total > 0 {
		if rate := float64(failed) / float64(total); rate > maxFetchFailureRate {
			issues = append(issues, fmt.Sprintf("High fetch failure rate: %.0f%% (%d of %d sources)", rate*100, failed, total))
		}
	}
	return issues
}

type guardrailStore interface {
	ports.SourceRepository
	ports.CompetitorRepository
	ports.FactRepository
	ports.FindingRepository
}

// loadGuardrailState reads the persisted run state; read errors become issues
// so the checks stay non-fatal.
func loadGuardrailState(ctx context.Context, store guardrailStore, runID string) (GuardrailState, []string) {
	var state GuardrailState
	var issues []string
	var err error

	if state.Sources, err = store.ListSources(ctx, runID); err != nil {
		issues = append(issues, fmt.Sprintf("Guardrail read failed: sources: %v", err))
	}
	if state.Capabilities, err = store.ListCapabilities(ctx, runID); err != nil {
		issues = append(issues, fmt.Sprintf("Guardrail read failed: capabilities: %v", err))
	}
	if state.Competitors, err = store.ListCompetitors(ctx, runID); err != nil {
		issues = append(issues, fmt.Sprintf("Guardrail read failed: competitors: %v", err))
	}
	if state.Findings, err = store.ListFindings(ctx, runID); err != nil {
		issues = append(issues, fmt.Sprintf("Guardrail read failed: findings: %v", err))
	}
	return state, issues
}

// RunGuardrails loads the run state and checks it.
func RunGuardrails(ctx context.Context, store guardrailStore, runID string) []string {
	state, readIssues := loadGuardrailState(ctx, store, runID)
	return append(readIssues, CheckGuardrails(state)...)
}
