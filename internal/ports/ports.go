package ports

import (
	"context"
	"time"

	"MarketScanner/internal/domain"
)

// RunRepository persists runs and their status transitions.
type RunRepository interface {
	CreateRun(ctx context.Context, projectID string) (domain.Run, error)
	// GetRun returns domain.ErrRunNotFound when the id is unknown.
	GetRun(ctx context.Context, id string) (domain.Run, error)
	// UpdateRunStatus stamps StartedAt/CompletedAt according to the target status.
	UpdateRunStatus(ctx context.Context, id string, update domain.RunUpdate) error
	LatestRun(ctx context.Context, projectID string) (domain.Run, bool, error)
	// PreviousCompleteRun returns the newest COMPLETE run of the project created before runID.
	PreviousCompleteRun(ctx context.Context, projectID, runID string) (domain.Run, bool, error)
}

// RunLogRepository stores the human-readable progress stream of a run.
type RunLogRepository interface {
	AppendRunLog(ctx context.Context, line domain.RunLogLine) error
	RunLogs(ctx context.Context, runID string) ([]domain.RunLogLine, error)
	DeleteRunLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProjectRepository reads project profiles and per-project settings.
type ProjectRepository interface {
	// SaveProject upserts by ID and assigns one when empty.
	SaveProject(ctx context.Context, project domain.ProjectProfile) (domain.ProjectProfile, error)
	// GetProject returns domain.ErrProjectNotFound when the id is unknown.
	GetProject(ctx context.Context, id string) (domain.ProjectProfile, error)
	ListProjects(ctx context.Context) ([]domain.ProjectProfile, error)
	SaveProjectSettings(ctx context.Context, settings domain.ProjectSettings) error
	GetProjectSettings(ctx context.Context, projectID string) (domain.ProjectSettings, bool, error)
}

// SourceRepository persists discovered sources.
type SourceRepository interface {
	CreateSource(ctx context.Context, source domain.Source) (domain.Source, error)
	// UpdateSourceFetch records the single fetch outcome of a source.
	UpdateSourceFetch(ctx context.Context, source domain.Source) error
	ListSources(ctx context.Context, runID string) ([]domain.Source, error)
}

// CompetitorRepository upserts competitors keyed by (run, name).
type CompetitorRepository interface {
	UpsertCompetitor(ctx context.Context, competitor domain.Competitor) (domain.Competitor, error)
	ListCompetitors(ctx context.Context, runID string) ([]domain.Competitor, error)
}

// FactRepository stores extracted facts of a run.
type FactRepository interface {
	// SaveExtraction writes the whole batch in one transaction.
	SaveExtraction(ctx context.Context, runID string, batch domain.ExtractionBatch) error
	ListCapabilities(ctx context.Context, runID string) ([]domain.Capability, error)
	ListFeatures(ctx context.Context, runID string) ([]domain.Feature, error)
	ListPricing(ctx context.Context, runID string) ([]domain.PricingPoint, error)
	ListCompliance(ctx context.Context, runID string) ([]domain.ComplianceItem, error)
	ListIntegrations(ctx context.Context, runID string) ([]domain.Integration, error)
}

// FeatureDefinitionRepository is the durable feature catalog.
type FeatureDefinitionRepository interface {
	FindFeatureDefinitions(ctx context.Context, normalized []string) ([]domain.FeatureDefinition, error)
	// InsertFeatureDefinitions inserts definitions whose normalized key is absent and
	// silently skips the rest.
	InsertFeatureDefinitions(ctx context.Context, defs []domain.FeatureDefinition) error
	// AddFeatureDefinitionAliases unions aliases into the stored set atomically.
	AddFeatureDefinitionAliases(ctx context.Context, id string, aliases []string) error
}

// FindingRepository stores synthesized findings.
type FindingRepository interface {
	SaveFindings(ctx context.Context, runID string, findings []domain.Finding) error
	ListFindings(ctx context.Context, runID string) ([]domain.Finding, error)
}

// ReportRepository stores rendered reports.
type ReportRepository interface {
	SaveReport(ctx context.Context, report domain.Report) error
	// GetReport returns domain.ErrReportNotFound when nothing was stored.
	GetReport(ctx context.Context, runID string) (domain.Report, error)
}

// HistoryRepository aggregates features across past runs.
type HistoryRepository interface {
	// HistoricalFeatureCounts counts features of the newest `limit` COMPLETE runs of
	// projects in industry, excluding runID.
	HistoricalFeatureCounts(ctx context.Context, industry, runID string, limit int) ([]domain.FeatureCount, error)
}

// ChangeRepository stores source diffs between consecutive runs.
type ChangeRepository interface {
	SaveSourceChanges(ctx context.Context, changes domain.SourceChanges) error
}

// CreditRepository tracks the per-user run budget.
type CreditRepository interface {
	CreditBalance(ctx context.Context, userID string) (int, error)
	SetCredits(ctx context.Context, userID string, balance int) error
	// ConsumeCredit returns domain.ErrInsufficientCredits when the balance is too low.
	ConsumeCredit(ctx context.Context, userID string, amount int) error
}

// Store aggregates every repository the pipeline needs.
type Store interface {
	RunRepository
	RunLogRepository
	ProjectRepository
	SourceRepository
	CompetitorRepository
	FactRepository
	FeatureDefinitionRepository
	FindingRepository
	ReportRepository
	HistoryRepository
	ChangeRepository
	CreditRepository
}

// SearchOptions narrows a single search call.
type SearchOptions struct {
	Num           int
	FreshnessDays int
}

// SearchProvider executes one web search query.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) ([]domain.SearchResult, error)
}

// SearchResolver maps a configured provider name to an implementation.
type SearchResolver interface {
	Resolve(name string) (SearchProvider, error)
}

// CompletionRequest is a single system+user prompt exchange.
type CompletionRequest struct {
	System      string
	User        string
	JSON        bool
	Temperature float64
	MaxTokens   int
}

// CompletionProvider sends prompts to an LLM.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionResolver maps a configured provider name to an implementation.
// ok is false when the provider is not configured.
type CompletionResolver interface {
	Resolve(name string) (CompletionProvider, bool)
}

// PageFetcher downloads a URL and converts it to plain text.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// ReportNotification is the payload of a completion message.
type ReportNotification struct {
	Email       string
	Name        string
	ProjectName string
	RunID       string
	Findings    []domain.Finding
}

// Notifier delivers completion notifications; sent is false when no channel accepted it.
type Notifier interface {
	SendReportCompletion(ctx context.Context, n ReportNotification) (sent bool, err error)
}

// ChangeDetector diffs the sources of two runs and evaluates alert rules.
type ChangeDetector interface {
	DetectSourceChanges(ctx context.Context, previousRunID, runID string) (domain.SourceChanges, error)
	CheckForAlerts(ctx context.Context, projectID string, changes domain.SourceChanges) ([]domain.Alert, error)
}

// SettingsLoader returns cached per-project provider selection.
type SettingsLoader interface {
	Load(ctx context.Context, projectID string) (domain.ProjectSettings, error)
	Invalidate(projectID string)
}

// TaskStore holds scheduled tasks ordered by ScheduledFor.
type TaskStore interface {
	Push(ctx context.Context, task domain.ScheduledTask) error
	// Remove reports whether a pending task was removed.
	Remove(ctx context.Context, id string) (bool, error)
	// TakeReady removes and returns every task due at now.
	TakeReady(ctx context.Context, now time.Time) ([]domain.ScheduledTask, error)
	Pending(ctx context.Context) ([]domain.ScheduledTask, error)
}

// TaskRunner executes one scheduled task.
type TaskRunner interface {
	Run(ctx context.Context, task domain.ScheduledTask) domain.TaskResult
}

// TaskScheduler accepts deferred work.
type TaskScheduler interface {
	Schedule(ctx context.Context, task domain.ScheduledTask) (string, error)
	Cancel(ctx context.Context, id string) (bool, error)
}
