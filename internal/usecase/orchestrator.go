package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
	"MarketScanner/internal/vertical"
)

// OrchestratorConfig carries the stage tunables.
type OrchestratorConfig struct {
	Discovery   DiscoveryConfig
	Extraction  ExtractionConfig
	HistoryRuns int
}

// OrchestratorDeps wires all driven adapters into the run pipeline.
type OrchestratorDeps struct {
	Store    ports.Store
	Settings ports.SettingsLoader
	Search   ports.SearchResolver
	AI       ports.CompletionResolver
	Fetcher  ports.PageFetcher
	Changes  ports.ChangeDetector
	Notifier ports.Notifier
	Logger   *slog.Logger
	Config   OrchestratorConfig
	Now      func() time.Time
}

// Orchestrator drives a run through
// NEW -> DISCOVERING -> EXTRACTING -> SYNTHESIZING -> QA -> COMPLETE.
type Orchestrator struct {
	store     ports.Store
	settings  ports.SettingsLoader
	search    ports.SearchResolver
	ai        ports.CompletionResolver
	changes   ports.ChangeDetector
	notifier  ports.Notifier
	logger    *slog.Logger
	now       func() time.Time
	registry  *FeatureRegistry
	discovery *Discovery
	extract   *Extraction
	synth     *Synthesis
}

// NewOrchestrator constructs the pipeline with its stages.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	registry := NewFeatureRegistry(deps.Store)
	registry.now = now
	discovery := NewDiscovery(deps.Store, deps.Config.Discovery)
	discovery.now = now
	extract := NewExtraction(deps.Store, deps.Fetcher, registry, deps.Config.Extraction)
	extract.now = now

	return &Orchestrator{
		store:     deps.Store,
		settings:  deps.Settings,
		search:    deps.Search,
		ai:        deps.AI,
		changes:   deps.Changes,
		notifier:  deps.Notifier,
		logger:    logger.With("component", "orchestrator"),
		now:       now,
		registry:  registry,
		discovery: discovery,
		extract:   extract,
		synth:     NewSynthesis(deps.Store, deps.Config.HistoryRuns),
	}
}

// RunOutcome summarizes a finished run.
type RunOutcome struct {
	Run      domain.Run
	Findings []domain.Finding
	Issues   []string
	Alerts   []domain.Alert
	Skipped  bool
}

// Run executes one run end to end. A failure escaping the per-item and
// per-stage guards marks the run ERROR and is returned as a *domain.StageError.
func (o *Orchestrator) Run(ctx context.Context, runID string) (outcome RunOutcome, err error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	log := newRunLog(o.store, o.logger, run.ID, o.now)

	if run.Status == domain.RunStatusSkipped {
		log.Info(ctx, "run skipped")
		return RunOutcome{Run: run, Skipped: true}, nil
	}

	stage := domain.StageSetup
	defer func() {
		if err == nil {
			return
		}
		err = domain.WrapStage(stage, err)
		log.Fatal(ctx, "run failed", "stage", stage, "error", err)
		// The ERROR status must be written even when ctx was cancelled.
		update := domain.RunUpdate{Status: domain.RunStatusError, Note: err.Error(), At: o.now()}
		if uerr := o.store.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, update); uerr != nil {
			o.logger.Error("mark run failed", "run_id", run.ID, "error", uerr)
		}
	}()

	project, err := o.store.GetProject(ctx, run.ProjectID)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("load project %s: %w", run.ProjectID, err)
	}
	settings, err := o.loadSettings(ctx, project.ID)
	if err != nil {
		return RunOutcome{}, err
	}
	search, err := o.search.Resolve(settings.SearchProvider)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("resolve search provider %q: %w", settings.SearchProvider, err)
	}
	ai := o.resolveAI(ctx, settings, log)
	profile := vertical.Resolve(settings.Vertical, project.Industry, project.SubIndustry)

	stage = domain.StageDiscovery
	if err := o.transition(ctx, log, run.ID, domain.RunStatusDiscovering, "Discovering sources"); err != nil {
		return RunOutcome{}, err
	}
	declared, err := o.seedDeclared(ctx, run, project, log)
	if err != nil {
		return RunOutcome{}, err
	}
	sources, err := o.discovery.Run(ctx, DiscoveryInput{
		Run:           run,
		Project:       project,
		Competitors:   declared,
		Search:        search,
		FreshnessDays: settings.FreshnessDays,
	}, log)
	if err != nil {
		return RunOutcome{}, err
	}

	stage = domain.StageExtraction
	note := fmt.Sprintf("Extracting facts from %d sources", len(sources))
	if err := o.transition(ctx, log, run.ID, domain.RunStatusExtracting, note); err != nil {
		return RunOutcome{}, err
	}
	if _, err := o.extract.Run(ctx, ExtractionInput{
		Run:                 run,
		Project:             project,
		Sources:             sources,
		DeclaredCompetitors: declared,
		AI:                  ai,
		Vertical:            profile,
	}, log); err != nil {
		return RunOutcome{}, err
	}

	stage = domain.StageSynthesis
	if err := o.transition(ctx, log, run.ID, domain.RunStatusSynthesizing, "Synthesizing findings"); err != nil {
		return RunOutcome{}, err
	}
	in, err := o.synthesisInput(ctx, run, project, ai)
	if err != nil {
		return RunOutcome{}, err
	}
	synthesis, err := o.synth.Run(ctx, in, log)
	if err != nil {
		return RunOutcome{}, err
	}
	if err := o.store.SaveFindings(ctx, run.ID, synthesis.Findings); err != nil {
		return RunOutcome{}, fmt.Errorf("save findings: %w", err)
	}

	stage = domain.StageQA
	if err := o.transition(ctx, log, run.ID, domain.RunStatusQA, "Validating results"); err != nil {
		return RunOutcome{}, err
	}
	alerts := o.detectChanges(ctx, run, log)
	issues := RunGuardrails(ctx, o.store, run.ID)
	if len(issues) == 0 {
		log.Info(ctx, "all guardrail checks passed")
	}
	for _, issue := range issues {
		log.Warn(ctx, "guardrail", "issue", issue)
	}

	report := RenderReport(ReportInput{
		Run:              run,
		Project:          project,
		VerticalName:     profile.Name,
		ExecutiveSummary: synthesis.ExecutiveSummary,
		Findings:         synthesis.Findings,
		Sources:          in.Sources,
		Competitors:      in.Competitors,
		Pricing:          in.Pricing,
		Issues:           issues,
		GeneratedAt:      o.now(),
	})
	if err := o.store.SaveReport(ctx, report); err != nil {
		return RunOutcome{}, fmt.Errorf("save report: %w", err)
	}

	stage = domain.StageFinalize
	note = fmt.Sprintf("Completed with %d findings and %d guardrail issues", len(synthesis.Findings), len(issues))
	if err := o.transition(ctx, log, run.ID, domain.RunStatusComplete, note); err != nil {
		return RunOutcome{}, err
	}

	o.notify(ctx, project, run.ID, synthesis.Findings, log)

	final, err := o.store.GetRun(ctx, run.ID)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("reload run: %w", err)
	}
	return RunOutcome{Run: final, Findings: synthesis.Findings, Issues: issues, Alerts: alerts}, nil
}

func (o *Orchestrator) transition(ctx context.Context, log runLog, runID string, status domain.RunStatus, note string) error {
	if err := o.store.UpdateRunStatus(ctx, runID, domain.RunUpdate{Status: status, Note: note, At: o.now()}); err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	log.Info(ctx, note, "status", status)
	return nil
}

func (o *Orchestrator) loadSettings(ctx context.Context, projectID string) (domain.ProjectSettings, error) {
	if o.settings != nil {
		settings, err := o.settings.Load(ctx, projectID)
		if err != nil {
			return domain.ProjectSettings{}, fmt.Errorf("load project settings: %w", err)
		}
		return settings, nil
	}
	settings, _, err := o.store.GetProjectSettings(ctx, projectID)
	if err != nil {
		return domain.ProjectSettings{}, fmt.Errorf("load project settings: %w", err)
	}
	settings.ProjectID = projectID
	return settings, nil
}

// resolveAI returns nil when AI is disabled or the provider is not configured.
func (o *Orchestrator) resolveAI(ctx context.Context, settings domain.ProjectSettings, log runLog) ports.CompletionProvider {
	if !settings.AIEnabled || o.ai == nil {
		log.Info(ctx, "ai disabled, using regex extraction", "path", "regex")
		return nil
	}
	provider, ok := o.ai.Resolve(settings.AIProvider)
	if !ok {
		log.Warn(ctx, "ai provider not configured, using regex extraction", "path", "regex", "provider", settings.AIProvider)
		return nil
	}
	return provider
}

// seedDeclared upserts user-declared competitors and registers declared features.
func (o *Orchestrator) seedDeclared(ctx context.Context, run domain.Run, project domain.ProjectProfile, log runLog) ([]string, error) {
	var names []string
	for _, name := range project.DeclaredCompetitor {
		c, err := o.store.UpsertCompetitor(ctx, domain.Competitor{RunID: run.ID, Name: name})
		if err != nil {
			return nil, fmt.Errorf("upsert declared competitor %s: %w", name, err)
		}
		names = appendUnique(names, c.Name)
	}
	if len(project.DeclaredFeatures) > 0 {
		defs, err := o.registry.EnsureFeatureDefinitions(ctx, project.DeclaredFeatures, domain.OriginUser, "")
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "declared features registered", "definitions", len(defs))
	}
	return names, nil
}

func (o *Orchestrator) synthesisInput(ctx context.Context, run domain.Run, project domain.ProjectProfile, ai ports.CompletionProvider) (SynthesisInput, error) {
	in := SynthesisInput{Run: run, Project: project, AI: ai}
	var err error
	if in.Sources, err = o.store.ListSources(ctx, run.ID); err != nil {
		return in, fmt.Errorf("list sources: %w", err)
	}
	if in.Competitors, err = o.store.ListCompetitors(ctx, run.ID); err != nil {
		return in, fmt.Errorf("list competitors: %w", err)
	}
	if in.Capabilities, err = o.store.ListCapabilities(ctx, run.ID); err != nil {
		return in, fmt.Errorf("list capabilities: %w", err)
	}
	if in.Features, err = o.store.ListFeatures(ctx, run.ID); err != nil {
		return in, fmt.Errorf("list features: %w", err)
	}
	if in.Pricing, err = o.store.ListPricing(ctx, run.ID); err != nil {
		return in, fmt.Errorf("list pricing: %w", err)
	}
	if in.Compliance, err = o.store.ListCompliance(ctx, run.ID); err != nil {
		return in, fmt.Errorf("list compliance: %w", err)
	}
	if in.Integrations, err = o.store.ListIntegrations(ctx, run.ID); err != nil {
		return in, fmt.Errorf("list integrations: %w", err)
	}
	return in, nil
}

// detectChanges diffs against the previous COMPLETE run. Failures are logged only.
func (o *Orchestrator) detectChanges(ctx context.Context, run domain.Run, log runLog) []domain.Alert {
	if o.changes == nil {
		return nil
	}
	prev, ok, err := o.store.PreviousCompleteRun(ctx, run.ProjectID, run.ID)
	if err != nil {
		log.Error(ctx, "change detection failed", "error", err)
		return nil
	}
	if !ok {
		log.Info(ctx, "no previous complete run, skipping change detection")
		return nil
	}

	changes, err := o.changes.DetectSourceChanges(ctx, prev.ID, run.ID)
	if err != nil {
		log.Error(ctx, "change detection failed", "previous_run", prev.ID, "error", err)
		return nil
	}
	if err := o.store.SaveSourceChanges(ctx, changes); err != nil {
		log.Error(ctx, "persist source changes failed", "error", err)
	}
	log.Info(ctx, "source changes", "previous_run", prev.ID, "added", len(changes.AddedSources),
		"removed", len(changes.RemovedSources), "modified", len(changes.ModifiedSources))

	alerts, err := o.changes.CheckForAlerts(ctx, run.ProjectID, changes)
	if err != nil {
		log.Error(ctx, "alert evaluation failed", "error", err)
		return nil
	}
	for _, a := range alerts {
		log.Warn(ctx, "alert", "rule", a.Rule, "message", a.Message)
	}
	return alerts
}

func (o *Orchestrator) notify(ctx context.Context, project domain.ProjectProfile, runID string, findings []domain.Finding, log runLog) {
	if o.notifier == nil {
		return
	}
	sent, err := o.notifier.SendReportCompletion(ctx, ports.ReportNotification{
		Email:       project.OwnerEmail,
		Name:        project.OwnerName,
		ProjectName: project.Name,
		RunID:       runID,
		Findings:    findings,
	})
	switch {
	case err != nil:
		log.Warn(ctx, "completion notification failed", "error", err)
	case !sent:
		log.Info(ctx, "completion notification not delivered")
	default:
		log.Info(ctx, "completion notification sent")
	}
}

// IsRunFailure reports whether err came out of a pipeline stage.
func IsRunFailure(err error) bool {
	var se *domain.StageError
	return errors.As(err, &se)
}
