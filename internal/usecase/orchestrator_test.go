package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

type pipelineFixture struct {
	store    *recordingStore
	search   *fakeSearch
	fetcher  *fakeFetcher
	ai       *fakeAI
	project  domain.ProjectProfile
	notifier *fakeNotifier
	changes  *fakeChanges
}

type fakeNotifier struct {
	sent []ports.ReportNotification
	err  error
}

func (f *fakeNotifier) SendReportCompletion(_ context.Context, n ports.ReportNotification) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.sent = append(f.sent, n)
	return true, nil
}

type fakeChanges struct {
	detectCalls int
	err         error
}

func (f *fakeChanges) DetectSourceChanges(_ context.Context, prev, run string) (domain.SourceChanges, error) {
	f.detectCalls++
	if f.err != nil {
		return domain.SourceChanges{}, f.err
	}
	return domain.SourceChanges{PreviousRunID: prev, RunID: run, AddedSources: []domain.Source{{URL: "https://new.example"}}}, nil
}

func (f *fakeChanges) CheckForAlerts(context.Context, string, domain.SourceChanges) ([]domain.Alert, error) {
	return []domain.Alert{{Rule: "new_competitor_domain", Message: "new.example appeared"}}, nil
}

var pipelinePages = map[string]domain.Page{
	"https://acme.com/pricing": {Title: "Acme Books Pricing", Text: "Plans\nStarter\n$50/month\nGrowth\n$200/month\nSSO, audit logs and a REST API."},
	"https://zeta.io/":         {Title: "Zeta | Invoicing for teams", Text: "Zeta invoicing with 2FA, webhooks and Zapier integration. SOC 2."},
	"https://ledgerhub.co.uk/": {Title: "Ledgerhub", Text: "Real-time analytics, custom dashboards and RBAC for invoicing."},
	"https://paystack.dev/":    {Title: "Paystack - invoicing API", Text: "GraphQL API and SDKs. Single Sign-On. Workflow automation."},
}

func newPipelineFixture(t *testing.T) pipelineFixture {
	t.Helper()
	ctx := context.Background()
	store := &recordingStore{Store: newTestStore(t)}

	project, err := store.SaveProject(ctx, domain.ProjectProfile{
		Name:               "Ledgerly",
		Category:           "invoicing",
		Industry:           "fintech",
		Keywords:           []string{"invoicing", "billing"},
		DeclaredCompetitor: []string{"Acme Books"},
		DeclaredFeatures:   []string{"SSO", "Bank Reconciliation"},
		OwnerEmail:         "owner@example.com",
		OwnerName:          "Owner",
	})
	require.NoError(t, err)

	search := &fakeSearch{results: []domain.SearchResult{
		{Title: "Acme Books Pricing", URL: "https://acme.com/pricing", Snippet: "invoicing plans"},
		{Title: "Zeta | Invoicing for teams", URL: "https://zeta.io/"},
		{Title: "Ledgerhub invoicing", URL: "https://ledgerhub.co.uk/"},
		{Title: "Paystack invoicing API", URL: "https://paystack.dev/"},
		{Title: "Top 10 invoicing tools", URL: "https://www.g2.com/categories/invoicing"},
	}}

	return pipelineFixture{
		store:    store,
		search:   search,
		fetcher:  &fakeFetcher{pages: pipelinePages},
		ai:       &fakeAI{},
		project:  project,
		notifier: &fakeNotifier{},
		changes:  &fakeChanges{},
	}
}

func (f pipelineFixture) orchestrator(ai ports.CompletionResolver) *Orchestrator {
	return NewOrchestrator(OrchestratorDeps{
		Store:    f.store,
		Search:   searchResolver{provider: f.search},
		AI:       ai,
		Fetcher:  f.fetcher,
		Changes:  f.changes,
		Notifier: f.notifier,
		Logger:   discardLogger(),
	})
}

func TestOrchestratorSuccessfulRunOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPipelineFixture(t)

	run, err := f.store.CreateRun(ctx, f.project.ID)
	require.NoError(t, err)

	outcome, err := f.orchestrator(aiResolver{}).Run(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, []domain.RunStatus{
		domain.RunStatusDiscovering,
		domain.RunStatusExtracting,
		domain.RunStatusSynthesizing,
		domain.RunStatusQA,
		domain.RunStatusComplete,
	}, f.store.recorded())

	assert.Equal(t, domain.RunStatusComplete, outcome.Run.Status)
	require.NotNil(t, outcome.Run.StartedAt)
	require.NotNil(t, outcome.Run.CompletedAt)
	assert.NotEmpty(t, outcome.Findings)

	sources, err := f.store.ListSources(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, sources, 5)
	assert.False(t, hasIssue(outcome.Issues, "High fetch failure rate"))

	competitors, err := f.store.ListCompetitors(ctx, run.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(competitors))
	for _, c := range competitors {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "Acme Books")
	assert.Contains(t, names, "Zeta")
	assert.NotContains(t, names, "G2")

	var spread bool
	for _, insight := range findingsOf(outcome.Findings, domain.FindingInsight) {
		if strings.Contains(insight.Text, "4.0x spread") {
			spread = true
		}
	}
	assert.True(t, spread, "Starter $50 vs Growth $200 is a 4x spread")

	gaps := findingsOf(outcome.Findings, domain.FindingGap)
	require.NotEmpty(t, gaps)
	assert.Contains(t, gaps[0].Text, "Bank Reconciliation")

	report, err := f.store.GetReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Contains(t, report.Markdown, "# Competitive Analysis: Ledgerly")

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "owner@example.com", f.notifier.sent[0].Email)
	assert.Equal(t, run.ID, f.notifier.sent[0].RunID)
	assert.Zero(t, f.changes.detectCalls, "first run has no previous complete run")
}

func TestOrchestratorSkippedRunDoesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPipelineFixture(t)

	run, err := f.store.CreateRun(ctx, f.project.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.Store.UpdateRunStatus(ctx, run.ID, domain.RunUpdate{Status: domain.RunStatusSkipped}))

	outcome, err := f.orchestrator(aiResolver{}).Run(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Zero(t, f.search.callCount())
	assert.Zero(t, f.fetcher.callCount())
	assert.Empty(t, f.store.recorded())
}

func TestOrchestratorWithoutAIProviderMakesNoAICalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPipelineFixture(t)

	require.NoError(t, f.store.SaveProjectSettings(ctx, domain.ProjectSettings{
		ProjectID:  f.project.ID,
		AIProvider: "anthropic",
		AIEnabled:  true,
	}))
	run, err := f.store.CreateRun(ctx, f.project.ID)
	require.NoError(t, err)

	// Only "other" is configured; the project asks for anthropic.
	_, err = f.orchestrator(aiResolver{"other": f.ai}).Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Zero(t, f.ai.callCount())

	logs, err := f.store.RunLogs(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, containsLog(logs, "path=regex"))
	assert.False(t, containsLog(logs, "path=ai"))
}

func TestOrchestratorAIPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.ai.reply = func(system string) (string, error) {
		switch {
		case isExtractionPrompt(system):
			return `{"capabilities":[{"category":"Security","name":"SSO"}],"summary":"ok"}`, nil
		case isStandardizePrompt(system):
			return `{"items":[]}`, nil
		default:
			return `{"executiveSummary":"AI summary","risks":[{"text":"Churn","confidence":0.7}],"recommendations":[{"text":"Ship SSO","confidence":0.8}]}`, nil
		}
	}

	require.NoError(t, f.store.SaveProjectSettings(ctx, domain.ProjectSettings{ProjectID: f.project.ID, AIProvider: "fake", AIEnabled: true}))
	run, err := f.store.CreateRun(ctx, f.project.ID)
	require.NoError(t, err)

	outcome, err := f.orchestrator(aiResolver{"fake": f.ai}).Run(ctx, run.ID)
	require.NoError(t, err)
	assert.NotZero(t, f.ai.callCount())
	assert.Len(t, findingsOf(outcome.Findings, domain.FindingRisk), 1)
	assert.Len(t, findingsOf(outcome.Findings, domain.FindingRecommendation), 1)

	report, err := f.store.GetReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "AI summary", report.ExecutiveSummary)
}

func TestOrchestratorDetectsChangesAgainstPreviousRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPipelineFixture(t)
	o := f.orchestrator(aiResolver{})

	first, err := f.store.CreateRun(ctx, f.project.ID)
	require.NoError(t, err)
	_, err = o.Run(ctx, first.ID)
	require.NoError(t, err)

	second, err := f.store.CreateRun(ctx, f.project.ID)
	require.NoError(t, err)
	outcome, err := o.Run(ctx, second.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.changes.detectCalls)
	require.Len(t, outcome.Alerts, 1)
	logs, err := f.store.RunLogs(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, containsLog(logs, "rule=new_competitor_domain"))
}

func TestOrchestratorNonFatalCollaboratorFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.changes.err = errors.New("diff failed")
	f.notifier.err = errors.New("smtp down")
	o := f.orchestrator(aiResolver{})

	for range 2 {
		run, err := f.store.CreateRun(ctx, f.project.ID)
		require.NoError(t, err)
		outcome, err := o.Run(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusComplete, outcome.Run.Status)
	}
}

func TestOrchestratorFatalErrorMarksRunFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newPipelineFixture(t)

	run, err := f.store.CreateRun(ctx, f.project.ID)
	require.NoError(t, err)

	o := NewOrchestrator(OrchestratorDeps{
		Store:   f.store,
		Search:  searchResolver{err: domain.ErrProviderUnavailable},
		Fetcher: f.fetcher,
		Logger:  discardLogger(),
	})
	_, err = o.Run(ctx, run.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.True(t, IsRunFailure(err))

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageSetup, stageErr.Stage)

	got, err := f.store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, got.Status)
	assert.Contains(t, got.LastNote, "provider unavailable")
	require.NotNil(t, got.CompletedAt)

	logs, err := f.store.RunLogs(ctx, run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.LogFatal, logs[len(logs)-1].Level)
}

func TestOrchestratorUnknownRun(t *testing.T) {
	t.Parallel()
	f := newPipelineFixture(t)

	_, err := f.orchestrator(aiResolver{}).Run(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	assert.False(t, IsRunFailure(err))
}
