package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScanner/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	clock := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	run, err := store.CreateRun(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusNew, run.Status)

	require.NoError(t, store.UpdateRunStatus(ctx, run.ID, domain.RunUpdate{Status: domain.RunStatusDiscovering, Note: "discovering"}))
	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusDiscovering, got.Status)
	assert.Equal(t, "discovering", got.LastNote)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.UpdateRunStatus(ctx, run.ID, domain.RunUpdate{Status: domain.RunStatusComplete, Note: "done"}))
	got, err = store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.After(*got.StartedAt))

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	assert.ErrorIs(t, store.UpdateRunStatus(ctx, "missing", domain.RunUpdate{Status: domain.RunStatusError}), domain.ErrRunNotFound)
}

func TestPreviousCompleteRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.CreateRun(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, store.UpdateRunStatus(ctx, first.ID, domain.RunUpdate{Status: domain.RunStatusComplete}))
	failed, err := store.CreateRun(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, store.UpdateRunStatus(ctx, failed.ID, domain.RunUpdate{Status: domain.RunStatusError}))
	current, err := store.CreateRun(ctx, "p1")
	require.NoError(t, err)

	prev, ok, err := store.PreviousCompleteRun(ctx, "p1", current.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, prev.ID)

	_, ok, err = store.PreviousCompleteRun(ctx, "p1", first.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	latest, ok, err := store.LatestRun(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, current.ID, latest.ID)
}

func TestCompetitorUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	a, err := store.UpsertCompetitor(ctx, domain.Competitor{RunID: "r1", Name: "Acme"})
	require.NoError(t, err)
	b, err := store.UpsertCompetitor(ctx, domain.Competitor{RunID: "r1", Name: "Acme", Website: "https://acme.io"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "https://acme.io", b.Website)

	list, err := store.ListCompetitors(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSourceUniquePerRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	published := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	first, err := store.CreateSource(ctx, domain.Source{RunID: "r1", URL: "https://acme.io/pricing", PublishedAt: &published})
	require.NoError(t, err)
	second, err := store.CreateSource(ctx, domain.Source{RunID: "r1", URL: "https://acme.io/pricing", Title: "dup"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.SourcePending, second.Status)
	require.NotNil(t, second.PublishedAt)
	assert.True(t, published.Equal(*second.PublishedAt))

	fetched := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
	first.Status = domain.SourceOK
	first.Content = "hello"
	first.FetchedAt = &fetched
	require.NoError(t, store.UpdateSourceFetch(ctx, first))

	list, err := store.ListSources(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.SourceOK, list[0].Status)
	assert.Equal(t, "hello", list[0].Content)
}

func TestFeatureDefinitionsAreUniqueAndAliasesMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	def := domain.FeatureDefinition{Name: "Single Sign On", Normalized: "single sign on", Aliases: []string{"SSO"}, Origin: domain.OriginUser}
	require.NoError(t, store.InsertFeatureDefinitions(ctx, []domain.FeatureDefinition{def}))
	require.NoError(t, store.InsertFeatureDefinitions(ctx, []domain.FeatureDefinition{def}))

	defs, err := store.FindFeatureDefinitions(ctx, []string{"single sign on", "absent"})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"SSO"}, defs[0].Aliases)

	require.NoError(t, store.AddFeatureDefinitionAliases(ctx, defs[0].ID, []string{"SSO", "Single Sign-On"}))
	defs, err = store.FindFeatureDefinitions(ctx, []string{"single sign on"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"SSO", "Single Sign-On"}, defs[0].Aliases)
}

func TestSaveExtractionSkipsDuplicateKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	batch := domain.ExtractionBatch{
		Capabilities: []domain.Capability{
			{Category: "Security", Name: "Single Sign On", Normalized: "single sign on"},
			{Category: "Security", Name: "SSO", Normalized: "single sign on"},
			{Category: "API", Name: "REST API", Normalized: "rest api"},
		},
		Features: []domain.Feature{
			{CompetitorID: "c1", Name: "Single Sign On", Normalized: "single sign on", Description: "first", Origin: domain.OriginCompetitor},
			{CompetitorID: "c1", Name: "Single Sign On", Normalized: "single sign on", Description: "second", Origin: domain.OriginCompetitor},
		},
		Pricing:      []domain.PricingPoint{{Plan: "Pro", Amount: 49, Currency: "USD", Period: domain.PeriodMonth}},
		Compliance:   []domain.ComplianceItem{{Framework: "SOC 2"}},
		Integrations: []domain.Integration{{Name: "Slack"}, {Name: "Zapier"}},
	}
	require.NoError(t, store.SaveExtraction(ctx, "r1", batch))

	caps, err := store.ListCapabilities(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, "Single Sign On", caps[0].Name)

	features, err := store.ListFeatures(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "first", features[0].Description)

	pricing, err := store.ListPricing(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, pricing, 1)
	assert.Equal(t, domain.PeriodMonth, pricing[0].Period)

	integrations, err := store.ListIntegrations(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, integrations, 2)

	compliance, err := store.ListCompliance(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, compliance, 1)
}

func TestFindingsRoundTripKeepsOrderAndCitations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	findings := []domain.Finding{
		domain.NewFinding(domain.FindingGap, "gap", 0.6),
		domain.NewFinding(domain.FindingInsight, "insight", 1.4, "s1", "s2"),
	}
	require.NoError(t, store.SaveFindings(ctx, "r1", findings))
	require.NoError(t, store.SaveFindings(ctx, "r1", []domain.Finding{domain.NewFinding(domain.FindingRisk, "risk", 0.5)}))

	got, err := store.ListFindings(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.FindingGap, got[0].Kind)
	assert.Empty(t, got[0].Citations)
	assert.Equal(t, []string{"s1", "s2"}, got[1].Citations)
	assert.Equal(t, 1.0, got[1].Confidence)
	assert.Equal(t, domain.FindingRisk, got[2].Kind)
}

func TestHistoricalFeatureCountsByIndustry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	fintech, err := store.SaveProject(ctx, domain.ProjectProfile{Name: "Ledger", Industry: "fintech"})
	require.NoError(t, err)
	health, err := store.SaveProject(ctx, domain.ProjectProfile{Name: "Clinic", Industry: "health"})
	require.NoError(t, err)

	addRun := func(projectID string, status domain.RunStatus, names ...string) string {
		run, err := store.CreateRun(ctx, projectID)
		require.NoError(t, err)
		require.NoError(t, store.UpdateRunStatus(ctx, run.ID, domain.RunUpdate{Status: status}))
		var features []domain.Feature
		for _, n := range names {
			features = append(features, domain.Feature{Name: n, Normalized: n, Origin: domain.OriginCompetitor})
		}
		require.NoError(t, store.SaveExtraction(ctx, run.ID, domain.ExtractionBatch{Features: features}))
		return run.ID
	}

	addRun(fintech.ID, domain.RunStatusComplete, "invoicing", "audit log")
	addRun(fintech.ID, domain.RunStatusComplete, "invoicing")
	addRun(fintech.ID, domain.RunStatusError, "ignored")
	addRun(health.ID, domain.RunStatusComplete, "telehealth")
	current := addRun(fintech.ID, domain.RunStatusQA, "current only")

	counts, err := store.HistoricalFeatureCounts(ctx, "fintech", current, 300)
	require.NoError(t, err)
	assert.Equal(t, []domain.FeatureCount{
		{Name: "invoicing", Normalized: "invoicing", Count: 2},
		{Name: "audit log", Normalized: "audit log", Count: 1},
	}, counts)
}

func TestCreditsAndLogRetention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SetCredits(ctx, "u1", 1))
	require.NoError(t, store.ConsumeCredit(ctx, "u1", 1))
	assert.ErrorIs(t, store.ConsumeCredit(ctx, "u1", 1), domain.ErrInsufficientCredits)
	balance, err := store.CreditBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	old := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendRunLog(ctx, domain.RunLogLine{RunID: "r1", Level: domain.LogInfo, Message: "old", CreatedAt: old}))
	require.NoError(t, store.AppendRunLog(ctx, domain.RunLogLine{RunID: "r1", Level: domain.LogWarn, Message: "new"}))

	deleted, err := store.DeleteRunLogsBefore(ctx, old.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	lines, err := store.RunLogs(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "new", lines[0].Message)
}

func TestProjectRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.SaveProject(ctx, domain.ProjectProfile{
		Name:             "Ledger",
		Keywords:         []string{"invoicing"},
		DeclaredFeatures: []string{"SSO"},
		AutoRerunDays:    14,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := store.GetProject(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	_, err = store.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	require.NoError(t, store.SaveProjectSettings(ctx, domain.ProjectSettings{ProjectID: saved.ID, AIProvider: "anthropic", AIEnabled: true, FreshnessDays: 90}))
	settings, ok, err := store.GetProjectSettings(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, settings.AIEnabled)
	assert.Equal(t, 90, settings.FreshnessDays)
}

func TestPlaceholderFormatFollowsDialect(t *testing.T) {
	query, _, err := New(nil, DialectPostgres).sb.Select("id").From("runs").Where("project_id = ?", "p1").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM runs WHERE project_id = $1", query)

	query, _, err = New(nil, DialectSQLite).sb.Select("id").From("runs").Where("project_id = ?", "p1").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM runs WHERE project_id = ?", query)
}
