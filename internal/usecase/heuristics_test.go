package usecase

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScanner/internal/domain"
)

func TestExtractCapabilitiesMergesSynonyms(t *testing.T) {
	t.Parallel()

	caps := extractCapabilities("Secure logins with 2FA and Two-Factor Authentication for every seat.")
	require.Len(t, caps, 1)
	assert.Equal(t, "Security", caps[0].Category)
	assert.Equal(t, "Multi Factor Authentication", caps[0].Name)
	assert.Equal(t, "multi factor authentication", caps[0].Normalized)
}

func TestExtractCapabilitiesAcrossCategories(t *testing.T) {
	t.Parallel()

	text := "Connect via REST API and webhooks. SAML SSO, audit logs and RBAC included. SOC 2 Type II."
	got := map[string]string{}
	for _, c := range extractCapabilities(text) {
		got[c.Normalized] = c.Category
	}
	want := map[string]string{
		"rest api":                  "API",
		"webhooks":                  "Integrations",
		"single sign on":            "Security",
		"audit log":                 "Security",
		"role based access control": "Permissions",
		"soc 2":                     "Compliance",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("capabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractWithRegexCompliancePricingAndVendors(t *testing.T) {
	t.Parallel()

	text := "Plans & Pricing\nStarter\n$50/month\nPro: $200 per month\nEnterprise\nContact sales\n" +
		"We are SOC 2 and HIPAA compliant and sign a BAA. Integrates with Slack, Salesforce and slack."
	facts := extractWithRegex("Acme Pricing", text)

	frameworks := make([]string, 0, len(facts.Compliance))
	for _, c := range facts.Compliance {
		frameworks = append(frameworks, c.Framework)
	}
	assert.Equal(t, []string{"SOC 2", "HIPAA", "BAA"}, frameworks)
	assert.Equal(t, []string{"Slack", "Salesforce"}, facts.Integrations)

	require.Len(t, facts.Pricing, 2)
	assert.Equal(t, domain.PricingPoint{Plan: "Starter", Amount: 50, Currency: "USD", Period: domain.PeriodMonth}, facts.Pricing[0])
	assert.Equal(t, domain.PricingPoint{Plan: "Pro", Amount: 200, Currency: "USD", Period: domain.PeriodMonth}, facts.Pricing[1])
}

func TestPricingOnlyOnPricingPages(t *testing.T) {
	t.Parallel()

	facts := extractWithRegex("Company news", "We raised $20 million last year to grow the team.")
	assert.Empty(t, facts.Pricing)
}

func TestParsePricingCurrencyAndPeriod(t *testing.T) {
	t.Parallel()

	points := parsePricing("Basic\n€9.99 / yr\nTeam £1,200 annually\n$5 one-time\nScale $1200/mo")
	require.Len(t, points, 4)
	assert.Equal(t, "EUR", points[0].Currency)
	assert.InDelta(t, 9.99, points[0].Amount, 1e-9)
	assert.Equal(t, domain.PeriodYear, points[0].Period)
	assert.Equal(t, "Team", points[1].Plan)
	assert.InDelta(t, 1200, points[1].Amount, 1e-9)
	assert.Equal(t, "GBP", points[1].Currency)
	assert.Equal(t, domain.PeriodOneTime, points[2].Period)
	assert.Equal(t, "Scale", points[3].Plan)
	assert.InDelta(t, 1200, points[3].Amount, 1e-9)
	assert.Equal(t, domain.PeriodMonth, points[3].Period)
}

func TestExtractWithRegexPlanPrefixSeparators(t *testing.T) {
	t.Parallel()

	facts := extractWithRegex("Pricing", "Team - $30/month\nScale:   $90 per month")
	require.Len(t, facts.Pricing, 2)
	assert.Equal(t, "Team", facts.Pricing[0].Plan)
	assert.Equal(t, "Scale", facts.Pricing[1].Plan)
}
