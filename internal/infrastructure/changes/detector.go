// Package changes diffs the sources of consecutive runs and raises alerts.
package changes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const (
	RuleNewCompetitorDomain = "new_competitor_domain"
	RulePricingPageChanged  = "pricing_page_changed"
	RuleSourceChurn         = "source_churn"

	defaultChurnThreshold = 5
)

var pricingMarkers = []string{"pricing", "plans", "price"}

// Detector is the default ports.ChangeDetector.
type Detector struct {
	sources        ports.SourceRepository
	churnThreshold int
}

var _ ports.ChangeDetector = (*Detector)(nil)

// NewDetector reads sources from repo; churn alerts fire at 5 added or removed sources.
func NewDetector(repo ports.SourceRepository) *Detector {
	return &Detector{sources: repo, churnThreshold: defaultChurnThreshold}
}

// DetectSourceChanges compares sources by URL; a URL present in both runs is
// modified when both fetches succeeded and their content hashes differ.
func (d *Detector) DetectSourceChanges(ctx context.Context, previousRunID, runID string) (domain.SourceChanges, error) {
	prev, err := d.sources.ListSources(ctx, previousRunID)
	if err != nil {
		return domain.SourceChanges{}, fmt.Errorf("list sources of %s: %w", previousRunID, err)
	}
	curr, err := d.sources.ListSources(ctx, runID)
	if err != nil {
		return domain.SourceChanges{}, fmt.Errorf("list sources of %s: %w", runID, err)
	}

	changes := domain.SourceChanges{PreviousRunID: previousRunID, RunID: runID}
	before := indexByURL(prev)
	after := indexByURL(curr)

	for _, s := range curr {
		old, ok := before[s.URL]
		switch {
		case !ok:
			changes.AddedSources = append(changes.AddedSources, s)
		case fetched(old) && fetched(s) && contentHash(old.Content) != contentHash(s.Content):
			changes.ModifiedSources = append(changes.ModifiedSources, s)
		}
	}
	for _, s := range prev {
		if _, ok := after[s.URL]; !ok {
			changes.RemovedSources = append(changes.RemovedSources, s)
		}
	}
	return changes, nil
}

// CheckForAlerts evaluates the alert rules against changes.
func (d *Detector) CheckForAlerts(ctx context.Context, projectID string, changes domain.SourceChanges) ([]domain.Alert, error) {
	var alerts []domain.Alert

	prev, err := d.sources.ListSources(ctx, changes.PreviousRunID)
	if err != nil {
		return nil, fmt.Errorf("list sources of %s: %w", changes.PreviousRunID, err)
	}
	known := map[string]struct{}{}
	for _, s := range prev {
		known[s.Domain] = struct{}{}
	}
	fresh := map[string]struct{}{}
	for _, s := range changes.AddedSources {
		if s.Domain == "" {
			continue
		}
		if _, ok := known[s.Domain]; !ok {
			fresh[s.Domain] = struct{}{}
		}
	}
	for _, domainName := range sortedKeys(fresh) {
		alerts = append(alerts, domain.Alert{
			Rule:    RuleNewCompetitorDomain,
			Message: fmt.Sprintf("project %s: new domain %s appeared in results", projectID, domainName),
		})
	}

	for _, s := range changes.ModifiedSources {
		if isPricingPage(s.URL) {
			alerts = append(alerts, domain.Alert{
				Rule:    RulePricingPageChanged,
				Message: fmt.Sprintf("project %s: pricing page changed: %s", projectID, s.URL),
			})
		}
	}

	churn := len(changes.AddedSources) + len(changes.RemovedSources)
	if churn >= d.churnThreshold {
		alerts = append(alerts, domain.Alert{
			Rule: RuleSourceChurn,
			Message: fmt.Sprintf("project %s: %d sources added and %d removed since run %s",
				projectID, len(changes.AddedSources), len(changes.RemovedSources), changes.PreviousRunID),
		})
	}
	return alerts, nil
}

func indexByURL(sources []domain.Source) map[string]domain.Source {
	out := make(map[string]domain.Source, len(sources))
	for _, s := range sources {
		out[s.URL] = s
	}
	return out
}

func fetched(s domain.Source) bool {
	return s.Status == domain.SourceOK
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

func isPricingPage(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, marker := range pricingMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
