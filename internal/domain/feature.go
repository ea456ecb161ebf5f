package domain

import (
	"fmt"
	"time"
)

// FeatureOrigin tells where a feature name was first observed.
type FeatureOrigin string

const (
	OriginUser       FeatureOrigin = "USER"
	OriginCompetitor FeatureOrigin = "COMPETITOR"
	OriginSystem     FeatureOrigin = "SYSTEM"
)

// ParseFeatureOrigin validates a persisted origin string.
func ParseFeatureOrigin(s string) (FeatureOrigin, error) {
	switch FeatureOrigin(s) {
	case OriginUser, OriginCompetitor, OriginSystem:
		return FeatureOrigin(s), nil
	default:
		return "", fmt.Errorf("unknown feature origin %q", s)
	}
}

// Competitor is a brand identified from a source or declared by the user.
type Competitor struct {
	ID      string
	RunID   string
	Name    string
	Website string
}

// Capability is a raw extracted (category, name) fact.
type Capability struct {
	ID           string
	RunID        string
	SourceID     string
	CompetitorID string
	Category     string
	Name         string
	Normalized   string
	Description  string
}

// FeatureDefinition is the durable cross-run catalog entry for a feature concept.
type FeatureDefinition struct {
	ID         string
	Name       string
	Normalized string
	Aliases    []string
	Category   string
	Origin     FeatureOrigin
	CreatedAt  time.Time
}

// Feature is one (competitor, definition) observation within a run.
type Feature struct {
	ID                  string
	RunID               string
	CompetitorID        string
	FeatureDefinitionID string
	SourceID            string
	Name                string
	Normalized          string
	Description         string
	Confidence          float64
	Origin              FeatureOrigin
}

// DedupKey is the first-wins identity of a feature within a run.
func (f Feature) DedupKey() string {
	return f.CompetitorID + "\x00" + f.Normalized
}

// FeatureCount aggregates observations of one normalized feature.
type FeatureCount struct {
	Name       string
	Normalized string
	Count      int
}

// PricingPeriod is the billing cadence of a plan.
type PricingPeriod string

const (
	PeriodMonth   PricingPeriod = "MONTH"
	PeriodYear    PricingPeriod = "YEAR"
	PeriodOneTime PricingPeriod = "ONE_TIME"
	PeriodUnknown PricingPeriod = "UNKNOWN"
)

// PricingPoint is one extracted plan price.
type PricingPoint struct {
	ID           string
	RunID        string
	CompetitorID string
	SourceID     string
	Plan         string
	Amount       float64
	Currency     string
	Period       PricingPeriod
	Notes        string
}

// Monthly converts the price to a monthly figure; ok is false when not comparable.
func (p PricingPoint) Monthly() (float64, bool) {
	if p.Amount <= 0 {
		return 0, false
	}
	switch p.Period {
	case PeriodMonth, PeriodUnknown:
		return p.Amount, true
	case PeriodYear:
		return p.Amount / 12, true
	default:
		return 0, false
	}
}

// ComplianceItem is one extracted compliance framework claim.
type ComplianceItem struct {
	ID           string
	RunID        string
	CompetitorID string
	SourceID     string
	Framework    string
	Details      string
}

// Integration is one extracted third-party integration.
type Integration struct {
	ID           string
	RunID        string
	CompetitorID string
	SourceID     string
	Name         string
}

// ExtractionBatch is everything queued for one transactional write after extraction.
type ExtractionBatch struct {
	Capabilities []Capability
	Features     []Feature
	Pricing      []PricingPoint
	Compliance   []ComplianceItem
	Integrations []Integration
}
