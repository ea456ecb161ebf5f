package domain

import "fmt"

// FindingKind classifies a synthesized claim.
type FindingKind string

const (
	FindingGap            FindingKind = "GAP"
	FindingDifferentiator FindingKind = "DIFFERENTIATOR"
	FindingCommonFeature  FindingKind = "COMMON_FEATURE"
	FindingRisk           FindingKind = "RISK"
	FindingRecommendation FindingKind = "RECOMMENDATION"
	FindingInsight        FindingKind = "INSIGHT"
)

// FindingKinds lists kinds in report order.
var FindingKinds = []FindingKind{
	FindingGap,
	FindingDifferentiator,
	FindingCommonFeature,
	FindingInsight,
	FindingRisk,
	FindingRecommendation,
}

// ParseFindingKind validates a persisted kind string.
func ParseFindingKind(s string) (FindingKind, error) {
	for _, k := range FindingKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown finding kind %q", s)
}

// Title is the report heading for the kind.
func (k FindingKind) Title() string {
	switch k {
	case FindingGap:
		return "Gaps"
	case FindingDifferentiator:
		return "Differentiators"
	case FindingCommonFeature:
		return "Common Features"
	case FindingInsight:
		return "Insights"
	case FindingRisk:
		return "Risks"
	case FindingRecommendation:
		return "Recommendations"
	default:
		return string(k)
	}
}

// Finding is a synthesized claim with optional source citations.
type Finding struct {
	ID         string
	RunID      string
	Kind       FindingKind
	Text       string
	Confidence float64
	Citations  []string
}

// NewFinding builds a finding with a clamped confidence.
func NewFinding(kind FindingKind, text string, confidence float64, citations ...string) Finding {
	return Finding{
		Kind:       kind,
		Text:       text,
		Confidence: ClampConfidence(confidence),
		Citations:  citations,
	}
}

// ClampConfidence bounds confidence to [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// Report is the rendered markdown artifact of a run.
type Report struct {
	RunID            string
	ExecutiveSummary string
	Markdown         string
}
