package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"MarketScanner/internal/domain"
)

// ReportInput is everything rendered into the markdown report.
type ReportInput struct {
	Run              domain.Run
	Project          domain.ProjectProfile
	VerticalName     string
	ExecutiveSummary string
	Findings         []domain.Finding
	Sources          []domain.Source
	Competitors      []domain.Competitor
	Pricing          []domain.PricingPoint
	Issues           []string
	GeneratedAt      time.Time
}

// RenderReport produces the markdown artifact of a run. Citations are rendered
// as numbered links into the Sources section.
func RenderReport(in ReportInput) domain.Report {
	var b strings.Builder

	fmt.Fprintf(&b, "# Competitive Analysis: %s\n\n", in.Project.Name)
	fmt.Fprintf(&b, "_Run %s", in.Run.ID)
	if !in.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, ", generated %s", in.GeneratedAt.UTC().Format(time.RFC3339))
	}
	if in.VerticalName != "" {
		fmt.Fprintf(&b, ", vertical %s", in.VerticalName)
	}
	b.WriteString("_\n\n")

	b.WriteString("## Executive Summary\n\n")
	if in.ExecutiveSummary != "" {
		b.WriteString(in.ExecutiveSummary)
	} else {
		b.WriteString("No summary available.")
	}
	b.WriteString("\n\n")

	sourceIndex := make(map[string]int, len(in.Sources))
	for i, s := range in.Sources {
		sourceIndex[s.ID] = i + 1
	}

	byKind := make(map[domain.FindingKind][]domain.Finding)
	for _, f := range in.Findings {
		byKind[f.Kind] = append(byKind[f.Kind], f)
	}
	for _, kind := range domain.FindingKinds {
		list := byKind[kind]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", kind.Title())
		for _, f := range list {
			fmt.Fprintf(&b, "- %s _(confidence %.2f)_", f.Text, f.Confidence)
			if refs := citationRefs(f.Citations, sourceIndex); refs != "" {
				b.WriteString(" ")
				b.WriteString(refs)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(in.Competitors) > 0 {
		b.WriteString("## Competitors\n\n| Name | Website |\n|---|---|\n")
		for _, c := range in.Competitors {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(c.Name), escapeCell(c.Website))
		}
		b.WriteString("\n")
	}

	if len(in.Pricing) > 0 {
		names := make(map[string]string, len(in.Competitors))
		for _, c := range in.Competitors {
			names[c.ID] = c.Name
		}
		points := append([]domain.PricingPoint(nil), in.Pricing...)
		sort.SliceStable(points, func(i, j int) bool {
			return names[points[i].CompetitorID] < names[points[j].CompetitorID]
		})
		b.WriteString("## Pricing\n\n| Competitor | Plan | Price | Period |\n|---|---|---|---|\n")
		for _, p := range points {
			name := names[p.CompetitorID]
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(&b, "| %s | %s | %.2f %s | %s |\n", escapeCell(name), escapeCell(p.Plan), p.Amount, p.Currency, p.Period)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Data Quality\n\n")
	if len(in.Issues) == 0 {
		b.WriteString("All checks passed.\n\n")
	} else {
		for _, issue := range in.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\n")
	}

	if len(in.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for i, s := range in.Sources {
			title := s.Title
			if title == "" {
				title = s.URL
			}
			fmt.Fprintf(&b, "%d. [%s](%s)", i+1, title, s.URL)
			if s.Status == domain.SourceError {
				b.WriteString(" (fetch failed)")
			}
			if s.Stale() {
				b.WriteString(" (stale)")
			}
			b.WriteString("\n")
		}
	}

	return domain.Report{
		RunID:            in.Run.ID,
		ExecutiveSummary: in.ExecutiveSummary,
		Markdown:         b.String(),
	}
}

func citationRefs(citations []string, index map[string]int) string {
	var refs []string
	for _, id := range citations {
		if n, ok := index[id]; ok {
			refs = append(refs, fmt.Sprintf("[%d]", n))
		}
	}
	return strings.Join(refs, "")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
