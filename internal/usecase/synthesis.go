package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"MarketScanner/internal/canonical"
	"MarketScanner/internal/domain"
	"MarketScanner/internal/llmjson"
	"MarketScanner/internal/ports"
)

const (
	maxCommonFeatures       = 10
	maxDifferentiators      = 10
	minDifferentiatorCaps   = 5
	minKeywordGapCaps       = 3
	maxCitations            = 3
	maxOpportunities        = 5
	defaultHistoryRuns      = 300
	pricingSpreadRatio      = 3.0
	integrationEcosystemMin = 20
	maxAIFindings           = 5
)

// SynthesisInput is the persisted state of one run after extraction.
type SynthesisInput struct {
	Run          domain.Run
	Project      domain.ProjectProfile
	Sources      []domain.Source
	Competitors  []domain.Competitor
	Capabilities []domain.Capability
	Features     []domain.Feature
	Pricing      []domain.PricingPoint
	Compliance   []domain.ComplianceItem
	Integrations []domain.Integration
	AI           ports.CompletionProvider
}

// SynthesisResult carries the findings in emission order plus the executive summary.
type SynthesisResult struct {
	Findings         []domain.Finding
	ExecutiveSummary string
	AISummary        bool
}

// Synthesis derives findings from extracted facts and cross-run history.
type Synthesis struct {
	history     ports.HistoryRepository
	historyRuns int
}

// NewSynthesis builds the synthesis stage. historyRuns <= 0 uses the default window.
func NewSynthesis(history ports.HistoryRepository, historyRuns int) *Synthesis {
	if historyRuns <= 0 {
		historyRuns = defaultHistoryRuns
	}
	return &Synthesis{history: history, historyRuns: historyRuns}
}

// Run computes deterministic findings and, when AI is available, appends AI
// risks and recommendations. AI failures degrade to deterministic output.
func (s *Synthesis) Run(ctx context.Context, in SynthesisInput, log runLog) (SynthesisResult, error) {
	var findings []domain.Finding
	findings = append(findings, commonFeatureFindings(in.Capabilities)...)
	findings = append(findings, differentiatorFindings(in.Capabilities)...)
	findings = append(findings, gapFindings(in.Project, in.Capabilities, in.Features)...)

	opportunities, err := s.opportunityFindings(ctx, in)
	if err != nil {
		return SynthesisResult{}, err
	}
	findings = append(findings, opportunities...)
	findings = append(findings, landscapeFindings(in)...)

	result := SynthesisResult{ExecutiveSummary: deterministicSummary(in, findings)}

	if in.AI != nil {
		ai, err := s.aiFindings(ctx, in, findings)
		if err != nil {
			log.Warn(ctx, "ai synthesis failed, keeping deterministic findings", "path", "ai", "error", err)
		} else {
			findings = append(findings, ai.findings...)
			if ai.summary != "" {
				result.ExecutiveSummary = ai.summary
				result.AISummary = true
			}
		}
	}

	for i := range findings {
		findings[i].RunID = in.Run.ID
	}
	result.Findings = findings

	log.Info(ctx, "synthesis finished", "findings", len(findings), "ai_summary", result.AISummary)
	return result, nil
}

type capabilityGroup struct {
	category string
	name     string
	key      string
	count    int
	sources  []string
}

// groupCapabilities groups by (category, normalized), keeping first-seen order.
func groupCapabilities(caps []domain.Capability) []*capabilityGroup {
	var order []*capabilityGroup
	byKey := make(map[string]*capabilityGroup)
	for _, c := range caps {
		key := c.Category + "\x00" + c.Normalized
		g, ok := byKey[key]
		if !ok {
			g = &capabilityGroup{category: c.Category, name: c.Name, key: c.Normalized}
			byKey[key] = g
			order = append(order, g)
		}
		g.count++
		if c.SourceID != "" {
			g.sources = appendUnique(g.sources, c.SourceID)
		}
	}
	return order
}

func commonFeatureFindings(caps []domain.Capability) []domain.Finding {
	groups := groupCapabilities(caps)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].count > groups[j].count })

	var out []domain.Finding
	for _, g := range groups {
		if len(out) == maxCommonFeatures {
			break
		}
		confidence := math.Min(0.9, 0.6+0.05*float64(g.count))
		text := fmt.Sprintf("%s (%s) appears %d time(s) across competitor sources.", g.name, g.category, g.count)
		out = append(out, domain.NewFinding(domain.FindingCommonFeature, text, confidence, firstN(g.sources, maxCitations)...))
	}
	return out
}

func differentiatorFindings(caps []domain.Capability) []domain.Finding {
	if len(caps) < minDifferentiatorCaps {
		return nil
	}
	var out []domain.Finding
	for _, g := range groupCapabilities(caps) {
		if g.count != 1 {
			continue
		}
		text := fmt.Sprintf("Only one source mentions %s (%s); it may differentiate that vendor.", g.name, g.category)
		out = append(out, domain.NewFinding(domain.FindingDifferentiator, text, 0.6, firstN(g.sources, maxCitations)...))
		if len(out) == maxDifferentiators {
			break
		}
	}
	return out
}

// observedKeys is the union of normalized capability and feature keys.
func observedKeys(caps []domain.Capability, features []domain.Feature) map[string]struct{} {
	keys := make(map[string]struct{}, len(caps)+len(features))
	for _, c := range caps {
		keys[c.Normalized] = struct{}{}
	}
	for _, f := range features {
		keys[f.Normalized] = struct{}{}
	}
	return keys
}

func gapFindings(p domain.ProjectProfile, caps []domain.Capability, features []domain.Feature) []domain.Finding {
	observed := observedKeys(caps, features)
	declared := make(map[string]struct{})

	var out []domain.Finding
	for _, raw := range p.DeclaredFeatures {
		name, key := canonical.CanonicalCapability(raw)
		if key == "" {
			continue
		}
		if _, dup := declared[key]; dup {
			continue
		}
		declared[key] = struct{}{}
		if _, seen := observed[key]; seen {
			continue
		}
		text := fmt.Sprintf("%s was not found in any analysed competitor source.", name)
		out = append(out, domain.NewFinding(domain.FindingGap, text, 0.6))
	}

	if len(caps) < minKeywordGapCaps {
		return out
	}
	for _, raw := range p.Keywords {
		name, key := canonical.CanonicalCapability(raw)
		if key == "" {
			continue
		}
		if _, covered := declared[key]; covered {
			continue
		}
		declared[key] = struct{}{}
		if _, seen := observed[key]; seen {
			continue
		}
		text := fmt.Sprintf("No competitor covers %s; this may be an open market gap.", name)
		out = append(out, domain.NewFinding(domain.FindingGap, text, 0.62))
	}
	return out
}

type opportunity struct {
	name       string
	key        string
	current    int
	historical int
	sources    []string
}

func (s *Synthesis) opportunityFindings(ctx context.Context, in SynthesisInput) ([]domain.Finding, error) {
	declared := make(map[string]struct{}, len(in.Project.DeclaredFeatures))
	for _, raw := range in.Project.DeclaredFeatures {
		if _, key := canonical.CanonicalCapability(raw); key != "" {
			declared[key] = struct{}{}
		}
	}

	byKey := make(map[string]*opportunity)
	var order []*opportunity
	get := func(key, name string) *opportunity {
		o, ok := byKey[key]
		if !ok {
			o = &opportunity{name: name, key: key}
			byKey[key] = o
			order = append(order, o)
		}
		return o
	}

	for _, f := range in.Features {
		if _, skip := declared[f.Normalized]; skip || f.Origin == domain.OriginUser {
			continue
		}
		o := get(f.Normalized, f.Name)
		o.current++
		if f.SourceID != "" {
			o.sources = appendUnique(o.sources, f.SourceID)
		}
	}

	if s.history != nil && in.Project.Industry != "" {
		counts, err := s.history.HistoricalFeatureCounts(ctx, in.Project.Industry, in.Run.ID, s.historyRuns)
		if err != nil {
			return nil, fmt.Errorf("historical feature counts: %w", err)
		}
		for _, c := range counts {
			if _, skip := declared[c.Normalized]; skip {
				continue
			}
			get(c.Normalized, c.Name).historical += c.Count
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		ti, tj := order[i].current+order[i].historical, order[j].current+order[j].historical
		if ti != tj {
			return ti > tj
		}
		return order[i].key < order[j].key
	})

	var out []domain.Finding
	for _, o := range firstN(order, maxOpportunities) {
		confidence := 0.55
		var text string
		if o.current > 0 {
			confidence = 0.7
			text = fmt.Sprintf("Consider %s: seen %d time(s) in this run and %d time(s) in recent %s analyses.",
				o.name, o.current, o.historical, in.Project.Industry)
		} else {
			text = fmt.Sprintf("Consider %s: absent here but seen %d time(s) in recent %s analyses.",
				o.name, o.historical, in.Project.Industry)
		}
		out = append(out, domain.NewFinding(domain.FindingInsight, text, confidence, firstN(o.sources, maxCitations)...))
	}
	return out, nil
}

func landscapeFindings(in SynthesisInput) []domain.Finding {
	var out []domain.Finding

	if f, ok := pricingSpreadFinding(in.Pricing); ok {
		out = append(out, f)
	}

	unique := make(map[string]struct{})
	var integrationSources []string
	for _, i := range in.Integrations {
		unique[strings.ToLower(strings.TrimSpace(i.Name))] = struct{}{}
		if i.SourceID != "" {
			integrationSources = appendUnique(integrationSources, i.SourceID)
		}
	}
	if len(unique) > integrationEcosystemMin {
		text := fmt.Sprintf("Competitors advertise %d distinct integrations; a broad ecosystem is expected in this market.", len(unique))
		out = append(out, domain.NewFinding(domain.FindingInsight, text, 0.75, firstN(integrationSources, maxCitations)...))
	}

	if len(in.Compliance) > 0 {
		var frameworks, sources []string
		for _, c := range in.Compliance {
			frameworks = appendUnique(frameworks, c.Framework)
			if c.SourceID != "" {
				sources = appendUnique(sources, c.SourceID)
			}
		}
		sort.Strings(frameworks)
		text := fmt.Sprintf("Compliance claims observed: %s.", strings.Join(frameworks, ", "))
		out = append(out, domain.NewFinding(domain.FindingInsight, text, 0.8, firstN(sources, maxCitations)...))
	}

	if len(in.Competitors) > 0 {
		names := make([]string, 0, len(in.Competitors))
		for _, c := range in.Competitors {
			names = append(names, c.Name)
		}
		text := fmt.Sprintf("%d competitor(s) identified: %s.", len(names), strings.Join(firstN(names, 10), ", "))
		out = append(out, domain.NewFinding(domain.FindingInsight, text, 0.7))
	}
	return out
}

// pricingSpreadFinding compares monthly-equivalent prices; ONE_TIME prices are not comparable.
func pricingSpreadFinding(points []domain.PricingPoint) (domain.Finding, bool) {
	lo, hi := math.Inf(1), 0.0
	var sources []string
	for _, p := range points {
		monthly, ok := p.Monthly()
		if !ok {
			continue
		}
		lo = math.Min(lo, monthly)
		hi = math.Max(hi, monthly)
		if p.SourceID != "" {
			sources = appendUnique(sources, p.SourceID)
		}
	}
	if hi == 0 || math.IsInf(lo, 1) || hi/lo <= pricingSpreadRatio {
		return domain.Finding{}, false
	}
	text := fmt.Sprintf("Monthly prices range from %.2f to %.2f (%.1fx spread); the market spans several price tiers.", lo, hi, hi/lo)
	return domain.NewFinding(domain.FindingInsight, text, 0.8, firstN(sources, maxCitations)...), true
}

func deterministicSummary(in SynthesisInput, findings []domain.Finding) string {
	counts := make(map[domain.FindingKind]int)
	for _, f := range findings {
		counts[f.Kind]++
	}
	return fmt.Sprintf("Analysed %d source(s) covering %d competitor(s) and %d capability mention(s). Found %d gap(s), %d differentiator(s), %d common feature(s) and %d insight(s).",
		len(in.Sources), len(in.Competitors), len(in.Capabilities),
		counts[domain.FindingGap], counts[domain.FindingDifferentiator],
		counts[domain.FindingCommonFeature], counts[domain.FindingInsight])
}

type aiFinding struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type aiSynthesis struct {
	ExecutiveSummary string      `json:"executiveSummary"`
	Risks            []aiFinding `json:"risks"`
	Recommendations  []aiFinding `json:"recommendations"`
}

type aiSynthesisResult struct {
	summary  string
	findings []domain.Finding
}

func (s *Synthesis) aiFindings(ctx context.Context, in SynthesisInput, deterministic []domain.Finding) (aiSynthesisResult, error) {
	raw, err := in.AI.Complete(ctx, ports.CompletionRequest{
		System:      synthesisSystemPrompt,
		User:        synthesisUserPrompt(in.Project, deterministic),
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   2048,
	})
	if err != nil {
		return aiSynthesisResult{}, fmt.Errorf("complete: %w", err)
	}
	parsed, err := llmjson.Parse[aiSynthesis](raw)
	if err != nil {
		return aiSynthesisResult{}, err
	}

	res := aiSynthesisResult{summary: strings.TrimSpace(parsed.ExecutiveSummary)}
	res.findings = append(res.findings, toFindings(domain.FindingRisk, parsed.Risks)...)
	res.findings = append(res.findings, toFindings(domain.FindingRecommendation, parsed.Recommendations)...)
	return res, nil
}

func toFindings(kind domain.FindingKind, items []aiFinding) []domain.Finding {
	var out []domain.Finding
	for _, it := range items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			continue
		}
		confidence := it.Confidence
		if confidence <= 0 {
			confidence = 0.6
		}
		out = append(out, domain.NewFinding(kind, text, confidence))
		if len(out) == maxAIFindings {
			break
		}
	}
	return out
}

const synthesisSystemPrompt = `You are a product strategy analyst.
Given a product description and findings from a competitive scan, reply with JSON only:
{"executiveSummary":"","risks":[{"text":"","confidence":0.0}],"recommendations":[{"text":"","confidence":0.0}]}
Provide 3 to 5 risks and 3 to 5 recommendations grounded in the findings.`

func synthesisUserPrompt(p domain.ProjectProfile, findings []domain.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\nCategory: %s\nIndustry: %s\n", p.Name, p.Category, p.Industry)
	if len(p.TargetSegments) > 0 {
		fmt.Fprintf(&b, "Segments: %s\n", strings.Join(p.TargetSegments, ", "))
	}
	if d := p.Description(); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	b.WriteString("\nFindings:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- [%s] %s\n", f.Kind, f.Text)
	}
	return b.String()
}
