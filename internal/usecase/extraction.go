package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketScanner/internal/canonical"
	"MarketScanner/internal/domain"
	"MarketScanner/internal/llmjson"
	"MarketScanner/internal/ports"
	"MarketScanner/internal/vertical"
)

const (
	defaultFetchTimeout    = 20 * time.Second
	defaultMaxContentChars = 300_000
	aiContentChars         = 12_000
	aiConfidence           = 0.8
	regexConfidence        = 0.5
)

// ExtractionConfig bounds the per-source work.
type ExtractionConfig struct {
	FetchTimeout    time.Duration
	MaxContentChars int
}

// extractionStore is the persistence surface extraction writes to.
type extractionStore interface {
	ports.SourceRepository
	ports.CompetitorRepository
	ports.FactRepository
}

// Extraction fetches sources and turns page text into structured facts.
type Extraction struct {
	store    extractionStore
	fetcher  ports.PageFetcher
	registry *FeatureRegistry
	cfg      ExtractionConfig
	now      func() time.Time
}

// NewExtraction builds the extraction stage.
func NewExtraction(store extractionStore, fetcher ports.PageFetcher, registry *FeatureRegistry, cfg ExtractionConfig) *Extraction {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = defaultMaxContentChars
	}
	return &Extraction{store: store, fetcher: fetcher, registry: registry, cfg: cfg, now: time.Now}
}

// ExtractionInput is one run's extraction request. AI is nil when no provider
// is configured or AI is disabled for the project.
type ExtractionInput struct {
	Run                 domain.Run
	Project             domain.ProjectProfile
	Sources             []domain.Source
	DeclaredCompetitors []string
	AI                  ports.CompletionProvider
	Vertical            vertical.Profile
}

// ExtractionSummary counts what one extraction pass produced.
type ExtractionSummary struct {
	Fetched      int
	Failed       int
	AIExtracted  int
	RegexSources int
	Batch        domain.ExtractionBatch
}

type rawCapability struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Normalized  string `json:"-"`
	Description string `json:"description"`
	// Raw is the spelling seen in the source before any renaming.
	Raw string `json:"-"`
}

type rawCompliance struct {
	Framework string `json:"framework"`
	Details   string `json:"details"`
}

type rawPricing struct {
	Plan     string  `json:"plan"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Period   string  `json:"period"`
	Notes    string  `json:"notes"`
}

// extractedFacts is what one source yields, by either path.
type extractedFacts struct {
	Capabilities []rawCapability
	Pricing      []domain.PricingPoint
	Compliance   []rawCompliance
	Integrations []string
	Summary      string
}

type aiExtraction struct {
	Capabilities []rawCapability `json:"capabilities"`
	Pricing      []rawPricing    `json:"pricing"`
	Compliance   []rawCompliance `json:"compliance"`
	Integrations []string        `json:"integrations"`
	Summary      string          `json:"summary"`
}

// Run processes sources sequentially. Fetch and AI failures are contained per
// source; only persistence failures abort the stage.
func (e *Extraction) Run(ctx context.Context, in ExtractionInput, log runLog) (ExtractionSummary, error) {
	var summary ExtractionSummary
	collector := newFactCollector(in.Run.ID)
	declared := make(map[string]string, len(in.DeclaredCompetitors))
	for _, name := range in.DeclaredCompetitors {
		declared[canonical.Normalize(name)] = name
	}

	for _, src := range in.Sources {
		page, err := e.fetch(ctx, src.URL)
		fetchedAt := e.now()
		src.FetchedAt = &fetchedAt
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			src.Status = domain.SourceError
			src.Error = err.Error()
			if err := e.store.UpdateSourceFetch(ctx, src); err != nil {
				return summary, fmt.Errorf("record fetch failure %s: %w", src.URL, err)
			}
			summary.Failed++
			log.Warn(ctx, "fetch failed", "url", src.URL, "error", err)
			continue
		}

		src.Status = domain.SourceOK
		src.Content = truncateRunes(page.Text, e.cfg.MaxContentChars)
		if page.Title != "" {
			src.Title = page.Title
		}
		if err := e.store.UpdateSourceFetch(ctx, src); err != nil {
			return summary, fmt.Errorf("record fetch %s: %w", src.URL, err)
		}
		summary.Fetched++

		var competitor *domain.Competitor
		if name, website, ok := resolveBrand(src.Title, src.URL); ok {
			if known, isDeclared := declared[canonical.Normalize(name)]; isDeclared {
				name = known
			}
			c, err := e.store.UpsertCompetitor(ctx, domain.Competitor{RunID: in.Run.ID, Name: name, Website: website})
			if err != nil {
				return summary, fmt.Errorf("upsert competitor %s: %w", name, err)
			}
			competitor = &c
		}

		var facts *extractedFacts
		confidence := regexConfidence
		if in.AI != nil && competitor != nil {
			aiFacts, err := e.extractWithAI(ctx, in, competitor.Name, src, log)
			if err != nil {
				log.Warn(ctx, "ai extraction failed, using regex fallback", "path", "ai", "url", src.URL, "error", err)
			} else {
				facts = &aiFacts
				confidence = aiConfidence
				summary.AIExtracted++
				log.Info(ctx, "extracted facts", "path", "ai", "url", src.URL, "competitor", competitor.Name,
					"capabilities", len(aiFacts.Capabilities))
			}
		}
		if facts == nil {
			regexFacts := extractWithRegex(src.Title, src.Content)
			facts = &regexFacts
			summary.RegexSources++
			log.Info(ctx, "extracted facts", "path", "regex", "url", src.URL,
				"capabilities", len(regexFacts.Capabilities))
		}

		collector.add(*facts, src, competitor, confidence)
	}

	batch, err := e.linkDefinitions(ctx, collector)
	if err != nil {
		return summary, err
	}
	if err := e.store.SaveExtraction(ctx, in.Run.ID, batch); err != nil {
		return summary, fmt.Errorf("save extraction: %w", err)
	}
	summary.Batch = batch

	log.Info(ctx, "extraction finished", "fetched", summary.Fetched, "failed", summary.Failed,
		"ai_sources", summary.AIExtracted, "regex_sources", summary.RegexSources,
		"capabilities", len(batch.Capabilities), "features", len(batch.Features))
	return summary, nil
}

func (e *Extraction) fetch(ctx context.Context, url string) (domain.Page, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	page, err := e.fetcher.Fetch(fetchCtx, url)
	if err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return page, fmt.Errorf("fetch timed out after %s: %w", e.cfg.FetchTimeout, err)
	}
	return page, err
}

func (e *Extraction) extractWithAI(ctx context.Context, in ExtractionInput, brand string, src domain.Source, log runLog) (extractedFacts, error) {
	raw, err := in.AI.Complete(ctx, ports.CompletionRequest{
		System:      extractionSystemPrompt,
		User:        extractionUserPrompt(in.Project, brand, src),
		JSON:        true,
		Temperature: 0.1,
		MaxTokens:   2048,
	})
	if err != nil {
		return extractedFacts{}, fmt.Errorf("complete: %w", err)
	}
	parsed, err := llmjson.Parse[aiExtraction](raw)
	if err != nil {
		return extractedFacts{}, err
	}

	facts := extractedFacts{
		Capabilities: parsed.Capabilities,
		Compliance:   parsed.Compliance,
		Integrations: parsed.Integrations,
		Summary:      parsed.Summary,
	}
	for _, p := range parsed.Pricing {
		facts.Pricing = append(facts.Pricing, domain.PricingPoint{
			Plan:     strings.TrimSpace(p.Plan),
			Amount:   p.Amount,
			Currency: strings.ToUpper(strings.TrimSpace(p.Currency)),
			Period:   pricingPeriod(p.Period),
			Notes:    p.Notes,
		})
	}

	if len(facts.Capabilities) > 0 {
		facts.Capabilities = e.standardize(ctx, in, facts.Capabilities, log)
	}
	return facts, nil
}

type standardizedItem struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Keep     *bool  `json:"keep"`
}

type standardizedResponse struct {
	Items []standardizedItem `json:"items"`
}

// standardize re-categorizes and filters capabilities against the vertical
// profile. Any failure keeps the input unchanged.
func (e *Extraction) standardize(ctx context.Context, in ExtractionInput, caps []rawCapability, log runLog) []rawCapability {
	raw, err := in.AI.Complete(ctx, ports.CompletionRequest{
		System:      standardizeSystemPrompt,
		User:        standardizeUserPrompt(in.Vertical, caps),
		JSON:        true,
		Temperature: 0,
		MaxTokens:   2048,
	})
	if err == nil {
		var resp standardizedResponse
		resp, err = llmjson.Parse[standardizedResponse](raw)
		if err == nil {
			return applyStandardization(caps, resp.Items)
		}
	}
	log.Warn(ctx, "capability standardization failed, keeping all", "path", "ai", "error", err)
	return caps
}

func applyStandardization(caps []rawCapability, items []standardizedItem) []rawCapability {
	byIndex := make(map[int]standardizedItem, len(items))
	for _, it := range items {
		byIndex[it.Index] = it
	}
	out := make([]rawCapability, 0, len(caps))
	for i, c := range caps {
		it, ok := byIndex[i]
		if !ok {
			out = append(out, c)
			continue
		}
		if it.Keep != nil && !*it.Keep {
			continue
		}
		if category, known := vertical.IsCategory(it.Category); known {
			c.Category = category
		}
		if name := strings.TrimSpace(it.Name); name != "" {
			if c.Raw == "" {
				c.Raw = c.Name
			}
			c.Name = name
		}
		out = append(out, c)
	}
	return out
}

// linkDefinitions ensures catalog entries for every feature and stamps their ids.
func (e *Extraction) linkDefinitions(ctx context.Context, c *factCollector) (domain.ExtractionBatch, error) {
	batch := c.batch
	if e.registry == nil || len(batch.Features) == 0 {
		return batch, nil
	}

	idByKey := make(map[string]string)
	for _, category := range c.categoryOrder {
		defs, err := e.registry.EnsureFeatureDefinitions(ctx, c.rawNames[category], domain.OriginCompetitor, category)
		if err != nil {
			return batch, fmt.Errorf("ensure feature definitions: %w", err)
		}
		for _, d := range defs {
			if _, ok := idByKey[d.Normalized]; !ok {
				idByKey[d.Normalized] = d.ID
			}
		}
	}
	for i := range batch.Features {
		batch.Features[i].FeatureDefinitionID = idByKey[batch.Features[i].Normalized]
	}
	return batch, nil
}

// factCollector accumulates facts across sources and enforces run-level dedup:
// capabilities by (category, normalized), features first-wins by
// (competitor, normalized).
type factCollector struct {
	runID         string
	batch         domain.ExtractionBatch
	capabilities  map[string]struct{}
	features      map[string]struct{}
	compliance    map[string]struct{}
	integrations  map[string]struct{}
	rawNames      map[string][]string
	categoryOrder []string
}

func newFactCollector(runID string) *factCollector {
	return &factCollector{
		runID:        runID,
		capabilities: make(map[string]struct{}),
		features:     make(map[string]struct{}),
		compliance:   make(map[string]struct{}),
		integrations: make(map[string]struct{}),
		rawNames:     make(map[string][]string),
	}
}

// recordSpellings queues the display name plus every source spelling that
// canonicalizes to the same key, so the catalog keeps them as aliases.
func (c *factCollector) recordSpellings(category, normalized, display string, spellings ...string) {
	if _, seen := c.rawNames[category]; !seen {
		c.categoryOrder = append(c.categoryOrder, category)
	}
	c.rawNames[category] = append(c.rawNames[category], display)
	for _, raw := range spellings {
		raw = strings.TrimSpace(raw)
		if raw == "" || raw == display {
			continue
		}
		if _, key := canonical.CanonicalCapability(raw); key == normalized {
			c.rawNames[category] = append(c.rawNames[category], raw)
		}
	}
}

func (c *factCollector) add(facts extractedFacts, src domain.Source, competitor *domain.Competitor, confidence float64) {
	competitorID := ""
	if competitor != nil {
		competitorID = competitor.ID
	}

	for _, rc := range facts.Capabilities {
		name, normalized := strings.TrimSpace(rc.Name), rc.Normalized
		if normalized == "" {
			name, normalized = canonical.CanonicalCapability(rc.Name)
		}
		if normalized == "" {
			continue
		}
		category, ok := vertical.IsCategory(rc.Category)
		if !ok {
			category = "Core"
		}

		capKey := category + "\x00" + normalized
		if _, dup := c.capabilities[capKey]; !dup {
			c.capabilities[capKey] = struct{}{}
			c.batch.Capabilities = append(c.batch.Capabilities, domain.Capability{
				RunID:        c.runID,
				SourceID:     src.ID,
				CompetitorID: competitorID,
				Category:     category,
				Name:         name,
				Normalized:   normalized,
				Description:  strings.TrimSpace(rc.Description),
			})
		}

		c.recordSpellings(category, normalized, name, rc.Raw, rc.Name)

		feature := domain.Feature{
			RunID:        c.runID,
			CompetitorID: competitorID,
			SourceID:     src.ID,
			Name:         name,
			Normalized:   normalized,
			Description:  strings.TrimSpace(rc.Description),
			Confidence:   confidence,
			Origin:       domain.OriginCompetitor,
		}
		if _, dup := c.features[feature.DedupKey()]; dup {
			continue
		}
		c.features[feature.DedupKey()] = struct{}{}
		c.batch.Features = append(c.batch.Features, feature)
	}

	for _, p := range facts.Pricing {
		if p.Amount < 0 {
			continue
		}
		p.RunID = c.runID
		p.SourceID = src.ID
		p.CompetitorID = competitorID
		if p.Currency == "" {
			p.Currency = "USD"
		}
		if p.Period == "" {
			p.Period = domain.PeriodUnknown
		}
		c.batch.Pricing = append(c.batch.Pricing, p)
	}

	for _, item := range facts.Compliance {
		fw := strings.TrimSpace(item.Framework)
		if fw == "" {
			continue
		}
		key := competitorID + "\x00" + strings.ToLower(fw)
		if _, dup := c.compliance[key]; dup {
			continue
		}
		c.compliance[key] = struct{}{}
		c.batch.Compliance = append(c.batch.Compliance, domain.ComplianceItem{
			RunID:        c.runID,
			CompetitorID: competitorID,
			SourceID:     src.ID,
			Framework:    fw,
			Details:      strings.TrimSpace(item.Details),
		})
	}

	for _, name := range facts.Integrations {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := competitorID + "\x00" + strings.ToLower(name)
		if _, dup := c.integrations[key]; dup {
			continue
		}
		c.integrations[key] = struct{}{}
		c.batch.Integrations = append(c.batch.Integrations, domain.Integration{
			RunID:        c.runID,
			CompetitorID: competitorID,
			SourceID:     src.ID,
			Name:         name,
		})
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

const extractionSystemPrompt = `You extract competitive intelligence from vendor web pages.
Reply with JSON only, using this shape:
{"capabilities":[{"category":"","name":"","description":""}],
 "pricing":[{"plan":"","amount":0,"currency":"USD","period":"MONTH|YEAR|ONE_TIME|UNKNOWN","notes":""}],
 "compliance":[{"framework":"","details":""}],
 "integrations":[""],
 "summary":""}
Only include facts stated on the page. Use an empty list when nothing applies.`

func extractionUserPrompt(p domain.ProjectProfile, brand string, src domain.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vendor: %s\nURL: %s\n", brand, src.URL)
	fmt.Fprintf(&b, "Our product: %s (%s, %s)\n", p.Name, p.Category, p.Industry)
	if d := p.Description(); d != "" {
		fmt.Fprintf(&b, "Context: %s\n", d)
	}
	fmt.Fprintf(&b, "Allowed categories: %s\n\n", strings.Join(vertical.Categories, ", "))
	b.WriteString("Page text:\n")
	b.WriteString(truncateRunes(src.Content, aiContentChars))
	return b.String()
}

const standardizeSystemPrompt = `You standardize product capabilities for a market analysis.
For every input item return {"index":n,"category":"","name":"","keep":true|false}.
Pick category from the allowed list, use a short canonical name, and set keep=false
for items irrelevant to the vertical. Reply with JSON only: {"items":[...]}`

func standardizeUserPrompt(profile vertical.Profile, caps []rawCapability) string {
	type item struct {
		Index    int    `json:"index"`
		Category string `json:"category"`
		Name     string `json:"name"`
	}
	items := make([]item, 0, len(caps))
	for i, c := range caps {
		items = append(items, item{Index: i, Category: c.Category, Name: c.Name})
	}
	payload, _ := json.Marshal(items)

	return fmt.Sprintf("Vertical: %s\nEmphasized categories: %s\nMust-have capabilities: %s\nAllowed categories: %s\nItems: %s",
		profile.Name,
		strings.Join(profile.Emphasis, ", "),
		strings.Join(profile.MustHave, ", "),
		strings.Join(vertical.Categories, ", "),
		payload)
}
