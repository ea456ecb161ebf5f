package usecase

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const (
	defaultFreshnessDays = 180
	defaultMaxQueries    = 8
	defaultNumResults    = 10
	fallbackResults      = 3
	minTokenLen          = 3
	longTokenLen         = 6
)

var relevanceStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "our": {}, "your": {}, "that": {}, "this": {},
	"from": {}, "into": {}, "are": {}, "can": {}, "who": {}, "their": {}, "they": {}, "all": {},
	"app": {}, "tool": {}, "tools": {}, "software": {}, "platform": {},
}

// DiscoveryConfig bounds the search phase.
type DiscoveryConfig struct {
	MaxQueries    int
	NumResults    int
	FreshnessDays int
	// SearchRate is the sustained number of search calls per second; 0 disables pacing.
	SearchRate float64
}

// Discovery turns a project profile into persisted sources.
type Discovery struct {
	sources ports.SourceRepository
	cfg     DiscoveryConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewDiscovery builds the discovery stage.
func NewDiscovery(sources ports.SourceRepository, cfg DiscoveryConfig) *Discovery {
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = defaultMaxQueries
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = defaultNumResults
	}
	if cfg.FreshnessDays <= 0 {
		cfg.FreshnessDays = defaultFreshnessDays
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SearchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SearchRate), 1)
	}
	return &Discovery{sources: sources, cfg: cfg, limiter: limiter, now: time.Now}
}

// DiscoveryInput is one run's discovery request.
type DiscoveryInput struct {
	Run           domain.Run
	Project       domain.ProjectProfile
	Competitors   []string
	Search        ports.SearchProvider
	FreshnessDays int
}

// Run executes queries one at a time and persists the selected, unique results.
// Per-query search failures are logged and skipped.
func (d *Discovery) Run(ctx context.Context, in DiscoveryInput, log runLog) ([]domain.Source, error) {
	freshness := in.FreshnessDays
	if freshness <= 0 {
		freshness = d.cfg.FreshnessDays
	}

	queries := buildQueries(in.Project, in.Competitors, d.cfg.MaxQueries)
	tokens := relevanceTokens(in.Project, in.Competitors)
	competitors := lowerAll(in.Competitors)
	log.Info(ctx, "discovery started", "queries", len(queries), "tokens", len(tokens))

	seen := make(map[string]struct{})
	var created []domain.Source

	for _, q := range queries {
		if err := d.limiter.Wait(ctx); err != nil {
			return created, fmt.Errorf("search pacing: %w", err)
		}

		results, err := in.Search.Search(ctx, q, ports.SearchOptions{Num: d.cfg.NumResults, FreshnessDays: freshness})
		if err != nil {
			log.Warn(ctx, "search failed", "query", q, "error", err)
			continue
		}

		// Seen URLs still take part in selection; they are skipped when persisting.
		var valid []domain.SearchResult
		for _, r := range results {
			normalized, ok := normalizeURL(r.URL)
			if !ok {
				continue
			}
			r.URL = normalized
			valid = append(valid, r)
		}

		for _, r := range selectResults(valid, tokens, competitors) {
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}

			src := domain.Source{
				RunID:       in.Run.ID,
				URL:         r.URL,
				Domain:      hostOf(r.URL),
				Title:       strings.TrimSpace(r.Title),
				Snippet:     strings.TrimSpace(r.Snippet),
				PublishedAt: r.PublishedAt,
				Status:      domain.SourcePending,
				Query:       q,
			}
			if note, stale := staleNote(r.PublishedAt, freshness, d.now()); stale {
				src.StaleNote = note
				log.Warn(ctx, "stale source", "url", r.URL, "note", note)
			}

			stored, err := d.sources.CreateSource(ctx, src)
			if err != nil {
				return created, fmt.Errorf("persist source %s: %w", r.URL, err)
			}
			created = append(created, stored)
		}
	}

	log.Info(ctx, "discovery finished", "sources", len(created))
	return created, nil
}

type scoredResult struct {
	result domain.SearchResult
	score  int
}

// selectResults keeps every result with a positive score, best first; when none
// qualifies it falls back to the first three raw results.
func selectResults(results []domain.SearchResult, tokens []string, competitors []string) []domain.SearchResult {
	var relevant []scoredResult
	for _, r := range results {
		if s := relevanceScore(r, tokens, competitors); s > 0 {
			relevant = append(relevant, scoredResult{result: r, score: s})
		}
	}

	if len(relevant) == 0 {
		n := fallbackResults
		if len(results) < n {
			n = len(results)
		}
		return results[:n]
	}

	sort.SliceStable(relevant, func(i, j int) bool { return relevant[i].score > relevant[j].score })
	out := make([]domain.SearchResult, 0, len(relevant))
	for _, r := range relevant {
		out = append(out, r.result)
	}
	return out
}

func relevanceScore(r domain.SearchResult, tokens []string, competitors []string) int {
	if len(tokens) == 0 {
		return 1
	}
	body := strings.ToLower(r.Title + " " + r.Snippet + " " + r.URL)

	score := 0
	for _, tok := range tokens {
		if !strings.Contains(body, tok) {
			continue
		}
		if len(tok) >= longTokenLen {
			score += 2
		} else {
			score++
		}
	}
	for _, c := range competitors {
		if c != "" && strings.Contains(body, c) {
			score += 2
			break
		}
	}
	return score
}

// relevanceTokens builds the lowercase, de-duplicated token set of the profile.
func relevanceTokens(p domain.ProjectProfile, competitors []string) []string {
	parts := []string{p.Name, p.Category, p.Description()}
	parts = append(parts, p.Keywords...)
	parts = append(parts, competitors...)
	parts = append(parts, p.DeclaredFeatures...)
	parts = append(parts, p.TargetSegments...)

	seen := make(map[string]struct{})
	var tokens []string
	for _, part := range parts {
		for _, tok := range tokenize(part) {
			if len(tok) < minTokenLen {
				continue
			}
			if _, stop := relevanceStopWords[tok]; stop {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// buildQueries expands the profile into at most limit distinct search queries.
func buildQueries(p domain.ProjectProfile, competitors []string, limit int) []string {
	category := strings.TrimSpace(p.Category)
	name := strings.TrimSpace(p.Name)

	var queries []string
	add := func(parts ...string) {
		q := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		if q != "" {
			queries = append(queries, q)
		}
	}

	if category != "" {
		add("best", category, "software")
	}
	if name != "" {
		add(name, "alternatives")
	}
	if category != "" && len(p.Keywords) > 0 {
		add(category, strings.Join(firstN(p.Keywords, 3), " "))
	}
	for _, c := range competitors {
		add(c, "pricing")
		add(c, "features")
	}
	if category != "" {
		add(category, "pricing comparison")
		for _, f := range firstN(p.DeclaredFeatures, 2) {
			add(category, f)
		}
		for _, seg := range firstN(p.TargetSegments, 1) {
			add(category, "for", seg)
		}
		for _, region := range firstN(p.Regions, 1) {
			add(category, region)
		}
	}
	if len(queries) == 0 {
		add(strings.Join(firstN(strings.Fields(p.Description()), 8), " "))
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, q := range queries {
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

// normalizeURL strips the fragment and rejects non-http(s) URLs.
func normalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), true
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func staleNote(published *time.Time, freshnessDays int, now time.Time) (string, bool) {
	if published == nil || published.IsZero() || freshnessDays <= 0 {
		return "", false
	}
	age := now.Sub(*published)
	if age <= time.Duration(freshnessDays)*24*time.Hour {
		return "", false
	}
	return fmt.Sprintf("published %s, older than %d days", published.Format("2006-01-02"), freshnessDays), true
}

func firstN[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	return list[:n]
}

func lowerAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
