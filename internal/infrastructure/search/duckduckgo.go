package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the keyless HTML results page.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
}

var _ ports.SearchProvider = (*DuckDuckGo)(nil)

// NewDuckDuckGo wires an HTTP client; baseURL defaults to the public endpoint.
func NewDuckDuckGo(client *http.Client, baseURL string) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = duckDuckGoURL
	}
	return &DuckDuckGo{client: client, baseURL: baseURL}
}

func (d *DuckDuckGo) Name() string {
	return "duckduckgo"
}

// Search runs one query and returns at most opts.Num organic results.
func (d *DuckDuckGo) Search(ctx context.Context, query string, opts ports.SearchOptions) ([]domain.SearchResult, error) {
	pageURL, err := buildSearchURL(d.baseURL, query, opts.FreshnessDays)
	if err != nil {
		return nil, err
	}

	doc, err := d.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo %q: %w", query, err)
	}

	want := limit(opts.Num)
	results := make([]domain.SearchResult, 0, want)
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		target := decodeRedirect(href)
		if target == "" {
			return true
		}
		results = append(results, domain.SearchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     target,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			Source:  strings.TrimSpace(s.Find(".result__url").First().Text()),
		})
		return len(results) < want
	})

	return results, nil
}

func (d *DuckDuckGo) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func buildSearchURL(base, query string, freshnessDays int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}

	q := parsed.Query()
	q.Set("q", query)
	if df := freshnessFilter(freshnessDays); df != "" {
		q.Set("df", df)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// freshnessFilter maps a day window onto the coarse d/w/m/y buckets.
func freshnessFilter(days int) string {
	switch {
	case days <= 0:
		return ""
	case days <= 1:
		return "d"
	case days <= 7:
		return "w"
	case days <= 31:
		return "m"
	case days <= 366:
		return "y"
	default:
		return ""
	}
}

// decodeRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func decodeRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		return parsed.String()
	}
	return ""
}
