package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const googleNewsURL = "https://news.google.com/rss/search"

// GoogleNews reads the news search RSS feed; unlike the HTML providers it
// carries publication dates.
type GoogleNews struct {
	parser  *gofeed.Parser
	baseURL string
}

var _ ports.SearchProvider = (*GoogleNews)(nil)

// NewGoogleNews wires an HTTP client into the feed parser.
func NewGoogleNews(client *http.Client, baseURL string) *GoogleNews {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = googleNewsURL
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent
	return &GoogleNews{parser: parser, baseURL: baseURL}
}

func (g *GoogleNews) Name() string {
	return "googlenews"
}

func (g *GoogleNews) Search(ctx context.Context, query string, opts ports.SearchOptions) ([]domain.SearchResult, error) {
	feedURL, err := g.feedURL(query, opts.FreshnessDays)
	if err != nil {
		return nil, err
	}

	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("googlenews %q: parse feed: %w", query, err)
	}
	if feed == nil {
		return nil, nil
	}

	want := limit(opts.Num)
	results := make([]domain.SearchResult, 0, min(want, len(feed.Items)))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		title, publisher := splitPublisher(item.Title)
		res := domain.SearchResult{
			Title:   title,
			URL:     item.Link,
			Snippet: strings.TrimSpace(item.Description),
			Source:  publisher,
		}
		if item.PublishedParsed != nil {
			published := item.PublishedParsed.UTC()
			res.PublishedAt = &published
		}
		results = append(results, res)
		if len(results) == want {
			break
		}
	}
	return results, nil
}

func (g *GoogleNews) feedURL(query string, freshnessDays int) (string, error) {
	parsed, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", g.baseURL, err)
	}
	if freshnessDays > 0 {
		query = fmt.Sprintf("%s when:%dd", query, freshnessDays)
	}
	q := parsed.Query()
	q.Set("q", query)
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// splitPublisher separates the trailing " - Publisher" suffix of news titles.
func splitPublisher(title string) (string, string) {
	title = strings.TrimSpace(title)
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}
