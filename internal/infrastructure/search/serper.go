package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/infrastructure/httpjson"
	"MarketScanner/internal/ports"
)

const serperURL = "https://google.serper.dev/search"

// Serper calls a Google-results JSON API authenticated by key.
type Serper struct {
	client   *httpjson.Client
	endpoint string
}

var _ ports.SearchProvider = (*Serper)(nil)

// NewSerper fails when apiKey is empty.
func NewSerper(client *http.Client, endpoint, apiKey string) (*Serper, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serper api key is required: %w", domain.ErrProviderUnavailable)
	}
	if endpoint == "" {
		endpoint = serperURL
	}
	return &Serper{
		client:   httpjson.New(client, map[string]string{"X-API-KEY": apiKey}),
		endpoint: endpoint,
	}, nil
}

func (s *Serper) Name() string {
	return "serper"
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	TBS string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string, opts ports.SearchOptions) ([]domain.SearchResult, error) {
	req := serperRequest{Q: query, Num: limit(opts.Num)}
	if f := freshnessFilter(opts.FreshnessDays); f != "" {
		req.TBS = "qdr:" + f
	}

	var resp serperResponse
	if err := s.client.Post(ctx, s.endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("serper %q: %w", query, err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Organic))
	for _, item := range resp.Organic {
		if item.Link == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Snippet: strings.TrimSpace(item.Snippet),
			Source:  hostOf(item.Link),
		})
	}
	return results, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
