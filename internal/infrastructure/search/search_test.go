package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const duckPage = `
<html><body>
  <div class="result result--ad">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fads.example.com%2F">Ad</a>
  </div>
  <div class="result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.com%2Fpricing&rut=abc">Acme Pricing</a>
    <a class="result__url">acme.com</a>
    <a class="result__snippet">Plans start at $29/month.</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://zeta.io/">Zeta</a>
    <a class="result__snippet">Invoicing for teams.</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://third.example/">Third</a>
  </div>
</body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(duckPage))
	}))
	defer srv.Close()

	ddg := NewDuckDuckGo(srv.Client(), srv.URL)
	results, err := ddg.Search(context.Background(), "invoicing software", ports.SearchOptions{Num: 2, FreshnessDays: 30})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if gotQuery.Get("q") != "invoicing software" {
		t.Fatalf("unexpected q: %s", gotQuery.Get("q"))
	}
	if gotQuery.Get("df") != "m" {
		t.Fatalf("expected df=m, got %s", gotQuery.Get("df"))
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].URL != "https://acme.com/pricing" {
		t.Fatalf("redirect not decoded: %s", results[0].URL)
	}
	if results[0].Title != "Acme Pricing" || results[0].Snippet != "Plans start at $29/month." {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].URL != "https://zeta.io/" {
		t.Fatalf("unexpected second url: %s", results[1].URL)
	}
}

func TestDuckDuckGoStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewDuckDuckGo(srv.Client(), srv.URL).Search(context.Background(), "crm", ports.SearchOptions{})
	if err == nil {
		t.Fatalf("expected error for 503")
	}
}

func TestFreshnessFilter(t *testing.T) {
	t.Parallel()

	cases := map[int]string{0: "", 1: "d", 5: "w", 30: "m", 200: "y", 1000: ""}
	for days, want := range cases {
		if got := freshnessFilter(days); got != want {
			t.Fatalf("freshnessFilter(%d) = %q, want %q", days, got, want)
		}
	}
}

const newsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item>
  <title>Acme raises prices for SMB plans - TechDaily</title>
  <link>https://techdaily.example/acme-prices</link>
  <description>Acme changed its pricing.</description>
  <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
</item>
<item>
  <title>No publisher here</title>
  <link>https://blog.example/post</link>
</item>
</channel></rss>`

func TestGoogleNewsSearch(t *testing.T) {
	t.Parallel()

	var gotQ string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(newsFeed))
	}))
	defer srv.Close()

	news := NewGoogleNews(srv.Client(), srv.URL)
	results, err := news.Search(context.Background(), "acme pricing", ports.SearchOptions{Num: 5, FreshnessDays: 14})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if gotQ != "acme pricing when:14d" {
		t.Fatalf("unexpected q: %s", gotQ)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.Title != "Acme raises prices for SMB plans" || first.Source != "TechDaily" {
		t.Fatalf("publisher not split: %+v", first)
	}
	if first.PublishedAt == nil || first.PublishedAt.Day() != 2 {
		t.Fatalf("expected publishedAt, got %v", first.PublishedAt)
	}
	if results[1].PublishedAt != nil {
		t.Fatalf("expected nil publishedAt for undated item")
	}
}

func TestSerperSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			t.Errorf("missing api key header")
		}
		var req serperRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.TBS != "qdr:w" || req.Num != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		fmt.Fprint(w, `{"organic":[{"title":"Acme","link":"https://www.acme.com/","snippet":"CRM"},{"title":"x","link":""}]}`)
	}))
	defer srv.Close()

	s, err := NewSerper(srv.Client(), srv.URL, "k")
	if err != nil {
		t.Fatalf("new serper: %v", err)
	}
	results, err := s.Search(context.Background(), "crm", ports.SearchOptions{Num: 3, FreshnessDays: 7})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Source != "acme.com" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSerperRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewSerper(nil, "", ""); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry("duckduckgo")
	reg.Register(NewDuckDuckGo(nil, ""))
	reg.Register(NewGoogleNews(nil, ""))

	p, err := reg.Resolve("")
	if err != nil || p.Name() != "duckduckgo" {
		t.Fatalf("expected fallback provider, got %v, %v", p, err)
	}
	if _, err := reg.Resolve("bing"); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "duckduckgo" {
		t.Fatalf("unexpected names: %v", names)
	}
}
