// Package fetch downloads source pages and reduces them to plain text.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const (
	userAgent   = "MarketScanner/1.0 (+competitive-analysis)"
	maxBodySize = 5 << 20
)

var blockElements = "p, div, br, li, ul, ol, h1, h2, h3, h4, h5, h6, tr, table, section, article, header, footer, nav, blockquote, pre"

// Fetcher is the HTTP PageFetcher.
type Fetcher struct {
	client *http.Client
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// New wires an HTTP client; nil gets a 20s timeout.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads rawURL and converts the HTML body to text. Non-2xx
// statuses and non-HTML content types are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Page{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return domain.Page{}, fmt.Errorf("unsupported content type %q", resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.Page{}, fmt.Errorf("read body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Page{}, fmt.Errorf("parse document: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return domain.Page{
		URL:   finalURL,
		Title: pageTitle(doc, body, resp.Request),
		Text:  HTMLText(doc),
	}, nil
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// HTMLText strips script and style blocks, breaks lines at block elements
// and collapses whitespace.
func HTMLText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, svg").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n")
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return collapse(root.Text())
}

func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func pageTitle(doc *goquery.Document, body []byte, req *http.Request) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}

	var pageURL *url.URL
	if req != nil {
		pageURL = req.URL
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.Title)
}
