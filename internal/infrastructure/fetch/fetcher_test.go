package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricingHTML = `<!doctype html>
<html><head><title>Acme Pricing</title>
<style>.x{color:red}</style>
<script>var tracking = "secret";</script>
</head>
<body>
  <h1>Plans</h1>
  <p>Starter   $29/month</p>
  <ul><li>SSO</li><li>Audit   Logs</li></ul>
  <noscript>enable js</noscript>
</body></html>`

func TestFetchConvertsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(pricingHTML))
	}))
	defer srv.Close()

	page, err := New(srv.Client()).Fetch(context.Background(), srv.URL+"/pricing")
	require.NoError(t, err)

	assert.Equal(t, "Acme Pricing", page.Title)
	assert.Equal(t, srv.URL+"/pricing", page.URL)
	assert.Equal(t, "Plans\nStarter $29/month\nSSO\nAudit Logs", page.Text)
	assert.NotContains(t, page.Text, "secret")
	assert.NotContains(t, page.Text, "color")
}

func TestFetchRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	_, err := New(srv.Client()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.Client()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestPageTitleFallsBackToOpenGraph(t *testing.T) {
	html := `<html><head><meta property="og:title" content=" Zeta Billing "></head><body><p>x</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Zeta Billing", pageTitle(doc, []byte(html), nil))
}

func TestIsHTML(t *testing.T) {
	assert.True(t, isHTML(""))
	assert.True(t, isHTML("text/html"))
	assert.True(t, isHTML("application/xhtml+xml; charset=utf-8"))
	assert.False(t, isHTML("application/json"))
}
