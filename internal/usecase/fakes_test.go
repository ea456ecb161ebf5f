package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/infrastructure/storage"
	"MarketScanner/internal/ports"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRunLog(store ports.RunLogRepository, runID string) runLog {
	return newRunLog(store, discardLogger(), runID, time.Now)
}

// recordingStore captures every status transition.
type recordingStore struct {
	ports.Store

	mu       sync.Mutex
	statuses []domain.RunStatus
}

func (r *recordingStore) UpdateRunStatus(ctx context.Context, id string, u domain.RunUpdate) error {
	r.mu.Lock()
	r.statuses = append(r.statuses, u.Status)
	r.mu.Unlock()
	return r.Store.UpdateRunStatus(ctx, id, u)
}

func (r *recordingStore) recorded() []domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RunStatus(nil), r.statuses...)
}

type fakeSearch struct {
	mu      sync.Mutex
	calls   int
	results []domain.SearchResult
	failOn  map[string]error
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(_ context.Context, query string, _ ports.SearchOptions) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.failOn[query]; ok {
		return nil, err
	}
	return append([]domain.SearchResult(nil), f.results...), nil
}

func (f *fakeSearch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type searchResolver struct {
	provider ports.SearchProvider
	err      error
}

func (r searchResolver) Resolve(string) (ports.SearchProvider, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.provider, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	pages map[string]domain.Page
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	page, ok := f.pages[url]
	if !ok {
		return domain.Page{}, errors.New("unexpected status 404")
	}
	return page, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAI answers by prompt type; reply returns the raw completion for a system prompt.
type fakeAI struct {
	mu    sync.Mutex
	calls []string
	reply func(system string) (string, error)
}

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.System)
	f.mu.Unlock()
	if f.reply == nil {
		return "", errors.New("no reply configured")
	}
	return f.reply(req.System)
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type aiResolver map[string]ports.CompletionProvider

func (r aiResolver) Resolve(name string) (ports.CompletionProvider, bool) {
	p, ok := r[name]
	return p, ok
}

func isExtractionPrompt(system string) bool {
	return strings.HasPrefix(system, "You extract competitive intelligence")
}

func isStandardizePrompt(system string) bool {
	return strings.HasPrefix(system, "You standardize product capabilities")
}
