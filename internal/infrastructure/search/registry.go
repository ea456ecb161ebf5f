// Package search holds the web search providers used by discovery.
package search

import (
	"fmt"
	"sort"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

const userAgent = "MarketScanner/1.0 (+competitive-analysis)"

// Registry keeps a mapping from provider names to their implementations.
type Registry struct {
	providers map[string]ports.SearchProvider
	fallback  string
}

var _ ports.SearchResolver = (*Registry)(nil)

// NewRegistry builds an empty registry. An empty name passed to Resolve
// selects fallback.
func NewRegistry(fallback string) *Registry {
	return &Registry{providers: map[string]ports.SearchProvider{}, fallback: fallback}
}

// Register adds or replaces a provider implementation.
func (r *Registry) Register(provider ports.SearchProvider) {
	if r.providers == nil {
		r.providers = map[string]ports.SearchProvider{}
	}
	r.providers[provider.Name()] = provider
}

// Resolve returns a provider by name or an ErrProviderUnavailable error.
func (r *Registry) Resolve(name string) (ports.SearchProvider, error) {
	if name == "" {
		name = r.fallback
	}
	if provider, ok := r.providers[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("search provider %q is not registered: %w", name, domain.ErrProviderUnavailable)
}

// Names lists the registered providers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func limit(num int) int {
	if num <= 0 {
		return 10
	}
	return num
}
