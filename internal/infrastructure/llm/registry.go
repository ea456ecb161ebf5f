package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"MarketScanner/internal/config"
	"MarketScanner/internal/ports"
)

// Registry resolves configured completion providers by name.
type Registry struct {
	providers map[string]ports.CompletionProvider
	fallback  string
}

var _ ports.CompletionResolver = (*Registry)(nil)

// NewRegistry builds an empty registry; Resolve("") selects fallback.
func NewRegistry(fallback string) *Registry {
	return &Registry{providers: map[string]ports.CompletionProvider{}, fallback: fallback}
}

// Register adds or replaces a provider implementation.
func (r *Registry) Register(provider ports.CompletionProvider) {
	r.providers[provider.Name()] = provider
}

// Resolve reports false when name is not configured.
func (r *Registry) Resolve(name string) (ports.CompletionProvider, bool) {
	if name == "" {
		name = r.fallback
	}
	provider, ok := r.providers[name]
	return provider, ok
}

// FromConfig registers every provider that has a key. A provider selected
// as default but failing construction is an error; others are skipped with
// a log line.
func FromConfig(ctx context.Context, cfg config.AIConfig, httpClient *http.Client, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry(cfg.Provider)

	build := map[string]func() (ports.CompletionProvider, error){
		"openai":    func() (ports.CompletionProvider, error) { return NewOpenAI(cfg.OpenAI, httpClient) },
		"anthropic": func() (ports.CompletionProvider, error) { return NewAnthropic(cfg.Anthropic) },
		"gemini":    func() (ports.CompletionProvider, error) { return NewGemini(ctx, cfg.Gemini) },
	}

	var errs []error
	for name, settings := range cfg.Providers() {
		if settings.APIKey == "" {
			if name == cfg.Provider {
				errs = append(errs, fmt.Errorf("default ai provider %s has no api key", name))
			}
			continue
		}
		provider, err := build[name]()
		if err != nil {
			if name == cfg.Provider {
				errs = append(errs, err)
				continue
			}
			logger.Warn("ai provider disabled", "provider", name, "error", err)
			continue
		}
		reg.Register(provider)
	}
	return reg, errors.Join(errs...)
}
