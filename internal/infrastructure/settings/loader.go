// Package settings caches per-project provider selection.
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

// Repository is the read side of project settings.
type Repository interface {
	GetProjectSettings(ctx context.Context, projectID string) (domain.ProjectSettings, bool, error)
}

// Loader is a TTL cache over stored settings merged with global defaults.
type Loader struct {
	repo     Repository
	defaults domain.ProjectSettings
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]domain.ProjectSettings
}

var _ ports.SettingsLoader = (*Loader)(nil)

// NewLoader caches entries for ttl; ttl <= 0 disables caching.
func NewLoader(repo Repository, defaults domain.ProjectSettings, ttl time.Duration) *Loader {
	return &Loader{
		repo:     repo,
		defaults: defaults,
		ttl:      ttl,
		now:      time.Now,
		cache:    map[string]domain.ProjectSettings{},
	}
}

// Load returns cached settings while they are younger than the TTL.
func (l *Loader) Load(ctx context.Context, projectID string) (domain.ProjectSettings, error) {
	now := l.now()

	l.mu.Lock()
	cached, ok := l.cache[projectID]
	l.mu.Unlock()
	if ok && now.Sub(cached.LoadedAt) < l.ttl {
		return cached, nil
	}

	stored, found, err := l.repo.GetProjectSettings(ctx, projectID)
	if err != nil {
		return domain.ProjectSettings{}, fmt.Errorf("get settings of %s: %w", projectID, err)
	}

	merged := l.merge(projectID, stored, found)
	merged.LoadedAt = now

	l.mu.Lock()
	l.cache[projectID] = merged
	l.mu.Unlock()
	return merged, nil
}

// Invalidate drops the cached entry of projectID.
func (l *Loader) Invalidate(projectID string) {
	l.mu.Lock()
	delete(l.cache, projectID)
	l.mu.Unlock()
}

func (l *Loader) merge(projectID string, stored domain.ProjectSettings, found bool) domain.ProjectSettings {
	out := l.defaults
	out.ProjectID = projectID
	if !found {
		return out
	}

	out.AIEnabled = stored.AIEnabled
	if stored.AIProvider != "" {
		out.AIProvider = stored.AIProvider
	}
	if stored.SearchProvider != "" {
		out.SearchProvider = stored.SearchProvider
	}
	if stored.FreshnessDays > 0 {
		out.FreshnessDays = stored.FreshnessDays
	}
	if stored.Vertical != "" {
		out.Vertical = stored.Vertical
	}
	return out
}
