package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketScanner/internal/canonical"
	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

// FeatureRegistry maintains the durable, cross-run feature catalog.
type FeatureRegistry struct {
	repo ports.FeatureDefinitionRepository
	now  func() time.Time
}

// NewFeatureRegistry wraps the catalog repository.
func NewFeatureRegistry(repo ports.FeatureDefinitionRepository) *FeatureRegistry {
	return &FeatureRegistry{repo: repo, now: time.Now}
}

type pendingDefinition struct {
	name    string
	aliases []string
}

// EnsureFeatureDefinitions creates missing catalog entries for names and
// accumulates unseen spellings as aliases. It returns one definition per unique
// normalized key, in order of first appearance.
func (r *FeatureRegistry) EnsureFeatureDefinitions(ctx context.Context, names []string, origin domain.FeatureOrigin, category string) ([]domain.FeatureDefinition, error) {
	var order []string
	pending := make(map[string]*pendingDefinition)

	for _, raw := range names {
		raw = strings.TrimSpace(raw)
		display, key := canonical.CanonicalCapability(raw)
		if key == "" {
			continue
		}
		p, ok := pending[key]
		if !ok {
			p = &pendingDefinition{name: display}
			pending[key] = p
			order = append(order, key)
		}
		if raw != display {
			p.aliases = appendUnique(p.aliases, raw)
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	existing, err := r.find(ctx, order)
	if err != nil {
		return nil, err
	}

	var inserts []domain.FeatureDefinition
	for _, key := range order {
		p := pending[key]
		def, ok := existing[key]
		if !ok {
			inserts = append(inserts, domain.FeatureDefinition{
				Name:       p.name,
				Normalized: key,
				Aliases:    p.aliases,
				Category:   category,
				Origin:     origin,
				CreatedAt:  r.now(),
			})
			continue
		}

		candidates := p.aliases
		if p.name != def.Name {
			candidates = appendUnique(candidates, p.name)
		}
		if missing := missingAliases(def, candidates); len(missing) > 0 {
			if err := r.repo.AddFeatureDefinitionAliases(ctx, def.ID, missing); err != nil {
				return nil, fmt.Errorf("add aliases to %s: %w", def.Normalized, err)
			}
		}
	}

	if len(inserts) > 0 {
		if err := r.repo.InsertFeatureDefinitions(ctx, inserts); err != nil {
			return nil, fmt.Errorf("insert feature definitions: %w", err)
		}
	}

	// A concurrent caller may have won the insert; re-read and merge our aliases.
	stored, err := r.find(ctx, order)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FeatureDefinition, 0, len(order))
	for _, key := range order {
		def, ok := stored[key]
		if !ok {
			return nil, fmt.Errorf("feature definition %q missing after insert", key)
		}
		if _, wasExisting := existing[key]; !wasExisting {
			if missing := missingAliases(def, pending[key].aliases); len(missing) > 0 {
				if err := r.repo.AddFeatureDefinitionAliases(ctx, def.ID, missing); err != nil {
					return nil, fmt.Errorf("add aliases to %s: %w", def.Normalized, err)
				}
				def.Aliases = append(def.Aliases, missing...)
			}
		}
		out = append(out, def)
	}
	return out, nil
}

func (r *FeatureRegistry) find(ctx context.Context, keys []string) (map[string]domain.FeatureDefinition, error) {
	defs, err := r.repo.FindFeatureDefinitions(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("find feature definitions: %w", err)
	}
	byKey := make(map[string]domain.FeatureDefinition, len(defs))
	for _, d := range defs {
		byKey[d.Normalized] = d
	}
	return byKey, nil
}

// missingAliases compares as sets so reordering never triggers a write.
func missingAliases(def domain.FeatureDefinition, candidates []string) []string {
	have := make(map[string]struct{}, len(def.Aliases)+1)
	have[def.Name] = struct{}{}
	for _, a := range def.Aliases {
		have[a] = struct{}{}
	}
	var missing []string
	for _, c := range candidates {
		if _, ok := have[c]; ok {
			continue
		}
		have[c] = struct{}{}
		missing = append(missing, c)
	}
	return missing
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
