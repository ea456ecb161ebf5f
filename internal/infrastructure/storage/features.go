package storage

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"MarketScanner/internal/domain"
)

type featureDefinitionRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Normalized string `db:"normalized"`
	Aliases    string `db:"aliases"`
	Category   string `db:"category"`
	Origin     string `db:"origin"`
	CreatedAt  int64  `db:"created_at"`
}

var featureDefinitionColumns = []string{"id", "name", "normalized", "aliases", "category", "origin", "created_at"}

func (r featureDefinitionRow) toDomain() (domain.FeatureDefinition, error) {
	aliases, err := decodeStrings(r.Aliases)
	if err != nil {
		return domain.FeatureDefinition{}, fmt.Errorf("feature definition %s aliases: %w", r.ID, err)
	}
	origin, err := domain.ParseFeatureOrigin(r.Origin)
	if err != nil {
		return domain.FeatureDefinition{}, err
	}
	return domain.FeatureDefinition{
		ID:         r.ID,
		Name:       r.Name,
		Normalized: r.Normalized,
		Aliases:    aliases,
		Category:   r.Category,
		Origin:     origin,
		CreatedAt:  fromUnixNano(r.CreatedAt),
	}, nil
}

// FindFeatureDefinitions loads definitions for the given normalized keys in one query.
func (s *Store) FindFeatureDefinitions(ctx context.Context, normalized []string) ([]domain.FeatureDefinition, error) {
	if len(normalized) == 0 {
		return nil, nil
	}
	var rows []featureDefinitionRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.Select(featureDefinitionColumns...).
		From("feature_definitions").
		Where(sq.Eq{"normalized": normalized}).
		OrderBy("normalized"))
	if err != nil {
		return nil, fmt.Errorf("select feature definitions: %w", err)
	}

	out := make([]domain.FeatureDefinition, 0, len(rows))
	for _, r := range rows {
		def, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// InsertFeatureDefinitions relies on the unique normalized key so concurrent
// callers never create duplicates.
func (s *Store) InsertFeatureDefinitions(ctx context.Context, defs []domain.FeatureDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(defs))
	for _, d := range defs {
		aliases, err := encodeStrings(d.Aliases)
		if err != nil {
			return err
		}
		rows = append(rows, []any{idOrNew(d.ID), d.Name, d.Normalized, aliases, d.Category,
			string(d.Origin), unixNano(s.stamp(d.CreatedAt))})
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.insertRows(ctx, tx, "feature_definitions", featureDefinitionColumns, rows,
			"ON CONFLICT (normalized) DO NOTHING"); err != nil {
			return fmt.Errorf("insert feature definitions: %w", err)
		}
		return nil
	})
}

// AddFeatureDefinitionAliases merges aliases under a row lock (Postgres) or the
// database write lock (SQLite). No write happens when the set is unchanged.
func (s *Store) AddFeatureDefinitionAliases(ctx context.Context, id string, aliases []string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		q := s.sb.Select("aliases").From("feature_definitions").Where(sq.Eq{"id": id})
		if s.dialect == DialectPostgres {
			q = q.Suffix("FOR UPDATE")
		}
		var raw string
		if err := s.getInto(ctx, tx, &raw, q); err != nil {
			return fmt.Errorf("select aliases: %w", err)
		}
		current, err := decodeStrings(raw)
		if err != nil {
			return err
		}

		merged, changed := unionStrings(current, aliases)
		if !changed {
			return nil
		}
		encoded, err := encodeStrings(merged)
		if err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, s.sb.Update("feature_definitions").
			Set("aliases", encoded).
			Where(sq.Eq{"id": id})); err != nil {
			return fmt.Errorf("update aliases: %w", err)
		}
		return nil
	})
}

func unionStrings(base, extra []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range base {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	changed := false
	for _, v := range extra {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		changed = true
	}
	return out, changed
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode strings: %w", err)
	}
	return string(raw), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode strings: %w", err)
	}
	return values, nil
}
