package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"MarketScanner/internal/domain"
)

// SaveExtraction persists all facts of one extraction pass in a single transaction.
// Capabilities and features that collide with an existing unique key are skipped.
func (s *Store) SaveExtraction(ctx context.Context, runID string, batch domain.ExtractionBatch) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		capRows := make([][]any, 0, len(batch.Capabilities))
		for i, c := range batch.Capabilities {
			capRows = append(capRows, []any{idOrNew(c.ID), runID, c.SourceID, c.CompetitorID,
				c.Category, c.Name, c.Normalized, c.Description, i})
		}
		if err := s.insertRows(ctx, tx, "capabilities",
			[]string{"id", "run_id", "source_id", "competitor_id", "category", "name", "normalized", "description", "position"},
			capRows, "ON CONFLICT (run_id, category, normalized) DO NOTHING"); err != nil {
			return fmt.Errorf("insert capabilities: %w", err)
		}

		featureRows := make([][]any, 0, len(batch.Features))
		for i, f := range batch.Features {
			featureRows = append(featureRows, []any{idOrNew(f.ID), runID, f.CompetitorID, f.FeatureDefinitionID,
				f.SourceID, f.Name, f.Normalized, f.Description, domain.ClampConfidence(f.Confidence), string(f.Origin), i})
		}
		if err := s.insertRows(ctx, tx, "features",
			[]string{"id", "run_id", "competitor_id", "feature_definition_id", "source_id", "name", "normalized", "description", "confidence", "origin", "position"},
			featureRows, "ON CONFLICT (run_id, competitor_id, normalized) DO NOTHING"); err != nil {
			return fmt.Errorf("insert features: %w", err)
		}

		pricingRows := make([][]any, 0, len(batch.Pricing))
		for i, p := range batch.Pricing {
			period := p.Period
			if period == "" {
				period = domain.PeriodUnknown
			}
			pricingRows = append(pricingRows, []any{idOrNew(p.ID), runID, p.CompetitorID, p.SourceID,
				p.Plan, p.Amount, p.Currency, string(period), p.Notes, i})
		}
		if err := s.insertRows(ctx, tx, "pricing_points",
			[]string{"id", "run_id", "competitor_id", "source_id", "plan", "amount", "currency", "period", "notes", "position"},
			pricingRows, ""); err != nil {
			return fmt.Errorf("insert pricing: %w", err)
		}

		complianceRows := make([][]any, 0, len(batch.Compliance))
		for i, c := range batch.Compliance {
			complianceRows = append(complianceRows, []any{idOrNew(c.ID), runID, c.CompetitorID, c.SourceID,
				c.Framework, c.Details, i})
		}
		if err := s.insertRows(ctx, tx, "compliance_items",
			[]string{"id", "run_id", "competitor_id", "source_id", "framework", "details", "position"},
			complianceRows, ""); err != nil {
			return fmt.Errorf("insert compliance: %w", err)
		}

		integrationRows := make([][]any, 0, len(batch.Integrations))
		for i, in := range batch.Integrations {
			integrationRows = append(integrationRows, []any{idOrNew(in.ID), runID, in.CompetitorID, in.SourceID, in.Name, i})
		}
		if err := s.insertRows(ctx, tx, "integrations",
			[]string{"id", "run_id", "competitor_id", "source_id", "name", "position"},
			integrationRows, ""); err != nil {
			return fmt.Errorf("insert integrations: %w", err)
		}

		return nil
	})
}

// insertRows issues multi-row inserts in chunks to stay under driver parameter limits.
func (s *Store) insertRows(ctx context.Context, tx *sqlx.Tx, table string, columns []string, rows [][]any, suffix string) error {
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}
		b := s.sb.Insert(table).Columns(columns...)
		for _, row := range rows[start:end] {
			b = b.Values(row...)
		}
		if suffix != "" {
			b = b.Suffix(suffix)
		}
		if _, err := s.exec(ctx, tx, b); err != nil {
			return err
		}
	}
	return nil
}

func idOrNew(id string) string {
	if id == "" {
		return newID()
	}
	return id
}

type capabilityRow struct {
	ID           string `db:"id"`
	RunID        string `db:"run_id"`
	SourceID     string `db:"source_id"`
	CompetitorID string `db:"competitor_id"`
	Category     string `db:"category"`
	Name         string `db:"name"`
	Normalized   string `db:"normalized"`
	Description  string `db:"description"`
}

// ListCapabilities returns capabilities in extraction order.
func (s *Store) ListCapabilities(ctx context.Context, runID string) ([]domain.Capability, error) {
	var rows []capabilityRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.
		Select("id", "run_id", "source_id", "competitor_id", "category", "name", "normalized", "description").
		From("capabilities").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("select capabilities: %w", err)
	}
	out := make([]domain.Capability, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Capability(r))
	}
	return out, nil
}

type featureRow struct {
	ID                  string  `db:"id"`
	RunID               string  `db:"run_id"`
	CompetitorID        string  `db:"competitor_id"`
	FeatureDefinitionID string  `db:"feature_definition_id"`
	SourceID            string  `db:"source_id"`
	Name                string  `db:"name"`
	Normalized          string  `db:"normalized"`
	Description         string  `db:"description"`
	Confidence          float64 `db:"confidence"`
	Origin              string  `db:"origin"`
}

// ListFeatures returns features in extraction order.
func (s *Store) ListFeatures(ctx context.Context, runID string) ([]domain.Feature, error) {
	var rows []featureRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.
		Select("id", "run_id", "competitor_id", "feature_definition_id", "source_id", "name",
			"normalized", "description", "confidence", "origin").
		From("features").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("select features: %w", err)
	}
	out := make([]domain.Feature, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Feature{
			ID:                  r.ID,
			RunID:               r.RunID,
			CompetitorID:        r.CompetitorID,
			FeatureDefinitionID: r.FeatureDefinitionID,
			SourceID:            r.SourceID,
			Name:                r.Name,
			Normalized:          r.Normalized,
			Description:         r.Description,
			Confidence:          r.Confidence,
			Origin:              domain.FeatureOrigin(r.Origin),
		})
	}
	return out, nil
}

type pricingRow struct {
	ID           string  `db:"id"`
	RunID        string  `db:"run_id"`
	CompetitorID string  `db:"competitor_id"`
	SourceID     string  `db:"source_id"`
	Plan         string  `db:"plan"`
	Amount       float64 `db:"amount"`
	Currency     string  `db:"currency"`
	Period       string  `db:"period"`
	Notes        string  `db:"notes"`
}

// ListPricing returns pricing points in extraction order.
func (s *Store) ListPricing(ctx context.Context, runID string) ([]domain.PricingPoint, error) {
	var rows []pricingRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.
		Select("id", "run_id", "competitor_id", "source_id", "plan", "amount", "currency", "period", "notes").
		From("pricing_points").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("select pricing: %w", err)
	}
	out := make([]domain.PricingPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PricingPoint{
			ID:           r.ID,
			RunID:        r.RunID,
			CompetitorID: r.CompetitorID,
			SourceID:     r.SourceID,
			Plan:         r.Plan,
			Amount:       r.Amount,
			Currency:     r.Currency,
			Period:       domain.PricingPeriod(r.Period),
			Notes:        r.Notes,
		})
	}
	return out, nil
}

type complianceRow struct {
	ID           string `db:"id"`
	RunID        string `db:"run_id"`
	CompetitorID string `db:"competitor_id"`
	SourceID     string `db:"source_id"`
	Framework    string `db:"framework"`
	Details      string `db:"details"`
}

// ListCompliance returns compliance items in extraction order.
func (s *Store) ListCompliance(ctx context.Context, runID string) ([]domain.ComplianceItem, error) {
	var rows []complianceRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.
		Select("id", "run_id", "competitor_id", "source_id", "framework", "details").
		From("compliance_items").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("select compliance: %w", err)
	}
	out := make([]domain.ComplianceItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ComplianceItem(r))
	}
	return out, nil
}

type integrationRow struct {
	ID           string `db:"id"`
	RunID        string `db:"run_id"`
	CompetitorID string `db:"competitor_id"`
	SourceID     string `db:"source_id"`
	Name         string `db:"name"`
}

// ListIntegrations returns integrations in extraction order.
func (s *Store) ListIntegrations(ctx context.Context, runID string) ([]domain.Integration, error) {
	var rows []integrationRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.
		Select("id", "run_id", "competitor_id", "source_id", "name").
		From("integrations").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("select integrations: %w", err)
	}
	out := make([]domain.Integration, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Integration(r))
	}
	return out, nil
}
