package storage

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"MarketScanner/internal/domain"
)

type findingRow struct {
	ID         string  `db:"id"`
	RunID      string  `db:"run_id"`
	Kind       string  `db:"kind"`
	Text       string  `db:"text"`
	Confidence float64 `db:"confidence"`
	Citations  string  `db:"citations"`
}

// SaveFindings appends findings of a run, preserving their order.
func (s *Store) SaveFindings(ctx context.Context, runID string, findings []domain.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var offset int64
		if err := s.getInto(ctx, tx, &offset, s.sb.Select("COUNT(*)").From("findings").Where(sq.Eq{"run_id": runID})); err != nil {
			return fmt.Errorf("count findings: %w", err)
		}

		rows := make([][]any, 0, len(findings))
		for i, f := range findings {
			citations, err := encodeStrings(f.Citations)
			if err != nil {
				return err
			}
			rows = append(rows, []any{idOrNew(f.ID), runID, string(f.Kind), f.Text,
				domain.ClampConfidence(f.Confidence), citations, int(offset) + i})
		}
		if err := s.insertRows(ctx, tx, "findings",
			[]string{"id", "run_id", "kind", "text", "confidence", "citations", "position"}, rows, ""); err != nil {
			return fmt.Errorf("insert findings: %w", err)
		}
		return nil
	})
}

// ListFindings returns findings in the order they were synthesized.
func (s *Store) ListFindings(ctx context.Context, runID string) ([]domain.Finding, error) {
	var rows []findingRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.
		Select("id", "run_id", "kind", "text", "confidence", "citations").
		From("findings").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("select findings: %w", err)
	}

	out := make([]domain.Finding, 0, len(rows))
	for _, r := range rows {
		kind, err := domain.ParseFindingKind(r.Kind)
		if err != nil {
			return nil, err
		}
		citations, err := decodeStrings(r.Citations)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Finding{
			ID:         r.ID,
			RunID:      r.RunID,
			Kind:       kind,
			Text:       r.Text,
			Confidence: r.Confidence,
			Citations:  citations,
		})
	}
	return out, nil
}

// SaveReport upserts the rendered report of a run.
func (s *Store) SaveReport(ctx context.Context, report domain.Report) error {
	_, err := s.exec(ctx, s.db, s.sb.Insert("reports").
		Columns("run_id", "executive_summary", "markdown", "created_at").
		Values(report.RunID, report.ExecutiveSummary, report.Markdown, unixNano(s.now())).
		Suffix(`ON CONFLICT (run_id) DO UPDATE SET
			executive_summary = excluded.executive_summary,
			markdown = excluded.markdown,
			created_at = excluded.created_at`))
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// GetReport loads the report of a run.
func (s *Store) GetReport(ctx context.Context, runID string) (domain.Report, error) {
	var row struct {
		RunID            string `db:"run_id"`
		ExecutiveSummary string `db:"executive_summary"`
		Markdown         string `db:"markdown"`
	}
	err := s.getInto(ctx, s.db, &row, s.sb.Select("run_id", "executive_summary", "markdown").
		From("reports").
		Where(sq.Eq{"run_id": runID}))
	if isNoRows(err) {
		return domain.Report{}, fmt.Errorf("run %s: %w", runID, domain.ErrReportNotFound)
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("select report: %w", err)
	}
	return domain.Report{RunID: row.RunID, ExecutiveSummary: row.ExecutiveSummary, Markdown: row.Markdown}, nil
}

// HistoricalFeatureCounts counts feature observations over the newest COMPLETE
// runs of projects sharing the industry.
func (s *Store) HistoricalFeatureCounts(ctx context.Context, industry, runID string, limit int) ([]domain.FeatureCount, error) {
	if limit <= 0 {
		return nil, nil
	}
	recentSQL, recentArgs, err := sq.Select("r.id").
		From("runs r").
		Join("projects p ON p.id = r.project_id").
		Where(sq.Eq{"p.industry": industry, "r.status": string(domain.RunStatusComplete)}).
		Where(sq.NotEq{"r.id": runID}).
		OrderBy("r.created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history subquery: %w", err)
	}

	var rows []struct {
		Name       string `db:"name"`
		Normalized string `db:"normalized"`
		Count      int64  `db:"count"`
	}
	err = s.selectInto(ctx, s.db, &rows, s.sb.
		Select("MIN(f.name) AS name", "f.normalized AS normalized", "COUNT(*) AS count").
		From("features f").
		Where(sq.Expr("f.run_id IN (SELECT id FROM ("+recentSQL+") recent)", recentArgs...)).
		GroupBy("f.normalized").
		OrderBy("count DESC", "normalized"))
	if err != nil {
		return nil, fmt.Errorf("select historical features: %w", err)
	}

	out := make([]domain.FeatureCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.FeatureCount{Name: r.Name, Normalized: r.Normalized, Count: int(r.Count)})
	}
	return out, nil
}

// SaveSourceChanges stores the diff summary plus the affected URLs.
func (s *Store) SaveSourceChanges(ctx context.Context, changes domain.SourceChanges) error {
	detail, err := json.Marshal(map[string][]string{
		"added":    sourceURLs(changes.AddedSources),
		"removed":  sourceURLs(changes.RemovedSources),
		"modified": sourceURLs(changes.ModifiedSources),
	})
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	_, err = s.exec(ctx, s.db, s.sb.Insert("source_changes").
		Columns("id", "previous_run_id", "run_id", "added", "removed", "modified", "detail", "created_at").
		Values(newID(), changes.PreviousRunID, changes.RunID, len(changes.AddedSources),
			len(changes.RemovedSources), len(changes.ModifiedSources), string(detail), unixNano(s.now())))
	if err != nil {
		return fmt.Errorf("insert source changes: %w", err)
	}
	return nil
}

func sourceURLs(sources []domain.Source) []string {
	urls := make([]string, 0, len(sources))
	for _, src := range sources {
		urls = append(urls, src.URL)
	}
	return urls
}
