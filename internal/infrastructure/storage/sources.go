package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MarketScanner/internal/domain"
)

var sourceColumns = []string{
	"id", "run_id", "url", "domain", "title", "snippet", "query", "published_at",
	"fetched_at", "status", "content", "error", "stale_note",
}

type sourceRow struct {
	ID          string        `db:"id"`
	RunID       string        `db:"run_id"`
	URL         string        `db:"url"`
	Domain      string        `db:"domain"`
	Title       string        `db:"title"`
	Snippet     string        `db:"snippet"`
	Query       string        `db:"query"`
	PublishedAt sql.NullInt64 `db:"published_at"`
	FetchedAt   sql.NullInt64 `db:"fetched_at"`
	Status      string        `db:"status"`
	Content     string        `db:"content"`
	Error       string        `db:"error"`
	StaleNote   string        `db:"stale_note"`
}

func (r sourceRow) toDomain() domain.Source {
	return domain.Source{
		ID:          r.ID,
		RunID:       r.RunID,
		URL:         r.URL,
		Domain:      r.Domain,
		Title:       r.Title,
		Snippet:     r.Snippet,
		Query:       r.Query,
		PublishedAt: timePtr(r.PublishedAt),
		FetchedAt:   timePtr(r.FetchedAt),
		Status:      domain.SourceStatus(r.Status),
		Content:     r.Content,
		Error:       r.Error,
		StaleNote:   r.StaleNote,
	}
}

// CreateSource inserts a source; an existing (run, url) row is returned unchanged.
func (s *Store) CreateSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	if src.ID == "" {
		src.ID = newID()
	}
	if src.Status == "" {
		src.Status = domain.SourcePending
	}

	_, err := s.exec(ctx, s.db, s.sb.Insert("sources").
		Columns(append(sourceColumns, "created_at")...).
		Values(src.ID, src.RunID, src.URL, src.Domain, src.Title, src.Snippet, src.Query,
			nullTime(src.PublishedAt), nullTime(src.FetchedAt), string(src.Status), src.Content,
			src.Error, src.StaleNote, unixNano(s.now())).
		Suffix("ON CONFLICT (run_id, url) DO NOTHING"))
	if err != nil {
		return domain.Source{}, fmt.Errorf("insert source: %w", err)
	}

	var row sourceRow
	err = s.getInto(ctx, s.db, &row, s.sb.Select(sourceColumns...).From("sources").
		Where(sq.Eq{"run_id": src.RunID, "url": src.URL}))
	if err != nil {
		return domain.Source{}, fmt.Errorf("select source: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateSourceFetch records the fetch outcome.
func (s *Store) UpdateSourceFetch(ctx context.Context, src domain.Source) error {
	b := s.sb.Update("sources").
		Set("status", string(src.Status)).
		Set("content", src.Content).
		Set("error", src.Error).
		Set("fetched_at", nullTime(src.FetchedAt)).
		Where(sq.Eq{"id": src.ID})
	if src.Title != "" {
		b = b.Set("title", src.Title)
	}
	if _, err := s.exec(ctx, s.db, b); err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

// ListSources returns the sources of a run in discovery order.
func (s *Store) ListSources(ctx context.Context, runID string) ([]domain.Source, error) {
	var rows []sourceRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.Select(sourceColumns...).From("sources").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}
	out := make([]domain.Source, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

type competitorRow struct {
	ID      string `db:"id"`
	RunID   string `db:"run_id"`
	Name    string `db:"name"`
	Website string `db:"website"`
}

// UpsertCompetitor inserts the competitor unless (run, name) exists and returns the stored row.
func (s *Store) UpsertCompetitor(ctx context.Context, c domain.Competitor) (domain.Competitor, error) {
	_, err := s.exec(ctx, s.db, s.sb.Insert("competitors").
		Columns("id", "run_id", "name", "website", "created_at").
		Values(newID(), c.RunID, c.Name, c.Website, unixNano(s.now())).
		Suffix("ON CONFLICT (run_id, name) DO NOTHING"))
	if err != nil {
		return domain.Competitor{}, fmt.Errorf("insert competitor: %w", err)
	}

	var row competitorRow
	err = s.getInto(ctx, s.db, &row, s.sb.Select("id", "run_id", "name", "website").From("competitors").
		Where(sq.Eq{"run_id": c.RunID, "name": c.Name}))
	if err != nil {
		return domain.Competitor{}, fmt.Errorf("select competitor: %w", err)
	}

	if row.Website == "" && c.Website != "" {
		if _, err := s.exec(ctx, s.db, s.sb.Update("competitors").Set("website", c.Website).Where(sq.Eq{"id": row.ID})); err != nil {
			return domain.Competitor{}, fmt.Errorf("update competitor website: %w", err)
		}
		row.Website = c.Website
	}

	return domain.Competitor{ID: row.ID, RunID: row.RunID, Name: row.Name, Website: row.Website}, nil
}

// ListCompetitors returns the competitors of a run in insertion order.
func (s *Store) ListCompetitors(ctx context.Context, runID string) ([]domain.Competitor, error) {
	var rows []competitorRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.Select("id", "run_id", "name", "website").From("competitors").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("created_at", "name"))
	if err != nil {
		return nil, fmt.Errorf("select competitors: %w", err)
	}
	out := make([]domain.Competitor, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Competitor{ID: r.ID, RunID: r.RunID, Name: r.Name, Website: r.Website})
	}
	return out, nil
}
