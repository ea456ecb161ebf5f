package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MarketScanner/internal/domain"
)

var runColumns = []string{"id", "project_id", "status", "last_note", "created_at", "started_at", "completed_at"}

type runRow struct {
	ID          string        `db:"id"`
	ProjectID   string        `db:"project_id"`
	Status      string        `db:"status"`
	LastNote    string        `db:"last_note"`
	CreatedAt   int64         `db:"created_at"`
	StartedAt   sql.NullInt64 `db:"started_at"`
	CompletedAt sql.NullInt64 `db:"completed_at"`
}

func (r runRow) toDomain() (domain.Run, error) {
	status, err := domain.ParseRunStatus(r.Status)
	if err != nil {
		return domain.Run{}, err
	}
	return domain.Run{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Status:      status,
		LastNote:    r.LastNote,
		CreatedAt:   fromUnixNano(r.CreatedAt),
		StartedAt:   timePtr(r.StartedAt),
		CompletedAt: timePtr(r.CompletedAt),
	}, nil
}

// CreateRun inserts a NEW run for the project.
func (s *Store) CreateRun(ctx context.Context, projectID string) (domain.Run, error) {
	run := domain.Run{
		ID:        newID(),
		ProjectID: projectID,
		Status:    domain.RunStatusNew,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.exec(ctx, s.db, s.sb.Insert("runs").
		Columns("id", "project_id", "status", "last_note", "created_at").
		Values(run.ID, run.ProjectID, string(run.Status), "", unixNano(run.CreatedAt)))
	if err != nil {
		return domain.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (domain.Run, error) {
	var row runRow
	err := s.getInto(ctx, s.db, &row, s.sb.Select(runColumns...).From("runs").Where(sq.Eq{"id": id}))
	if isNoRows(err) {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("select run: %w", err)
	}
	return row.toDomain()
}

// UpdateRunStatus persists one transition of the run state machine.
func (s *Store) UpdateRunStatus(ctx context.Context, id string, update domain.RunUpdate) error {
	at := s.stamp(update.At)
	b := s.sb.Update("runs").
		Set("status", string(update.Status)).
		Set("last_note", update.Note).
		Where(sq.Eq{"id": id})
	if update.Status.StampsStart() {
		b = b.Set("started_at", unixNano(at))
	}
	if update.Status.Terminal() {
		b = b.Set("completed_at", unixNano(at))
	}

	res, err := s.exec(ctx, s.db, b)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	return nil
}

// LatestRun returns the newest run of the project regardless of status.
func (s *Store) LatestRun(ctx context.Context, projectID string) (domain.Run, bool, error) {
	var row runRow
	err := s.getInto(ctx, s.db, &row, s.sb.Select(runColumns...).From("runs").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at DESC").
		Limit(1))
	if isNoRows(err) {
		return domain.Run{}, false, nil
	}
	if err != nil {
		return domain.Run{}, false, fmt.Errorf("select latest run: %w", err)
	}
	run, err := row.toDomain()
	return run, err == nil, err
}

// PreviousCompleteRun finds the COMPLETE run preceding runID within the project.
func (s *Store) PreviousCompleteRun(ctx context.Context, projectID, runID string) (domain.Run, bool, error) {
	current, err := s.GetRun(ctx, runID)
	if err != nil {
		return domain.Run{}, false, err
	}

	var row runRow
	err = s.getInto(ctx, s.db, &row, s.sb.Select(runColumns...).From("runs").
		Where(sq.Eq{"project_id": projectID, "status": string(domain.RunStatusComplete)}).
		Where(sq.NotEq{"id": runID}).
		Where(sq.LtOrEq{"created_at": unixNano(current.CreatedAt)}).
		OrderBy("created_at DESC").
		Limit(1))
	if isNoRows(err) {
		return domain.Run{}, false, nil
	}
	if err != nil {
		return domain.Run{}, false, fmt.Errorf("select previous run: %w", err)
	}
	run, err := row.toDomain()
	return run, err == nil, err
}

type runLogRow struct {
	RunID     string `db:"run_id"`
	Level     string `db:"level"`
	Message   string `db:"message"`
	CreatedAt int64  `db:"created_at"`
}

// AppendRunLog stores one progress line.
func (s *Store) AppendRunLog(ctx context.Context, line domain.RunLogLine) error {
	_, err := s.exec(ctx, s.db, s.sb.Insert("run_logs").
		Columns("id", "run_id", "level", "message", "created_at").
		Values(newID(), line.RunID, string(line.Level), line.Message, unixNano(s.stamp(line.CreatedAt))))
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

// RunLogs returns the log stream of a run in chronological order.
func (s *Store) RunLogs(ctx context.Context, runID string) ([]domain.RunLogLine, error) {
	var rows []runLogRow
	err := s.selectInto(ctx, s.db, &rows, s.sb.Select("run_id", "level", "message", "created_at").
		From("run_logs").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("created_at"))
	if err != nil {
		return nil, fmt.Errorf("select run logs: %w", err)
	}

	lines := make([]domain.RunLogLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.RunLogLine{
			RunID:     r.RunID,
			Level:     domain.LogLevel(r.Level),
			Message:   r.Message,
			CreatedAt: fromUnixNano(r.CreatedAt),
		})
	}
	return lines, nil
}

// DeleteRunLogsBefore removes log lines older than cutoff.
func (s *Store) DeleteRunLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, s.db, s.sb.Delete("run_logs").Where(sq.Lt{"created_at": unixNano(cutoff)}))
	if err != nil {
		return 0, fmt.Errorf("delete run logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
