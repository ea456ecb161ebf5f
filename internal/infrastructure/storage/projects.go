package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MarketScanner/internal/domain"
)

// SaveProject upserts the profile; the full profile is kept as JSON.
func (s *Store) SaveProject(ctx context.Context, project domain.ProjectProfile) (domain.ProjectProfile, error) {
	if project.ID == "" {
		project.ID = newID()
	}
	payload, err := json.Marshal(project)
	if err != nil {
		return domain.ProjectProfile{}, fmt.Errorf("marshal project: %w", err)
	}

	_, err = s.exec(ctx, s.db, s.sb.Insert("projects").
		Columns("id", "name", "industry", "owner_id", "auto_rerun_days", "profile", "updated_at").
		Values(project.ID, project.Name, project.Industry, project.OwnerID, project.AutoRerunDays,
			string(payload), unixNano(s.now())).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			industry = excluded.industry,
			owner_id = excluded.owner_id,
			auto_rerun_days = excluded.auto_rerun_days,
			profile = excluded.profile,
			updated_at = excluded.updated_at`))
	if err != nil {
		return domain.ProjectProfile{}, fmt.Errorf("upsert project: %w", err)
	}
	return project, nil
}

// GetProject loads a profile by id.
func (s *Store) GetProject(ctx context.Context, id string) (domain.ProjectProfile, error) {
	var payload string
	err := s.getInto(ctx, s.db, &payload, s.sb.Select("profile").From("projects").Where(sq.Eq{"id": id}))
	if isNoRows(err) {
		return domain.ProjectProfile{}, fmt.Errorf("project %s: %w", id, domain.ErrProjectNotFound)
	}
	if err != nil {
		return domain.ProjectProfile{}, fmt.Errorf("select project: %w", err)
	}
	return decodeProject(payload)
}

// ListProjects returns every stored profile ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]domain.ProjectProfile, error) {
	var payloads []string
	if err := s.selectInto(ctx, s.db, &payloads, s.sb.Select("profile").From("projects").OrderBy("name")); err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	projects := make([]domain.ProjectProfile, 0, len(payloads))
	for _, p := range payloads {
		project, err := decodeProject(p)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}

func decodeProject(payload string) (domain.ProjectProfile, error) {
	var project domain.ProjectProfile
	if err := json.Unmarshal([]byte(payload), &project); err != nil {
		return domain.ProjectProfile{}, fmt.Errorf("decode project: %w", err)
	}
	return project, nil
}

type settingsRow struct {
	ProjectID      string `db:"project_id"`
	AIProvider     string `db:"ai_provider"`
	AIEnabled      int64  `db:"ai_enabled"`
	SearchProvider string `db:"search_provider"`
	FreshnessDays  int64  `db:"freshness_days"`
	Vertical       string `db:"vertical"`
}

// SaveProjectSettings upserts the provider selection of a project.
func (s *Store) SaveProjectSettings(ctx context.Context, settings domain.ProjectSettings) error {
	enabled := 0
	if settings.AIEnabled {
		enabled = 1
	}
	_, err := s.exec(ctx, s.db, s.sb.Insert("project_settings").
		Columns("project_id", "ai_provider", "ai_enabled", "search_provider", "freshness_days", "vertical", "updated_at").
		Values(settings.ProjectID, settings.AIProvider, enabled, settings.SearchProvider,
			settings.FreshnessDays, settings.Vertical, unixNano(s.now())).
		Suffix(`ON CONFLICT (project_id) DO UPDATE SET
			ai_provider = excluded.ai_provider,
			ai_enabled = excluded.ai_enabled,
			search_provider = excluded.search_provider,
			freshness_days = excluded.freshness_days,
			vertical = excluded.vertical,
			updated_at = excluded.updated_at`))
	if err != nil {
		return fmt.Errorf("upsert project settings: %w", err)
	}
	return nil
}

// GetProjectSettings returns ok=false when the project has no stored settings.
func (s *Store) GetProjectSettings(ctx context.Context, projectID string) (domain.ProjectSettings, bool, error) {
	var row settingsRow
	err := s.getInto(ctx, s.db, &row, s.sb.
		Select("project_id", "ai_provider", "ai_enabled", "search_provider", "freshness_days", "vertical").
		From("project_settings").
		Where(sq.Eq{"project_id": projectID}))
	if isNoRows(err) {
		return domain.ProjectSettings{}, false, nil
	}
	if err != nil {
		return domain.ProjectSettings{}, false, fmt.Errorf("select project settings: %w", err)
	}
	return domain.ProjectSettings{
		ProjectID:      row.ProjectID,
		AIProvider:     row.AIProvider,
		AIEnabled:      row.AIEnabled != 0,
		SearchProvider: row.SearchProvider,
		FreshnessDays:  int(row.FreshnessDays),
		Vertical:       row.Vertical,
	}, true, nil
}

// CreditBalance returns 0 for users without a credit row.
func (s *Store) CreditBalance(ctx context.Context, userID string) (int, error) {
	var balance int64
	err := s.getInto(ctx, s.db, &balance, s.sb.Select("balance").From("credits").Where(sq.Eq{"user_id": userID}))
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select credits: %w", err)
	}
	return int(balance), nil
}

// SetCredits overwrites the balance of a user.
func (s *Store) SetCredits(ctx context.Context, userID string, balance int) error {
	_, err := s.exec(ctx, s.db, s.sb.Insert("credits").
		Columns("user_id", "balance").
		Values(userID, balance).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET balance = excluded.balance"))
	if err != nil {
		return fmt.Errorf("upsert credits: %w", err)
	}
	return nil
}

// ConsumeCredit decrements the balance only when it covers amount.
func (s *Store) ConsumeCredit(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return errors.New("credit amount must be positive")
	}
	res, err := s.exec(ctx, s.db, s.sb.Update("credits").
		Set("balance", sq.Expr("balance - ?", amount)).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"balance": amount}))
	if err != nil {
		return fmt.Errorf("consume credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrInsufficientCredits)
	}
	return nil
}
