package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"MarketScanner/internal/domain"
)

// ProjectDocument is the YAML shape accepted by `project import`.
type ProjectDocument struct {
	Project  domain.ProjectProfile `yaml:"project"`
	Settings *SettingsDocument     `yaml:"settings"`
	Credits  *int                  `yaml:"credits"`
}

// SettingsDocument mirrors domain.ProjectSettings.
type SettingsDocument struct {
	AIProvider     string `yaml:"aiProvider"`
	AIEnabled      bool   `yaml:"aiEnabled"`
	SearchProvider string `yaml:"searchProvider"`
	FreshnessDays  int    `yaml:"freshnessDays"`
	Vertical       string `yaml:"vertical"`
}

// ParseProjectDocument decodes and validates an import document.
func ParseProjectDocument(raw []byte) (ProjectDocument, error) {
	var doc ProjectDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ProjectDocument{}, fmt.Errorf("parse project document: %w", err)
	}
	if strings.TrimSpace(doc.Project.Name) == "" {
		return ProjectDocument{}, errors.New("project.name is required")
	}
	if strings.TrimSpace(doc.Project.Category) == "" && len(doc.Project.Keywords) == 0 {
		return ProjectDocument{}, errors.New("project needs a category or keywords")
	}
	if doc.Credits != nil && doc.Project.OwnerID == "" {
		return ProjectDocument{}, errors.New("credits require project.ownerId")
	}
	return doc, nil
}

// ImportProject upserts the project, its settings and the owner's credits.
func (a *Application) ImportProject(ctx context.Context, raw []byte) (domain.ProjectProfile, error) {
	doc, err := ParseProjectDocument(raw)
	if err != nil {
		return domain.ProjectProfile{}, err
	}

	project, err := a.store.SaveProject(ctx, doc.Project)
	if err != nil {
		return domain.ProjectProfile{}, fmt.Errorf("save project: %w", err)
	}

	if s := doc.Settings; s != nil {
		if err := a.store.SaveProjectSettings(ctx, domain.ProjectSettings{
			ProjectID:      project.ID,
			AIProvider:     s.AIProvider,
			AIEnabled:      s.AIEnabled,
			SearchProvider: s.SearchProvider,
			FreshnessDays:  s.FreshnessDays,
			Vertical:       s.Vertical,
		}); err != nil {
			return domain.ProjectProfile{}, fmt.Errorf("save settings: %w", err)
		}
		a.settings.Invalidate(project.ID)
	}

	if doc.Credits != nil {
		if err := a.store.SetCredits(ctx, project.OwnerID, *doc.Credits); err != nil {
			return domain.ProjectProfile{}, fmt.Errorf("set credits: %w", err)
		}
	}

	a.logger.Info("project imported", "project_id", project.ID, "name", project.Name)
	return project, nil
}
