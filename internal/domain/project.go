package domain

import "time"

// ProjectProfile is the read-only business description a run analyses.
type ProjectProfile struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Category           string   `yaml:"category"`
	Industry           string   `yaml:"industry"`
	SubIndustry        string   `yaml:"subIndustry"`
	TargetSegments     []string `yaml:"targetSegments"`
	Regions            []string `yaml:"regions"`
	Problem            string   `yaml:"problem"`
	Solution           string   `yaml:"solution"`
	Platforms          string   `yaml:"platforms"`
	Keywords           []string `yaml:"keywords"`
	DeclaredCompetitor []string `yaml:"competitors"`
	DeclaredFeatures   []string `yaml:"features"`

	OwnerID    string `yaml:"ownerId"`
	OwnerName  string `yaml:"ownerName"`
	OwnerEmail string `yaml:"ownerEmail"`

	// AutoRerunDays schedules periodic re-runs when positive.
	AutoRerunDays int `yaml:"autoRerunDays"`
}

// Description joins the free-text fields used for query building and relevance.
func (p ProjectProfile) Description() string {
	out := p.Problem
	for _, part := range []string{p.Solution, p.Platforms} {
		if part == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += part
	}
	return out
}

// ProjectSettings selects providers and tunables for one project.
type ProjectSettings struct {
	ProjectID      string
	AIProvider     string
	AIEnabled      bool
	SearchProvider string
	FreshnessDays  int
	Vertical       string
	LoadedAt       time.Time
}
