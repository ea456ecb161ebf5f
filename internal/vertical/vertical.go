// Package vertical holds industry profiles that steer capability filtering.
package vertical

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Categories is the fixed capability category set.
var Categories = []string{
	"Integrations", "Security", "Compliance", "API", "Performance",
	"Automation", "Analytics", "Permissions", "Growth", "Core",
}

// Profile describes what matters for one vertical.
type Profile struct {
	Name       string   `yaml:"name"`
	Industries []string `yaml:"industries"`
	Emphasis   []string `yaml:"emphasis"`
	MustHave   []string `yaml:"mustHave"`
}

//go:embed profiles.yaml
var rawProfiles []byte

var catalog = mustLoad(rawProfiles)

func mustLoad(raw []byte) []Profile {
	profiles, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return profiles
}

// Parse decodes a YAML list of profiles. The first entry is the generic fallback.
func Parse(raw []byte) ([]Profile, error) {
	var profiles []Profile
	if err := yaml.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("parse vertical profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("parse vertical profiles: empty catalog")
	}
	return profiles, nil
}

// Generic is the fallback profile.
func Generic() Profile {
	return catalog[0]
}

// ByName returns the named profile.
func ByName(name string) (Profile, bool) {
	for _, p := range catalog {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// Lookup matches the sub-industry first, then the industry, by exact name and
// then by substring; it falls back to Generic.
func Lookup(industry, subIndustry string) Profile {
	for _, candidate := range []string{subIndustry, industry} {
		c := strings.ToLower(strings.TrimSpace(candidate))
		if c == "" {
			continue
		}
		for _, p := range catalog {
			for _, ind := range p.Industries {
				if c == ind {
					return p
				}
			}
		}
		for _, p := range catalog {
			for _, ind := range p.Industries {
				if strings.Contains(c, ind) {
					return p
				}
			}
		}
	}
	return Generic()
}

// Resolve prefers an explicitly named profile over industry matching.
func Resolve(name, industry, subIndustry string) Profile {
	if name != "" {
		if p, ok := ByName(name); ok {
			return p
		}
	}
	return Lookup(industry, subIndustry)
}

// IsCategory reports whether c belongs to Categories, case-insensitively, and
// returns its canonical spelling.
func IsCategory(c string) (string, bool) {
	for _, known := range Categories {
		if strings.EqualFold(known, strings.TrimSpace(c)) {
			return known, true
		}
	}
	return "", false
}
