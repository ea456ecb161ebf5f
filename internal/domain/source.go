package domain

import "time"

// SourceStatus records the outcome of the single fetch attempt.
type SourceStatus string

const (
	SourcePending SourceStatus = "PENDING"
	SourceOK      SourceStatus = "OK"
	SourceError   SourceStatus = "ERROR"
)

// Source is one discovered URL within a run.
type Source struct {
	ID          string
	RunID       string
	URL         string
	Domain      string
	Title       string
	Snippet     string
	PublishedAt *time.Time
	FetchedAt   *time.Time
	Status      SourceStatus
	Content     string
	Error       string
	StaleNote   string
	Query       string
}

// Stale reports whether discovery flagged the source as outside the freshness window.
func (s Source) Stale() bool {
	return s.StaleNote != ""
}

// SearchResult is one raw hit returned by a search provider.
type SearchResult struct {
	Title       string
	URL         string
	Snippet     string
	PublishedAt *time.Time
	Source      string
}

// Page is the fetched, text-converted representation of a source URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

// SourceChanges is the diff between the sources of two runs.
type SourceChanges struct {
	PreviousRunID   string
	RunID           string
	AddedSources    []Source
	RemovedSources  []Source
	ModifiedSources []Source
}

// Empty reports whether nothing changed.
func (c SourceChanges) Empty() bool {
	return len(c.AddedSources) == 0 && len(c.RemovedSources) == 0 && len(c.ModifiedSources) == 0
}

// Alert is a rule hit raised from SourceChanges.
type Alert struct {
	Rule    string
	Message string
}
