// Package domain holds the typed shapes stage handlers decode AI-gateway and
// store documents into. Keeping these as concrete structs (rather than
// passing map[string]any between stages) is the one deliberate departure
// from the system this was modelled on: every inter-stage boundary inside
// this module is typed, and aigateway.Document stays opaque only at the
// single edge where it crosses into/out of the gateway.
package domain

import "time"

// Experience is one entry in a profile's work history.
type Experience struct {
	Title       string   `mapstructure:"title" json:"title"`
	Company     string   `mapstructure:"company" json:"company"`
	Location    string   `mapstructure:"location" json:"location,omitempty"`
	StartDate   string   `mapstructure:"start_date" json:"start_date,omitempty"`
	EndDate     string   `mapstructure:"end_date" json:"end_date,omitempty"`
	Description string   `mapstructure:"description" json:"description,omitempty"`
	Highlights  []string `mapstructure:"highlights" json:"highlights,omitempty"`
}

// Education is one entry in a profile's education history.
type Education struct {
	Institution string `mapstructure:"institution" json:"institution"`
	Degree      string `mapstructure:"degree" json:"degree,omitempty"`
	FieldOfStudy string `mapstructure:"field_of_study" json:"field_of_study,omitempty"`
	StartDate   string `mapstructure:"start_date" json:"start_date,omitempty"`
	EndDate     string `mapstructure:"end_date" json:"end_date,omitempty"`
}

// Project is one entry in a profile's project list.
type Project struct {
	Name        string   `mapstructure:"name" json:"name"`
	Description string   `mapstructure:"description" json:"description,omitempty"`
	URL         string   `mapstructure:"url" json:"url,omitempty"`
	Topics      []string `mapstructure:"topics" json:"topics,omitempty"`
	Stars       int      `mapstructure:"stars" json:"stars,omitempty"`
	Forks       int      `mapstructure:"forks" json:"forks,omitempty"`
}

// ContactLink is one contact/profile link attached to a subject.
type ContactLink struct {
	Label string `mapstructure:"label" json:"label"`
	URL   string `mapstructure:"url" json:"url"`
}

// Profile is the canonical shape FETCH_PROFILE produces and every later
// stage reads from.
type Profile struct {
	Name            string        `mapstructure:"name" json:"name"`
	Title           string        `mapstructure:"title" json:"title,omitempty"`
	Location        string        `mapstructure:"location" json:"location,omitempty"`
	Bio             string        `mapstructure:"bio" json:"bio,omitempty"`
	Experiences     []Experience  `mapstructure:"experiences" json:"experiences,omitempty"`
	Education       []Education   `mapstructure:"education" json:"education,omitempty"`
	Skills          []string      `mapstructure:"skills" json:"skills,omitempty"`
	Projects        []Project     `mapstructure:"projects" json:"projects,omitempty"`
	Achievements    []string      `mapstructure:"achievements" json:"achievements,omitempty"`
	Certifications  []string      `mapstructure:"certifications" json:"certifications,omitempty"`
	ContactLinks    []ContactLink `mapstructure:"contact_links" json:"contact_links,omitempty"`
	RelatedLinks    []string      `mapstructure:"related_links" json:"related_links,omitempty"`

	SourceRef           string    `mapstructure:"-" json:"source_ref,omitempty"`
	ExtractionTimestamp time.Time `mapstructure:"-" json:"extraction_timestamp,omitempty"`
	ExtractionMethod    string    `mapstructure:"-" json:"extraction_method,omitempty"`
}

// Valid implements the validity rule from spec.md §4.F.1: name must be
// present (>=2 chars) and at least one of title/experiences/education/skills
// must be non-trivial.
func (p Profile) Valid() bool {
	if len(p.Name) < 2 {
		return false
	}
	return len(p.Title) > 2 || len(p.Experiences) > 0 || len(p.Education) > 0 || len(p.Skills) > 0
}

// GitHubStats is the aggregate code-hosting summary attached by
// ENRICH_PROFILE when the owner has a linked credential.
type GitHubStats struct {
	LanguageHistogram   map[string]int `json:"language_histogram"`
	SignificantProjects []Project      `json:"significant_projects"`
	EventTypeCounts     map[string]int `json:"event_type_counts"`
}

// EnrichmentStats summarises the related-link scraping pass.
type EnrichmentStats struct {
	RelatedLinksFound int `json:"related_links_found"`
	LinksScraped      int `json:"links_scraped"`
	SuccessfulScrapes int `json:"successful_scrapes"`
}

// EnrichedProfile is ENRICH_PROFILE's output: the profile plus scraped
// supporting content and optional GitHub stats.
type EnrichedProfile struct {
	Profile            Profile          `json:"profile"`
	ScrapedContent     []ScrapedDoc     `json:"scraped_content,omitempty"`
	EnrichmentStats    EnrichmentStats  `json:"enrichment_stats"`
	GitHubData         *GitHubStats     `json:"github_data,omitempty"`
	EnrichmentTimestamp *time.Time      `json:"enrichment_timestamp,omitempty"`
}

// MergedProfile is AGGREGATE_HISTORY's output.
type MergedProfile struct {
	Profile      Profile `json:"profile"`
	Aggregated   bool    `json:"aggregated"`
	FirstRecord  bool    `json:"first_record"`
}
