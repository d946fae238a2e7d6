package domain

import "time"

// Anchor is one extracted {text, url} link.
type Anchor struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ScrapedDoc is the web fetcher's output for one URL, per spec.md §4.B.
type ScrapedDoc struct {
	URL              string    `json:"url"`
	Domain           string    `json:"domain,omitempty"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	Title            string    `json:"title,omitempty"`
	Description      string    `json:"description,omitempty"`
	OGType           string    `json:"og_type,omitempty"`
	SiteName         string    `json:"site_name,omitempty"`
	Text             string    `json:"text,omitempty"`
	OriginalLength   int       `json:"original_length,omitempty"`
	Headings         []string  `json:"headings,omitempty"`
	Anchors          []Anchor  `json:"anchors,omitempty"`
	Images           []string  `json:"images,omitempty"`
	FeaturedImage    string    `json:"featured_image,omitempty"`
	PublishedAt      string    `json:"published_at,omitempty"`
	Author           string    `json:"author,omitempty"`
	QualityScore     float64   `json:"quality_score"`
	FetchedAt        time.Time `json:"fetched_at"`
}
