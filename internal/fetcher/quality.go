package fetcher

import "strings"

// professionalKeywords is the fixed career-term vocabulary scored by
// Score, one hit per distinct keyword.
var professionalKeywords = []string{
	"interview", "article", "published", "featured", "speaking",
	"conference", "presentation", "award", "recognition", "project",
	"developer", "engineer", "manager", "director", "ceo", "founder",
	"startup", "company", "technology", "software", "innovation",
}

// lowQualityMarkers are placeholder/stub phrases that disqualify a page
// regardless of its other signals.
var lowQualityMarkers = []string{
	"lorem ipsum", "coming soon", "under construction", "page not found",
}

// Score computes the 0-10 content quality heuristic over extracted text and
// its surrounding signals (heading count, published date, author). It is a
// pure function of its inputs.
func Score(text string, headingCount int, hasPublishedDate, hasAuthor bool) float64 {
	score := 5.0

	length := len(text)
	switch {
	case length >= 1000 && length <= 5000:
		score += 1.5
	case length >= 500 && length < 1000:
		score += 1.0
	case length < 200:
		score -= 2.0
	case length > 8000:
		score -= 0.5
	}

	lower := strings.ToLower(text)
	keywordHits := 0
	for _, kw := range professionalKeywords {
		if strings.Contains(lower, kw) {
			keywordHits++
		}
	}
	bonus := float64(keywordHits) * 0.3
	if bonus > 2.0 {
		bonus = 2.0
	}
	score += bonus

	if headingCount >= 2 {
		score += 1.0
	}
	if hasPublishedDate {
		score += 0.5
	}
	if hasAuthor {
		score += 0.5
	}

	for _, marker := range lowQualityMarkers {
		if strings.Contains(lower, marker) {
			score -= 3.0
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
