// Package githubstats is the code-hosting enrichment boundary used by
// ENRICH_PROFILE (spec.md §4.F.2). Like internal/aigateway and
// internal/store, the rest of this module depends only on the Client
// interface; the concrete HTTPClient is the one place the GitHub REST API's
// wire format is visible.
package githubstats

import (
	"context"

	"github.com/journeyforge/orchestrator/internal/domain"
)

// Client fetches an aggregate code-hosting summary for a username.
type Client interface {
	FetchStats(ctx context.Context, username string) (*domain.GitHubStats, error)
}
