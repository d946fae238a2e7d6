package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/scheduler"
	"github.com/journeyforge/orchestrator/internal/task"
)

var (
	errGitHubNotConfigured   = errors.New("github credential not configured")
	errGitHubUsernameUnknown = errors.New("no github username found on profile")
)

// EnrichProfile implements ENRICH_PROFILE (spec.md §4.F.2). It is
// non-critical: any failure is logged and the stage still completes with
// whatever partial data it gathered.
type EnrichProfile struct{ Deps }

func NewEnrichProfile(d Deps) *EnrichProfile { return &EnrichProfile{Deps: d} }

func (h *EnrichProfile) Execute(ctx context.Context, jobID string, plan *task.Plan, t *task.Task, report scheduler.ReportProgress) (any, error) {
	fetchOut := plan.ResultData[task.KindFetchProfile]
	profile, ok := fetchOut.(domain.Profile)
	if !ok {
		slog.Warn("enrich_profile: no profile output from fetch_profile", "job_id", jobID)
		profile = domain.Profile{}
	}

	primary := plan.SourceRef.URL
	links := filteredRelatedLinks(profile.RelatedLinks, primary, 20)

	enriched := domain.EnrichedProfile{
		Profile: profile,
		EnrichmentStats: domain.EnrichmentStats{
			RelatedLinksFound: len(profile.RelatedLinks),
			LinksScraped:      len(links),
		},
	}

	if len(links) > 0 && h.Fetcher != nil {
		report(20, "scraping related links")
		results := h.Fetcher.ScrapeMany(ctx, links, 5)
		var succeeded []domain.ScrapedDoc
		for _, r := range results {
			if r.Success {
				succeeded = append(succeeded, r)
			}
		}
		sort.Slice(succeeded, func(i, j int) bool { return succeeded[i].QualityScore > succeeded[j].QualityScore })
		enriched.ScrapedContent = succeeded
		enriched.EnrichmentStats.SuccessfulScrapes = len(succeeded)
	}

	if includeGitHub, _ := plan.Options["include_github"].(bool); includeGitHub {
		report(70, "aggregating code-hosting stats")
		if stats, err := h.fetchGitHubStats(ctx, profile, plan.Options); err != nil {
			slog.Warn("enrich_profile: github stats failed", "job_id", jobID, "error", err)
		} else {
			enriched.GitHubData = stats
		}
	}

	stamp := now()
	enriched.EnrichmentTimestamp = &stamp
	report(100, "enrichment complete")
	return enriched, nil
}

// fetchGitHubStats aggregates code-hosting activity for whichever GitHub
// username it can resolve: an explicit github_username option wins,
// otherwise the first contact link pointing at github.com. It needs no
// credential of its own -- h.GitHub is an interface-only seam, the same
// external-boundary pattern as Gateway and Store -- but without a
// concrete Client wired in it reports
// "not configured" rather than guessing at a wire format.
func (h *EnrichProfile) fetchGitHubStats(ctx context.Context, profile domain.Profile, options map[string]any) (*domain.GitHubStats, error) {
	if h.GitHub == nil {
		return nil, errGitHubNotConfigured
	}
	username, _ := options["github_username"].(string)
	if username == "" {
		username = githubUsernameFromProfile(profile)
	}
	if username == "" {
		return nil, errGitHubUsernameUnknown
	}
	return h.GitHub.FetchStats(ctx, username)
}

// githubUsernameFromProfile looks for a contact link hosted on github.com
// and returns its first path segment, e.g. https://github.com/octocat ->
// "octocat".
func githubUsernameFromProfile(profile domain.Profile) string {
	for _, link := range profile.ContactLinks {
		u, err := url.Parse(strings.TrimSpace(link.URL))
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		if host != "github.com" {
			continue
		}
		segment := strings.Trim(u.Path, "/")
		if segment == "" {
			continue
		}
		return strings.SplitN(segment, "/", 2)[0]
	}
	return ""
}

func filteredRelatedLinks(links []string, primary string, cap int) []string {
	primary = strings.TrimRight(strings.TrimSpace(primary), "/")
	seen := map[string]struct{}{}
	var out []string
	for _, l := range links {
		norm := strings.TrimRight(strings.TrimSpace(l), "/")
		if norm == "" || norm == primary {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
		if len(out) >= cap {
			break
		}
	}
	return out
}
