package githubstats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/errtax"
)

const (
	maxRepos  = 30
	maxEvents = 100
	baseURL   = "https://api.github.com"
)

// HTTPClient is a Client backed by the public GitHub REST API.
type HTTPClient struct {
	token  string
	client *http.Client
	tracer trace.Tracer
}

// NewHTTPClient builds a Client authenticating with token via a bearer
// header. An empty token still works, subject to GitHub's unauthenticated
// rate limit.
func NewHTTPClient(token string) *HTTPClient {
	return &HTTPClient{
		token:  token,
		client: &http.Client{Timeout: 20 * time.Second},
		tracer: otel.Tracer("journeyforge-githubstats"),
	}
}

type repo struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	HTMLURL     string   `json:"html_url"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Fork        bool     `json:"fork"`
}

type event struct {
	Type string `json:"type"`
}

// FetchStats aggregates username's public repositories and recent public
// events into a language histogram, a significant-project list ranked by
// stars+forks, and event-type counts, bounded to maxRepos/maxEvents so one
// prolific account cannot blow the enrichment stage's time budget.
func (c *HTTPClient) FetchStats(ctx context.Context, username string) (*domain.GitHubStats, error) {
	ctx, span := c.tracer.Start(ctx, "githubstats.fetch_stats", trace.WithAttributes(attribute.String("username", username)))
	defer span.End()

	var repos []repo
	if err := c.get(ctx, fmt.Sprintf("/users/%s/repos?per_page=%d&sort=pushed", url.PathEscape(username), maxRepos), &repos); err != nil {
		return nil, err
	}
	var events []event
	if err := c.get(ctx, fmt.Sprintf("/users/%s/events/public?per_page=%d", url.PathEscape(username), maxEvents), &events); err != nil {
		return nil, err
	}

	return aggregate(repos, events), nil
}

func aggregate(repos []repo, events []event) *domain.GitHubStats {
	stats := &domain.GitHubStats{
		LanguageHistogram: map[string]int{},
		EventTypeCounts:   map[string]int{},
	}

	var projects []domain.Project
	for _, r := range repos {
		if r.Fork {
			continue
		}
		if r.Language != "" {
			stats.LanguageHistogram[r.Language]++
		}
		projects = append(projects, domain.Project{
			Name:        r.Name,
			Description: r.Description,
			URL:         r.HTMLURL,
			Topics:      r.Topics,
			Stars:       r.Stars,
			Forks:       r.Forks,
		})
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return (projects[i].Stars + projects[i].Forks) > (projects[j].Stars + projects[j].Forks)
	})
	stats.SignificantProjects = projects

	for _, e := range events {
		if e.Type != "" {
			stats.EventTypeCounts[e.Type]++
		}
	}

	return stats
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return errtax.Internal(fmt.Errorf("build github request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, githubHeaderCarrier{req.Header})

	resp, err := c.client.Do(req)
	if err != nil {
		return errtax.Transient(fmt.Errorf("github request %s: %w", path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errtax.Transient(fmt.Errorf("read github response: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound {
		return errtax.Domain(fmt.Errorf("github user not found: %s", path))
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return errtax.Transient(fmt.Errorf("github rate limited: %s: %s", path, string(body)))
	}
	if resp.StatusCode >= 500 {
		return errtax.Transient(fmt.Errorf("github %s: http %d", path, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return errtax.Permanent(fmt.Errorf("github %s: http %d: %s", path, resp.StatusCode, string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errtax.Permanent(fmt.Errorf("decode github response: %w", err))
	}
	return nil
}

type githubHeaderCarrier struct{ h http.Header }

func (c githubHeaderCarrier) Get(key string) string { return c.h.Get(key) }
func (c githubHeaderCarrier) Set(key, value string) { c.h.Set(key, value) }
func (c githubHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.h))
	for k := range c.h {
		keys = append(keys, k)
	}
	return keys
}
