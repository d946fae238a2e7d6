package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/journeyforge/orchestrator/internal/domain"
	"github.com/journeyforge/orchestrator/internal/task"
)

type fakeGitHubClient struct {
	stats    *domain.GitHubStats
	err      error
	username string
}

func (c *fakeGitHubClient) FetchStats(ctx context.Context, username string) (*domain.GitHubStats, error) {
	c.username = username
	return c.stats, c.err
}

func newEnrichPlan(jobID string, profile domain.Profile, options map[string]any) *task.Plan {
	plan := task.NewPlan("plan_"+jobID, jobID, task.SourceRef{}, nil, options)
	plan.ResultData[task.KindFetchProfile] = profile
	return plan
}

func TestEnrichProfileSkipsGitHubWhenOptionIsUnset(t *testing.T) {
	gh := &fakeGitHubClient{err: errors.New("must not be called")}
	h := NewEnrichProfile(Deps{GitHub: gh})

	plan := newEnrichPlan("job_1", domain.Profile{Name: "Jane Doe"}, nil)
	tk := &task.Task{TaskID: "task_002", Kind: task.KindEnrichProfile}

	out, err := h.Execute(context.Background(), "job_1", plan, tk, func(int, string) {})
	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	enriched := out.(domain.EnrichedProfile)
	if enriched.GitHubData != nil {
		t.Fatalf("GitHubData = %+v, want nil when include_github is unset", enriched.GitHubData)
	}
	if gh.username != "" {
		t.Fatalf("GitHub client was called with username %q, want not called at all", gh.username)
	}
}

// TestEnrichProfileGitHubStubWithoutClientIsWarningNotFailure documents the
// no-credential seam: with no Client wired in, ENRICH_PROFILE still
// completes successfully and simply omits GitHubData, exactly as it does
// for every other non-critical enrichment shortfall.
func TestEnrichProfileGitHubStubWithoutClientIsWarningNotFailure(t *testing.T) {
	h := NewEnrichProfile(Deps{})

	plan := newEnrichPlan("job_2", domain.Profile{Name: "Jane Doe"}, map[string]any{"include_github": true})
	tk := &task.Task{TaskID: "task_002", Kind: task.KindEnrichProfile}

	out, err := h.Execute(context.Background(), "job_2", plan, tk, func(int, string) {})
	if err != nil {
		t.Fatalf("Execute returned %v, want nil (github failure must not fail the stage)", err)
	}
	enriched := out.(domain.EnrichedProfile)
	if enriched.GitHubData != nil {
		t.Fatalf("GitHubData = %+v, want nil with no Client configured", enriched.GitHubData)
	}
}

func TestEnrichProfileResolvesUsernameFromGitHubContactLink(t *testing.T) {
	gh := &fakeGitHubClient{stats: &domain.GitHubStats{
		LanguageHistogram: map[string]int{"Go": 4},
	}}
	h := NewEnrichProfile(Deps{GitHub: gh})

	profile := domain.Profile{
		Name: "Jane Doe",
		ContactLinks: []domain.ContactLink{
			{Label: "Website", URL: "https://janedoe.dev"},
			{Label: "GitHub", URL: "https://github.com/janedoe/"},
		},
	}
	plan := newEnrichPlan("job_3", profile, map[string]any{"include_github": true})
	tk := &task.Task{TaskID: "task_002", Kind: task.KindEnrichProfile}

	out, err := h.Execute(context.Background(), "job_3", plan, tk, func(int, string) {})
	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	if gh.username != "janedoe" {
		t.Fatalf("FetchStats called with username %q, want %q", gh.username, "janedoe")
	}
	enriched := out.(domain.EnrichedProfile)
	if enriched.GitHubData == nil || enriched.GitHubData.LanguageHistogram["Go"] != 4 {
		t.Fatalf("GitHubData = %+v, want the fake client's stats", enriched.GitHubData)
	}
}

func TestEnrichProfileGitHubUsernameOptionOverridesContactLink(t *testing.T) {
	gh := &fakeGitHubClient{stats: &domain.GitHubStats{}}
	h := NewEnrichProfile(Deps{GitHub: gh})

	profile := domain.Profile{
		Name:         "Jane Doe",
		ContactLinks: []domain.ContactLink{{Label: "GitHub", URL: "https://github.com/wrongname"}},
	}
	plan := newEnrichPlan("job_4", profile, map[string]any{
		"include_github":  true,
		"github_username": "explicit-name",
	})
	tk := &task.Task{TaskID: "task_002", Kind: task.KindEnrichProfile}

	if _, err := h.Execute(context.Background(), "job_4", plan, tk, func(int, string) {}); err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	if gh.username != "explicit-name" {
		t.Fatalf("FetchStats called with username %q, want the explicit option to win", gh.username)
	}
}

func TestEnrichProfileGitHubWithoutResolvableUsernameOmitsStats(t *testing.T) {
	gh := &fakeGitHubClient{stats: &domain.GitHubStats{}}
	h := NewEnrichProfile(Deps{GitHub: gh})

	plan := newEnrichPlan("job_5", domain.Profile{Name: "Jane Doe"}, map[string]any{"include_github": true})
	tk := &task.Task{TaskID: "task_002", Kind: task.KindEnrichProfile}

	out, err := h.Execute(context.Background(), "job_5", plan, tk, func(int, string) {})
	if err != nil {
		t.Fatalf("Execute returned %v, want nil", err)
	}
	enriched := out.(domain.EnrichedProfile)
	if enriched.GitHubData != nil {
		t.Fatalf("GitHubData = %+v, want nil with no resolvable username", enriched.GitHubData)
	}
	if gh.username != "" {
		t.Fatalf("FetchStats must not be called without a username, got %q", gh.username)
	}
}
