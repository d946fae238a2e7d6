package githubstats

import "testing"

func TestAggregateBuildsHistogramAndRanksProjectsByStarsPlusForks(t *testing.T) {
	repos := []repo{
		{Name: "popular", Language: "Go", Stars: 100, Forks: 10},
		{Name: "forked-away", Language: "Go", Stars: 0, Forks: 0, Fork: true},
		{Name: "niche", Language: "Rust", Stars: 2, Forks: 1},
		{Name: "sleeper", Language: "Go", Stars: 5, Forks: 50},
	}
	events := []event{
		{Type: "PushEvent"}, {Type: "PushEvent"}, {Type: "WatchEvent"},
	}

	stats := aggregate(repos, events)

	if stats.LanguageHistogram["Go"] != 2 {
		t.Errorf("LanguageHistogram[Go] = %d, want 2 (forked-away excluded)", stats.LanguageHistogram["Go"])
	}
	if stats.LanguageHistogram["Rust"] != 1 {
		t.Errorf("LanguageHistogram[Rust] = %d, want 1", stats.LanguageHistogram["Rust"])
	}
	if len(stats.SignificantProjects) != 3 {
		t.Fatalf("SignificantProjects count = %d, want 3 (fork excluded)", len(stats.SignificantProjects))
	}
	if stats.SignificantProjects[0].Name != "popular" {
		t.Errorf("SignificantProjects[0] = %q, want %q (110 stars+forks ranks highest)", stats.SignificantProjects[0].Name, "popular")
	}
	if stats.SignificantProjects[1].Name != "sleeper" {
		t.Errorf("SignificantProjects[1] = %q, want %q (55 stars+forks ranks second)", stats.SignificantProjects[1].Name, "sleeper")
	}
	if stats.EventTypeCounts["PushEvent"] != 2 || stats.EventTypeCounts["WatchEvent"] != 1 {
		t.Errorf("EventTypeCounts = %+v, want PushEvent:2, WatchEvent:1", stats.EventTypeCounts)
	}
}
