// Package config loads process configuration from the environment. There is
// no config file format; every setting has a JOURNEY_-prefixed env var and a
// sane default so the orchestrator runs standalone in development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full set of environment-driven settings for the orchestrator
// process, per spec.md §4's "Environment/config" note.
type Config struct {
	// AI gateway
	AIProviderEndpoint string
	AIProviderAPIKey   string

	// Artifact store / blob store
	BlobBucket string
	BlobAPIKey string

	// Code-hosting enrichment (ENRICH_PROFILE's GitHub stats); empty token
	// still works against GitHub's unauthenticated rate limit.
	GitHubAPIToken string

	// CORS / allowed origins for the (out-of-scope) HTTP surface; kept here
	// because the registry and event bus are the components that would
	// enforce it.
	AllowedOrigins []string

	// Job registry retention
	SweepInterval time.Duration
	MaxPlanAge    time.Duration
	// ArchivePath, if set, durably persists evicted terminal plans to a
	// bbolt database at this path before dropping them from memory.
	ArchivePath string

	// Web fetcher
	FetchMaxConcurrent int
	FetchConnectTimeout time.Duration
	FetchTotalTimeout   time.Duration
	FetchRetryAttempts  int
	FetchMinSpacing     time.Duration
	FetchBlockedHosts   []string

	// Retry count read from the environment; the planner does not consult
	// it and gives every task MaxRetries 2.
	DefaultMaxRetries int
}

// Load reads Config from the environment, applying spec-mandated defaults.
func Load() Config {
	return Config{
		AIProviderEndpoint: getString("JOURNEY_AI_ENDPOINT", ""),
		AIProviderAPIKey:   getString("JOURNEY_AI_API_KEY", ""),

		BlobBucket: getString("JOURNEY_BLOB_BUCKET", ""),
		BlobAPIKey: getString("JOURNEY_BLOB_API_KEY", ""),

		GitHubAPIToken: getString("JOURNEY_GITHUB_API_TOKEN", ""),

		AllowedOrigins: getList("JOURNEY_ALLOWED_ORIGINS", nil),

		SweepInterval: getDuration("JOURNEY_SWEEP_INTERVAL", 10*time.Minute),
		MaxPlanAge:    getDuration("JOURNEY_MAX_PLAN_AGE", 30*time.Minute),
		ArchivePath:   getString("JOURNEY_ARCHIVE_PATH", ""),

		FetchMaxConcurrent:  getInt("JOURNEY_FETCH_MAX_CONCURRENT", 5),
		FetchConnectTimeout: getDuration("JOURNEY_FETCH_CONNECT_TIMEOUT", 10*time.Second),
		FetchTotalTimeout:   getDuration("JOURNEY_FETCH_TOTAL_TIMEOUT", 30*time.Second),
		FetchRetryAttempts:  getInt("JOURNEY_FETCH_RETRY_ATTEMPTS", 2),
		FetchMinSpacing:     getDuration("JOURNEY_FETCH_MIN_SPACING", 1*time.Second),
		FetchBlockedHosts: getList("JOURNEY_FETCH_BLOCKED_HOSTS", []string{
			"facebook.com", "instagram.com", "linkedin.com/login",
			"x.com", "twitter.com", "accounts.google.com",
		}),

		DefaultMaxRetries: getInt("JOURNEY_DEFAULT_MAX_RETRIES", 2),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
