package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/journeyforge/orchestrator/internal/domain"
)

func htmlPage(title string) string {
	return fmt.Sprintf(`<html><head><title>%s</title>
<meta name="description" content="a professional profile page">
<meta name="author" content="Jane Doe">
</head><body><article><h1>%s</h1><h2>Career</h2>
<p>An interview about an award winning engineer and founder of a technology startup, featured in a published article about innovation in software.</p>
</article></body></html>`, title, title)
}

func TestScrapeRejectsBlockedHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(htmlPage("blocked")))
	}))
	defer srv.Close()

	f := New(Config{BlockedHosts: []string{hostOf(srv.URL)}})
	doc := f.Scrape(noCancel(), srv.URL)
	if doc.Success {
		t.Fatalf("expected blocklisted host to fail, got success")
	}
	if doc.Error != "host is blocklisted" {
		t.Errorf("Error = %q, want %q", doc.Error, "host is blocklisted")
	}
}

func TestScrapeRejectsNonHTMLContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	f := New(Config{})
	doc := f.Scrape(noCancel(), srv.URL)
	if doc.Success {
		t.Fatalf("expected non-html content type to fail, got success")
	}
	if doc.Error != "excluded content type: application/pdf" {
		t.Errorf("Error = %q, want excluded content type message", doc.Error)
	}
}

func TestScrapeRetries429ThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(htmlPage("retried")))
	}))
	defer srv.Close()

	f := New(Config{RetryAttempts: 1, MinSpacing: time.Millisecond})
	doc := f.Scrape(noCancel(), srv.URL)
	if !doc.Success {
		t.Fatalf("expected eventual success after one 429, got error: %s", doc.Error)
	}
	if attempts != 2 {
		t.Errorf("server saw %d requests, want 2 (one 429, one success)", attempts)
	}
}

func TestScrapeManyPreservesInputOrderAndDedups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(htmlPage(r.URL.Path)))
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/a", srv.URL + "/c"}
	f := New(Config{MinSpacing: time.Millisecond})
	out := f.ScrapeMany(noCancel(), urls, 3)

	if len(out) != 3 {
		t.Fatalf("ScrapeMany returned %d docs, want 3 after dedup", len(out))
	}
	wantOrder := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	for i, doc := range out {
		if doc.URL != wantOrder[i] {
			t.Errorf("out[%d].URL = %q, want %q (order must follow first occurrence)", i, doc.URL, wantOrder[i])
		}
		if !doc.Success {
			t.Errorf("out[%d] should have succeeded, got error %q", i, doc.Error)
		}
	}
}

// TestEnrichmentScrapeScenario exercises the literal §8 scenario: 12 related
// links where 2 hosts are blocklisted, 2 succeed only after one 429, 1
// returns a non-HTML content type, and 7 return 200 text/html directly --
// 9 total successes, which should sort in descending quality_score order.
func TestEnrichmentScrapeScenario(t *testing.T) {
	var flaky1, flaky2 int32

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(htmlPage(r.URL.Path)))
	}))
	defer ok.Close()

	pdf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	}))
	defer pdf.Close()

	retry1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&flaky1, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(htmlPage("retry1")))
	}))
	defer retry1.Close()

	retry2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&flaky2, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(htmlPage("retry2")))
	}))
	defer retry2.Close()

	blockedA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(htmlPage("blockedA")))
	}))
	defer blockedA.Close()
	blockedB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(htmlPage("blockedB")))
	}))
	defer blockedB.Close()

	links := []string{
		ok.URL + "/1", ok.URL + "/2", ok.URL + "/3", ok.URL + "/4",
		ok.URL + "/5", ok.URL + "/6", ok.URL + "/7",
		pdf.URL,
		retry1.URL, retry2.URL,
		blockedA.URL, blockedB.URL,
	}

	f := New(Config{
		RetryAttempts: 1,
		MinSpacing:    time.Millisecond,
		BlockedHosts:  []string{hostOf(blockedA.URL), hostOf(blockedB.URL)},
	})

	out := f.ScrapeMany(noCancel(), links, 5)
	if len(out) != 12 {
		t.Fatalf("ScrapeMany returned %d docs, want 12 (input count, no internal dedup here)", len(out))
	}

	var successes []domain.ScrapedDoc
	for _, doc := range out {
		if doc.Success {
			successes = append(successes, doc)
		}
	}
	if len(successes) != 9 {
		t.Fatalf("got %d successful scrapes, want 9 (7 ok + 2 retried)", len(successes))
	}

	sort.SliceStable(successes, func(i, j int) bool { return successes[i].QualityScore > successes[j].QualityScore })
	for i := 1; i < len(successes); i++ {
		if successes[i-1].QualityScore < successes[i].QualityScore {
			t.Fatalf("successes not sorted descending by quality_score at index %d", i)
		}
	}
}

func TestScrapeResolvesImagesAndFeaturedImageToAbsoluteURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>t</title>
<meta property="og:image" content="/static/cover.jpg">
</head><body><article><h1>Heading One</h1><h2>Heading Two</h2>
<img src="/static/a.png"><img src="https://cdn.example.com/b.png"><img src="c.png">
<p>body text</p></article></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{})
	doc := f.Scrape(noCancel(), srv.URL)
	if !doc.Success {
		t.Fatalf("scrape failed: %s", doc.Error)
	}

	if doc.Domain != hostOf(srv.URL) {
		t.Errorf("Domain = %q, want %q", doc.Domain, hostOf(srv.URL))
	}
	if len(doc.Headings) != 2 || doc.Headings[0] != "Heading One" || doc.Headings[1] != "Heading Two" {
		t.Errorf("Headings = %v, want [Heading One, Heading Two]", doc.Headings)
	}
	if doc.FeaturedImage != srv.URL+"/static/cover.jpg" {
		t.Errorf("FeaturedImage = %q, want resolved absolute og:image URL %q", doc.FeaturedImage, srv.URL+"/static/cover.jpg")
	}
	wantImages := []string{srv.URL + "/static/a.png", "https://cdn.example.com/b.png", srv.URL + "/c.png"}
	if len(doc.Images) != len(wantImages) {
		t.Fatalf("Images = %v, want %v", doc.Images, wantImages)
	}
	for i, want := range wantImages {
		if doc.Images[i] != want {
			t.Errorf("Images[%d] = %q, want %q", i, doc.Images[i], want)
		}
	}
}

func TestScrapeFeaturedImageFallsBackToTwitterImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>t</title>
<meta name="twitter:image" content="/static/twitter-cover.jpg">
</head><body><article><p>body text</p></article></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{})
	doc := f.Scrape(noCancel(), srv.URL)
	if !doc.Success {
		t.Fatalf("scrape failed: %s", doc.Error)
	}
	if doc.FeaturedImage != srv.URL+"/static/twitter-cover.jpg" {
		t.Errorf("FeaturedImage = %q, want resolved twitter:image fallback", doc.FeaturedImage)
	}
}

func hostOf(rawURL string) string {
	u := rawURL
	for _, prefix := range []string{"http://", "https://"} {
		if len(u) > len(prefix) && u[:len(prefix)] == prefix {
			u = u[len(prefix):]
			break
		}
	}
	return u
}

func noCancel() context.Context { return context.Background() }
