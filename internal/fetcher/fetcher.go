// Package fetcher implements the bounded-concurrency, rate-limited web
// fetcher from spec.md §4.B: HTTP GET, HTML parsing via goquery, structured
// extraction, and content quality scoring.
package fetcher

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/journeyforge/orchestrator/internal/domain"
)

var errTooManyRequests = errors.New("fetcher: http 429 too many requests")

// Config controls the fetcher's policies; see config.Config for the
// environment-driven defaults wired into this at startup.
type Config struct {
	MaxConcurrent  int
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	RetryAttempts  int
	MinSpacing     time.Duration
	BlockedHosts   []string
}

// Fetcher is the shared, process-wide web fetcher. Its rate limiter and
// semaphore are held across every scrape call so policies apply globally,
// not per-call.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	sem     chan struct{}
}

// New constructs a Fetcher from cfg.
func New(cfg Config) *Fetcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = 1 * time.Second
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.TotalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			},
		},
		limiter: rate.NewLimiter(rate.Every(cfg.MinSpacing), 1),
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (f *Fetcher) blocked(host string) bool {
	host = strings.ToLower(host)
	for _, b := range f.cfg.BlockedHosts {
		if strings.Contains(host, strings.ToLower(b)) {
			return true
		}
	}
	return false
}

// Scrape fetches and extracts one URL, never returning an error: failures
// are reported in the returned ScrapedDoc's Success/Error fields, per
// spec.md §4.B's failure-mode contract.
func (f *Fetcher) Scrape(ctx context.Context, rawURL string) domain.ScrapedDoc {
	doc := domain.ScrapedDoc{URL: rawURL, FetchedAt: time.Now()}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		doc.Error = "invalid url"
		return doc
	}
	if f.blocked(u.Host) {
		doc.Error = "host is blocklisted"
		return doc
	}
	doc.Domain = u.Host

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		doc.Error = "context cancelled waiting for concurrency slot"
		return doc
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.RetryAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			doc.Error = err.Error()
			return doc
		}

		body, contentType, status, err := f.fetchOnce(ctx, rawURL)
		if err == nil && status != http.StatusTooManyRequests {
			if !acceptableContentType(contentType) {
				doc.Error = "excluded content type: " + contentType
				return doc
			}
			if status >= 400 {
				doc.Error = "http status " + strconv.Itoa(status)
				return doc
			}
			extractInto(&doc, body, u)
			return doc
		}

		if status == http.StatusTooManyRequests || isTimeout(err) {
			lastErr = err
			if lastErr == nil {
				lastErr = errTooManyRequests
			}
			if attempt < f.cfg.RetryAttempts {
				select {
				case <-time.After(time.Duration(attempt+1) * 2 * time.Second):
				case <-ctx.Done():
					doc.Error = ctx.Err().Error()
					return doc
				}
				continue
			}
			break
		}

		doc.Error = err.Error()
		return doc
	}

	doc.Error = lastErr.Error()
	return doc
}

// ScrapeMany fetches urls concurrently, bounded by maxConcurrent (the
// fetcher's own semaphore already bounds global concurrency; this just
// caps how many of this batch are in flight at once), deduplicating input
// and preserving input order in the output.
func (f *Fetcher) ScrapeMany(ctx context.Context, urls []string, maxConcurrent int) []domain.ScrapedDoc {
	deduped := dedupPreserveOrder(urls)
	if len(deduped) == 0 {
		return nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = f.cfg.MaxConcurrent
	}

	results := make([]domain.ScrapedDoc, len(deduped))
	batchSem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for i, u := range deduped {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			batchSem <- struct{}{}
			defer func() { <-batchSem }()
			results[i] = f.Scrape(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return results
}

func dedupPreserveOrder(urls []string) []string {
	seen := map[string]struct{}{}
	var deduped []string
	for _, u := range urls {
		norm := strings.TrimRight(strings.TrimSpace(u), "/")
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		deduped = append(deduped, norm)
	}
	return deduped
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (body []byte, contentType string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", 0, err
	}
	req.Header.Set("User-Agent", "journeyforge-orchestrator/1.0 (+profile enrichment fetcher)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", 0, err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, 5<<20) // 5 MiB safety cap
	b, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", resp.StatusCode, err
	}
	return b, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

func acceptableContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded")
}

var dateTimeRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

func extractInto(doc *domain.ScrapedDoc, body []byte, base *url.URL) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		doc.Error = "parse html: " + err.Error()
		return
	}
	doc.Success = true
	doc.Title = extractTitle(gq)
	doc.Description = extractDescription(gq)
	doc.OGType = attrOrEmpty(gq, "meta[property='og:type']", "content")
	doc.SiteName = attrOrEmpty(gq, "meta[property='og:site_name']", "content")
	doc.PublishedAt = extractPublishedAt(gq)
	doc.Author = extractAuthor(gq)

	main := mainContent(gq)
	text := strings.TrimSpace(main.Text())
	doc.OriginalLength = len(text)
	if len(text) > 8000 {
		text = text[:8000]
	}
	doc.Text = text

	doc.Headings = extractHeadings(gq)
	doc.Anchors = extractAnchors(main)
	doc.Images = extractImages(gq, base)
	doc.FeaturedImage = extractFeaturedImage(gq, base)

	doc.QualityScore = Score(text, len(doc.Headings), doc.PublishedAt != "", doc.Author != "")
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return attrOrEmpty(doc, "meta[property='og:title']", "content")
}

func extractDescription(doc *goquery.Document) string {
	if d := attrOrEmpty(doc, "meta[name='description']", "content"); d != "" {
		return d
	}
	return attrOrEmpty(doc, "meta[property='og:description']", "content")
}

func extractPublishedAt(doc *goquery.Document) string {
	if v := attrOrEmpty(doc, "meta[property='article:published_time']", "content"); v != "" {
		return v
	}
	if v := attrOrEmpty(doc, "[itemprop='datePublished']", "content"); v != "" {
		return v
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok && v != "" {
		return v
	}
	if m := dateTimeRe.FindString(doc.Text()); m != "" {
		return m
	}
	return ""
}

func extractAuthor(doc *goquery.Document) string {
	if v := attrOrEmpty(doc, "meta[name='author']", "content"); v != "" {
		return v
	}
	if v := attrOrEmpty(doc, "meta[property='article:author']", "content"); v != "" {
		return v
	}
	if v := attrOrEmpty(doc, "meta[name='twitter:creator']", "content"); v != "" {
		return v
	}
	if t := strings.TrimSpace(doc.Find("[rel='author']").First().Text()); t != "" {
		return t
	}
	return ""
}

func attrOrEmpty(doc *goquery.Document, selector, attr string) string {
	v, ok := doc.Find(selector).First().Attr(attr)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// mainContent selects the document's primary content node, preferring
// <article>, then <main>, then common content containers, then <body>.
func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"article", "main", ".content", ".article", ".post", "#content"} {
		s := doc.Find(sel).First()
		if s.Length() > 0 {
			return s
		}
	}
	return doc.Find("body").First()
}

func extractAnchors(sel *goquery.Selection) []domain.Anchor {
	var anchors []domain.Anchor
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(anchors) >= 25 {
			return false
		}
		href, ok := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if !ok || href == "" || text == "" {
			return true
		}
		anchors = append(anchors, domain.Anchor{Text: text, URL: href})
		return true
	})
	return anchors
}

func extractHeadings(doc *goquery.Document) []string {
	var headings []string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if len(headings) >= 20 {
			return false
		}
		if text := strings.TrimSpace(h.Text()); text != "" {
			headings = append(headings, text)
		}
		return true
	})
	return headings
}

func extractImages(doc *goquery.Document, base *url.URL) []string {
	var images []string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if len(images) >= 10 {
			return false
		}
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return true
		}
		images = append(images, resolveURL(base, src))
		return true
	})
	return images
}

// extractFeaturedImage follows web_scraper.py's og:image -> twitter:image
// fallback chain for the single representative image of a page.
func extractFeaturedImage(doc *goquery.Document, base *url.URL) string {
	if v := attrOrEmpty(doc, "meta[property='og:image']", "content"); v != "" {
		return resolveURL(base, v)
	}
	if v := attrOrEmpty(doc, "meta[name='twitter:image']", "content"); v != "" {
		return resolveURL(base, v)
	}
	return ""
}

// resolveURL normalizes raw (which may be relative, scheme-relative, or
// already absolute) against base, per spec.md's "normalized absolute URLs"
// requirement for scraped image references. Unparseable raw values are
// returned unchanged rather than dropped.
func resolveURL(base *url.URL, raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || base == nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}
