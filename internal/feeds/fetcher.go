// Package feeds fetches RSS/Atom feeds and ingests their items as
// articles.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	httpTimeout    = 30 * time.Second
	rateLimitDelay = 1 * time.Second
)

// Fetcher retrieves feeds with per-domain rate limiting.
type Fetcher struct {
	client      *http.Client
	rateLimiter map[string]time.Time // per-domain last request time
	mu          sync.Mutex           // protects rateLimiter
	minDelay    time.Duration
}

// NewFetcher creates a Fetcher with a custom HTTP client configured with a
// 30-second timeout and the EconBrief user agent.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: httpTimeout,
			Transport: &userAgentTransport{
				base: http.DefaultTransport,
			},
		},
		rateLimiter: make(map[string]time.Time),
		minDelay:    rateLimitDelay,
	}
}

// userAgentTransport wraps an http.RoundTripper to inject a custom User-Agent
// header on every request.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/html;q=0.8,*/*;q=0.5")
	return t.base.RoundTrip(req)
}

// Fetch retrieves and parses the feed at feedURL.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := f.waitForRateLimit(ctx, extractDomain(feedURL)); err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %q: %w", feedURL, err)
	}
	return feed, nil
}

// waitForRateLimit enforces a minimum delay between requests to the same
// domain. It blocks until the delay has elapsed or ctx is done.
func (f *Fetcher) waitForRateLimit(ctx context.Context, domain string) error {
	f.mu.Lock()
	var wait time.Duration
	if lastReq, ok := f.rateLimiter[domain]; ok {
		if elapsed := time.Since(lastReq); elapsed < f.minDelay {
			wait = f.minDelay - elapsed
		}
	}
	f.rateLimiter[domain] = time.Now().Add(wait)
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
