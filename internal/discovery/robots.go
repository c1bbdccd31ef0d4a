// Package discovery seeds a job's frontier before the crawl proper: sitemap
// walking and the robots.txt gate, both memoized per host in the KV store so
// concurrent jobs against the same site share one fetch.
package discovery

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// robotsCacheTTL is how long a host's robots.txt body stays cached in KV.
const robotsCacheTTL = time.Hour

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024 // 512 KB

// maxCrawlDelay caps a host's requested crawl-delay so one pathological
// robots.txt cannot stall a worker invocation.
const maxCrawlDelay = 10 * time.Second

// Robots checks URLs against per-host robots.txt rules. The parsed rules are
// held in-process; the raw body is written through to the KV store so other
// worker invocations skip the fetch.
type Robots struct {
	store      kv.Store
	httpClient *http.Client
	log        logger.Interface
	userAgent  string

	mu     sync.RWMutex
	parsed map[string]*robotstxt.RobotsData // keyed by host
}

// NewRobots creates the robots.txt gate.
func NewRobots(store kv.Store, httpClient *http.Client, log logger.Interface, userAgent string) *Robots {
	return &Robots{
		store:      store,
		httpClient: httpClient,
		log:        log.WithComponent("robots"),
		userAgent:  userAgent,
		parsed:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the crawler may fetch the given URL. A missing or
// unfetchable robots.txt allows everything.
func (r *Robots) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, domain.WrapError(domain.KindInvalidURL, "robots", err)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false, domain.NewError(domain.KindInvalidURL, "robots: empty host")
	}

	data, err := r.hostData(ctx, parsed.Scheme, host)
	if err != nil {
		return false, err
	}

	return data.TestAgent(parsed.Path, r.userAgent), nil
}

// CrawlDelay returns the host's crawl-delay for our user agent, capped at
// maxCrawlDelay. Zero when the host requests none.
func (r *Robots) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}

	host := strings.ToLower(parsed.Hostname())

	data, err := r.hostData(ctx, parsed.Scheme, host)
	if err != nil {
		return 0
	}

	group := data.FindGroup(r.userAgent)
	if group == nil {
		return 0
	}

	if group.CrawlDelay > maxCrawlDelay {
		return maxCrawlDelay
	}

	return group.CrawlDelay
}

// SitemapEntries returns the Sitemap directives listed in the host's
// robots.txt, in file order.
func (r *Robots) SitemapEntries(ctx context.Context, seedURL string) []string {
	parsed, err := url.Parse(seedURL)
	if err != nil {
		return nil
	}

	host := strings.ToLower(parsed.Hostname())

	data, err := r.hostData(ctx, parsed.Scheme, host)
	if err != nil {
		return nil
	}

	return data.Sitemaps
}

// hostData returns the parsed rules for a host, via the in-process cache,
// the KV body cache, or a fresh fetch, in that order.
func (r *Robots) hostData(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.parsed[host]
	r.mu.RUnlock()

	if ok {
		return data, nil
	}

	body, found, err := r.store.ValueGet(ctx, kv.RobotsKey(host))
	if err != nil {
		return nil, err
	}

	if !found {
		body = r.fetchBody(ctx, scheme, host)

		if err := r.store.ValueSet(ctx, kv.RobotsKey(host), body, robotsCacheTTL); err != nil {
			r.log.Warn("failed to cache robots.txt", "host", host, "error", err)
		}
	}

	// An empty body parses to allow-all, which also covers the
	// missing/unfetchable sentinel.
	data, err = robotstxt.FromString(body)
	if err != nil {
		data = &robotstxt.RobotsData{}
	}

	r.mu.Lock()
	r.parsed[host] = data
	r.mu.Unlock()

	return data, nil
}

// fetchBody retrieves a host's robots.txt. Any failure or non-2xx status
// yields an empty body so that the host is treated as allow-all.
func (r *Robots) fetchBody(ctx context.Context, scheme, host string) string {
	if scheme == "" {
		scheme = "https"
	}

	robotsURL := scheme + "://" + host + robotsTxtPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return ""
	}

	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.Debug("robots.txt fetch failed", "host", host, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		r.log.Debug("robots.txt read failed", "host", host, "error", err)
		return ""
	}

	return string(body)
}
