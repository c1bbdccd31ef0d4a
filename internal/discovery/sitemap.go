package discovery

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// sitemapCandidates are the well-known sitemap locations, tried in order.
var sitemapCandidates = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemaps.xml",
	"/sitemap/sitemap.xml",
	"/sitemaps/sitemap.xml",
	"/xml/sitemap.xml",
	"/wp-sitemap.xml",
	"/sitemap-index.xml",
}

const (
	// sitemapFetchTimeout bounds each individual sitemap download.
	sitemapFetchTimeout = 15 * time.Second
	// sitemapMaxDepth bounds recursion through sitemap indexes.
	sitemapMaxDepth = 3
	// sitemapCacheTTL is how long a host's discovered URLs stay cached.
	sitemapCacheTTL = 24 * time.Hour
	// maxSitemapBodyBytes limits the size of sitemap responses we will read.
	maxSitemapBodyBytes = 10 << 20 // 10 MiB
)

// sitemapLoc is one <loc>-bearing element of either sitemap document kind.
type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// urlSet is a <urlset> sitemap document.
type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

// sitemapIndex is a <sitemapindex> document pointing at child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

// Sitemap discovers candidate page URLs for a host by walking its sitemap
// tree, with a per-host KV cache.
type Sitemap struct {
	store      kv.Store
	httpClient *http.Client
	robots     *Robots
	log        logger.Interface
	userAgent  string
}

// NewSitemap creates the sitemap walker.
func NewSitemap(store kv.Store, httpClient *http.Client, robots *Robots, log logger.Interface, userAgent string) *Sitemap {
	return &Sitemap{
		store:      store,
		httpClient: httpClient,
		robots:     robots,
		log:        log.WithComponent("sitemap"),
		userAgent:  userAgent,
	}
}

// Discover returns up to maxURLs candidate page URLs for the seed's host.
// Failures are logged, never fatal: an unreachable or unparseable sitemap
// tree yields an empty slice and the caller falls back to the seed alone.
func (s *Sitemap) Discover(ctx context.Context, seedURL string, maxURLs int) []string {
	parsed, err := url.Parse(seedURL)
	if err != nil || parsed.Hostname() == "" {
		return nil
	}

	host := strings.ToLower(parsed.Hostname())

	if cached, ok := s.cachedURLs(ctx, host, maxURLs); ok {
		s.log.Debug("sitemap cache hit", "host", host, "urls", len(cached))
		return cached
	}

	urls := s.walk(ctx, parsed, maxURLs)

	if len(urls) > 0 {
		s.cacheURLs(ctx, host, urls)
	}

	return urls
}

// walk tries each candidate location plus the robots.txt Sitemap entries,
// recursing through indexes until maxURLs are collected.
func (s *Sitemap) walk(ctx context.Context, seed *url.URL, maxURLs int) []string {
	origin := strings.ToLower(seed.Scheme) + "://" + strings.ToLower(seed.Host)

	roots := make([]string, 0, len(sitemapCandidates)+2)
	for _, candidate := range sitemapCandidates {
		roots = append(roots, origin+candidate)
	}

	roots = append(roots, s.robots.SitemapEntries(ctx, seed.String())...)

	fetched := make(map[string]struct{})
	collected := make([]string, 0, maxURLs)

	for _, root := range roots {
		if len(collected) >= maxURLs {
			break
		}

		collected = s.walkOne(ctx, root, 0, fetched, collected, maxURLs)
	}

	return collected
}

func (s *Sitemap) walkOne(ctx context.Context, sitemapURL string, depth int, fetched map[string]struct{}, collected []string, maxURLs int) []string {
	if depth > sitemapMaxDepth || len(collected) >= maxURLs {
		return collected
	}

	if _, done := fetched[sitemapURL]; done {
		return collected
	}

	fetched[sitemapURL] = struct{}{}

	body, err := s.fetch(ctx, sitemapURL)
	if err != nil {
		s.log.Debug("sitemap fetch failed", "url", sitemapURL, "error", err)
		return collected
	}

	// An index and a urlset are distinguished by their root element; try the
	// index shape first.
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, child := range index.Sitemaps {
			if child.Loc == "" {
				continue
			}

			collected = s.walkOne(ctx, strings.TrimSpace(child.Loc), depth+1, fetched, collected, maxURLs)

			if len(collected) >= maxURLs {
				break
			}
		}

		return collected
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		s.log.Debug("sitemap parse failed", "url", sitemapURL, "error", err)
		return collected
	}

	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}

		// Some generators list child sitemaps inside a urlset.
		if isChildSitemap(loc) {
			collected = s.walkOne(ctx, loc, depth+1, fetched, collected, maxURLs)
		} else if len(collected) < maxURLs {
			collected = append(collected, loc)
		}

		if len(collected) >= maxURLs {
			break
		}
	}

	return collected
}

// isChildSitemap reports whether a <loc> inside a urlset points at another
// sitemap rather than a page.
func isChildSitemap(loc string) bool {
	lowered := strings.ToLower(loc)
	if !strings.HasSuffix(lowered, ".xml") {
		return false
	}

	return strings.Contains(lowered, "sitemap") || strings.Contains(lowered, "feed")
}

func (s *Sitemap) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, sitemapFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxSitemapBodyBytes))
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + http.StatusText(e.code)
}

// cachedURLs reads the per-host URL cache.
func (s *Sitemap) cachedURLs(ctx context.Context, host string, maxURLs int) ([]string, bool) {
	raw, found, err := s.store.ValueGet(ctx, kv.SitemapKey(host))
	if err != nil || !found {
		return nil, false
	}

	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, false
	}

	if len(urls) > maxURLs {
		urls = urls[:maxURLs]
	}

	return urls, true
}

// cacheURLs writes the per-host URL cache. Only successful walks are cached
// so a transient failure is retried by the next job.
func (s *Sitemap) cacheURLs(ctx context.Context, host string, urls []string) {
	raw, err := json.Marshal(urls)
	if err != nil {
		return
	}

	if err := s.store.ValueSet(ctx, kv.SitemapKey(host), string(raw), sitemapCacheTTL); err != nil {
		s.log.Warn("failed to cache sitemap urls", "host", host, "error", err)
	}
}
