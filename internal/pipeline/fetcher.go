// Package pipeline runs the per-URL crawl stages: fetch, content extraction,
// Markdown conversion, quality scoring, link harvest, and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/docspasta/internal/domain"
)

// UserAgent identifies the crawler on every outbound request.
const UserAgent = "DocspastaCrawler/1.0 (+https://docspasta.example/crawler)"

// acceptHeader is sent on every page fetch.
const acceptHeader = "text/html,application/xhtml+xml;q=0.9"

const (
	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 10 << 20 // 10 MiB
	// maxRedirects caps redirect following per fetch.
	maxRedirects = 5
)

// FetchResult is a completed page download.
type FetchResult struct {
	StatusCode int
	Body       string
}

// Fetcher downloads pages over plain HTTP. It sends no cookies and follows at
// most maxRedirects hops.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a fetcher whose requests time out after the given
// duration.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					// Surface the last 3xx instead of erroring so the page
					// fails with its real status.
					return http.ErrUseLastResponse
				}

				return nil
			},
		},
	}
}

// Fetch downloads one URL. Non-2xx responses return a result carrying the
// status alongside an http_error; transport failures classify as timeout or
// transient.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidURL, "build request", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(err)
	}

	result := &FetchResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, domain.NewError(domain.KindHTTPError, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	return result, nil
}

// classifyTransport maps a transport failure onto the error taxonomy.
func classifyTransport(err error) error {
	var netErr interface{ Timeout() bool }

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapError(domain.KindTimeout, "fetch", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return domain.WrapError(domain.KindTimeout, "fetch", err)
	default:
		return domain.WrapError(domain.KindTransient, "fetch", err)
	}
}
