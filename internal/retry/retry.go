// Package retry executes operations with exponential backoff, keyed off the
// crawl error taxonomy: each error kind carries its own attempt budget.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/docspasta/internal/domain"
)

// Policy bounds retries per error kind. Kinds absent from Attempts are never
// retried.
type Policy struct {
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// Multiplier scales the delay after each attempt.
	Multiplier float64
	// Attempts maps an error kind to its total attempt budget (including the
	// first try).
	Attempts map[domain.ErrorKind]int
}

// CrawlPolicy is the crawl engine's retry policy: transient store or network
// flakes get three attempts at 2s/4s/8s, fetch timeouts get one retry, and
// everything else fails immediately.
func CrawlPolicy() Policy {
	return Policy{
		InitialDelay: 2 * time.Second,
		Multiplier:   2,
		Attempts: map[domain.ErrorKind]int{
			domain.KindTransient: 3,
			domain.KindTimeout:   2,
		},
	}
}

// Do runs fn until it succeeds, exhausts the attempt budget for its error
// kind, or the context ends. The budget of the most recent error decides how
// many attempts are allowed in total.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	delay := p.InitialDelay

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		budget := p.Attempts[domain.KindOf(err)]
		if attempt >= budget {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
	}
}
