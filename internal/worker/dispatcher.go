// Package worker runs crawl worker invocations: short-lived, batch-bounded
// passes over a job's frontier that self-reinvoke near their time budget.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/docspasta/internal/logger"
)

// DefaultInvocationLimit is the hard wall-clock cap per invocation, emulating
// a serverless platform's execution limit.
const DefaultInvocationLimit = 30 * time.Second

// Dispatcher launches a worker invocation for a job. Implementations are
// fire-and-forget; the caller never waits on the invocation.
type Dispatcher interface {
	Dispatch(jobID string)
}

// Invoker is the worker entry point a dispatcher targets.
type Invoker interface {
	Invoke(ctx context.Context, jobID string) error
}

// GoDispatcher runs invocations as goroutines, each under the invocation
// limit. It is the in-process stand-in for the platform's fan-out call and
// the seam tests replace.
type GoDispatcher struct {
	limit time.Duration
	log   logger.Interface

	mu      sync.RWMutex
	invoker Invoker
	wg      sync.WaitGroup
}

// NewGoDispatcher builds a dispatcher with the given per-invocation limit;
// zero applies DefaultInvocationLimit.
func NewGoDispatcher(limit time.Duration, log logger.Interface) *GoDispatcher {
	if limit <= 0 {
		limit = DefaultInvocationLimit
	}

	return &GoDispatcher{
		limit: limit,
		log:   log.WithComponent("dispatcher"),
	}
}

// Bind attaches the worker entry point. The dispatcher and runner reference
// each other, so the runner is bound after construction.
func (d *GoDispatcher) Bind(invoker Invoker) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.invoker = invoker
}

// Dispatch launches one invocation for the job.
func (d *GoDispatcher) Dispatch(jobID string) {
	d.mu.RLock()
	invoker := d.invoker
	d.mu.RUnlock()

	if invoker == nil {
		d.log.Error("dispatch before Bind", "job_id", jobID)
		return
	}

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.limit)
		defer cancel()

		if err := invoker.Invoke(ctx, jobID); err != nil {
			d.log.Error("worker invocation failed", "job_id", jobID, "error", err)
		}
	}()
}

// Wait blocks until every dispatched invocation, including chained
// re-dispatches, has returned. Used during shutdown and by tests.
func (d *GoDispatcher) Wait() {
	d.wg.Wait()
}
