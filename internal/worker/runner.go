package worker

import (
	"context"
	"strconv"
	"time"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/frontier"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
	"github.com/jonesrussell/docspasta/internal/metrics"
	"github.com/jonesrussell/docspasta/internal/pipeline"
	"github.com/jonesrussell/docspasta/internal/retry"
)

// decrementTimeout bounds the worker-counter decrement that must run even
// when the invocation context is already done.
const decrementTimeout = 5 * time.Second

// Completer closes out a job once its frontier drains and the last worker
// exits.
type Completer interface {
	CheckCompletion(ctx context.Context, jobID string) error
}

// Config wires a Runner.
type Config struct {
	Store      kv.Store
	Events     *events.Log
	Metrics    *metrics.Metrics
	Logger     logger.Interface
	Robots     pipeline.Robots
	Dispatcher Dispatcher
	Completer  Completer

	// RetryPolicy overrides the pipeline retry policy when its Attempts map
	// is non-nil.
	RetryPolicy retry.Policy
}

// Runner executes worker invocations. Each invocation takes a worker slot
// guarded by the shared counter, processes up to batchCount frontier entries
// within its time budget, then either re-dispatches itself or, as the last
// worker out, triggers completion detection.
type Runner struct {
	store      kv.Store
	events     *events.Log
	stats      *metrics.Metrics
	log        logger.Interface
	robots     pipeline.Robots
	dispatcher Dispatcher
	completer  Completer
	policy     retry.Policy
}

// NewRunner builds the invocation runner.
func NewRunner(cfg Config) *Runner {
	return &Runner{
		store:      cfg.Store,
		events:     cfg.Events,
		stats:      cfg.Metrics,
		log:        cfg.Logger.WithComponent("worker"),
		robots:     cfg.Robots,
		dispatcher: cfg.Dispatcher,
		completer:  cfg.Completer,
		policy:     cfg.RetryPolicy,
	}
}

// Invoke runs one worker invocation for a job. The counter increment here
// and the single decrement on exit are the only mutations of the worker
// slot; no exit path skips the decrement.
func (r *Runner) Invoke(ctx context.Context, jobID string) error {
	log := r.log.WithJob(jobID)

	meta, err := r.loadMeta(ctx, jobID)
	if err != nil {
		return err
	}

	if meta.Status.IsTerminal() {
		return nil
	}

	opts, err := meta.Options()
	if err != nil {
		return err
	}

	active, err := r.store.CounterIncr(ctx, kv.WorkersKey(jobID), 1)
	if err != nil {
		return err
	}

	if active > int64(opts.MaxWorkers) {
		if _, decErr := r.store.CounterIncr(ctx, kv.WorkersKey(jobID), -1); decErr != nil {
			return decErr
		}

		log.Debug("worker slot full", "active", active)

		return nil
	}

	r.stats.ActiveWorkers.Inc()

	// decrement releases the slot exactly once and reports the remaining
	// worker count. It must succeed even if ctx expired mid-batch.
	var remaining int64 = -1

	decremented := false
	decrement := func() int64 {
		if decremented {
			return remaining
		}

		decremented = true
		r.stats.ActiveWorkers.Dec()

		decCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), decrementTimeout)
		defer cancel()

		value, decErr := r.store.CounterIncr(decCtx, kv.WorkersKey(jobID), -1)
		if decErr != nil {
			log.Error("worker counter decrement failed", "error", decErr)
			return remaining
		}

		remaining = value

		return remaining
	}
	defer decrement()

	scope, err := frontier.NewScope(meta.URL, opts)
	if err != nil {
		return err
	}

	front := frontier.New(r.store, r.log, jobID, opts, scope)

	pipe := pipeline.New(pipeline.Config{
		Store:     r.store,
		Events:    r.events,
		Frontier:  front,
		Robots:    r.robots,
		Fetcher:   pipeline.NewFetcher(opts.PageTimeout),
		Metrics:   r.stats,
		Logger:    r.log,
		JobID:     jobID,
		Options:   opts,
		CreatedAt: meta.CreatedAt,
		Policy:    r.policy,
	})

	terminal := r.runBatch(ctx, log, jobID, meta, opts, front, pipe)
	if terminal {
		// A cancelled or otherwise terminal job gets no re-dispatch.
		return nil
	}

	empty, err := front.IsEmpty(ctx)
	if err != nil {
		return err
	}

	if !empty {
		decrement()
		r.dispatcher.Dispatch(jobID)

		return nil
	}

	if left := decrement(); left == 0 {
		return r.completer.CheckCompletion(context.WithoutCancel(ctx), jobID)
	}

	return nil
}

// runBatch processes up to batchCount entries within the invocation's time
// budget. Returns true when the job turned terminal mid-batch.
func (r *Runner) runBatch(
	ctx context.Context,
	log logger.Interface,
	jobID string,
	meta *domain.JobMeta,
	opts domain.JobOptions,
	front *frontier.Frontier,
	pipe *pipeline.Pipeline,
) bool {
	start := time.Now()
	hardDeadline, hasDeadline := ctx.Deadline()

	for i := 0; i < opts.BatchCount; i++ {
		if ctx.Err() != nil {
			return false
		}

		if status := r.jobStatus(ctx, jobID); status.IsTerminal() {
			log.Debug("job terminal, stopping batch", "status", string(status))
			return true
		}

		entry, ok, err := front.Dequeue(ctx)
		if err != nil {
			log.Error("dequeue failed", "error", err)
			return false
		}

		if !ok {
			return false
		}

		if err := pipe.Process(ctx, entry); err != nil {
			// Store-level failure; the page stays claimed and is not retried.
			log.Error("pipeline aborted", "url", entry.URL, "error", err)
		}

		r.appendTimeUpdate(ctx, jobID, meta)

		if time.Since(start) > opts.SoftDeadline {
			log.Debug("soft deadline reached", "elapsed", time.Since(start).String())
			return false
		}

		if hasDeadline && time.Until(hardDeadline) < domain.DefaultReinvokeMargin {
			log.Debug("approaching invocation deadline")
			return false
		}
	}

	return false
}

// appendTimeUpdate emits the per-turn time_update event.
func (r *Runner) appendTimeUpdate(ctx context.Context, jobID string, meta *domain.JobMeta) {
	payload := events.ProgressPayload{
		Processed:  r.readTotal(ctx, jobID, domain.TotalProcessed),
		Discovered: r.readTotal(ctx, jobID, domain.TotalDiscovered),
		ElapsedSec: int64(time.Since(meta.CreatedAt).Seconds()),
	}

	if _, err := r.events.Append(ctx, jobID, events.TypeTimeUpdate, payload); err != nil {
		r.log.WithJob(jobID).Warn("time_update append failed", "error", err)
	}
}

func (r *Runner) loadMeta(ctx context.Context, jobID string) (*domain.JobMeta, error) {
	fields, err := r.store.HashGetAll(ctx, kv.JobMetaKey(jobID))
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, domain.NewError(domain.KindFatal, "unknown job "+jobID)
	}

	return domain.MetaFromHash(fields)
}

// jobStatus reads the current status; lookup failures report running so the
// worker keeps going and the next check decides.
func (r *Runner) jobStatus(ctx context.Context, jobID string) domain.JobStatus {
	raw, found, err := r.store.HashGet(ctx, kv.JobMetaKey(jobID), domain.MetaFieldStatus)
	if err != nil || !found {
		return domain.JobStatusRunning
	}

	return domain.JobStatus(raw)
}

func (r *Runner) readTotal(ctx context.Context, jobID, field string) int64 {
	raw, found, err := r.store.HashGet(ctx, kv.JobMetaKey(jobID), field)
	if err != nil || !found {
		return 0
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	return value
}
