// Package job is the crawl job controller: creation, state, cancellation,
// download, completion detection, and result assembly.
package job

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/frontier"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
	"github.com/jonesrussell/docspasta/internal/metrics"
	"github.com/jonesrussell/docspasta/internal/worker"
)

// jobTTL is how long a job's keys outlive its creation.
const jobTTL = 24 * time.Hour

// Service errors surfaced to the HTTP layer.
var (
	// ErrNotFound means no job with that id exists (or its keys expired).
	ErrNotFound = errors.New("job not found")
	// ErrNotReady means the result was requested before the job completed.
	ErrNotReady = errors.New("job result not ready")
)

// Seeder provides candidate page URLs for a host ahead of the crawl.
type Seeder interface {
	Discover(ctx context.Context, seedURL string, maxURLs int) []string
}

// Config wires the job service.
type Config struct {
	Store      kv.Store
	Events     *events.Log
	Sitemap    Seeder
	Dispatcher worker.Dispatcher
	Metrics    *metrics.Metrics
	Logger     logger.Interface

	// Caps are the server-side upper bounds applied to requested options.
	Caps domain.OptionCaps
}

// Service owns the job lifecycle. All mutations of a job's terminal state go
// through the completion lock so exactly one terminal event is ever written.
type Service struct {
	store      kv.Store
	events     *events.Log
	sitemap    Seeder
	dispatcher worker.Dispatcher
	stats      *metrics.Metrics
	log        logger.Interface
	caps       domain.OptionCaps
}

// New builds the job service.
func New(cfg Config) *Service {
	return &Service{
		store:      cfg.Store,
		events:     cfg.Events,
		sitemap:    cfg.Sitemap,
		dispatcher: cfg.Dispatcher,
		stats:      cfg.Metrics,
		log:        cfg.Logger.WithComponent("job"),
		caps:       cfg.Caps,
	}
}

// Create validates the seed, persists the job, seeds the frontier, and fans
// out the initial workers. The returned meta reflects the job as stored.
func (s *Service) Create(ctx context.Context, rawURL string, patch *domain.JobOptionsPatch) (*domain.JobMeta, error) {
	opts := patch.Resolve()
	opts.ClampTo(s.caps)

	if err := opts.Validate(); err != nil {
		return nil, domain.WrapError(domain.KindInvalidURL, "invalid job options", err)
	}

	seed, err := frontier.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	scope, err := frontier.NewScope(seed, opts)
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(seed)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidURL, "parse seed", err)
	}

	if !frontier.IsDocumentationPath(parsed.Path) || !scope.Allows(parsed) {
		return nil, domain.NewError(domain.KindInvalidURL, "seed URL rejected by crawl filters")
	}

	encoded, err := opts.Encode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meta := &domain.JobMeta{
		ID:          uuid.NewString(),
		URL:         seed,
		Status:      domain.JobStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
		OptionsJSON: encoded,
	}

	if err := s.store.HashSet(ctx, kv.JobMetaKey(meta.ID), kv.Pairs(meta.ToHash())...); err != nil {
		return nil, err
	}

	if _, err := s.store.AtomicSetAdd(ctx, kv.ActiveJobsKey, meta.ID); err != nil {
		return nil, err
	}

	if err := s.store.KeyExpire(ctx, kv.JobMetaKey(meta.ID), jobTTL); err != nil {
		s.log.Warn("failed to set job ttl", "job_id", meta.ID, "error", err)
	}

	if _, err := s.events.Append(ctx, meta.ID, events.TypeStreamConnected, events.StreamConnectedPayload{
		JobID: meta.ID,
		URL:   seed,
	}); err != nil {
		return nil, err
	}

	front := frontier.New(s.store, s.log, meta.ID, opts, scope)

	verdict, err := front.TryEnqueue(ctx, seed, 0, "")
	if err != nil {
		return nil, err
	}

	if verdict != frontier.VerdictQueued {
		return nil, domain.NewError(domain.KindInvalidURL, "seed URL rejected: "+string(verdict))
	}

	if opts.UseSitemap && s.sitemap != nil {
		s.seedFromSitemap(ctx, meta.ID, seed, opts, front)
	}

	if err := s.store.HashSet(ctx, kv.JobMetaKey(meta.ID),
		domain.MetaFieldDiscoveryComplete, "true"); err != nil {
		return nil, err
	}

	// The whole job keyspace expires together; keys the workers create later
	// are anchored again at finalize.
	s.expireJobKeys(ctx, meta.ID)

	s.stats.ActiveJobs.Inc()

	workers := opts.MaxWorkers
	if workers > domain.DefaultInitialWorkers {
		workers = domain.DefaultInitialWorkers
	}

	s.log.Info("job created", "job_id", meta.ID, "url", seed, "initial_workers", workers)

	for i := 0; i < workers; i++ {
		s.dispatcher.Dispatch(meta.ID)
	}

	return meta, nil
}

// seedFromSitemap enqueues sitemap-discovered URLs at depth 1. Each goes
// through the frontier's full filter chain, so out-of-scope or over-budget
// entries are dropped the same way harvested links are.
func (s *Service) seedFromSitemap(ctx context.Context, jobID, seed string, opts domain.JobOptions, front *frontier.Frontier) {
	urls := s.sitemap.Discover(ctx, seed, opts.MaxPages*2)

	queued := 0

	for _, u := range urls {
		verdict, err := front.TryEnqueue(ctx, u, 1, seed)
		if err != nil {
			s.log.Warn("sitemap enqueue failed", "job_id", jobID, "url", u, "error", err)
			continue
		}

		if verdict == frontier.VerdictQueued {
			queued++
		}

		if verdict == frontier.VerdictCapacity {
			break
		}
	}

	if queued > 0 {
		s.log.Info("sitemap seeded", "job_id", jobID, "queued", queued)
	}
}

// State returns the current job metadata.
func (s *Service) State(ctx context.Context, jobID string) (*domain.JobMeta, error) {
	fields, err := s.store.HashGetAll(ctx, kv.JobMetaKey(jobID))
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return domain.MetaFromHash(fields)
}

// List returns the metadata of every job on the active index. Jobs whose keys
// expired under the index are dropped from it as a side effect.
func (s *Service) List(ctx context.Context) ([]*domain.JobMeta, error) {
	ids, err := s.store.SetMembers(ctx, kv.ActiveJobsKey)
	if err != nil {
		return nil, err
	}

	metas := make([]*domain.JobMeta, 0, len(ids))

	for _, id := range ids {
		meta, err := s.State(ctx, id)
		if errors.Is(err, ErrNotFound) {
			if remErr := s.store.SetRemove(ctx, kv.ActiveJobsKey, id); remErr != nil {
				s.log.Warn("failed to drop expired job from index", "job_id", id, "error", remErr)
			}

			continue
		}

		if err != nil {
			return nil, err
		}

		metas = append(metas, meta)
	}

	return metas, nil
}

// Cancel moves a running job to cancelled under the completion lock. Calling
// it on a terminal job is a no-op; losing the lock race means another writer
// owns the terminal transition and the cancel is dropped.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	meta, err := s.State(ctx, jobID)
	if err != nil {
		return err
	}

	if meta.Status.IsTerminal() {
		return nil
	}

	acquired, err := s.events.AcquireCompletion(ctx, jobID)
	if err != nil {
		return err
	}

	if !acquired {
		s.log.Debug("cancel lost the completion lock", "job_id", jobID)
		return nil
	}
	defer s.releaseLock(ctx, jobID)

	meta, err = s.State(ctx, jobID)
	if err != nil {
		return err
	}

	if meta.Status.IsTerminal() {
		return nil
	}

	return s.finalize(ctx, meta, domain.JobStatusCancelled, "cancelled",
		events.TypeJobFailed, events.JobFailedPayload{Reason: "cancelled"})
}

// Download returns the assembled Markdown document of a completed job.
func (s *Service) Download(ctx context.Context, jobID string) (string, error) {
	meta, err := s.State(ctx, jobID)
	if err != nil {
		return "", err
	}

	if meta.Status != domain.JobStatusCompleted {
		return "", ErrNotReady
	}

	result, found, err := s.store.ValueGet(ctx, kv.ResultKey(jobID))
	if err != nil {
		return "", err
	}

	if !found {
		return "", ErrNotFound
	}

	return result, nil
}

// expireJobKeys anchors the job TTL on every per-job key that exists.
func (s *Service) expireJobKeys(ctx context.Context, jobID string) {
	for _, key := range kv.JobKeys(jobID) {
		if err := s.store.KeyExpire(ctx, key, jobTTL); err != nil {
			s.log.Warn("failed to set job ttl", "job_id", jobID, "key", key, "error", err)
		}
	}
}

// Purge removes every key of a job, including its active-index entry.
func (s *Service) Purge(ctx context.Context, jobID string) error {
	if err := s.store.Delete(ctx, kv.JobKeys(jobID)...); err != nil {
		return err
	}

	return s.store.SetRemove(ctx, kv.ActiveJobsKey, jobID)
}
