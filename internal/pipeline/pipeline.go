package pipeline

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
	"github.com/jonesrussell/docspasta/internal/retry"
)

// Robots gates fetches against per-host robots.txt rules.
type Robots interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}

// Config wires one job's pipeline.
type Config struct {
	Store     kv.Store
	Events    *events.Log
	Frontier  *frontier.Frontier
	Robots    Robots
	Fetcher   *Fetcher
	Metrics   *metrics.Metrics
	Logger    logger.Interface
	JobID     string
	Options   domain.JobOptions
	CreatedAt time.Time

	// Policy overrides the crawl retry policy when its Attempts map is
	// non-nil. Tests use this to shrink backoff delays.
	Policy retry.Policy
}

// Pipeline processes frontier entries for one job: claim, fetch, extract,
// convert, score, persist, harvest, and emit events. A page failure never
// propagates past Process; only store errors do.
type Pipeline struct {
	store     kv.Store
	events    *events.Log
	frontier  *frontier.Frontier
	robots    Robots
	fetcher   *Fetcher
	stats     *metrics.Metrics
	log       logger.Interface
	policy    retry.Policy
	jobID     string
	opts      domain.JobOptions
	createdAt time.Time
}

// New builds a job's pipeline.
func New(cfg Config) *Pipeline {
	policy := cfg.Policy
	if policy.Attempts == nil {
		policy = retry.CrawlPolicy()
	}

	return &Pipeline{
		store:     cfg.Store,
		events:    cfg.Events,
		frontier:  cfg.Frontier,
		robots:    cfg.Robots,
		fetcher:   cfg.Fetcher,
		stats:     cfg.Metrics,
		log:       cfg.Logger.WithComponent("pipeline").WithJob(cfg.JobID),
		policy:    policy,
		jobID:     cfg.JobID,
		opts:      cfg.Options,
		createdAt: cfg.CreatedAt,
	}
}

// Process runs the full pipeline for one frontier entry. The claim set makes
// the pending-to-fetching transition exclusive: a second worker popping the
// same URL returns without appending events.
func (p *Pipeline) Process(ctx context.Context, entry domain.FrontierEntry) error {
	started := time.Now()

	claimed, err := p.store.AtomicSetAdd(ctx, kv.ClaimKey(p.jobID), entry.URL)
	if err != nil {
		return err
	}

	if claimed == 0 {
		p.log.Debug("url already claimed", "url", entry.URL)
		return nil
	}

	record, err := p.loadRecord(ctx, entry)
	if err != nil {
		return err
	}

	record.Status = domain.PageStatusFetching
	record.Attempts++

	if err := p.saveRecord(ctx, record); err != nil {
		return err
	}

	if p.opts.RespectRobots {
		if proceed := p.robotsGate(ctx, record); !proceed {
			return nil
		}
	}

	p.append(ctx, events.TypeURLStarted, events.URLStartedPayload{URL: entry.URL})

	var result *FetchResult

	fetchErr := p.policy.Do(ctx, func() error {
		res, doErr := p.fetcher.Fetch(ctx, entry.URL)
		result = res

		return doErr
	})

	if result != nil {
		record.HTTPStatus = result.StatusCode
	}

	if fetchErr != nil {
		return p.fail(ctx, record, fetchErr, started)
	}

	extracted, err := Extract(result.Body, entry.URL, p.opts.MaxLinksPerPage)
	if err != nil {
		return p.fail(ctx, record, err, started)
	}

	markdown, err := ToMarkdown(extracted.ContentHTML, entry.URL)
	if err != nil {
		return p.fail(ctx, record, err, started)
	}

	score := Score(markdown, entry.URL)

	now := time.Now().UTC()
	record.Status = domain.PageStatusCrawled
	record.Title = extracted.Title
	record.Content = markdown
	record.QualityScore = score
	record.WordCount = WordCount(markdown)
	record.CrawledAt = &now

	if err := p.saveRecord(ctx, record); err != nil {
		return err
	}

	if err := p.incrTotal(ctx, domain.TotalProcessed); err != nil {
		return err
	}

	p.stats.PagesCrawled.Inc()
	p.stats.QualityScore.Observe(float64(score))
	p.stats.PageDuration.Observe(time.Since(started).Seconds())

	if score >= p.opts.QualityThreshold {
		p.append(ctx, events.TypeSentToProcessing, events.SentToProcessingPayload{
			URL:          entry.URL,
			QualityScore: score,
		})
	}

	queued := p.harvest(ctx, entry, extracted.Links)

	p.append(ctx, events.TypeURLCrawled, events.URLCrawledPayload{
		URL:           entry.URL,
		Success:       true,
		ContentLength: len(markdown),
		QualityScore:  score,
	})

	discovered := p.readTotal(ctx, domain.TotalDiscovered)
	p.append(ctx, events.TypeURLsDiscovered, events.URLsDiscoveredPayload{
		SourceURL:       entry.URL,
		Count:           queued,
		TotalDiscovered: discovered,
	})

	p.progress(ctx)

	return nil
}

// robotsGate checks the robots rules for the record's URL. Returns false when
// the page was skipped; rule-lookup failures default to allow.
func (p *Pipeline) robotsGate(ctx context.Context, record *domain.PageRecord) bool {
	allowed, err := p.robots.Allowed(ctx, record.URL)
	if err != nil {
		p.log.Debug("robots lookup failed, allowing", "url", record.URL, "error", err)
		return true
	}

	if !allowed {
		p.skip(ctx, record, "disallowed by robots.txt")
		return false
	}

	if delay := p.robots.CrawlDelay(ctx, record.URL); delay > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}

	return true
}

// harvest submits discovered links back through the frontier at depth+1 and
// returns how many were newly queued. Once the page budget is hit the
// remaining links are dropped without further store round-trips.
func (p *Pipeline) harvest(ctx context.Context, entry domain.FrontierEntry, links []string) int {
	if p.opts.MaxLinksPerPage <= 0 || entry.Depth+1 > p.opts.MaxDepth {
		return 0
	}

	queued := 0

	for _, link := range links {
		verdict, err := p.frontier.TryEnqueue(ctx, link, entry.Depth+1, entry.URL)
		if err != nil {
			p.log.Warn("enqueue failed", "url", link, "error", err)
			continue
		}

		if verdict == frontier.VerdictQueued {
			queued++
			p.stats.URLsDiscovered.Inc()
		}

		if verdict == frontier.VerdictCapacity {
			break
		}
	}

	return queued
}

// fail marks the record errored and emits url_failed. Page-scoped failures
// are absorbed here so the batch loop keeps going.
func (p *Pipeline) fail(ctx context.Context, record *domain.PageRecord, cause error, started time.Time) error {
	record.Status = domain.PageStatusError
	record.ErrorMessage = cause.Error()

	if err := p.saveRecord(ctx, record); err != nil {
		return err
	}

	if err := p.incrTotal(ctx, domain.TotalFailed); err != nil {
		return err
	}

	p.stats.PagesFailed.WithLabelValues(string(domain.KindOf(cause))).Inc()
	p.stats.PageDuration.Observe(time.Since(started).Seconds())

	p.append(ctx, events.TypeURLFailed, events.URLFailedPayload{
		URL:   record.URL,
		Error: cause.Error(),
	})

	p.progress(ctx)

	return nil
}

// skip marks the record skipped without emitting a failure event.
func (p *Pipeline) skip(ctx context.Context, record *domain.PageRecord, reason string) {
	record.Status = domain.PageStatusSkipped
	record.ErrorMessage = reason

	if err := p.saveRecord(ctx, record); err != nil {
		p.log.Warn("failed to persist skipped page", "url", record.URL, "error", err)
	}

	if err := p.incrTotal(ctx, domain.TotalSkipped); err != nil {
		p.log.Warn("failed to count skipped page", "url", record.URL, "error", err)
	}

	p.append(ctx, events.TypeURLFailed, events.URLFailedPayload{
		URL:   record.URL,
		Error: reason,
	})
}

func (p *Pipeline) progress(ctx context.Context) {
	p.append(ctx, events.TypeProgress, events.ProgressPayload{
		Processed:  p.readTotal(ctx, domain.TotalProcessed),
		Discovered: p.readTotal(ctx, domain.TotalDiscovered),
		ElapsedSec: int64(time.Since(p.createdAt).Seconds()),
	})
}

// loadRecord reads the page record created at enqueue time, reconstructing it
// from the entry if the hash write was lost.
func (p *Pipeline) loadRecord(ctx context.Context, entry domain.FrontierEntry) (*domain.PageRecord, error) {
	raw, found, err := p.store.HashGet(ctx, kv.PagesKey(p.jobID), entry.URL)
	if err != nil {
		return nil, err
	}

	if !found {
		return &domain.PageRecord{
			JobID:        p.jobID,
			URL:          entry.URL,
			Status:       domain.PageStatusPending,
			Depth:        entry.Depth,
			ParentURL:    entry.ParentURL,
			DiscoveredAt: time.Now().UTC(),
		}, nil
	}

	return domain.DecodePage(raw)
}

func (p *Pipeline) saveRecord(ctx context.Context, record *domain.PageRecord) error {
	encoded, err := domain.EncodePage(record)
	if err != nil {
		return err
	}

	return p.store.HashSet(ctx, kv.PagesKey(p.jobID), record.URL, encoded)
}

// append writes an event, logging instead of propagating failures: a dropped
// event must not fail the page.
func (p *Pipeline) append(ctx context.Context, eventType events.Type, payload any) {
	if _, err := p.events.Append(ctx, p.jobID, eventType, payload); err != nil {
		p.log.Warn("event append failed", "type", string(eventType), "error", err)
	}
}

func (p *Pipeline) incrTotal(ctx context.Context, field string) error {
	_, err := p.store.HashIncrBy(ctx, kv.JobMetaKey(p.jobID), field, 1)

	return err
}

func (p *Pipeline) readTotal(ctx context.Context, field string) int64 {
	raw, found, err := p.store.HashGet(ctx, kv.JobMetaKey(p.jobID), field)
	if err != nil || !found {
		return 0
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	return value
}
