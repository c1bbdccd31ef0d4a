package frontier

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// Verdict is the outcome of a tryEnqueue call.
type Verdict string

const (
	// VerdictQueued means the URL was new, in scope, and is now on the queue.
	VerdictQueued Verdict = "queued"
	// VerdictDuplicate means a permutation of the URL was already visited.
	VerdictDuplicate Verdict = "duplicate"
	// VerdictFiltered means the URL failed the documentation or scope filter.
	VerdictFiltered Verdict = "filtered"
	// VerdictInvalid means the URL could not be parsed.
	VerdictInvalid Verdict = "invalid"
	// VerdictDepth means the URL lies beyond the job's depth limit.
	VerdictDepth Verdict = "depth"
	// VerdictCapacity means the job already discovered its page budget.
	VerdictCapacity Verdict = "capacity"
)

// Frontier manages one job's pending URL queue and visited set. Dedup
// correctness rests on the KV store's atomic set add; the in-process seen
// map only short-circuits repeat checks within a single worker invocation.
type Frontier struct {
	store kv.Store
	log   logger.Interface
	jobID string
	opts  domain.JobOptions
	scope *Scope

	mu   sync.RWMutex
	seen map[string]struct{}
}

// New builds a Frontier for one job.
func New(store kv.Store, log logger.Interface, jobID string, opts domain.JobOptions, scope *Scope) *Frontier {
	return &Frontier{
		store: store,
		log:   log.WithComponent("frontier").WithJob(jobID),
		jobID: jobID,
		opts:  opts,
		scope: scope,
		seen:  make(map[string]struct{}),
	}
}

// TryEnqueue submits a candidate URL. It normalizes, filters, dedups against
// the visited set, enforces depth and page budgets, and on success pushes a
// FrontierEntry and creates its pending page record. Totals counters are
// updated for every outcome: duplicate spellings count into the skipped
// total, and the discovered counter never exceeds the page budget.
func (f *Frontier) TryEnqueue(ctx context.Context, rawURL string, depth int, parentURL string) (Verdict, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		if incErr := f.incrTotal(ctx, domain.TotalSkipped); incErr != nil {
			return VerdictInvalid, incErr
		}

		return VerdictInvalid, nil
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		if incErr := f.incrTotal(ctx, domain.TotalSkipped); incErr != nil {
			return VerdictInvalid, incErr
		}

		return VerdictInvalid, nil
	}

	if !IsDocumentationPath(parsed.Path) || !f.scope.Allows(parsed) {
		if incErr := f.incrTotal(ctx, domain.TotalFiltered); incErr != nil {
			return VerdictFiltered, incErr
		}

		return VerdictFiltered, nil
	}

	if depth > f.opts.MaxDepth {
		if incErr := f.incrTotal(ctx, domain.TotalSkipped); incErr != nil {
			return VerdictDepth, incErr
		}

		return VerdictDepth, nil
	}

	if f.seenLocally(normalized) {
		if incErr := f.incrTotal(ctx, domain.TotalSkipped); incErr != nil {
			return VerdictDuplicate, incErr
		}

		return VerdictDuplicate, nil
	}

	perms, err := Permutations(normalized)
	if err != nil {
		return VerdictInvalid, err
	}

	added, err := f.store.AtomicSetAdd(ctx, kv.VisitedKey(f.jobID), perms...)
	if err != nil {
		return VerdictInvalid, err
	}

	f.markSeen(normalized)

	if added != int64(len(perms)) {
		// Some permutation was already visited: another spelling of this URL
		// went through before us.
		if incErr := f.incrTotal(ctx, domain.TotalSkipped); incErr != nil {
			return VerdictDuplicate, incErr
		}

		return VerdictDuplicate, nil
	}

	discovered, err := f.store.HashIncrBy(ctx, kv.JobMetaKey(f.jobID), domain.TotalDiscovered, 1)
	if err != nil {
		return VerdictInvalid, err
	}

	if discovered > int64(f.opts.MaxPages) {
		// Roll the increment back so discovered stays within the page budget.
		if _, decErr := f.store.HashIncrBy(ctx, kv.JobMetaKey(f.jobID), domain.TotalDiscovered, -1); decErr != nil {
			return VerdictCapacity, decErr
		}

		if incErr := f.incrTotal(ctx, domain.TotalSkipped); incErr != nil {
			return VerdictCapacity, incErr
		}

		return VerdictCapacity, nil
	}

	if err := f.push(ctx, normalized, depth, parentURL); err != nil {
		return VerdictInvalid, err
	}

	return VerdictQueued, nil
}

// push writes the pending page record and the queue entry, then bumps the
// queued counter.
func (f *Frontier) push(ctx context.Context, normalized string, depth int, parentURL string) error {
	record := domain.PageRecord{
		ID:           uuid.NewString(),
		JobID:        f.jobID,
		URL:          normalized,
		Status:       domain.PageStatusPending,
		Depth:        depth,
		ParentURL:    parentURL,
		DiscoveredAt: time.Now().UTC(),
	}

	encoded, err := domain.EncodePage(&record)
	if err != nil {
		return err
	}

	if err := f.store.HashSet(ctx, kv.PagesKey(f.jobID), normalized, encoded); err != nil {
		return err
	}

	entry, err := domain.EncodeFrontierEntry(domain.FrontierEntry{
		URL:       normalized,
		Depth:     depth,
		ParentURL: parentURL,
	})
	if err != nil {
		return err
	}

	if err := f.store.ListPush(ctx, kv.FrontierKey(f.jobID), entry); err != nil {
		return err
	}

	return f.incrTotal(ctx, domain.TotalQueued)
}

// Dequeue pops the next pending entry, if any.
func (f *Frontier) Dequeue(ctx context.Context) (domain.FrontierEntry, bool, error) {
	raw, found, err := f.store.ListPop(ctx, kv.FrontierKey(f.jobID))
	if err != nil || !found {
		return domain.FrontierEntry{}, false, err
	}

	entry, err := domain.DecodeFrontierEntry(raw)
	if err != nil {
		f.log.Warn("dropping undecodable frontier entry", "raw", raw, "error", err)
		return domain.FrontierEntry{}, false, nil
	}

	return entry, true, nil
}

// IsEmpty reports whether the queue holds no entries.
func (f *Frontier) IsEmpty(ctx context.Context) (bool, error) {
	length, err := f.store.ListLen(ctx, kv.FrontierKey(f.jobID))
	if err != nil {
		return false, err
	}

	return length == 0, nil
}

func (f *Frontier) seenLocally(normalized string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.seen[normalized]

	return ok
}

func (f *Frontier) markSeen(normalized string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen[normalized] = struct{}{}
}

func (f *Frontier) incrTotal(ctx context.Context, field string) error {
	_, err := f.store.HashIncrBy(ctx, kv.JobMetaKey(f.jobID), field, 1)

	return err
}
