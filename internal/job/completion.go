package job

import (
	"context"
	"time"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/kv"
)

// CheckCompletion decides whether a job is done and, holding the completion
// lock, performs the terminal transition. It is idempotent and safe to call
// from every worker exit and from the reaper: losing the lock or failing any
// pre-condition leaves the job untouched.
func (s *Service) CheckCompletion(ctx context.Context, jobID string) error {
	meta, err := s.State(ctx, jobID)
	if err != nil {
		if err == ErrNotFound {
			// Keys expired; drop the index entry if it lingers.
			return s.store.SetRemove(ctx, kv.ActiveJobsKey, jobID)
		}

		return err
	}

	if meta.Status.IsTerminal() {
		return nil
	}

	opts, err := meta.Options()
	if err != nil {
		return err
	}

	if meta.Age(time.Now().UTC()) > opts.JobTimeout {
		return s.timeout(ctx, jobID, meta)
	}

	done, err := s.crawlDone(ctx, jobID, meta)
	if err != nil || !done {
		return err
	}

	acquired, err := s.events.AcquireCompletion(ctx, jobID)
	if err != nil {
		return err
	}

	if !acquired {
		return nil
	}
	defer s.releaseLock(ctx, jobID)

	// Re-check everything under the lock: a worker may have re-filled the
	// frontier or finished the job between the first check and the acquire.
	meta, err = s.State(ctx, jobID)
	if err != nil {
		return err
	}

	if meta.Status.IsTerminal() {
		return nil
	}

	done, err = s.crawlDone(ctx, jobID, meta)
	if err != nil || !done {
		return err
	}

	if err := s.assembleResult(ctx, jobID, opts.QualityThreshold); err != nil {
		return err
	}

	return s.finalize(ctx, meta, domain.JobStatusCompleted, "",
		events.TypeJobCompleted, events.JobCompletedPayload{
			TotalProcessed:  meta.TotalsProcessed,
			TotalDiscovered: meta.TotalsDiscovered,
			Timestamp:       time.Now().UTC(),
		})
}

// crawlDone reports whether the frontier drained, every worker exited, and
// seeding finished.
func (s *Service) crawlDone(ctx context.Context, jobID string, meta *domain.JobMeta) (bool, error) {
	if !meta.DiscoveryComplete {
		return false, nil
	}

	pending, err := s.store.ListLen(ctx, kv.FrontierKey(jobID))
	if err != nil {
		return false, err
	}

	if pending > 0 {
		return false, nil
	}

	workers, err := s.store.CounterGet(ctx, kv.WorkersKey(jobID))
	if err != nil {
		return false, err
	}

	return workers == 0, nil
}

// timeout moves an overrunning job to the timeout status under the lock.
func (s *Service) timeout(ctx context.Context, jobID string, meta *domain.JobMeta) error {
	acquired, err := s.events.AcquireCompletion(ctx, jobID)
	if err != nil {
		return err
	}

	if !acquired {
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

	elapsed := int64(meta.Age(time.Now().UTC()).Seconds())

	s.log.Warn("job timed out", "job_id", jobID, "elapsed_sec", elapsed)

	return s.finalize(ctx, meta, domain.JobStatusTimeout, "job timeout exceeded",
		events.TypeJobTimeout, events.JobTimeoutPayload{ElapsedSec: elapsed})
}

// finalize performs the terminal transition: status fields, the terminal
// event, the active-index removal, and the job metrics. Callers hold the
// completion lock.
func (s *Service) finalize(ctx context.Context, meta *domain.JobMeta, status domain.JobStatus, reason string, eventType events.Type, payload any) error {
	now := time.Now().UTC()

	fields := []string{
		domain.MetaFieldStatus, string(status),
		domain.MetaFieldUpdatedAt, now.Format(time.RFC3339Nano),
		domain.MetaFieldCompletedAt, now.Format(time.RFC3339Nano),
	}

	if reason != "" {
		fields = append(fields, domain.MetaFieldError, reason)
	}

	if err := s.store.HashSet(ctx, kv.JobMetaKey(meta.ID), fields...); err != nil {
		return err
	}

	s.expireJobKeys(ctx, meta.ID)

	if _, err := s.events.Append(ctx, meta.ID, eventType, payload); err != nil {
		return err
	}

	if err := s.store.SetRemove(ctx, kv.ActiveJobsKey, meta.ID); err != nil {
		s.log.Warn("failed to drop job from active index", "job_id", meta.ID, "error", err)
	}

	s.stats.ActiveJobs.Dec()
	s.stats.JobDuration.Observe(now.Sub(meta.CreatedAt).Seconds())

	s.log.Info("job finalized", "job_id", meta.ID, "status", string(status))

	return nil
}

func (s *Service) releaseLock(ctx context.Context, jobID string) {
	if err := s.events.ReleaseCompletion(ctx, jobID); err != nil {
		s.log.Warn("failed to release completion lock", "job_id", jobID, "error", err)
	}
}
