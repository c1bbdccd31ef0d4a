package events

import (
	"context"
	"time"

	"github.com/jonesrussell/docspasta/internal/kv"
)

// completionLockTTL bounds how long a crashed completer can hold the lock.
const completionLockTTL = 10 * time.Second

// lockMember is the single member of the completion lock set.
const lockMember = "completing"

// AcquireCompletion takes the per-job single-writer completion lock. Exactly
// one caller observes true until the lock is released or its TTL lapses; only
// that caller may append a terminal event.
func (l *Log) AcquireCompletion(ctx context.Context, jobID string) (bool, error) {
	added, err := l.store.AtomicSetAdd(ctx, kv.CompletingKey(jobID), lockMember)
	if err != nil {
		return false, err
	}

	if added == 0 {
		return false, nil
	}

	if err := l.store.KeyExpire(ctx, kv.CompletingKey(jobID), completionLockTTL); err != nil {
		// The lock still works; it just will not self-expire if we crash.
		l.log.Warn("failed to set completion lock ttl", "job_id", jobID, "error", err)
	}

	return true, nil
}

// ReleaseCompletion drops the completion lock.
func (l *Log) ReleaseCompletion(ctx context.Context, jobID string) error {
	return l.store.Delete(ctx, kv.CompletingKey(jobID))
}
