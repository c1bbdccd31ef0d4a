// Package testutils provides shared testing utilities across the application.
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/kv"
)

// NewStore returns a KV store backed by an in-process Redis that is torn
// down with the test.
func NewStore(t *testing.T) *kv.RedisStore {
	t.Helper()

	store, _ := NewStoreWithMini(t)

	return store
}

// NewStoreWithMini also exposes the miniredis instance for tests that need
// clock control or key inspection.
func NewStoreWithMini(t *testing.T) (*kv.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := kv.NewRedisStoreWithClient(client, time.Second)
	t.Cleanup(func() {
		store.Close()
	})

	return store, mr
}

// SeedJob writes a running job's meta hash so that frontier and worker tests
// have a job to operate on. Returns the stored meta.
func SeedJob(t *testing.T, store kv.Store, jobID, seedURL string, opts domain.JobOptions) domain.JobMeta {
	t.Helper()

	meta := domain.JobMeta{
		ID:        jobID,
		URL:       seedURL,
		Status:    domain.JobStatusRunning,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	encoded, err := opts.Encode()
	require.NoError(t, err)
	meta.OptionsJSON = encoded

	pairs := kv.Pairs(meta.ToHash())
	require.NoError(t, store.HashSet(context.Background(), kv.JobMetaKey(jobID), pairs...))

	return meta
}
