package events_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/logger"
	"github.com/jonesrussell/docspasta/testutils"
)

func TestAcquireCompletionSingleWriter(t *testing.T) {
	store := testutils.NewStore(t)
	log := events.NewLog(store, logger.NewNoOp())
	ctx := context.Background()

	acquired, err := log.AcquireCompletion(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, acquired)

	again, err := log.AcquireCompletion(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, again, "second acquire must lose")

	// Another job's lock is independent.
	other, err := log.AcquireCompletion(ctx, "job-2")
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, log.ReleaseCompletion(ctx, "job-1"))

	reacquired, err := log.AcquireCompletion(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, reacquired, "lock must be free after release")
}

func TestAcquireCompletionConcurrent(t *testing.T) {
	store := testutils.NewStore(t)
	log := events.NewLog(store, logger.NewNoOp())

	const contenders = 10

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, err := log.AcquireCompletion(context.Background(), "job-race")
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, wins, "exactly one contender may win the lock")
}
