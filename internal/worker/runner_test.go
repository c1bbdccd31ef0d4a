package worker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/frontier"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
	"github.com/jonesrussell/docspasta/internal/metrics"
	"github.com/jonesrussell/docspasta/internal/retry"
	"github.com/jonesrussell/docspasta/internal/worker"
	"github.com/jonesrussell/docspasta/testutils"
)

type allowAll struct{}

func (allowAll) Allowed(context.Context, string) (bool, error)    { return true, nil }
func (allowAll) CrawlDelay(context.Context, string) time.Duration { return 0 }

// recordingDispatcher collects dispatched job ids without running anything.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []string
}

func (d *recordingDispatcher) Dispatch(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.jobs = append(d.jobs, jobID)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.jobs)
}

// recordingCompleter collects completion checks.
type recordingCompleter struct {
	mu   sync.Mutex
	jobs []string
}

func (c *recordingCompleter) CheckCompletion(_ context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.jobs = append(c.jobs, jobID)

	return nil
}

func (c *recordingCompleter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.jobs)
}

func fastRetry() retry.Policy {
	return retry.Policy{
		InitialDelay: time.Millisecond,
		Multiplier:   1,
		Attempts:     map[domain.ErrorKind]int{domain.KindTransient: 2},
	}
}

type runnerEnv struct {
	store      kv.Store
	runner     *worker.Runner
	dispatcher *recordingDispatcher
	completer  *recordingCompleter
	frontier   *frontier.Frontier
	jobID      string
}

func newRunnerEnv(t *testing.T, seedURL string, opts domain.JobOptions) *runnerEnv {
	t.Helper()

	store := testutils.NewStore(t)
	log := logger.NewNoOp()
	jobID := "job-runner"

	testutils.SeedJob(t, store, jobID, seedURL, opts)

	dispatcher := &recordingDispatcher{}
	completer := &recordingCompleter{}

	runner := worker.NewRunner(worker.Config{
		Store:       store,
		Events:      events.NewLog(store, log),
		Metrics:     metrics.NewUnregistered(),
		Logger:      log,
		Robots:      allowAll{},
		Dispatcher:  dispatcher,
		Completer:   completer,
		RetryPolicy: fastRetry(),
	})

	scope, err := frontier.NewScope(seedURL, opts)
	require.NoError(t, err)

	return &runnerEnv{
		store:      store,
		runner:     runner,
		dispatcher: dispatcher,
		completer:  completer,
		frontier:   frontier.New(store, log, jobID, opts, scope),
		jobID:      jobID,
	}
}

func (e *runnerEnv) workers(t *testing.T) int64 {
	t.Helper()

	value, err := e.store.CounterGet(context.Background(), kv.WorkersKey(e.jobID))
	require.NoError(t, err)

	return value
}

func TestInvokeDrainsFrontierAndCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><main>page</main></body></html>"))
	}))
	defer srv.Close()

	opts := domain.DefaultOptions()
	opts.RespectRobots = false

	env := newRunnerEnv(t, srv.URL+"/a", opts)
	ctx := context.Background()

	_, err := env.frontier.TryEnqueue(ctx, srv.URL+"/a", 0, "")
	require.NoError(t, err)

	require.NoError(t, env.runner.Invoke(ctx, env.jobID))

	empty, err := env.frontier.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	assert.Equal(t, 1, env.completer.count(), "last worker out must check completion")
	assert.Equal(t, 0, env.dispatcher.count(), "empty frontier must not re-dispatch")
	assert.Equal(t, int64(0), env.workers(t), "worker slot released")
}

func TestInvokeRespectsWorkerCap(t *testing.T) {
	opts := domain.DefaultOptions()
	env := newRunnerEnv(t, "https://site.test/a", opts)
	ctx := context.Background()

	// All slots taken by other invocations.
	_, err := env.store.CounterIncr(ctx, kv.WorkersKey(env.jobID), int64(opts.MaxWorkers))
	require.NoError(t, err)

	require.NoError(t, env.runner.Invoke(ctx, env.jobID))

	assert.Equal(t, int64(opts.MaxWorkers), env.workers(t), "gate exit must restore the counter")
	assert.Equal(t, 0, env.completer.count())
}

func TestInvokeRedispatchesWhenWorkRemains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><main>page</main></body></html>"))
	}))
	defer srv.Close()

	opts := domain.DefaultOptions()
	opts.RespectRobots = false
	opts.BatchCount = 1

	env := newRunnerEnv(t, srv.URL+"/a", opts)
	ctx := context.Background()

	for _, p := range []string{"/a", "/b"} {
		_, err := env.frontier.TryEnqueue(ctx, srv.URL+p, 0, "")
		require.NoError(t, err)
	}

	require.NoError(t, env.runner.Invoke(ctx, env.jobID))

	assert.Equal(t, 1, env.dispatcher.count(), "remaining work must trigger a re-dispatch")
	assert.Equal(t, 0, env.completer.count())
	assert.Equal(t, int64(0), env.workers(t))
}

func TestInvokeExitsOnCancelledJob(t *testing.T) {
	opts := domain.DefaultOptions()
	env := newRunnerEnv(t, "https://site.test/a", opts)
	ctx := context.Background()

	_, err := env.frontier.TryEnqueue(ctx, "https://site.test/a", 0, "")
	require.NoError(t, err)

	require.NoError(t, env.store.HashSet(ctx, kv.JobMetaKey(env.jobID),
		domain.MetaFieldStatus, string(domain.JobStatusCancelled)))

	require.NoError(t, env.runner.Invoke(ctx, env.jobID))

	// The entry was never popped, nothing was dispatched or completed.
	empty, err := env.frontier.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, 0, env.dispatcher.count())
	assert.Equal(t, 0, env.completer.count())
	assert.Equal(t, int64(0), env.workers(t))
}

func TestInvokeUnknownJob(t *testing.T) {
	env := newRunnerEnv(t, "https://site.test/a", domain.DefaultOptions())

	err := env.runner.Invoke(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.Equal(t, domain.KindFatal, domain.KindOf(err))
}
