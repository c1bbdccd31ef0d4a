package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docspasta/internal/api"
	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/job"
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

type syncDispatcher struct {
	runner *worker.Runner
}

func (d *syncDispatcher) Dispatch(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = d.runner.Invoke(ctx, jobID)
}

type apiEnv struct {
	store  kv.Store
	events *events.Log
	svc    *job.Service
	router *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutils.NewStore(t)
	log := logger.NewNoOp()
	registry := prometheus.NewRegistry()
	stats := metrics.New(registry)
	eventLog := events.NewLog(store, log).Instrument(stats)
	dispatcher := &syncDispatcher{}

	svc := job.New(job.Config{
		Store:      store,
		Events:     eventLog,
		Dispatcher: dispatcher,
		Metrics:    stats,
		Logger:     log,
	})

	dispatcher.runner = worker.NewRunner(worker.Config{
		Store:      store,
		Events:     eventLog,
		Metrics:    stats,
		Logger:     log,
		Robots:     allowAll{},
		Dispatcher: dispatcher,
		Completer:  svc,
		RetryPolicy: retry.Policy{
			InitialDelay: time.Millisecond,
			Multiplier:   1,
			Attempts:     map[domain.ErrorKind]int{domain.KindTransient: 2},
		},
	})

	router := api.NewRouter(api.Config{
		Jobs:     svc,
		Events:   eventLog,
		Store:    store,
		Logger:   log,
		Version:  "test",
		Gatherer: registry,
	})

	return &apiEnv{store: store, events: eventLog, svc: svc, router: router}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func docServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><title>Guide</title></head><body><main>
<h1>Guide</h1><p>API documentation guide content.</p></main></body></html>`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestCreateJobEndToEnd(t *testing.T) {
	env := newAPIEnv(t)
	srv := docServer(t)

	rec := env.do(t, http.MethodPost, "/jobs", gin.H{
		"url": srv.URL + "/docs/start",
		"options": gin.H{
			"respectRobots": false,
			"useSitemap":    false,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created api.CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.JobID)
	assert.Equal(t, created.ID, created.JobID)
	assert.Equal(t, "/jobs/"+created.JobID+"/stream", created.StreamURL)

	rec = env.do(t, http.MethodGet, "/jobs/"+created.JobID+"/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state api.JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, string(domain.JobStatusCompleted), state.Status)
	assert.Equal(t, int64(1), state.Totals.Processed)
	assert.NotEmpty(t, state.LastEventID, "state snapshot carries the stream resume point")

	rec = env.do(t, http.MethodGet, "/jobs/"+created.JobID+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "## Guide")
}

func TestCreateJobRejectsBadRequests(t *testing.T) {
	env := newAPIEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing url", gin.H{}},
		{"unparseable url", gin.H{"url": "not a url"}},
		{"non-http scheme", gin.H{"url": "ftp://example.com/docs"}},
		{"asset url", gin.H{"url": "https://example.com/logo.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestJobStateNotFound(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/jobs/nope/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadBeforeCompletionConflicts(t *testing.T) {
	env := newAPIEnv(t)

	testutils.SeedJob(t, env.store, "job-running", "https://site.test/docs", domain.DefaultOptions())

	rec := env.do(t, http.MethodGet, "/jobs/job-running/download", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelJob(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	testutils.SeedJob(t, env.store, "job-cancel", "https://site.test/docs", domain.DefaultOptions())
	_, err := env.store.AtomicSetAdd(ctx, kv.ActiveJobsKey, "job-cancel")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/jobs/job-cancel/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	meta, err := env.svc.State(ctx, "job-cancel")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, meta.Status)
}

func TestListJobs(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	testutils.SeedJob(t, env.store, "job-a", "https://site.test/docs", domain.DefaultOptions())
	_, err := env.store.AtomicSetAdd(ctx, kv.ActiveJobsKey, "job-a")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Jobs  []api.JobResponse `json:"jobs"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)
	require.Len(t, listing.Jobs, 1)
	assert.Equal(t, "job-a", listing.Jobs[0].ID)
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "docspasta", health["service"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	srv := docServer(t)

	rec := env.do(t, http.MethodPost, "/jobs", gin.H{
		"url":     srv.URL + "/docs/a",
		"options": gin.H{"respectRobots": false, "useSitemap": false},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docspasta_pages_crawled_total")
}
