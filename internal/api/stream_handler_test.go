package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/testutils"
)

// seedStreamJob writes a job with a short event history ending in a terminal
// event, returning the appended event ids in order.
func seedStreamJob(t *testing.T, env *apiEnv, jobID string) []string {
	t.Helper()
	ctx := context.Background()

	testutils.SeedJob(t, env.store, jobID, "https://site.test/docs", domain.DefaultOptions())

	ids := make([]string, 0, 3)

	id, err := env.events.Append(ctx, jobID, events.TypeStreamConnected, events.StreamConnectedPayload{
		JobID: jobID,
		URL:   "https://site.test/docs",
	})
	require.NoError(t, err)
	ids = append(ids, id)

	id, err = env.events.Append(ctx, jobID, events.TypeURLCrawled, events.URLCrawledPayload{
		URL:     "https://site.test/docs",
		Success: true,
	})
	require.NoError(t, err)
	ids = append(ids, id)

	id, err = env.events.Append(ctx, jobID, events.TypeJobCompleted, events.JobCompletedPayload{
		TotalProcessed: 1,
	})
	require.NoError(t, err)
	ids = append(ids, id)

	return ids
}

func TestStreamReplaysHistoryAndClosesOnTerminal(t *testing.T) {
	env := newAPIEnv(t)
	ids := seedStreamJob(t, env, "job-stream")

	rec := env.do(t, http.MethodGet, "/jobs/job-stream/stream", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "id: "+ids[0])
	assert.Contains(t, body, "event: stream_connected")
	assert.Contains(t, body, "event: url_crawled")
	assert.Contains(t, body, "event: job_completed")

	// The terminal event is the last frame.
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), `data: {"totalProcessed":1,"totalDiscovered":0,"timestamp":"0001-01-01T00:00:00Z"}`))
}

func TestStreamResumesAfterLastEventID(t *testing.T) {
	env := newAPIEnv(t)
	ids := seedStreamJob(t, env, "job-resume")

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-resume/stream", nil)
	req.Header.Set("Last-Event-ID", ids[0])

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "event: stream_connected", "already-seen events must not replay")
	assert.Contains(t, body, "event: url_crawled")
	assert.Contains(t, body, "event: job_completed")
}

func TestStreamResumesViaQueryParam(t *testing.T) {
	env := newAPIEnv(t)
	ids := seedStreamJob(t, env, "job-query")

	rec := env.do(t, http.MethodGet, "/jobs/job-query/stream?lastEventId="+ids[1], nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "event: url_crawled")
	assert.Contains(t, body, "event: job_completed")
}

func TestStreamUnknownJob(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/jobs/missing/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
