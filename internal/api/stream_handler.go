package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/job"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// streamBlock is how long each tail read waits for new events before the
// stream emits a heartbeat.
const streamBlock = 5 * time.Second

// StreamHandler serves the live SSE event stream of a job.
type StreamHandler struct {
	jobs   *job.Service
	events *events.Log
	log    logger.Interface
}

// NewStreamHandler creates the stream handler.
func NewStreamHandler(jobs *job.Service, eventLog *events.Log, log logger.Interface) *StreamHandler {
	return &StreamHandler{
		jobs:   jobs,
		events: eventLog,
		log:    log.WithComponent("stream"),
	}
}

// Stream handles GET /jobs/:id/stream. The full history after the client's
// last seen event is replayed first, then the stream tails the log until a
// terminal event is delivered. Reconnects resume via the Last-Event-ID
// header or the lastEventId query parameter.
func (h *StreamHandler) Stream(c *gin.Context) {
	jobID := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.jobs.State(ctx, jobID); err != nil {
		if err == job.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})

		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	lastID := c.GetHeader("Last-Event-ID")
	if lastID == "" {
		lastID = c.Query("lastEventId")
	}

	// Replay everything the client has not seen. A terminal event in the
	// replay closes the stream without entering the tail loop.
	replay, err := h.events.Range(ctx, jobID, lastID, 0)
	if err != nil {
		h.log.Error("event replay failed", "job_id", jobID, "error", err)
		return
	}

	for _, evt := range replay {
		writeEvent(c.Writer, evt)
		lastID = evt.ID

		if evt.Type.IsTerminal() {
			flusher.Flush()
			return
		}
	}

	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := h.events.TailBlocking(ctx, jobID, lastID, streamBlock)
		if err != nil {
			if ctx.Err() == nil {
				h.log.Error("event tail failed", "job_id", jobID, "error", err)
			}

			return
		}

		if len(batch) == 0 {
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()

			continue
		}

		for _, evt := range batch {
			writeEvent(c.Writer, evt)
			lastID = evt.ID

			if evt.Type.IsTerminal() {
				flusher.Flush()
				return
			}
		}

		flusher.Flush()
	}
}

// writeEvent frames one event in the SSE wire format.
func writeEvent(w io.Writer, evt events.Event) {
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, evt.Payload)
}
