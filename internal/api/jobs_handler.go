package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/events"
	"github.com/jonesrussell/docspasta/internal/job"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// CreateJobRequest is the POST /jobs body.
type CreateJobRequest struct {
	URL     string                  `json:"url" binding:"required"`
	Options *domain.JobOptionsPatch `json:"options"`
}

// JobResponse is the JSON view of a job's metadata.
type JobResponse struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
	Totals      domain.Totals `json:"totals"`

	// LastEventID lets a reloading client resume the stream where it left
	// off; only the state snapshot fills it in.
	LastEventID string `json:"lastEventId,omitempty"`
}

// CreateJobResponse is the POST /jobs reply: the job view plus the stream
// location for immediate subscription.
type CreateJobResponse struct {
	JobResponse
	JobID     string `json:"jobId"`
	StreamURL string `json:"streamUrl"`
}

func jobResponse(meta *domain.JobMeta) JobResponse {
	resp := JobResponse{
		ID:        meta.ID,
		URL:       meta.URL,
		Status:    string(meta.Status),
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
		Error:     meta.Error,
		Totals:    meta.Totals(),
	}

	if !meta.CompletedAt.IsZero() {
		completed := meta.CompletedAt
		resp.CompletedAt = &completed
	}

	return resp
}

// JobsHandler handles the job management endpoints.
type JobsHandler struct {
	svc    *job.Service
	events *events.Log
	log    logger.Interface
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(svc *job.Service, eventLog *events.Log, log logger.Interface) *JobsHandler {
	return &JobsHandler{
		svc:    svc,
		events: eventLog,
		log:    log.WithComponent("api"),
	}
}

// Create handles POST /jobs.
func (h *JobsHandler) Create(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	meta, err := h.svc.Create(c.Request.Context(), req.URL, req.Options)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateJobResponse{
		JobResponse: jobResponse(meta),
		JobID:       meta.ID,
		StreamURL:   "/jobs/" + meta.ID + "/stream",
	})
}

// List handles GET /jobs.
func (h *JobsHandler) List(c *gin.Context) {
	metas, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	jobs := make([]JobResponse, 0, len(metas))
	for _, meta := range metas {
		jobs = append(jobs, jobResponse(meta))
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// State handles GET /jobs/:id/state.
func (h *JobsHandler) State(c *gin.Context) {
	meta, err := h.svc.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := jobResponse(meta)

	lastID, err := h.events.LastID(c.Request.Context(), meta.ID)
	if err != nil {
		h.log.Warn("failed to read last event id", "job_id", meta.ID, "error", err)
	}

	resp.LastEventID = lastID

	c.JSON(http.StatusOK, resp)
}

// Download handles GET /jobs/:id/download.
func (h *JobsHandler) Download(c *gin.Context) {
	doc, err := h.svc.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+c.Param("id")+`.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(doc))
}

// Cancel handles POST /jobs/:id/cancel.
func (h *JobsHandler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// writeError maps service errors onto HTTP statuses.
func (h *JobsHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, job.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "job has not completed"})
	case domain.KindOf(err) == domain.KindInvalidURL:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
