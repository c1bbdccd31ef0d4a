// Package events provides the append-only per-job event log that drives the
// live stream surface and records the crawl history.
package events

import (
	"encoding/json"
	"time"
)

// Type identifies one of the closed set of crawl event types.
type Type string

// Event type constants. Exactly one of the three terminal types ends every
// job's log.
const (
	TypeStreamConnected  Type = "stream_connected"
	TypeURLStarted       Type = "url_started"
	TypeURLCrawled       Type = "url_crawled"
	TypeURLFailed        Type = "url_failed"
	TypeURLsDiscovered   Type = "urls_discovered"
	TypeSentToProcessing Type = "sent_to_processing"
	TypeProgress         Type = "progress"
	TypeTimeUpdate       Type = "time_update"
	TypeJobCompleted     Type = "job_completed"
	TypeJobFailed        Type = "job_failed"
	TypeJobTimeout       Type = "job_timeout"
)

// IsTerminal reports whether this event type closes a job's log.
func (t Type) IsTerminal() bool {
	switch t {
	case TypeJobCompleted, TypeJobFailed, TypeJobTimeout:
		return true
	default:
		return false
	}
}

// Event is one entry of a job's log. IDs are assigned by the store and are
// strictly increasing within a job.
type Event struct {
	ID        string          `json:"id"`
	JobID     string          `json:"job_id"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// StreamConnectedPayload opens every job's log.
type StreamConnectedPayload struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// URLStartedPayload reports a worker claiming a page.
type URLStartedPayload struct {
	URL string `json:"url"`
}

// URLCrawledPayload reports a page that finished its pipeline.
type URLCrawledPayload struct {
	URL           string `json:"url"`
	Success       bool   `json:"success"`
	ContentLength int    `json:"content_length"`
	QualityScore  int    `json:"quality_score"`
}

// URLFailedPayload reports a page that failed its pipeline.
type URLFailedPayload struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// URLsDiscoveredPayload reports links harvested from one page.
type URLsDiscoveredPayload struct {
	SourceURL       string `json:"source_url"`
	Count           int    `json:"count"`
	TotalDiscovered int64  `json:"total_discovered"`
}

// SentToProcessingPayload reports a page accepted into the final assembly set.
type SentToProcessingPayload struct {
	URL          string `json:"url"`
	QualityScore int    `json:"quality_score"`
}

// ProgressPayload carries the running totals; used by both progress and
// time_update events.
type ProgressPayload struct {
	Processed  int64 `json:"processed"`
	Discovered int64 `json:"discovered"`
	ElapsedSec int64 `json:"elapsedSec"`
}

// JobCompletedPayload is the terminal payload of a successful job.
type JobCompletedPayload struct {
	TotalProcessed  int64     `json:"totalProcessed"`
	TotalDiscovered int64     `json:"totalDiscovered"`
	Timestamp       time.Time `json:"timestamp"`
}

// JobFailedPayload is the terminal payload of a failed or cancelled job.
type JobFailedPayload struct {
	Reason string `json:"reason"`
}

// JobTimeoutPayload is the terminal payload of a timed-out job.
type JobTimeoutPayload struct {
	ElapsedSec int64 `json:"elapsedSec"`
}
