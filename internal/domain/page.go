package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PageStatus represents the lifecycle state of a page within a job.
type PageStatus string

// Page status constants.
const (
	PageStatusPending  PageStatus = "pending"
	PageStatusFetching PageStatus = "fetching"
	PageStatusCrawled  PageStatus = "crawled"
	PageStatusError    PageStatus = "error"
	PageStatusSkipped  PageStatus = "skipped"
)

// PageRecord represents one canonical URL within a job. (jobID, URL) is
// unique; a record is created on first dedup-add and owned exclusively by the
// worker holding the fetch claim until it reaches a terminal page status.
type PageRecord struct {
	ID           string     `json:"id"`
	JobID        string     `json:"job_id"`
	URL          string     `json:"url"`
	Status       PageStatus `json:"status"`
	HTTPStatus   int        `json:"http_status,omitempty"`
	Title        string     `json:"title,omitempty"`
	QualityScore int        `json:"quality_score"`
	WordCount    int        `json:"word_count"`
	Content      string     `json:"content,omitempty"`
	Depth        int        `json:"depth"`
	ParentURL    string     `json:"parent_url,omitempty"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	CrawledAt    *time.Time `json:"crawled_at,omitempty"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// EncodePage serializes a page record for hash storage.
func EncodePage(record *PageRecord) (string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode page record: %w", err)
	}
	return string(raw), nil
}

// DecodePage deserializes a page record from hash storage.
func DecodePage(raw string) (*PageRecord, error) {
	var record PageRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode page record: %w", err)
	}
	return &record, nil
}
