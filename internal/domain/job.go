// Package domain provides domain models used across the application.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status constants.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimeout   JobStatus = "timeout"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimeout, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Totals holds the monotonically non-decreasing job counters.
type Totals struct {
	Discovered int64 `json:"discovered"`
	Queued     int64 `json:"queued"`
	Processed  int64 `json:"processed"`
	Filtered   int64 `json:"filtered"`
	Skipped    int64 `json:"skipped"`
	Failed     int64 `json:"failed"`
	FromCache  int64 `json:"from_cache"`
}

// Meta hash field names for the totals counters. Totals are mutated only
// through atomic hash increments, never by get-then-set.
const (
	TotalDiscovered = "totals_discovered"
	TotalQueued     = "totals_queued"
	TotalProcessed  = "totals_processed"
	TotalFiltered   = "totals_filtered"
	TotalSkipped    = "totals_skipped"
	TotalFailed     = "totals_failed"
	TotalFromCache  = "totals_from_cache"
)

// Meta hash field names mutated after creation.
const (
	MetaFieldStatus            = "status"
	MetaFieldUpdatedAt         = "updated_at"
	MetaFieldCompletedAt       = "completed_at"
	MetaFieldError             = "error"
	MetaFieldDiscoveryComplete = "discovery_complete"
)

// JobMeta is the flat representation of the job metadata hash.
type JobMeta struct {
	ID                string    `mapstructure:"id"`
	URL               string    `mapstructure:"url"`
	Status            JobStatus `mapstructure:"status"`
	CreatedAt         time.Time `mapstructure:"created_at"`
	UpdatedAt         time.Time `mapstructure:"updated_at"`
	CompletedAt       time.Time `mapstructure:"completed_at"`
	Error             string    `mapstructure:"error"`
	OptionsJSON       string    `mapstructure:"options"`
	DiscoveryComplete bool      `mapstructure:"discovery_complete"`

	TotalsDiscovered int64 `mapstructure:"totals_discovered"`
	TotalsQueued     int64 `mapstructure:"totals_queued"`
	TotalsProcessed  int64 `mapstructure:"totals_processed"`
	TotalsFiltered   int64 `mapstructure:"totals_filtered"`
	TotalsSkipped    int64 `mapstructure:"totals_skipped"`
	TotalsFailed     int64 `mapstructure:"totals_failed"`
	TotalsFromCache  int64 `mapstructure:"totals_from_cache"`
}

// Totals assembles the counter fields into a Totals value.
func (m *JobMeta) Totals() Totals {
	return Totals{
		Discovered: m.TotalsDiscovered,
		Queued:     m.TotalsQueued,
		Processed:  m.TotalsProcessed,
		Filtered:   m.TotalsFiltered,
		Skipped:    m.TotalsSkipped,
		Failed:     m.TotalsFailed,
		FromCache:  m.TotalsFromCache,
	}
}

// Options decodes the options JSON carried in the meta hash.
func (m *JobMeta) Options() (JobOptions, error) {
	var opts JobOptions
	if m.OptionsJSON == "" {
		return DefaultOptions(), nil
	}
	if err := json.Unmarshal([]byte(m.OptionsJSON), &opts); err != nil {
		return JobOptions{}, fmt.Errorf("decode job options: %w", err)
	}
	return opts, nil
}

// Age returns the wall-clock time since job creation.
func (m *JobMeta) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}

// MetaFromHash decodes a job metadata hash into a JobMeta. Numeric and time
// fields are converted from their string forms.
func MetaFromHash(fields map[string]string) (*JobMeta, error) {
	var meta JobMeta
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("build meta decoder: %w", err)
	}
	if err := decoder.Decode(fields); err != nil {
		return nil, fmt.Errorf("decode job meta: %w", err)
	}
	return &meta, nil
}

// ToHash encodes the static job attributes for the metadata hash. Totals are
// excluded: they are owned by the atomic increment path.
func (m *JobMeta) ToHash() map[string]string {
	fields := map[string]string{
		"id":                 m.ID,
		"url":                m.URL,
		"status":             string(m.Status),
		"created_at":         m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":         m.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"options":            m.OptionsJSON,
		"discovery_complete": strconv.FormatBool(m.DiscoveryComplete),
	}
	if !m.CompletedAt.IsZero() {
		fields["completed_at"] = m.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if m.Error != "" {
		fields["error"] = m.Error
	}
	return fields
}
