package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
	"github.com/jonesrussell/docspasta/internal/metrics"
)

// Stream field names.
const (
	fieldType      = "type"
	fieldPayload   = "payload"
	fieldTimestamp = "timestamp"
)

// LogTTL is how long a job's event log outlives its first append.
const LogTTL = 24 * time.Hour

// Log appends and reads per-job crawl events.
type Log struct {
	store kv.Store
	log   logger.Interface
	stats *metrics.Metrics

	// Jobs whose log TTL this process has already anchored.
	anchored sync.Map
}

// NewLog builds the event log service.
func NewLog(store kv.Store, log logger.Interface) *Log {
	return &Log{
		store: store,
		log:   log.WithComponent("events"),
	}
}

// Instrument attaches the process metrics and returns the log for chaining.
func (l *Log) Instrument(stats *metrics.Metrics) *Log {
	l.stats = stats

	return l
}

// Append adds one event to a job's log and returns its id. A nil payload is
// stored as an empty object.
func (l *Log) Append(ctx context.Context, jobID string, eventType Type, payload any) (string, error) {
	raw := []byte("{}")

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return "", domain.WrapError(domain.KindFatal, "encode event payload", err)
		}

		raw = encoded
	}

	fields := map[string]string{
		fieldType:      string(eventType),
		fieldPayload:   string(raw),
		fieldTimestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	id, err := l.store.EventAppend(ctx, kv.EventsKey(jobID), fields)
	if err != nil {
		return "", err
	}

	if l.stats != nil {
		l.stats.EventsAppended.WithLabelValues(string(eventType)).Inc()
	}

	if _, seen := l.anchored.LoadOrStore(jobID, struct{}{}); !seen {
		if expireErr := l.store.KeyExpire(ctx, kv.EventsKey(jobID), LogTTL); expireErr != nil {
			// The log stays readable; only its expiry is off.
			l.log.Warn("failed to set event log ttl", "job_id", jobID, "error", expireErr)
		}
	}

	return id, nil
}

// Range reads events strictly after afterID in id order; an empty afterID
// reads from the beginning. maxCount zero means no limit.
func (l *Log) Range(ctx context.Context, jobID, afterID string, maxCount int64) ([]Event, error) {
	entries, err := l.store.EventRange(ctx, kv.EventsKey(jobID), afterID, maxCount)
	if err != nil {
		return nil, err
	}

	return decodeEntries(jobID, entries), nil
}

// TailBlocking reads events after afterID, waiting up to block for new ones.
// An empty result means the block window elapsed quietly.
func (l *Log) TailBlocking(ctx context.Context, jobID, afterID string, block time.Duration) ([]Event, error) {
	entries, err := l.store.EventTailBlocking(ctx, kv.EventsKey(jobID), afterID, block)
	if err != nil {
		return nil, err
	}

	return decodeEntries(jobID, entries), nil
}

// LastID returns the id of the newest event, or empty when the log is empty.
func (l *Log) LastID(ctx context.Context, jobID string) (string, error) {
	return l.store.EventLastID(ctx, kv.EventsKey(jobID))
}

func decodeEntries(jobID string, entries []kv.Entry) []Event {
	evts := make([]Event, 0, len(entries))

	for _, entry := range entries {
		evt := Event{
			ID:      entry.ID,
			JobID:   jobID,
			Type:    Type(entry.Fields[fieldType]),
			Payload: json.RawMessage(entry.Fields[fieldPayload]),
		}

		if ts, err := time.Parse(time.RFC3339Nano, entry.Fields[fieldTimestamp]); err == nil {
			evt.Timestamp = ts
		}

		evts = append(evts, evt)
	}

	return evts
}
