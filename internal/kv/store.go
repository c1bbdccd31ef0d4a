// Package kv provides the typed key-value store operations the crawl engine
// coordinates through. All cross-worker shared state lives behind Store.
package kv

import (
	"context"
	"time"
)

// Entry is one record read back from an event stream.
type Entry struct {
	// ID is the store-assigned, monotonically increasing stream id.
	ID string
	// Fields holds the appended field-value pairs.
	Fields map[string]string
}

// Store describes the operations the engine needs from its backing store.
// Set additions are linearizable with respect to concurrent calls on the
// same key; every other operation is at least sequentially consistent per
// key. Operations never block past their per-call deadline.
type Store interface {
	// AtomicSetAdd adds members to a set and returns how many were new.
	AtomicSetAdd(ctx context.Context, key string, members ...string) (int64, error)
	// SetContains reports membership.
	SetContains(ctx context.Context, key, member string) (bool, error)
	// SetRemove removes members from a set.
	SetRemove(ctx context.Context, key string, members ...string) error
	// SetMembers returns all members of a set.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// ListPush appends a value to the tail of a FIFO queue.
	ListPush(ctx context.Context, key, value string) error
	// ListPop removes and returns the head of a FIFO queue. The second
	// return is false when the queue is empty.
	ListPop(ctx context.Context, key string) (string, bool, error)
	// ListLen returns the queue length.
	ListLen(ctx context.Context, key string) (int64, error)

	// CounterIncr atomically adds delta and returns the new value.
	CounterIncr(ctx context.Context, key string, delta int64) (int64, error)
	// CounterGet reads a counter; missing keys read as zero.
	CounterGet(ctx context.Context, key string) (int64, error)

	// HashSet writes field-value pairs; arguments alternate field, value.
	HashSet(ctx context.Context, key string, fieldValues ...string) error
	// HashGet reads one field. The second return is false when absent.
	HashGet(ctx context.Context, key, field string) (string, bool, error)
	// HashGetAll reads every field of a hash.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	// HashIncrBy atomically adds delta to a numeric hash field.
	HashIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// ValueSet writes a plain value, with an optional TTL (zero = none).
	ValueSet(ctx context.Context, key, value string, ttl time.Duration) error
	// ValueGet reads a plain value. The second return is false when absent.
	ValueGet(ctx context.Context, key string) (string, bool, error)

	// KeyExpire sets a TTL on an existing key.
	KeyExpire(ctx context.Context, key string, ttl time.Duration) error
	// Delete removes keys.
	Delete(ctx context.Context, keys ...string) error

	// EventAppend appends fields to an event stream and returns the new id.
	EventAppend(ctx context.Context, key string, fields map[string]string) (string, error)
	// EventRange reads events strictly after afterID in id order; an empty
	// afterID reads from the beginning. maxCount zero means no limit.
	EventRange(ctx context.Context, key, afterID string, maxCount int64) ([]Entry, error)
	// EventTailBlocking reads events after afterID, waiting up to block for
	// new ones. Returns an empty slice on timeout.
	EventTailBlocking(ctx context.Context, key, afterID string, block time.Duration) ([]Entry, error)
	// EventLastID returns the id of the newest event, or empty when none.
	EventLastID(ctx context.Context, key string) (string, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}

// Pairs flattens a field map into the alternating field-value form HashSet
// takes. Iteration order is not significant for a hash write.
func Pairs(fields map[string]string) []string {
	flat := make([]string, 0, 2*len(fields))
	for field, value := range fields {
		flat = append(flat, field, value)
	}
	return flat
}
