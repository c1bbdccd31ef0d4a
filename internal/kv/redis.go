package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/docspasta/internal/domain"
)

// Config holds Redis connection configuration.
type Config struct {
	// Address is the host:port of the Redis server.
	Address string `mapstructure:"address" yaml:"address"`
	// Password authenticates the connection; empty disables auth.
	Password string `mapstructure:"password" yaml:"password"`
	// DB selects the logical database.
	DB int `mapstructure:"db" yaml:"db"`
	// OpTimeout bounds each non-blocking store operation.
	OpTimeout time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`
}

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Default connection settings.
const (
	connectionTimeout = 5 * time.Second
	// DefaultOpTimeout is the per-operation deadline when none is configured.
	DefaultOpTimeout = 5 * time.Second
)

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.OpTimeout), nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests that bring
// their own connection.
func NewRedisStoreWithClient(client *redis.Client, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

// opContext bounds a single store operation.
func (s *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// transient wraps a store failure as a retryable error.
func transient(op string, err error) error {
	return domain.WrapError(domain.KindTransient, "kv "+op, err)
}

// AtomicSetAdd adds members to a set and returns how many were new.
func (s *RedisStore) AtomicSetAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	args := make([]any, len(members))
	for i, member := range members {
		args[i] = member
	}
	added, err := s.client.SAdd(ctx, key, args...).Result()
	if err != nil {
		return 0, transient("set add", err)
	}
	return added, nil
}

// SetContains reports membership.
func (s *RedisStore) SetContains(ctx context.Context, key, member string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, transient("set contains", err)
	}
	return ok, nil
}

// SetRemove removes members from a set.
func (s *RedisStore) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	args := make([]any, len(members))
	for i, member := range members {
		args[i] = member
	}
	if err := s.client.SRem(ctx, key, args...).Err(); err != nil {
		return transient("set remove", err)
	}
	return nil
}

// SetMembers returns all members of a set.
func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, transient("set members", err)
	}
	return members, nil
}

// ListPush appends a value to the tail of a FIFO queue.
func (s *RedisStore) ListPush(ctx context.Context, key, value string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return transient("list push", err)
	}
	return nil
}

// ListPop removes and returns the head of a FIFO queue.
func (s *RedisStore) ListPop(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	value, err := s.client.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, transient("list pop", err)
	}
	return value, true, nil
}

// ListLen returns the queue length.
func (s *RedisStore) ListLen(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	length, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, transient("list len", err)
	}
	return length, nil
}

// CounterIncr atomically adds delta and returns the new value.
func (s *RedisStore) CounterIncr(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	value, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, transient("counter incr", err)
	}
	return value, nil
}

// CounterGet reads a counter; missing keys read as zero.
func (s *RedisStore) CounterGet(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, transient("counter get", err)
	}
	return value, nil
}

// HashSet writes field-value pairs; arguments alternate field, value.
func (s *RedisStore) HashSet(ctx context.Context, key string, fieldValues ...string) error {
	if len(fieldValues) == 0 {
		return nil
	}
	if len(fieldValues)%2 != 0 {
		return domain.NewError(domain.KindFatal, "hash set requires field-value pairs")
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	args := make([]any, len(fieldValues))
	for i, fv := range fieldValues {
		args[i] = fv
	}
	if err := s.client.HSet(ctx, key, args...).Err(); err != nil {
		return transient("hash set", err)
	}
	return nil
}

// HashGet reads one field.
func (s *RedisStore) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	value, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, transient("hash get", err)
	}
	return value, true, nil
}

// HashGetAll reads every field of a hash.
func (s *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, transient("hash get all", err)
	}
	return fields, nil
}

// HashIncrBy atomically adds delta to a numeric hash field.
func (s *RedisStore) HashIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	value, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, transient("hash incr", err)
	}
	return value, nil
}

// ValueSet writes a plain value with an optional TTL.
func (s *RedisStore) ValueSet(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return transient("value set", err)
	}
	return nil
}

// ValueGet reads a plain value.
func (s *RedisStore) ValueGet(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, transient("value get", err)
	}
	return value, true, nil
}

// KeyExpire sets a TTL on an existing key.
func (s *RedisStore) KeyExpire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return transient("key expire", err)
	}
	return nil
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return transient("delete", err)
	}
	return nil
}

// EventAppend appends fields to an event stream and returns the new id.
func (s *RedisStore) EventAppend(ctx context.Context, key string, fields map[string]string) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	values := make(map[string]any, len(fields))
	for field, value := range fields {
		values[field] = value
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		Values: values,
	}).Result()
	if err != nil {
		return "", transient("event append", err)
	}
	return id, nil
}

// EventRange reads events strictly after afterID in id order.
func (s *RedisStore) EventRange(ctx context.Context, key, afterID string, maxCount int64) ([]Entry, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	start := "-"
	if afterID != "" {
		// Exclusive range start; requires Redis 6.2+.
		start = "(" + afterID
	}

	var (
		messages []redis.XMessage
		err      error
	)
	if maxCount > 0 {
		messages, err = s.client.XRangeN(ctx, key, start, "+", maxCount).Result()
	} else {
		messages, err = s.client.XRange(ctx, key, start, "+").Result()
	}
	if err != nil {
		return nil, transient("event range", err)
	}
	return toEntries(messages), nil
}

// EventTailBlocking reads events after afterID, waiting up to block.
func (s *RedisStore) EventTailBlocking(ctx context.Context, key, afterID string, block time.Duration) ([]Entry, error) {
	// Blocking reads get their own deadline slightly past the block window
	// instead of the standard op timeout.
	ctx, cancel := context.WithTimeout(ctx, block+s.opTimeout)
	defer cancel()

	if afterID == "" {
		afterID = "0"
	}
	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{key, afterID},
		Count:   100,
		Block:   block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// Timeout with no new events.
		return nil, nil
	}
	if err != nil {
		return nil, transient("event tail", err)
	}

	var entries []Entry
	for _, stream := range streams {
		entries = append(entries, toEntries(stream.Messages)...)
	}
	return entries, nil
}

// EventLastID returns the id of the newest event, or empty when none.
func (s *RedisStore) EventLastID(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	messages, err := s.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return "", transient("event last id", err)
	}
	if len(messages) == 0 {
		return "", nil
	}
	return messages[0].ID, nil
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return transient("ping", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// toEntries converts stream messages, stringifying field values.
func toEntries(messages []redis.XMessage) []Entry {
	entries := make([]Entry, 0, len(messages))
	for _, msg := range messages {
		fields := make(map[string]string, len(msg.Values))
		for field, value := range msg.Values {
			fields[field] = fmt.Sprint(value)
		}
		entries = append(entries, Entry{ID: msg.ID, Fields: fields})
	}
	return entries
}
