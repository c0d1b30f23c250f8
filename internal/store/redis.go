package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs SecretStore with a Redis-compatible server. go-redis is
// adopted from the retrieval pack's precedent (several sibling repos use
// github.com/redis/go-redis/v9 for exactly this kind of key/value/TTL
// store) — the teacher itself is a storage-agnostic HTTP middleware toolkit
// and ships no driver of its own.
type RedisStore struct {
	rdb *redis.Client

	// deleteRetries bounds the best-effort retry of Del after a
	// PeekRestrictions-then-consume path where the fetch succeeded but the
	// delete failed transiently (spec §4.5 partial-failure handling).
	deleteRetries int
}

const secretKeyPrefix = "secret:"
const attemptKeyPrefix = "passphrase_attempts:"

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, deleteRetries: 3}
}

func (s *RedisStore) Put(ctx context.Context, id string, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}

	if err := s.rdb.Set(ctx, secretKeyPrefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("store: SET %s: %w", id, err)
	}

	return nil
}

// GetAndDelete uses Redis's native GETDEL (Redis >= 6.2), which the server
// executes atomically: two concurrent GETDEL calls for the same key can
// never both observe a non-nil value (spec §8 concurrency property).
func (s *RedisStore) GetAndDelete(ctx context.Context, id string) (Record, error) {
	raw, err := s.rdb.GetDel(ctx, secretKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: GETDEL %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("store: unmarshal record %s: %w", id, err)
	}

	return rec, nil
}

// PeekRestrictions performs a plain GET, never consuming the record.
func (s *RedisStore) PeekRestrictions(ctx context.Context, id string) (*Restrictions, error) {
	raw, err := s.rdb.Get(ctx, secretKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: GET %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("store: unmarshal record %s: %w", id, err)
	}

	return rec.Restrictions, nil
}

// TTL reports the remaining time-to-live of id via Redis's native TTL
// command, without touching the record.
func (s *RedisStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	ttl, err := s.rdb.TTL(ctx, secretKeyPrefix+id).Result()
	if err != nil {
		return 0, fmt.Errorf("store: TTL %s: %w", id, err)
	}
	if ttl < 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

// Delete is idempotent and retries a bounded number of times on transient
// backend errors; if retries are exhausted the record is still considered
// consumed, since it will be reconciled by TTL regardless (spec §4.5).
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var lastErr error
	for attempt := 0; attempt < s.deleteRetries; attempt++ {
		if err := s.rdb.Del(ctx, secretKeyPrefix+id).Err(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	log.Printf("store: DEL %s failed after %d attempts, relying on TTL reconciliation: %v", id, s.deleteRetries, lastErr)
	return nil
}

// IncrementAttempt atomically increments the passphrase-attempt counter and
// ensures it expires alongside the secret it guards.
func (s *RedisStore) IncrementAttempt(ctx context.Context, id string, ttl time.Duration) (int64, error) {
	key := attemptKeyPrefix + id

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("store: increment attempt %s: %w", id, err)
	}

	return incr.Val(), nil
}
