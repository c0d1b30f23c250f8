package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KVStore is a minimal opaque byte-string store with TTL: the shape both
// RedisStore and MemStore already provide internally for secrets. The token
// package reuses it (under its own key prefix) instead of depending on the
// secret-shaped SecretStore interface.
type KVStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// redisKV namespaces a *redis.Client under a fixed key prefix.
type redisKV struct {
	rdb    *redis.Client
	prefix string
}

// AsKV adapts a RedisStore to KVStore, namespacing keys under prefix so
// token hashes and secret ids never collide in the same Redis keyspace.
func (s *RedisStore) AsKV(prefix string) KVStore {
	return redisKV{rdb: s.rdb, prefix: prefix}
}

func (k redisKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := k.rdb.Set(ctx, k.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store: kv SET %s: %w", key, err)
	}
	return nil
}

func (k redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := k.rdb.Get(ctx, k.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: kv GET %s: %w", key, err)
	}
	return raw, nil
}

func (k redisKV) Delete(ctx context.Context, key string) error {
	if err := k.rdb.Del(ctx, k.prefix+key).Err(); err != nil {
		return fmt.Errorf("store: kv DEL %s: %w", key, err)
	}
	return nil
}

// memKV namespaces a MemStore's map under a fixed key prefix, reusing its
// mutex for safety.
type memKV struct {
	parent *MemStore
	prefix string
}

// AsKV adapts a MemStore to KVStore under the given key prefix.
func (m *MemStore) AsKV(prefix string) KVStore {
	return memKV{parent: m, prefix: prefix}
}

func (k memKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m := k.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.kv == nil {
		m.kv = make(map[string]kvEntry)
	}

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.kv[k.prefix+key] = kvEntry{value: append([]byte(nil), value...), expires: expires}
	return nil
}

func (k memKV) Get(_ context.Context, key string) ([]byte, error) {
	m := k.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.kv[k.prefix+key]
	if !ok || (!entry.expires.IsZero() && time.Now().After(entry.expires)) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

func (k memKV) Delete(_ context.Context, key string) error {
	m := k.parent
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.kv, k.prefix+key)
	return nil
}

type kvEntry struct {
	value   []byte
	expires time.Time
}
