package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teal-finance/hakanai/internal/store"
)

// tokenKeyPrefix namespaces token hashes away from secret ids in a shared
// backend, so a single Redis instance can serve both internal/store and
// internal/token without key collisions.
const tokenKeyPrefix = "token:"

// kvTokenStore adapts a store.KVStore into the Store contract Authorizer
// needs, JSON-encoding Record values.
type kvTokenStore struct {
	kv store.KVStore
}

// NewKVStore wraps any store.KVStore (RedisStore.AsKV or MemStore.AsKV) as a
// token Store.
func NewKVStore(kv store.KVStore) Store {
	return kvTokenStore{kv: kv}
}

func (s kvTokenStore) Put(ctx context.Context, hash string, rec Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("token: marshal record: %w", err)
	}
	return s.kv.Put(ctx, tokenKeyPrefix+hash, raw, ttl)
}

func (s kvTokenStore) Get(ctx context.Context, hash string) (Record, error) {
	raw, err := s.kv.Get(ctx, tokenKeyPrefix+hash)
	if errors.Is(err, store.ErrNotFound) {
		return Record{}, ErrInvalidToken
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("token: unmarshal record: %w", err)
	}
	return rec, nil
}

func (s kvTokenStore) Delete(ctx context.Context, hash string) error {
	return s.kv.Delete(ctx, tokenKeyPrefix+hash)
}
