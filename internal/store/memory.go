package store

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory SecretStore, mutex-guarded, used by tests and as
// the "fake implementation handed to the constructor" pattern the teacher
// uses throughout its middleware packages for dependency injection.
type MemStore struct {
	mu       sync.Mutex
	records  map[string]memEntry
	attempts map[string]int64
	kv       map[string]kvEntry
}

type memEntry struct {
	rec     Record
	expires time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		records:  make(map[string]memEntry),
		attempts: make(map[string]int64),
		kv:       make(map[string]kvEntry),
	}
}

func (m *MemStore) Put(_ context.Context, id string, rec Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[id] = memEntry{rec: rec, expires: time.Now().Add(ttl)}
	return nil
}

func (m *MemStore) GetAndDelete(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.records[id]
	if !ok || time.Now().After(entry.expires) {
		delete(m.records, id)
		return Record{}, ErrNotFound
	}

	delete(m.records, id)
	return entry.rec, nil
}

func (m *MemStore) PeekRestrictions(_ context.Context, id string) (*Restrictions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.records[id]
	if !ok || time.Now().After(entry.expires) {
		return nil, ErrNotFound
	}

	return entry.rec.Restrictions, nil
}

func (m *MemStore) TTL(_ context.Context, id string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.records[id]
	if !ok {
		return 0, ErrNotFound
	}
	remaining := time.Until(entry.expires)
	if remaining <= 0 {
		return 0, ErrNotFound
	}
	return remaining, nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)
	delete(m.attempts, id)
	return nil
}

func (m *MemStore) IncrementAttempt(_ context.Context, id string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts[id]++
	return m.attempts[id], nil
}
