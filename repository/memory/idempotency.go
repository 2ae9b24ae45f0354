package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/taskdesk/repository"
)

type idempotencyEntry struct {
	taskID    string
	expiresAt time.Time
}

// IdempotencyStore is the in-process counterpart of the Redis key store.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]idempotencyEntry
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]idempotencyEntry)}
}

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

func (s *IdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if entry, ok := s.keys[key]; ok && now.Before(entry.expiresAt) {
		return entry.taskID, false, nil
	}
	s.keys[key] = idempotencyEntry{expiresAt: now.Add(keyTTL(ttl))}
	return "", true, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key, taskID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = idempotencyEntry{taskID: taskID, expiresAt: time.Now().Add(keyTTL(ttl))}
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func keyTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}
