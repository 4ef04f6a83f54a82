package memory

import (
	"context"
	"sync"
	"time"

	"hiddystays/internal/app/middleware"
)

// IdempotencyStore keeps replayable command results in process. Like the
// Mongo TTL index, records older than retention are dropped; they are swept
// lazily on Save.
type IdempotencyStore struct {
	mu        sync.Mutex
	retention time.Duration
	byKey     map[string]middleware.IdempotencyRecord
}

// NewIdempotencyStore keeps records forever when retention is zero.
func NewIdempotencyStore(retention time.Duration) *IdempotencyStore {
	return &IdempotencyStore{retention: retention, byKey: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byKey[key]
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retention > 0 {
		cutoff := rec.OccurredAt.Add(-s.retention)
		for key, old := range s.byKey {
			if old.OccurredAt.Before(cutoff) {
				delete(s.byKey, key)
			}
		}
	}
	s.byKey[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}
