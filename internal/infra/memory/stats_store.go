package memory

import (
	"context"
	"sync"

	"tereo-quiz-service/internal/app"
)

// StatsStore is an in-memory implementation of app.StatsStore.
type StatsStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewStatsStore() *StatsStore {
	return &StatsStore{data: make(map[string][]byte)}
}

func (s *StatsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return copyBytes(raw), true, nil
}

// Update runs fn under the write lock, so concurrent updates of a key serialise.
func (s *StatsStore) Update(_ context.Context, key string, fn app.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, found := s.data[key]
	next, err := fn(copyBytes(raw), found)
	if err != nil {
		return err
	}
	s.data[key] = copyBytes(next)
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
