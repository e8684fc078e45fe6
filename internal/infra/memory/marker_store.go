package memory

import (
	"context"
	"sync"
)

// MarkerStore keeps the already-submitted flags in process memory. It
// implements session.MarkerStore for tests and single-process demos; the
// Redis store is the one that survives restarts.
type MarkerStore struct {
	mu      sync.RWMutex
	markers map[string]struct{}
}

func NewMarkerStore() *MarkerStore {
	return &MarkerStore{markers: make(map[string]struct{})}
}

func (s *MarkerStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.markers[key]
	return ok, nil
}

func (s *MarkerStore) Set(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[key] = struct{}{}
	return nil
}
