// Package ledger persists the router's donation counters.
package ledger

import (
	"context"
	"sync"

	"giveroute/internal/donation/models"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	counters models.Counters
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{counters: models.NewCounters()}
}

func (s *InMemoryStore) Load(_ context.Context) (models.Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters, nil
}

func (s *InMemoryStore) Save(_ context.Context, counters models.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = counters
	return nil
}
