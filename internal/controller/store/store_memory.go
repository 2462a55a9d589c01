package store

import (
	"context"
	"sync"

	"giveroute/internal/controller/models"
	"giveroute/pkg/platform/sentinel"
)

// InMemoryStore holds the controller state in process memory.
type InMemoryStore struct {
	mu    sync.RWMutex
	state *models.State
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return models.State{}, sentinel.ErrNotFound
	}
	return *s.state, nil
}

func (s *InMemoryStore) Save(_ context.Context, state models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}
