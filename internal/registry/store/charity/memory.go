package charity

import (
	"context"
	"sync"

	"giveroute/internal/registry/models"
	"giveroute/pkg/domain"
	"giveroute/pkg/platform/sentinel"
)

// InMemoryStore keeps charities in a slot arena with two lookup indexes:
// destination to its latest slot, and live name to destination.
type InMemoryStore struct {
	mu            sync.RWMutex
	slots         []models.Charity
	addresses     []domain.Address
	byDestination map[domain.Address]int
	byName        map[string]domain.Address
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byDestination: make(map[domain.Address]int),
		byName:        make(map[string]domain.Address),
	}
}

// Insert appends c and sets c.Slot. Fails with sentinel.ErrAlreadyUsed when
// the destination or name is bound to a live record.
func (s *InMemoryStore) Insert(_ context.Context, c *models.Charity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailableLocked(c); err != nil {
		return err
	}
	s.appendLocked(c)
	return nil
}

// InsertBatch appends every record or none.
func (s *InMemoryStore) InsertBatch(_ context.Context, cs []*models.Charity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seenDest := make(map[domain.Address]struct{}, len(cs))
	seenName := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if err := s.checkAvailableLocked(c); err != nil {
			return err
		}
		if _, dup := seenDest[c.Destination]; dup {
			return sentinel.ErrAlreadyUsed
		}
		if _, dup := seenName[c.Name]; dup {
			return sentinel.ErrAlreadyUsed
		}
		seenDest[c.Destination] = struct{}{}
		seenName[c.Name] = struct{}{}
	}
	for _, c := range cs {
		s.appendLocked(c)
	}
	return nil
}

func (s *InMemoryStore) checkAvailableLocked(c *models.Charity) error {
	if slot, ok := s.byDestination[c.Destination]; ok && s.slots[slot].IsLive() {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byName[c.Name]; ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *InMemoryStore) appendLocked(c *models.Charity) {
	c.Slot = len(s.slots)
	s.slots = append(s.slots, *c)
	s.addresses = append(s.addresses, c.Destination)
	s.byDestination[c.Destination] = c.Slot
	s.byName[c.Name] = c.Destination
}

// FindByDestination returns the latest record registered for destination,
// which may be a removed one.
func (s *InMemoryStore) FindByDestination(_ context.Context, destination domain.Address) (*models.Charity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.byDestination[destination]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := s.slots[slot]
	return &c, nil
}

// FindByName returns the live record bound to name.
func (s *InMemoryStore) FindByName(_ context.Context, name string) (*models.Charity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	destination, ok := s.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := s.slots[s.byDestination[destination]]
	return &c, nil
}

// Execute loads the live record for destination, runs validate, applies
// mutate and persists the result, all under one lock. The name index follows
// the record: a changed name moves its binding and a cleared destination
// drops it. Renaming onto another live record's name fails with
// sentinel.ErrAlreadyUsed.
func (s *InMemoryStore) Execute(_ context.Context, destination domain.Address, validate func(*models.Charity) error, mutate func(*models.Charity)) (*models.Charity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.byDestination[destination]
	if !ok || !s.slots[slot].IsLive() {
		return nil, sentinel.ErrNotFound
	}
	current := s.slots[slot]
	if err := validate(&current); err != nil {
		return nil, err
	}

	next := current
	mutate(&next)

	if next.Name != current.Name && next.IsLive() {
		if owner, taken := s.byName[next.Name]; taken && owner != destination {
			return nil, sentinel.ErrAlreadyUsed
		}
	}
	if next.Name != current.Name || !next.IsLive() {
		delete(s.byName, current.Name)
	}
	if next.IsLive() {
		s.byName[next.Name] = destination
	}
	s.slots[slot] = next
	return &next, nil
}

// Count returns the length of the enumeration index.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.addresses), nil
}

// Enumerate returns every destination ever registered, in order.
func (s *InMemoryStore) Enumerate(_ context.Context) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Address{}, s.addresses...), nil
}

// CountActive scans the enumeration index for live, active records.
// CountActive counts live, active slots. A re-registered destination has one
// live slot, so it counts once.
func (s *InMemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.slots {
		if s.slots[i].IsLive() && s.slots[i].Active {
			n++
		}
	}
	return n, nil
}
