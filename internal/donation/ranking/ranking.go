// Package ranking keeps the leaderboard of charities by value received.
package ranking

import (
	"context"
	"sort"
	"sync"

	"giveroute/internal/donation/models"
	"giveroute/pkg/domain"
)

// DefaultLimit is used when a caller asks for a non-positive number of rows.
const DefaultLimit = 10

// InMemory is a process-local leaderboard.
type InMemory struct {
	mu       sync.RWMutex
	received map[domain.Address]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{received: make(map[domain.Address]uint64)}
}

func (r *InMemory) Record(_ context.Context, destination domain.Address, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received[destination] += amount
	return nil
}

// Top returns up to limit rows, highest first. Ties order by address.
func (r *InMemory) Top(_ context.Context, limit int) ([]models.Ranking, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	r.mu.RLock()
	rows := make([]models.Ranking, 0, len(r.received))
	for dest, amount := range r.received {
		rows = append(rows, models.Ranking{Destination: dest, Received: amount})
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Received != rows[j].Received {
			return rows[i].Received > rows[j].Received
		}
		return rows[i].Destination.String() > rows[j].Destination.String()
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
