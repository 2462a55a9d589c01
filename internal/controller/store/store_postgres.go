package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"giveroute/internal/controller/models"
	"giveroute/pkg/domain"
	"giveroute/pkg/platform/sentinel"
	txcontext "giveroute/pkg/platform/tx"
)

// PostgresStore keeps the controller state in a single-row table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load reads the state, locking the row when called inside a transaction.
func (s *PostgresStore) Load(ctx context.Context) (models.State, error) {
	query := `SELECT current, pending FROM controller WHERE id = 1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	var current, pending []byte
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query).Scan(&current, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return models.State{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.State{}, fmt.Errorf("load controller: %w", err)
	}
	var state models.State
	copy(state.Current[:], current)
	if len(pending) == domain.AddressLength {
		copy(state.Pending[:], pending)
	}
	return state, nil
}

func (s *PostgresStore) Save(ctx context.Context, state models.State) error {
	var pending []byte
	if state.HasPending() {
		pending = state.Pending[:]
	}
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO controller (id, current, pending) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET current = EXCLUDED.current, pending = EXCLUDED.pending
	`, state.Current[:], pending)
	if err != nil {
		return fmt.Errorf("save controller: %w", err)
	}
	return nil
}
