package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"giveroute/internal/donation/models"
	txcontext "giveroute/pkg/platform/tx"
)

// PostgresStore keeps the counters in the single donation_ledger row.
// Counters are NUMERIC(20,0) and cross the driver as decimal strings.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load reads the counters, locking the row when called inside a transaction.
func (s *PostgresStore) Load(ctx context.Context) (models.Counters, error) {
	query := `SELECT total_donations::text, total_routed::text, next_donation_id::text FROM donation_ledger WHERE id = 1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	var donations, routed, next string
	if err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query).Scan(&donations, &routed, &next); err != nil {
		return models.Counters{}, fmt.Errorf("load donation ledger: %w", err)
	}
	var (
		c   models.Counters
		err error
	)
	if c.TotalDonations, err = strconv.ParseUint(donations, 10, 64); err != nil {
		return models.Counters{}, fmt.Errorf("parse total_donations: %w", err)
	}
	if c.TotalRouted, err = strconv.ParseUint(routed, 10, 64); err != nil {
		return models.Counters{}, fmt.Errorf("parse total_routed: %w", err)
	}
	if c.NextDonationID, err = strconv.ParseUint(next, 10, 64); err != nil {
		return models.Counters{}, fmt.Errorf("parse next_donation_id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Save(ctx context.Context, c models.Counters) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE donation_ledger
		SET total_donations = $1::numeric, total_routed = $2::numeric, next_donation_id = $3::numeric
		WHERE id = 1
	`,
		strconv.FormatUint(c.TotalDonations, 10),
		strconv.FormatUint(c.TotalRouted, 10),
		strconv.FormatUint(c.NextDonationID, 10),
	)
	if err != nil {
		return fmt.Errorf("save donation ledger: %w", err)
	}
	return nil
}
