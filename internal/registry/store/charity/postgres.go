package charity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"giveroute/internal/registry/models"
	"giveroute/pkg/domain"
	"giveroute/pkg/platform/sentinel"
	txcontext "giveroute/pkg/platform/tx"
)

const uniqueViolation = "23505"

// slotLockKey serializes slot allocation across concurrent transactions.
const slotLockKey = 7_305_001

// PostgresStore persists charities in the charities table. Live uniqueness
// is enforced by partial unique indexes on destination and name.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const charityColumns = `slot, destination, name, active, lifetime_received, donation_count, registered_at`

// withTx runs fn on the caller's transaction, or on a new one when ctx has none.
func (s *PostgresStore) withTx(ctx context.Context, fn func(ctx context.Context, q txcontext.Querier) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func nextSlot(ctx context.Context, q txcontext.Querier) (int, error) {
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey); err != nil {
		return 0, fmt.Errorf("lock charity slots: %w", err)
	}
	var next int
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(slot), -1) + 1 FROM charities`).Scan(&next); err != nil {
		return 0, fmt.Errorf("allocate charity slot: %w", err)
	}
	return next, nil
}

func translateWriteErr(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return sentinel.ErrAlreadyUsed
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) Insert(ctx context.Context, c *models.Charity) error {
	return s.withTx(ctx, func(ctx context.Context, q txcontext.Querier) error {
		slot, err := nextSlot(ctx, q)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO charities (slot, address, destination, name, active, registered_at)
			VALUES ($1, $2, $2, $3, $4, $5)
		`, slot, c.Destination[:], c.Name, c.Active, c.RegisteredAt)
		if err != nil {
			return translateWriteErr(err, "insert charity")
		}
		c.Slot = slot
		return nil
	})
}

// InsertBatch inserts every record in one statement so the partial unique
// indexes reject the whole batch on any duplicate.
func (s *PostgresStore) InsertBatch(ctx context.Context, cs []*models.Charity) error {
	if len(cs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(ctx context.Context, q txcontext.Querier) error {
		base, err := nextSlot(ctx, q)
		if err != nil {
			return err
		}
		addresses := make([][]byte, len(cs))
		names := make([]string, len(cs))
		for i, c := range cs {
			addresses[i] = append([]byte(nil), c.Destination[:]...)
			names[i] = c.Name
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO charities (slot, address, destination, name, active, registered_at)
			SELECT $3 + t.ord - 1, t.addr, t.addr, t.name, TRUE, $4
			FROM unnest($1::bytea[], $2::text[]) WITH ORDINALITY AS t(addr, name, ord)
		`, pq.Array(addresses), pq.Array(names), base, cs[0].RegisteredAt)
		if err != nil {
			return translateWriteErr(err, "insert charity batch")
		}
		for i, c := range cs {
			c.Slot = base + i
		}
		return nil
	})
}

func (s *PostgresStore) FindByDestination(ctx context.Context, destination domain.Address) (*models.Charity, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+charityColumns+` FROM charities WHERE address = $1 ORDER BY slot DESC LIMIT 1`,
		destination[:])
	return scanCharity(row)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Charity, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+charityColumns+` FROM charities WHERE name = $1 AND destination IS NOT NULL`,
		name)
	return scanCharity(row)
}

// Execute locks the live row for destination, validates, mutates and writes
// it back within one transaction.
func (s *PostgresStore) Execute(ctx context.Context, destination domain.Address, validate func(*models.Charity) error, mutate func(*models.Charity)) (*models.Charity, error) {
	var result *models.Charity
	err := s.withTx(ctx, func(ctx context.Context, q txcontext.Querier) error {
		row := q.QueryRowContext(ctx,
			`SELECT `+charityColumns+` FROM charities WHERE destination = $1 FOR UPDATE`,
			destination[:])
		current, err := scanCharity(row)
		if err != nil {
			return err
		}
		if err := validate(current); err != nil {
			return err
		}
		next := *current
		mutate(&next)

		var dest []byte
		if next.IsLive() {
			dest = next.Destination[:]
		}
		_, err = q.ExecContext(ctx, `
			UPDATE charities
			SET destination = $2, name = $3, active = $4, lifetime_received = $5, donation_count = $6
			WHERE slot = $1
		`, next.Slot, dest, next.Name, next.Active,
			strconv.FormatUint(next.LifetimeReceived, 10),
			strconv.FormatUint(next.DonationCount, 10))
		if err != nil {
			return translateWriteErr(err, "update charity")
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM charities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count charities: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM charities WHERE destination IS NOT NULL AND active`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active charities: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Enumerate(ctx context.Context) ([]domain.Address, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `SELECT address FROM charities ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("enumerate charities: %w", err)
	}
	defer rows.Close()

	var out []domain.Address
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan charity address: %w", err)
		}
		var a domain.Address
		copy(a[:], raw)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charity addresses: %w", err)
	}
	return out, nil
}

func scanCharity(row *sql.Row) (*models.Charity, error) {
	var (
		c        models.Charity
		dest     []byte
		lifetime string
		count    string
	)
	err := row.Scan(&c.Slot, &dest, &c.Name, &c.Active, &lifetime, &count, &c.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan charity: %w", err)
	}
	if len(dest) == domain.AddressLength {
		copy(c.Destination[:], dest)
	}
	if c.LifetimeReceived, err = strconv.ParseUint(lifetime, 10, 64); err != nil {
		return nil, fmt.Errorf("parse lifetime_received: %w", err)
	}
	if c.DonationCount, err = strconv.ParseUint(count, 10, 64); err != nil {
		return nil, fmt.Errorf("parse donation_count: %w", err)
	}
	c.RegisteredAt = c.RegisteredAt.UTC()
	return &c, nil
}

