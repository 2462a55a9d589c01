package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dErrors "giveroute/pkg/domain-errors"
	txcontext "giveroute/pkg/platform/tx"
)

const defaultPostgresTxTimeout = 5 * time.Second

// postgresTx runs a unit of work on one database transaction. Stores pick the
// transaction up from the context; a nested RunInTx joins the outer one.
type postgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresTx(db *sql.DB) *postgresTx {
	return &postgresTx{db: db, timeout: defaultPostgresTxTimeout}
}

func (t *postgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(fmt.Errorf("commit: %w", err), dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
