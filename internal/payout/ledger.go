// Package payout holds the value layer donations move through.
package payout

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
)

// Transferer moves value between accounts. The Router performs exactly one
// Transfer per donation.
type Transferer interface {
	Transfer(ctx context.Context, from, to domain.Address, amount uint64) error
}

// Receiver is code attached to a destination account. It runs before the
// payment lands and may reject it or call back into the system.
type Receiver interface {
	Receive(ctx context.Context, from domain.Address, amount uint64) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, from domain.Address, amount uint64) error

func (f ReceiverFunc) Receive(ctx context.Context, from domain.Address, amount uint64) error {
	return f(ctx, from, amount)
}

// Ledger is an in-memory balance book.
type Ledger struct {
	mu        sync.Mutex
	balances  map[domain.Address]uint64
	receivers map[domain.Address]Receiver
	logger    *slog.Logger
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		balances:  make(map[domain.Address]uint64),
		receivers: make(map[domain.Address]Receiver),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Credit mints amount into account.
func (l *Ledger) Credit(_ context.Context, account domain.Address, amount uint64) error {
	if account.IsZero() {
		return dErrors.New(dErrors.CodeInvalidDestination, "account is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[account] > math.MaxUint64-amount {
		return dErrors.New(dErrors.CodeOverflow, "balance would overflow")
	}
	l.balances[account] += amount
	return nil
}

func (l *Ledger) Balance(_ context.Context, account domain.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Supply is the sum of every balance.
func (l *Ledger) Supply() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	for _, b := range l.balances {
		total += b
	}
	return total
}

// SetReceiver attaches r to account. A nil r detaches it.
func (l *Ledger) SetReceiver(account domain.Address, r Receiver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r == nil {
		delete(l.receivers, account)
		return
	}
	l.receivers[account] = r
}

// Transfer moves amount from one account to another. The receiver hook of
// the destination runs first, without the ledger lock held; a rejection
// leaves every balance unchanged.
func (l *Ledger) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	l.mu.Lock()
	if err := l.checkLocked(from, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	receiver := l.receivers[to]
	l.mu.Unlock()

	if receiver != nil {
		if err := receiver.Receive(ctx, from, amount); err != nil {
			if l.logger != nil {
				l.logger.WarnContext(ctx, "payment rejected by receiver",
					"from", from,
					"to", to,
					"amount", amount,
					"error", err,
				)
			}
			return dErrors.Wrap(err, dErrors.CodeTransferFailed, "receiver rejected payment")
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// the hook may have moved value out of from
	if err := l.checkLocked(from, to, amount); err != nil {
		return err
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *Ledger) checkLocked(from, to domain.Address, amount uint64) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeTransferFailed, "destination account is required")
	}
	if l.balances[from] < amount {
		return dErrors.New(dErrors.CodeTransferFailed, "insufficient balance")
	}
	if from != to && l.balances[to] > math.MaxUint64-amount {
		return dErrors.New(dErrors.CodeTransferFailed, "destination balance would overflow")
	}
	return nil
}
