package tx

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	dErrors "giveroute/pkg/domain-errors"
)

// defaultLockTimeout bounds how long a unit of work may wait for the lock
// when the caller set no deadline.
const defaultLockTimeout = 5 * time.Second

type lockerKey struct{ l *Locker }

// Locker is the in-memory transaction boundary: one coarse lock held for a
// whole unit of work. A nested RunInTx on a context already inside the same
// Locker joins the outer unit instead of deadlocking.
type Locker struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

type LockerOption func(*Locker)

// WithLockTimeout sets the wait applied when the caller's context has no deadline.
func WithLockTimeout(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.timeout = d
	}
}

func NewLocker(opts ...LockerOption) *Locker {
	l := &Locker{
		sem:     semaphore.NewWeighted(1),
		timeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunInTx runs fn while holding the lock. Waiting for the lock gives up with
// CodeTimeout once ctx is done.
func (l *Locker) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(lockerKey{l}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: timed out waiting for lock")
	}
	defer l.sem.Release(1)

	return fn(context.WithValue(ctx, lockerKey{l}, true))
}
