package service

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"giveroute/internal/donation/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
)

const defaultQueueTimeout = 5 * time.Second

// Queue lets independent callers take turns on a Router. A caller waits for
// the previous donation to finish instead of being rejected by the guard.
// Code running inside a transfer must not go through the Queue: it would wait
// on its own donation until the timeout.
type Queue struct {
	*Router
	turn    *semaphore.Weighted
	timeout time.Duration
}

type QueueOption func(*Queue)

// WithQueueTimeout sets the wait applied when the caller's context has no deadline.
func WithQueueTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.timeout = d
	}
}

func NewQueue(router *Router, opts ...QueueOption) *Queue {
	q := &Queue{
		Router:  router,
		turn:    semaphore.NewWeighted(1),
		timeout: defaultQueueTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Donate(ctx context.Context, destination domain.Address, amount uint64) (*models.Receipt, error) {
	if err := q.wait(ctx); err != nil {
		return nil, err
	}
	defer q.done()
	return q.Router.Donate(ctx, destination, amount)
}

func (q *Queue) DonateByName(ctx context.Context, name string, amount uint64) (*models.Receipt, error) {
	if err := q.wait(ctx); err != nil {
		return nil, err
	}
	defer q.done()
	return q.Router.DonateByName(ctx, name, amount)
}

func (q *Queue) wait(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	if err := q.turn.Acquire(ctx, 1); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for the router")
	}
	return nil
}

func (q *Queue) done() {
	q.turn.Release(1)
}
