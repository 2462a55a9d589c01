// Package publisher emits audit events to a Store, either synchronously or
// through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"giveroute/pkg/domain"
	audit "giveroute/pkg/platform/audit"
)

var droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
	Name: "giveroute_audit_events_dropped_total",
	Help: "Audit events dropped because the async buffer was full",
})

// Publisher captures structured audit events. Sync mode returns the store
// error to the caller; async mode never blocks the caller and drops events
// when the buffer is full.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	buffer int

	events    chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.events = make(chan audit.Event, p.buffer)
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit stamps the event and hands it to the store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.events == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.events <- event:
	default:
		droppedEvents.Inc()
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"destination", event.Destination,
			)
		}
	}
	return nil
}

// List returns the events recorded for a destination.
func (p *Publisher) List(ctx context.Context, destination domain.Address) ([]audit.Event, error) {
	return p.store.ListByDestination(ctx, destination)
}

// Close stops accepting buffered events and drains what is queued.
func (p *Publisher) Close() {
	if p.events == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"destination", event.Destination,
				"error", err,
			)
		}
	}
}
