// Package service is the charity registry: the authoritative record of
// approved payout destinations and the two lookup indexes over it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"giveroute/internal/registry/metrics"
	"giveroute/internal/registry/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	audit "giveroute/pkg/platform/audit"
	"giveroute/pkg/platform/sentinel"
	"giveroute/pkg/requestcontext"
)

// CharityStore persists charity records. Execute operates on live records
// only and returns sentinel.ErrNotFound otherwise.
type CharityStore interface {
	Insert(ctx context.Context, c *models.Charity) error
	InsertBatch(ctx context.Context, cs []*models.Charity) error
	FindByDestination(ctx context.Context, destination domain.Address) (*models.Charity, error)
	FindByName(ctx context.Context, name string) (*models.Charity, error)
	Execute(ctx context.Context, destination domain.Address, validate func(*models.Charity) error, mutate func(*models.Charity)) (*models.Charity, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
	Enumerate(ctx context.Context) ([]domain.Address, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Authorizer checks that the context caller may administer the registry.
type Authorizer interface {
	Authorize(ctx context.Context) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service mediates every registry mutation. Each administrative operation
// authorizes, validates and mutates inside one unit of work.
type Service struct {
	charities      CharityStore
	tx             TxRunner
	authorizer     Authorizer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(charities CharityStore, tx TxRunner, authorizer Authorizer, opts ...Option) *Service {
	s := &Service{
		charities:  charities,
		tx:         tx,
		authorizer: authorizer,
		tracer:     otel.Tracer("giveroute/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an active charity for destination under name.
func (s *Service) Register(ctx context.Context, name string, destination domain.Address) (*models.Charity, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Register", trace.WithAttributes(
		attribute.String("destination", destination.String()),
	))
	defer span.End()

	var created *models.Charity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx); err != nil {
			return err
		}
		c, err := models.NewCharity(name, destination, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.ensureAvailable(ctx, c.Destination, c.Name); err != nil {
			return err
		}
		if err := s.charities.Insert(ctx, c); err != nil {
			return translateStoreErr(err, "failed to register charity")
		}
		if err := s.emit(ctx, audit.EventRegistered, c, nil); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	s.logAudit(ctx, string(audit.EventRegistered), "destination", destination, "name", name, "slot", created.Slot)
	if s.metrics != nil {
		s.metrics.IncrementRegistered(1)
		s.metrics.IncrementMutation("register")
	}
	return created, nil
}

// RegisterBatch registers every pair or none. Entries are validated front to
// back and the first failing entry decides the error.
func (s *Service) RegisterBatch(ctx context.Context, names []string, destinations []domain.Address) error {
	ctx, span := s.tracer.Start(ctx, "registry.RegisterBatch", trace.WithAttributes(
		attribute.Int("batch.size", len(names)),
	))
	defer span.End()

	var created []*models.Charity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx); err != nil {
			return err
		}
		if len(names) != len(destinations) {
			return dErrors.Newf(dErrors.CodeLengthMismatch, "got %d names and %d destinations", len(names), len(destinations))
		}
		if len(names) == 0 {
			return dErrors.New(dErrors.CodeEmptyName, "batch is empty")
		}

		now := requestcontext.Now(ctx)
		batch := make([]*models.Charity, 0, len(names))
		for i := range names {
			c, err := models.NewCharity(names[i], destinations[i], now)
			if err != nil {
				return entryErr(i, err)
			}
			if err := s.ensureAvailable(ctx, c.Destination, c.Name); err != nil {
				return entryErr(i, err)
			}
			for j := 0; j < i; j++ {
				if batch[j].Destination == c.Destination || batch[j].Name == c.Name {
					return dErrors.Newf(dErrors.CodeAlreadyExists, "entry %d: duplicates entry %d", i, j)
				}
			}
			batch = append(batch, c)
		}

		if err := s.charities.InsertBatch(ctx, batch); err != nil {
			return translateStoreErr(err, "failed to register batch")
		}
		for _, c := range batch {
			if err := s.emit(ctx, audit.EventRegistered, c, nil); err != nil {
				return err
			}
		}
		created = batch
		return nil
	})
	if err != nil {
		return failSpan(span, err)
	}

	s.logAudit(ctx, "RegisteredBatch", "count", len(created))
	if s.metrics != nil {
		s.metrics.IncrementRegistered(len(created))
		s.metrics.ObserveBatch(len(created))
		s.metrics.IncrementMutation("register")
	}
	return nil
}

// Rename rebinds a live charity to newName. Renaming to the current name
// succeeds and still emits Renamed.
func (s *Service) Rename(ctx context.Context, destination domain.Address, newName string) error {
	ctx, span := s.tracer.Start(ctx, "registry.Rename")
	defer span.End()

	var oldName string
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx); err != nil {
			return err
		}
		updated, err := s.charities.Execute(ctx, destination,
			func(c *models.Charity) error {
				if newName == "" {
					return dErrors.New(dErrors.CodeEmptyName, "name is required")
				}
				oldName = c.Name
				return nil
			},
			func(c *models.Charity) {
				c.Name = newName
			},
		)
		if err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeNameTaken, "name is bound to another charity")
			}
			return translateStoreErr(err, "failed to rename charity")
		}
		return s.emit(ctx, audit.EventRenamed, updated, func(e *audit.Event) {
			e.PreviousName = oldName
		})
	})
	if err != nil {
		return failSpan(span, err)
	}

	s.logAudit(ctx, string(audit.EventRenamed), "destination", destination, "old_name", oldName, "new_name", newName)
	s.incrementMutation("rename")
	return nil
}

// Remove soft-deletes a live charity. Its slot stays in the enumeration index.
func (s *Service) Remove(ctx context.Context, destination domain.Address) error {
	ctx, span := s.tracer.Start(ctx, "registry.Remove")
	defer span.End()

	var name string
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx); err != nil {
			return err
		}
		removed, err := s.charities.Execute(ctx, destination,
			func(c *models.Charity) error {
				name = c.Name
				return nil
			},
			func(c *models.Charity) {
				c.ApplyRemoval()
			},
		)
		if err != nil {
			return translateStoreErr(err, "failed to remove charity")
		}
		return s.emit(ctx, audit.EventRemoved, removed, func(e *audit.Event) {
			e.Destination = destination
		})
	})
	if err != nil {
		return failSpan(span, err)
	}

	s.logAudit(ctx, string(audit.EventRemoved), "destination", destination, "name", name)
	s.incrementMutation("remove")
	return nil
}

// SetActive sets the active flag of a live charity. Setting the current
// value still emits StatusChanged.
func (s *Service) SetActive(ctx context.Context, destination domain.Address, active bool) error {
	ctx, span := s.tracer.Start(ctx, "registry.SetActive")
	defer span.End()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorizer.Authorize(ctx); err != nil {
			return err
		}
		updated, err := s.charities.Execute(ctx, destination,
			func(*models.Charity) error { return nil },
			func(c *models.Charity) {
				c.Active = active
			},
		)
		if err != nil {
			return translateStoreErr(err, "failed to update charity status")
		}
		return s.emit(ctx, audit.EventStatusChanged, updated, func(e *audit.Event) {
			e.Active = &active
		})
	})
	if err != nil {
		return failSpan(span, err)
	}

	s.logAudit(ctx, string(audit.EventStatusChanged), "destination", destination, "active", active)
	s.incrementMutation("set_active")
	return nil
}

func (s *Service) ensureAvailable(ctx context.Context, destination domain.Address, name string) error {
	existing, err := s.charities.FindByDestination(ctx, destination)
	switch {
	case err == nil && existing.IsLive():
		return dErrors.New(dErrors.CodeAlreadyExists, "destination is already registered")
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load charity")
	}

	_, err = s.charities.FindByName(ctx, name)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeAlreadyExists, "name is already registered")
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load charity")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, c *models.Charity, decorate func(*audit.Event)) error {
	if s.auditPublisher == nil {
		return nil
	}
	event := audit.Event{
		Category:    action.Category(),
		Timestamp:   requestcontext.Now(ctx),
		Action:      string(action),
		Destination: c.Destination,
		ActorID:     requestcontext.Caller(ctx),
		Name:        c.Name,
		RequestID:   requestcontext.RequestID(ctx),
	}
	if decorate != nil {
		decorate(&event)
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	args := append(attrs,
		"event", event,
		"log_type", "audit",
		"actor", requestcontext.Caller(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) incrementMutation(action string) {
	if s.metrics != nil {
		s.metrics.IncrementMutation(action)
	}
}

// translateStoreErr maps sentinel store errors to domain codes. Domain
// errors raised by validate callbacks pass through unchanged.
func translateStoreErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "charity not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAlreadyExists, "destination or name is already registered")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func entryErr(i int, err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return &dErrors.Error{Code: de.Code, Message: fmt.Sprintf("entry %d: %s", i, de.Message), Err: de.Err}
	}
	return err
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}
