// Package service implements the two-phase controller handover and the
// authorization check every administrative registry operation runs first.
package service

import (
	"context"
	"errors"
	"log/slog"

	"giveroute/internal/controller/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	audit "giveroute/pkg/platform/audit"
	"giveroute/pkg/platform/sentinel"
	"giveroute/pkg/requestcontext"
)

type Store interface {
	Load(ctx context.Context) (models.State, error)
	Save(ctx context.Context, state models.State) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, tx TxRunner, opts ...Option) *Service {
	s := &Service{store: store, tx: tx}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap installs initial as the controller when none is recorded yet.
// An existing state is left untouched.
func (s *Service) Bootstrap(ctx context.Context, initial domain.Address) error {
	if initial.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "initial controller is required")
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.store.Load(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load controller")
		}
		if err := s.store.Save(ctx, models.State{Current: initial}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save controller")
		}
		return nil
	})
}

// Authorize fails with Unauthorized unless the context caller is the
// current controller.
func (s *Service) Authorize(ctx context.Context) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the controller")
	}
	state, err := s.load(ctx)
	if err != nil {
		return err
	}
	if state.Current != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the controller")
	}
	return nil
}

// Propose records next as the pending controller. Proposing the zero
// Address cancels a pending handover.
func (s *Service) Propose(ctx context.Context, next domain.Address) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.Authorize(ctx); err != nil {
			return err
		}
		state, err := s.load(ctx)
		if err != nil {
			return err
		}
		state.Pending = next
		if err := s.store.Save(ctx, state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save controller")
		}
		return s.emit(ctx, audit.EventControllerProposed, next)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, string(audit.EventControllerProposed), "pending", next)
	return nil
}

// Accept completes a handover. Only the pending controller may accept.
func (s *Service) Accept(ctx context.Context) error {
	caller := requestcontext.Caller(ctx)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		state, err := s.load(ctx)
		if err != nil {
			return err
		}
		if !state.HasPending() || caller.IsZero() || state.Pending != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is not the pending controller")
		}
		state = models.State{Current: caller}
		if err := s.store.Save(ctx, state); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save controller")
		}
		return s.emit(ctx, audit.EventControllerChanged, caller)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, string(audit.EventControllerChanged), "controller", caller)
	return nil
}

func (s *Service) State(ctx context.Context) (models.State, error) {
	return s.load(ctx)
}

func (s *Service) Current(ctx context.Context) (domain.Address, error) {
	state, err := s.load(ctx)
	return state.Current, err
}

func (s *Service) Pending(ctx context.Context) (domain.Address, error) {
	state, err := s.load(ctx)
	return state.Pending, err
}

func (s *Service) load(ctx context.Context) (models.State, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.State{}, dErrors.New(dErrors.CodeUnauthorized, "no controller configured")
		}
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load controller")
	}
	return state, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject domain.Address) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:    action.Category(),
		Timestamp:   requestcontext.Now(ctx),
		Action:      string(action),
		Destination: subject,
		ActorID:     requestcontext.Caller(ctx),
		RequestID:   requestcontext.RequestID(ctx),
	})
	if err != nil {
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
