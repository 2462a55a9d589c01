// Package service is the donation router. It forwards each donation in full
// to a registered charity and keeps the donation ledger.
//
// Every donation runs under the router's guard. While one donation is in
// flight any other donation on the same Router, including one issued from
// inside its own transfer, is rejected with CodeReentrant instead of
// blocking. Queue puts waiting callers in line in front of the guard.
// Bookkeeping happens before the transfer; a failed transfer reverts it, so a
// donation either lands completely or leaves no trace.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"giveroute/internal/donation/metrics"
	"giveroute/internal/donation/models"
	"giveroute/internal/payout"
	registrymodels "giveroute/internal/registry/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	audit "giveroute/pkg/platform/audit"
	"giveroute/pkg/requestcontext"
)

// Registry is the slice of the charity registry the router depends on.
type Registry interface {
	Resolve(ctx context.Context, destination domain.Address) (*registrymodels.Charity, error)
	ResolveName(ctx context.Context, name string) (*registrymodels.Charity, error)
	RecordDonation(ctx context.Context, destination domain.Address, amount uint64) (*registrymodels.Charity, error)
	RevertDonation(ctx context.Context, destination domain.Address, amount uint64) error
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}

type LedgerStore interface {
	Load(ctx context.Context) (models.Counters, error)
	Save(ctx context.Context, counters models.Counters) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Ranker keeps the leaderboard. Updates are best-effort.
type Ranker interface {
	Record(ctx context.Context, destination domain.Address, amount uint64) error
	Top(ctx context.Context, limit int) ([]models.Ranking, error)
}

type guardKey struct{ r *Router }

type Router struct {
	mu sync.Mutex

	registry       Registry
	ledger         LedgerStore
	transferer     payout.Transferer
	tx             TxRunner
	ranker         Ranker
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Router)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Router) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithRanker(ranker Ranker) Option {
	return func(r *Router) {
		r.ranker = ranker
	}
}

func New(registry Registry, ledger LedgerStore, transferer payout.Transferer, tx TxRunner, opts ...Option) *Router {
	r := &Router{
		registry:   registry,
		ledger:     ledger,
		transferer: transferer,
		tx:         tx,
		tracer:     otel.Tracer("giveroute/donation"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Donate forwards amount from the context caller to the charity registered
// for destination.
func (r *Router) Donate(ctx context.Context, destination domain.Address, amount uint64) (*models.Receipt, error) {
	ctx, span := r.tracer.Start(ctx, "donation.Donate", trace.WithAttributes(
		attribute.String("destination", destination.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)),
	))
	defer span.End()

	receipt, err := r.route(ctx, amount, func(ctx context.Context) (*registrymodels.Charity, error) {
		return r.registry.Resolve(ctx, destination)
	})
	if err != nil {
		return nil, r.fail(span, err)
	}
	return receipt, nil
}

// DonateByName is Donate after resolving name through the name index.
func (r *Router) DonateByName(ctx context.Context, name string, amount uint64) (*models.Receipt, error) {
	ctx, span := r.tracer.Start(ctx, "donation.DonateByName", trace.WithAttributes(
		attribute.String("name", name),
		attribute.String("amount", strconv.FormatUint(amount, 10)),
	))
	defer span.End()

	receipt, err := r.route(ctx, amount, func(ctx context.Context) (*registrymodels.Charity, error) {
		return r.registry.ResolveName(ctx, name)
	})
	if err != nil {
		return nil, r.fail(span, err)
	}
	return receipt, nil
}

// enter acquires the guard. It never waits: a held guard means a donation is
// in flight on this Router, and the transfer's receiver may be calling back
// with a context of its own. The returned context carries the guard marker
// and must be the one handed to the transfer.
func (r *Router) enter(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(guardKey{r}) != nil || !r.mu.TryLock() {
		return nil, nil, dErrors.New(dErrors.CodeReentrant, "donation already in flight on this router")
	}
	return context.WithValue(ctx, guardKey{r}, true), r.mu.Unlock, nil
}

func (r *Router) route(ctx context.Context, amount uint64, resolve func(context.Context) (*registrymodels.Charity, error)) (*models.Receipt, error) {
	ctx, release, err := r.enter(ctx)
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncrementReentrancy()
		}
		return nil, err
	}
	defer release()

	start := time.Now()
	if r.metrics != nil {
		defer func() {
			r.metrics.ObserveDonateDuration(time.Since(start))
		}()
	}

	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeEmptyDonation, "amount must be greater than zero")
	}

	donor := requestcontext.Caller(ctx)
	var receipt *models.Receipt
	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		charity, err := resolve(ctx)
		if err != nil {
			return err
		}

		before, err := r.ledger.Load(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donation ledger")
		}
		if err := before.CanRecord(amount); err != nil {
			return err
		}
		credited, err := r.registry.RecordDonation(ctx, charity.Destination, amount)
		if err != nil {
			return err
		}
		after, donationID := before.Record(amount)
		if err := r.ledger.Save(ctx, after); err != nil {
			r.revertCredit(ctx, charity.Destination, amount)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save donation ledger")
		}

		if err := r.transferer.Transfer(ctx, donor, charity.Destination, amount); err != nil {
			r.revertCredit(ctx, charity.Destination, amount)
			if saveErr := r.ledger.Save(ctx, before); saveErr != nil {
				r.logError(ctx, "failed to restore donation ledger", saveErr)
			}
			if r.metrics != nil {
				r.metrics.IncrementTransferFailure()
			}
			return dErrors.Wrap(err, dErrors.CodeTransferFailed, "transfer to charity failed")
		}

		receipt = &models.Receipt{
			DonationID:  donationID,
			Donor:       donor,
			Destination: credited.Destination,
			Name:        credited.Name,
			Amount:      amount,
			RoutedAt:    requestcontext.Now(ctx),
		}
		r.emitRouted(ctx, receipt)
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.updateRanking(ctx, receipt)
	r.logAudit(ctx, string(audit.EventDonationRouted),
		"donation_id", receipt.DonationID,
		"destination", receipt.Destination,
		"amount", receipt.Amount,
	)
	if r.metrics != nil {
		r.metrics.ObserveRouted(amount)
	}
	return receipt, nil
}

// revertCredit undoes this call's credit only. Registry changes made by a
// receiver before it rejected the transfer are not part of the donation and
// stay in place.
func (r *Router) revertCredit(ctx context.Context, destination domain.Address, amount uint64) {
	if err := r.registry.RevertDonation(ctx, destination, amount); err != nil {
		r.logError(ctx, "failed to revert charity credit", err)
	}
}

// emitRouted records DonationRouted. The value has already moved, so a
// failed emit is logged rather than returned.
func (r *Router) emitRouted(ctx context.Context, receipt *models.Receipt) {
	if r.auditPublisher == nil {
		return
	}
	err := r.auditPublisher.Emit(ctx, audit.Event{
		Category:    audit.EventDonationRouted.Category(),
		Timestamp:   receipt.RoutedAt,
		Action:      string(audit.EventDonationRouted),
		Destination: receipt.Destination,
		ActorID:     receipt.Donor,
		Name:        receipt.Name,
		DonationID:  receipt.DonationID,
		Amount:      receipt.Amount,
		RequestID:   requestcontext.RequestID(ctx),
	})
	if err != nil {
		r.logError(ctx, "failed to record donation event", err)
	}
}

func (r *Router) updateRanking(ctx context.Context, receipt *models.Receipt) {
	if r.ranker == nil {
		return
	}
	if err := r.ranker.Record(ctx, receipt.Destination, receipt.Amount); err != nil {
		if r.metrics != nil {
			r.metrics.IncrementRankingError()
		}
		if r.logger != nil {
			r.logger.WarnContext(ctx, "failed to update rankings",
				"donation_id", receipt.DonationID,
				"error", err,
			)
		}
	}
}

// DonationStats returns the donation ledger counters.
func (r *Router) DonationStats(ctx context.Context) (models.Counters, error) {
	counters, err := r.ledger.Load(ctx)
	if err != nil {
		return models.Counters{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load donation ledger")
	}
	return counters, nil
}

func (r *Router) TotalStats(ctx context.Context) (models.TotalStats, error) {
	total, err := r.registry.Count(ctx)
	if err != nil {
		return models.TotalStats{}, err
	}
	active, err := r.registry.CountActive(ctx)
	if err != nil {
		return models.TotalStats{}, err
	}
	counters, err := r.DonationStats(ctx)
	if err != nil {
		return models.TotalStats{}, err
	}
	return models.TotalStats{
		TotalCharities:  total,
		ActiveCharities: active,
		TotalDonations:  counters.TotalDonations,
		TotalRouted:     counters.TotalRouted,
		AverageDonation: counters.Average(),
	}, nil
}

// Rankings returns the top charities by value received. Without a ranker it
// returns no rows.
func (r *Router) Rankings(ctx context.Context, limit int) ([]models.Ranking, error) {
	if r.ranker == nil {
		return []models.Ranking{}, nil
	}
	rows, err := r.ranker.Top(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rankings")
	}
	return rows, nil
}

func (r *Router) fail(span trace.Span, err error) error {
	code := dErrors.CodeOf(err)
	if r.metrics != nil {
		r.metrics.IncrementRejected(string(code))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))
	return err
}

func (r *Router) logAudit(ctx context.Context, event string, attrs ...any) {
	if r.logger == nil {
		return
	}
	args := append(attrs,
		"event", event,
		"log_type", "audit",
		"actor", requestcontext.Caller(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	r.logger.InfoContext(ctx, event, args...)
}

func (r *Router) logError(ctx context.Context, msg string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
