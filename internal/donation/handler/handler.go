package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"giveroute/internal/donation/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	"giveroute/pkg/platform/httputil"
	"giveroute/pkg/requestcontext"
)

// maxRankings caps the limit query parameter of GET /rankings.
const maxRankings = 100

type Service interface {
	Donate(ctx context.Context, destination domain.Address, amount uint64) (*models.Receipt, error)
	DonateByName(ctx context.Context, name string, amount uint64) (*models.Receipt, error)
	DonationStats(ctx context.Context) (models.Counters, error)
	TotalStats(ctx context.Context) (models.TotalStats, error)
	Rankings(ctx context.Context, limit int) ([]models.Ranking, error)
}

// Handler wires donation endpoints to the router service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the open statistics endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/stats/donations", h.HandleDonationStats)
	r.Get("/stats/totals", h.HandleTotalStats)
	r.Get("/rankings", h.HandleRankings)
}

// RegisterAuthenticated mounts endpoints that need a caller.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/donations", h.HandleDonate)
}

// HandleDonate handles POST /donations.
func (h *Handler) HandleDonate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	donor := requestcontext.Caller(ctx)
	if donor.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[DonateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var (
		receipt *models.Receipt
		err     error
	)
	if req.Name != "" {
		receipt, err = h.service.DonateByName(ctx, req.Name, req.Amount)
	} else {
		receipt, err = h.service.Donate(ctx, req.parsedDestination, req.Amount)
	}
	if err != nil {
		h.logFailure(ctx, "donation failed", err,
			"donor", donor,
			"destination", req.Destination,
			"name", req.Name,
			"amount", req.Amount,
		)
		httputil.WriteError(w, err)
		return
	}

	if h.logger != nil {
		h.logger.InfoContext(ctx, "donation routed",
			"request_id", requestID,
			"donation_id", receipt.DonationID,
			"donor", donor,
			"destination", receipt.Destination,
			"amount", receipt.Amount,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	httputil.WriteJSON(w, http.StatusCreated, FromReceipt(receipt))
}

func (h *Handler) HandleDonationStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.service.DonationStats(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to load donation stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DonationStatsResponse{
		TotalDonations: c.TotalDonations,
		TotalRouted:    c.TotalRouted,
		NextDonationID: c.NextDonationID,
	})
}

func (h *Handler) HandleTotalStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.service.TotalStats(ctx)
	if err != nil {
		h.logFailure(ctx, "failed to load total stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TotalStatsResponse{
		TotalCharities:  t.TotalCharities,
		ActiveCharities: t.ActiveCharities,
		TotalDonations:  t.TotalDonations,
		TotalRouted:     t.TotalRouted,
		AverageDonation: t.AverageDonation,
	})
}

// HandleRankings handles GET /rankings?limit=N.
func (h *Handler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRankings {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "limit must be between 1 and %d", maxRankings))
			return
		}
		limit = n
	}

	rows, err := h.service.Rankings(ctx, limit)
	if err != nil {
		h.logFailure(ctx, "failed to load rankings", err)
		httputil.WriteError(w, err)
		return
	}
	resp := RankingsResponse{Rankings: make([]RankingResponse, len(rows))}
	for i, row := range rows {
		resp.Rankings[i] = RankingResponse{Destination: row.Destination.String(), Received: row.Received}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	if h.logger == nil {
		return
	}
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
