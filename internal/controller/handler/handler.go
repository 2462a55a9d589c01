package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"giveroute/internal/controller/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	"giveroute/pkg/platform/httputil"
	"giveroute/pkg/requestcontext"
)

type Service interface {
	State(ctx context.Context) (models.State, error)
	Propose(ctx context.Context, next domain.Address) error
	Accept(ctx context.Context) error
}

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

func (h *Handler) Register(r chi.Router) {
	r.Get("/controller", h.HandleState)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/controller/propose", h.HandlePropose)
	r.Post("/admin/controller/accept", h.HandleAccept)
}

// StateResponse renders the controller state. Pending is empty when no
// handover is in progress.
type StateResponse struct {
	Current string `json:"current"`
	Pending string `json:"pending"`
}

// ProposeRequest names the next controller. An empty Next cancels a pending
// handover.
type ProposeRequest struct {
	Next string `json:"next"`

	parsedNext domain.Address
}

func (r *ProposeRequest) Validate() error {
	next, err := domain.ParseOptionalAddress(r.Next)
	if err != nil {
		return err
	}
	r.parsedNext = next
	return nil
}

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := h.service.State(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to load controller", err)
		return
	}
	resp := StateResponse{Current: state.Current.String()}
	if state.HasPending() {
		resp.Pending = state.Pending.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ProposeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Propose(ctx, req.parsedNext); err != nil {
		h.fail(ctx, w, "failed to propose controller", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Accept(ctx); err != nil {
		h.fail(ctx, w, "failed to accept controller", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		level := slog.LevelWarn
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
