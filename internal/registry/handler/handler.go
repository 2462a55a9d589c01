package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"giveroute/internal/registry/models"
	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	"giveroute/pkg/platform/httputil"
	"giveroute/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, name string, destination domain.Address) (*models.Charity, error)
	RegisterBatch(ctx context.Context, names []string, destinations []domain.Address) error
	Rename(ctx context.Context, destination domain.Address, newName string) error
	Remove(ctx context.Context, destination domain.Address) error
	SetActive(ctx context.Context, destination domain.Address, active bool) error
	LookupByDestination(ctx context.Context, destination domain.Address) (models.Charity, error)
	LookupByName(ctx context.Context, name string) (models.Charity, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
	Enumerate(ctx context.Context) ([]domain.Address, error)
	IsValid(ctx context.Context, destination domain.Address) (bool, error)
	IsValidName(ctx context.Context, name string) (bool, error)
}

// Handler wires registry endpoints to the registry service.
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

// Register mounts the open read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/charities", h.HandleEnumerate)
	r.Get("/charities/count", h.HandleCount)
	r.Get("/charities/by-name/{name}", h.HandleLookupByName)
	r.Get("/charities/by-name/{name}/valid", h.HandleIsValidName)
	r.Get("/charities/{destination}", h.HandleLookup)
	r.Get("/charities/{destination}/valid", h.HandleIsValid)
}

// RegisterAdmin mounts the controller endpoints. The caller must already be
// authenticated; the service checks it is the controller.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/charities", h.HandleRegister)
	r.Post("/admin/charities/batch", h.HandleRegisterBatch)
	r.Put("/admin/charities/{destination}/name", h.HandleRename)
	r.Put("/admin/charities/{destination}/status", h.HandleSetActive)
	r.Delete("/admin/charities/{destination}", h.HandleRemove)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	created, err := h.service.Register(ctx, req.Name, req.parsedDestination)
	if err != nil {
		h.fail(ctx, w, "failed to register charity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCharity(*created))
}

func (h *Handler) HandleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.RegisterBatch(ctx, req.Names, req.parsedDestinations); err != nil {
		h.fail(ctx, w, "failed to register batch", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]int{"registered": len(req.Names)})
}

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dest, ok := h.destinationParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenameRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Rename(ctx, dest, req.Name); err != nil {
		h.fail(ctx, w, "failed to rename charity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dest, ok := h.destinationParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetActive(ctx, dest, *req.Active); err != nil {
		h.fail(ctx, w, "failed to update charity status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dest, ok := h.destinationParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(ctx, dest); err != nil {
		h.fail(ctx, w, "failed to remove charity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLookup answers 404 for destinations never registered. A removed
// record is returned with an empty destination.
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dest, ok := h.destinationParam(w, r)
	if !ok {
		return
	}
	c, err := h.service.LookupByDestination(ctx, dest)
	if err != nil {
		h.fail(ctx, w, "failed to look up charity", err)
		return
	}
	h.writeCharity(w, c)
}

func (h *Handler) HandleLookupByName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.service.LookupByName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		h.fail(ctx, w, "failed to look up charity", err)
		return
	}
	h.writeCharity(w, c)
}

func (h *Handler) HandleIsValid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dest, ok := h.destinationParam(w, r)
	if !ok {
		return
	}
	valid, err := h.service.IsValid(ctx, dest)
	if err != nil {
		h.fail(ctx, w, "failed to check charity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidResponse{Valid: valid})
}

func (h *Handler) HandleIsValidName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	valid, err := h.service.IsValidName(ctx, chi.URLParam(r, "name"))
	if err != nil {
		h.fail(ctx, w, "failed to check charity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidResponse{Valid: valid})
}

func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.service.Count(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to count charities", err)
		return
	}
	active, err := h.service.CountActive(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to count charities", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: count, Active: active})
}

func (h *Handler) HandleEnumerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := h.service.Enumerate(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to enumerate charities", err)
		return
	}
	resp := EnumerateResponse{Destinations: make([]string, len(all))}
	for i, d := range all {
		resp.Destinations[i] = d.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeCharity(w http.ResponseWriter, c models.Charity) {
	if c.Name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "charity not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCharity(c))
}

func (h *Handler) destinationParam(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	dest, err := domain.ParseAddress(chi.URLParam(r, "destination"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Address{}, false
	}
	return dest, true
}

// fail logs client errors as warnings and everything else as errors, then
// writes the response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		attrs := []any{
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		}
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, msg, attrs...)
		} else {
			h.logger.WarnContext(ctx, msg, attrs...)
		}
	}
	httputil.WriteError(w, err)
}
