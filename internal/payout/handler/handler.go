// Package handler exposes the payout ledger: balance reads for everyone and
// minting for the controller.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	"giveroute/pkg/platform/httputil"
	"giveroute/pkg/requestcontext"
)

type Ledger interface {
	Credit(ctx context.Context, account domain.Address, amount uint64) error
	Balance(ctx context.Context, account domain.Address) uint64
}

type Authorizer interface {
	Authorize(ctx context.Context) error
}

type Handler struct {
	ledger     Ledger
	authorizer Authorizer
	logger     *slog.Logger
}

func New(ledger Ledger, authorizer Authorizer, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:     ledger,
		authorizer: authorizer,
		logger:     logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/balances/{account}", h.HandleBalance)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/ledger/credit", h.HandleCredit)
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

type CreditRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`

	parsedAccount domain.Address
}

func (r *CreditRequest) Validate() error {
	account, err := domain.ParseAddress(r.Account)
	if err != nil {
		return err
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be greater than zero")
	}
	r.parsedAccount = account
	return nil
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAddress(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Account: account.String(),
		Balance: h.ledger.Balance(r.Context(), account),
	})
}

// HandleCredit mints value into an account. Only the controller may call it.
func (h *Handler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if err := h.authorizer.Authorize(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreditRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.ledger.Credit(ctx, req.parsedAccount, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.logger != nil {
		h.logger.InfoContext(ctx, "ledger credited",
			"request_id", requestID,
			"log_type", "audit",
			"actor", requestcontext.Caller(ctx),
			"account", req.parsedAccount,
			"amount", req.Amount,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{
		Account: req.parsedAccount.String(),
		Balance: h.ledger.Balance(ctx, req.parsedAccount),
	})
}
