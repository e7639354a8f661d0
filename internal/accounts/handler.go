package accounts

import (
	"errors"
	"net/http"
	"strconv"

	"mms-goldcore/internal/httputil"
	"mms-goldcore/internal/ledger"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc    *Service
	ledger *ledger.Service
}

func NewHandler(svc *Service, lg *ledger.Service) *Handler {
	return &Handler{svc: svc, ledger: lg}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, userID string) {
	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.ledger.Entries(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": entries})
}

type transferRequest struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

// Deposit and Withdraw sit behind the internal token: payment rails
// call them, never end users.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.readTransfer(w, r)
	if !ok {
		return
	}
	entry, err := h.svc.Deposit(r.Context(), req.AccountID, amount, req.Reference)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.readTransfer(w, r)
	if !ok {
		return
	}
	entry, err := h.svc.Withdraw(r.Context(), req.AccountID, amount, req.Reference)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) readTransfer(w http.ResponseWriter, r *http.Request) (transferRequest, decimal.Decimal, bool) {
	var req transferRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return req, decimal.Zero, false
	}
	if req.AccountID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "account_id is required"})
		return req, decimal.Zero, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return req, decimal.Zero, false
	}
	return req, amount, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAccountSuspended):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
