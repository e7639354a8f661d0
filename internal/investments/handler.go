package investments

import (
	"errors"
	"net/http"

	"mms-goldcore/internal/httputil"
	"mms-goldcore/internal/ledger"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": Plans()})
}

type createRequest struct {
	PlanID string `json:"plan_id"`
	Amount string `json:"amount"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request, userID string) {
	var req createRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	inv, err := h.svc.Create(r.Context(), userID, req.PlanID, amount)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request, userID, investmentID string) {
	payout, err := h.svc.Sell(r.Context(), userID, investmentID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"payout": payout.String()})
}

func (h *Handler) Renew(w http.ResponseWriter, r *http.Request, userID, investmentID string) {
	inv, err := h.svc.Renew(r.Context(), userID, investmentID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, userID, investmentID string) {
	inv, err := h.svc.Get(r.Context(), userID, investmentID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := h.svc.List(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrAccountSuspended):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrUnknownPlan),
		errors.Is(err, ErrAmountOutOfRange),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
