package positions

import (
	"errors"
	"net/http"
	"strings"

	"mms-goldcore/internal/httputil"
	"mms-goldcore/internal/ledger"
	"mms-goldcore/internal/pricefeed"
	"mms-goldcore/internal/types"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type openRequest struct {
	Instrument string `json:"instrument"`
	Side       string `json:"side"`
	Amount     string `json:"amount"`
	Leverage   string `json:"leverage"`
	StopLoss   string `json:"stop_loss"`
	TakeProfit string `json:"take_profit"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request, userID string) {
	var req openRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	instrument := strings.ToUpper(strings.TrimSpace(req.Instrument))
	if instrument == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "instrument is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	open := OpenRequest{
		AccountID:  userID,
		Instrument: instrument,
		Side:       types.PositionSide(strings.ToLower(req.Side)),
		Amount:     amount,
	}
	if req.Leverage != "" {
		lev, err := decimal.NewFromString(req.Leverage)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid leverage"})
			return
		}
		open.Leverage = lev
	}
	if req.StopLoss != "" {
		sl, err := decimal.NewFromString(req.StopLoss)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid stop_loss"})
			return
		}
		open.StopLoss = &sl
	}
	if req.TakeProfit != "" {
		tp, err := decimal.NewFromString(req.TakeProfit)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid take_profit"})
			return
		}
		open.TakeProfit = &tp
	}
	p, err := h.svc.Open(r.Context(), open)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request, userID, positionID string) {
	p, err := h.svc.Close(r.Context(), userID, positionID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, userID, positionID string) {
	p, err := h.svc.Get(r.Context(), userID, positionID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
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
	case errors.Is(err, ErrInsufficientMargin),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrBelowMinimumTrade),
		errors.Is(err, ErrInvalidLeverage),
		errors.Is(err, ErrInvalidSide),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, pricefeed.ErrUnknownInstrument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
