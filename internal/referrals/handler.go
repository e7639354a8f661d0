package referrals

import (
	"errors"
	"net/http"

	"mms-goldcore/internal/httputil"
	"mms-goldcore/internal/ledger"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request, userID string) {
	stats, err := h.svc.StatsFor(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) Commissions(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := h.svc.Commissions(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func statusFor(err error) int {
	if errors.Is(err, ledger.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
