package marketdata

import (
	"errors"
	"net/http"
	"strings"

	"mms-goldcore/internal/httputil"
	"mms-goldcore/internal/pricefeed"
)

type Handler struct {
	feed pricefeed.Source
	WS   *WSHandler
}

func NewHandler(feed pricefeed.Source, ws *WSHandler) *Handler {
	return &Handler{feed: feed, WS: ws}
}

func (h *Handler) Instruments(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": h.feed.Instruments()})
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	instrument := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("instrument")))
	if instrument == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "instrument is required"})
		return
	}
	q, err := h.feed.Quote(instrument)
	if err != nil {
		if errors.Is(err, pricefeed.ErrUnknownInstrument) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, q)
}
