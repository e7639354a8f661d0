package httpserver

import (
	"net/http"

	"mms-goldcore/internal/accounts"
	"mms-goldcore/internal/auth"
	"mms-goldcore/internal/httputil"
	"mms-goldcore/internal/investments"
	"mms-goldcore/internal/marketdata"
	"mms-goldcore/internal/metrics"
	"mms-goldcore/internal/positions"
	"mms-goldcore/internal/referrals"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	AuthHandler        *auth.Handler
	AccountsHandler    *accounts.Handler
	PositionsHandler   *positions.Handler
	InvestmentsHandler *investments.Handler
	ReferralsHandler   *referrals.Handler
	MarketHandler      *marketdata.Handler
	AuthService        *auth.Service
	InternalToken      string
	CORSOrigin         string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(corsMiddleware(d.CORSOrigin))
	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Get("/market/instruments", d.MarketHandler.Instruments)
		r.Get("/market/quote", d.MarketHandler.Quote)
		r.Get("/market/ws", d.MarketHandler.WS.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", withUser(d.AccountsHandler.Me))
			r.Get("/balance", withUser(d.AccountsHandler.Balance))
			r.Get("/transactions", withUser(d.AccountsHandler.Transactions))

			r.Post("/positions", withUser(d.PositionsHandler.Open))
			r.Get("/positions", withUser(d.PositionsHandler.List))
			r.Get("/positions/{id}", withUserID(d.PositionsHandler.Get))
			r.Post("/positions/{id}/close", withUserID(d.PositionsHandler.Close))

			r.Get("/investments/plans", d.InvestmentsHandler.Plans)
			r.Post("/investments", withUser(d.InvestmentsHandler.Create))
			r.Get("/investments", withUser(d.InvestmentsHandler.List))
			r.Get("/investments/{id}", withUserID(d.InvestmentsHandler.Get))
			r.Post("/investments/{id}/sell", withUserID(d.InvestmentsHandler.Sell))
			r.Post("/investments/{id}/renew", withUserID(d.InvestmentsHandler.Renew))

			r.Get("/referrals/stats", withUser(d.ReferralsHandler.Stats))
			r.Get("/referrals/commissions", withUser(d.ReferralsHandler.Commissions))
		})

		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalToken))
			r.Post("/internal/deposits", d.AccountsHandler.Deposit)
			r.Post("/internal/withdrawals", d.AccountsHandler.Withdraw)
		})
	})
	return r
}

func withUser(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}

func withUserID(h func(http.ResponseWriter, *http.Request, string, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID, chi.URLParam(r, "id"))
	}
}

func corsMiddleware(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
