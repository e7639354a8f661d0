package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mms-goldcore/internal/accounts"
	"mms-goldcore/internal/auth"
	"mms-goldcore/internal/investments"
	"mms-goldcore/internal/ledger"
	"mms-goldcore/internal/marketdata"
	"mms-goldcore/internal/positions"
	"mms-goldcore/internal/pricefeed"
	"mms-goldcore/internal/referrals"
	"mms-goldcore/internal/store"

	"github.com/shopspring/decimal"
)

const internalToken = "test-internal-token"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st := store.NewMemoryStore()
	feed := pricefeed.NewStatic()
	feed.SetMid("XAUUSD", decimal.RequireFromString("2385.50"))

	ledgerSvc := ledger.NewService(st)
	referralSvc := referrals.NewService(st)
	positionSvc := positions.NewService(st, feed, referralSvc)
	investmentSvc := investments.NewService(st)
	accountSvc := accounts.NewService(st, ledgerSvc, referralSvc)
	authSvc := auth.NewService(st, "goldcore-test", []byte("test-secret"), time.Hour)

	bus := marketdata.NewBus()
	return NewRouter(RouterDeps{
		AuthHandler:        auth.NewHandler(authSvc),
		AccountsHandler:    accounts.NewHandler(accountSvc, ledgerSvc),
		PositionsHandler:   positions.NewHandler(positionSvc),
		InvestmentsHandler: investments.NewHandler(investmentSvc),
		ReferralsHandler:   referrals.NewHandler(referralSvc),
		MarketHandler:      marketdata.NewHandler(feed, marketdata.NewWSHandler(bus, "*")),
		AuthService:        authSvc,
		InternalToken:      internalToken,
		CORSOrigin:         "*",
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any, internal bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "10.0.0.1:12345"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if internal {
		req.Header.Set("X-Internal-Token", internalToken)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func register(t *testing.T, router http.Handler, email, referralCode string) (userID, token, code string) {
	t.Helper()
	rec, out := doJSON(t, router, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":         email,
		"password":      "s3cret-pass",
		"name":          "Test User",
		"referral_code": referralCode,
	}, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", email, rec.Code, rec.Body)
	}
	return out["user_id"].(string), out["access_token"].(string), out["referral_code"].(string)
}

func TestTradingFlow(t *testing.T) {
	router := newTestRouter(t)

	_, referrerToken, referrerCode := register(t, router, "referrer@example.com", "")
	traderID, traderToken, _ := register(t, router, "trader@example.com", referrerCode)

	// fund the trader through the internal rail
	rec, _ := doJSON(t, router, http.MethodPost, "/v1/internal/deposits", "", map[string]string{
		"account_id": traderID,
		"amount":     "10000",
		"reference":  "wire-1",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit: status = %d, body = %s", rec.Code, rec.Body)
	}

	rec, out := doJSON(t, router, http.MethodGet, "/v1/balance", traderToken, nil, false)
	if rec.Code != http.StatusOK || out["balance"] != "10000" {
		t.Fatalf("balance: status = %d, body = %s", rec.Code, rec.Body)
	}

	// open, list, close
	rec, out = doJSON(t, router, http.MethodPost, "/v1/positions", traderToken, map[string]string{
		"instrument": "XAUUSD",
		"side":       "long",
		"amount":     "1000",
	}, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: status = %d, body = %s", rec.Code, rec.Body)
	}
	positionID := out["id"].(string)

	rec, out = doJSON(t, router, http.MethodGet, "/v1/positions", traderToken, nil, false)
	if rec.Code != http.StatusOK || len(out["items"].([]any)) != 1 {
		t.Fatalf("list: status = %d, body = %s", rec.Code, rec.Body)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/v1/positions/"+positionID+"/close", traderToken, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status = %d, body = %s", rec.Code, rec.Body)
	}
	// zero spread: the round trip restores the full balance
	rec, out = doJSON(t, router, http.MethodGet, "/v1/balance", traderToken, nil, false)
	if rec.Code != http.StatusOK || out["balance"] != "10000" {
		t.Fatalf("balance after close: status = %d, body = %s", rec.Code, rec.Body)
	}

	// the referrer accrued pending commissions from deposit and trade:
	// 10000*0.15*1.5 + 1000*0.15 = 2400
	rec, out = doJSON(t, router, http.MethodGet, "/v1/referrals/stats", referrerToken, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status = %d, body = %s", rec.Code, rec.Body)
	}
	if out["total_pending"] != "2400" {
		t.Fatalf("total_pending = %v, want 2400", out["total_pending"])
	}
}

func TestInvestmentFlow(t *testing.T) {
	router := newTestRouter(t)
	userID, token, _ := register(t, router, "investor@example.com", "")

	rec, _ := doJSON(t, router, http.MethodPost, "/v1/internal/deposits", "", map[string]string{
		"account_id": userID,
		"amount":     "5000",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit: status = %d", rec.Code)
	}

	rec, out := doJSON(t, router, http.MethodGet, "/v1/investments/plans", token, nil, false)
	if rec.Code != http.StatusOK || len(out["items"].([]any)) != 3 {
		t.Fatalf("plans: status = %d, body = %s", rec.Code, rec.Body)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/v1/investments", token, map[string]string{
		"plan_id": "3days",
		"amount":  "1000",
	}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("below-range create: status = %d, want 400", rec.Code)
	}

	rec, out = doJSON(t, router, http.MethodPost, "/v1/investments", token, map[string]string{
		"plan_id": "3days",
		"amount":  "2000",
	}, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body)
	}
	investmentID := out["id"].(string)

	rec, out = doJSON(t, router, http.MethodGet, "/v1/balance", token, nil, false)
	if rec.Code != http.StatusOK || out["balance"] != "3000" {
		t.Fatalf("balance: status = %d, body = %s", rec.Code, rec.Body)
	}

	// selling on day zero returns exactly the principal
	rec, out = doJSON(t, router, http.MethodPost, "/v1/investments/"+investmentID+"/sell", token, nil, false)
	if rec.Code != http.StatusOK || out["payout"] != "2000" {
		t.Fatalf("sell: status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/v1/balance", "", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodGet, "/v1/balance", "not-a-jwt", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodPost, "/v1/internal/deposits", "", map[string]string{
		"account_id": "x", "amount": "1",
	}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("internal without token: status = %d, want 401", rec.Code)
	}
}

func TestMarketEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec, out := doJSON(t, router, http.MethodGet, "/v1/market/quote?instrument=XAUUSD", "", nil, false)
	if rec.Code != http.StatusOK || out["bid"] != "2385.5" {
		t.Fatalf("quote: status = %d, body = %s", rec.Code, rec.Body)
	}
	rec, _ = doJSON(t, router, http.MethodGet, "/v1/market/quote?instrument=NOPE", "", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown instrument: status = %d, want 404", rec.Code)
	}
	rec, _ = doJSON(t, router, http.MethodGet, "/health", "", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d, want 200", rec.Code)
	}
}

func TestRegisterWithUnknownReferralCode(t *testing.T) {
	router := newTestRouter(t)
	rec, _ := doJSON(t, router, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email":         "orphan@example.com",
		"password":      "s3cret-pass",
		"referral_code": "MMS-DEAD-BEEF",
	}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
