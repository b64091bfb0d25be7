package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"funds_tracker/internal/auth"
	cfg "funds_tracker/internal/config"
	"funds_tracker/internal/gateways/http/dto"
	"funds_tracker/internal/metrics"
	"funds_tracker/internal/notification"
	"funds_tracker/internal/repository/memory"
	"funds_tracker/internal/usecase"
)

var (
	router = gin.New()
	engine *usecase.Engine
)

func init() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	store.SeedFunds()

	tokens, err := auth.NewJWTIssuer("test-secret", "funds-tracker", "funds-tracker-api", time.Hour)
	if err != nil {
		panic(err)
	}
	reg := prometheus.NewRegistry()
	collectors, err := metrics.New(reg)
	if err != nil {
		panic(err)
	}
	sender := notification.LogSender{Channel: notification.ChannelEmail, Log: log}
	engine = usecase.NewEngine(store, store, store, store,
		notification.NewDispatcher(sender, sender, log),
		usecase.WithEngineLogger(log),
		usecase.WithObserver(collectors),
	)

	router = SetupGin(cfg.Config{Env: "local"}, UseCases{
		Engine:   engine,
		Accounts: usecase.NewAccounts(store, auth.BcryptHasher{Cost: bcrypt.MinCost}, tokens, decimal.Zero),
		Catalog:  usecase.NewCatalog(store),
		Ledger:   usecase.NewLedger(store),
	}, Probes{Gatherer: reg, Requests: collectors}, log)
}

func serve(method, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, _ := http.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Add("Content-Type", "application/json")
	}
	req.Header.Add("Accept", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, email string) dto.Session {
	t.Helper()
	w := serve(http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"`+email+`","password":"password123","phone":"+573001234567","notification_preference":"both"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s dto.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	return s
}

func balanceOf(t *testing.T, token string) decimal.Decimal {
	t.Helper()
	w := serve(http.MethodGet, "/api/v1/customer/balance", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var b dto.Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b.Balance
}

// Unknown paths answer 404 for every method.
func TestUnknownRoute(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{http.MethodGet, http.MethodGet, http.StatusNotFound},
		{http.MethodPost, http.MethodPost, http.StatusNotFound},
		{http.MethodPut, http.MethodPut, http.StatusNotFound},
		{http.MethodDelete, http.MethodDelete, http.StatusNotFound},
		{http.MethodHead, http.MethodHead, http.StatusNotFound},
		{http.MethodOptions, http.MethodOptions, http.StatusNotFound},
		{http.MethodPatch, http.MethodPatch, http.StatusNotFound},
		{http.MethodConnect, http.MethodConnect, http.StatusNotFound},
		{http.MethodTrace, http.MethodTrace, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(tt.input, "/unknown", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestOperationalRoutes(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/ping", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/health", "", "").Code)

	serve(http.MethodGet, "/ping", "", "")
	w := serve(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "funds_tracker_http_request_duration_seconds")
}

// /api/v1/auth
func TestAuthRoutes(t *testing.T) {
	register(t, "auth.routes@example.com")

	tests := []struct {
		name        string
		path        string
		body        string
		contentType string
		accept      string
		want        int
	}{
		{"register duplicate email 409", "/api/v1/auth/register", `{"email":"Auth.Routes@example.com","password":"password123"}`, "application/json", "", http.StatusConflict},
		{"register bad email 422", "/api/v1/auth/register", `{"email":"nope","password":"password123"}`, "application/json", "", http.StatusUnprocessableEntity},
		{"register short password 422", "/api/v1/auth/register", `{"email":"short@example.com","password":"123"}`, "application/json", "", http.StatusUnprocessableEntity},
		{"register syntax error 400", "/api/v1/auth/register", `{ bad json }`, "application/json", "", http.StatusBadRequest},
		{"register xml body 415", "/api/v1/auth/register", `<x/>`, "application/xml", "", http.StatusUnsupportedMediaType},
		{"register xml accept 406", "/api/v1/auth/register", `{}`, "application/json", "application/xml", http.StatusNotAcceptable},
		{"login ok 200", "/api/v1/auth/login", `{"email":"auth.routes@example.com","password":"password123"}`, "application/json", "", http.StatusOK},
		{"login wrong password 401", "/api/v1/auth/login", `{"email":"auth.routes@example.com","password":"wrong-pass"}`, "application/json", "", http.StatusUnauthorized},
		{"login unknown email 401", "/api/v1/auth/login", `{"email":"ghost@example.com","password":"password123"}`, "application/json", "", http.StatusUnauthorized},
		{"login missing fields 422", "/api/v1/auth/login", `{}`, "application/json", "", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Add("Content-Type", tt.contentType)
			if tt.accept != "" {
				req.Header.Add("Accept", tt.accept)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.True(t, json.Valid(w.Body.Bytes()))
		})
	}
}

// /api/v1/funds
func TestFundsRoutes(t *testing.T) {
	s := register(t, "funds.routes@example.com")

	t.Run("unauthorized_401", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/v1/funds", "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/v1/funds", "forged", "").Code)
	})
	t.Run("list_200", func(t *testing.T) {
		w := serve(http.MethodGet, "/api/v1/funds", s.AccessToken, "")
		require.Equal(t, http.StatusOK, w.Code)
		var funds []dto.Fund
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &funds))
		require.Len(t, funds, 5)
		assert.Equal(t, "FPV_BTG_PACTUAL_RECAUDADORA", funds[0].Name)
	})
	t.Run("get_200", func(t *testing.T) {
		w := serve(http.MethodGet, "/api/v1/funds/4", s.AccessToken, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "FDO-ACCIONES")
	})
	t.Run("get_unknown_404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/api/v1/funds/99", s.AccessToken, "").Code)
	})
	t.Run("method_not_allowed_405", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, serve(http.MethodPut, "/api/v1/funds", s.AccessToken, `{}`).Code)
	})
}

// /api/v1/subscriptions
func TestSubscriptionsRoutes(t *testing.T) {
	s := register(t, "subs.routes@example.com")
	base := "/api/v1/subscriptions"

	t.Run("POST_subscriptions", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want int
			code string
		}{
			{"valid_request_201", `{"fund_id":"1","amount":75000}`, http.StatusCreated, ""},
			{"already_subscribed_409", `{"fund_id":"1","amount":80000}`, http.StatusConflict, "already_subscribed"},
			{"below_minimum_422", `{"fund_id":"2","amount":"100000"}`, http.StatusUnprocessableEntity, "below_minimum_amount"},
			{"insufficient_balance_422", `{"fund_id":"4","amount":450000}`, http.StatusUnprocessableEntity, "insufficient_balance"},
			{"unknown_fund_404", `{"fund_id":"99","amount":100000}`, http.StatusNotFound, "fund_not_found"},
			{"zero_amount_422", `{"fund_id":"3","amount":0}`, http.StatusUnprocessableEntity, "validation_failed"},
			{"missing_fund_422", `{"amount":60000}`, http.StatusUnprocessableEntity, "validation_failed"},
			{"syntax_error_400", `{ bad json }`, http.StatusBadRequest, "bad_request"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := serve(http.MethodPost, base, s.AccessToken, tt.body)
				assert.Equal(t, tt.want, w.Code, w.Body.String())
				if tt.code != "" {
					var e dto.Error
					require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
					assert.Equal(t, tt.code, e.Code)
				}
			})
		}
		assert.True(t, decimal.NewFromInt(425_000).Equal(balanceOf(t, s.AccessToken)))
	})

	t.Run("GET_subscriptions", func(t *testing.T) {
		w := serve(http.MethodGet, base, s.AccessToken, "")
		require.Equal(t, http.StatusOK, w.Code)
		var subs []dto.Subscription
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subs))
		require.Len(t, subs, 1)
		assert.Equal(t, "1", subs[0].FundID)
		assert.Equal(t, "Active", subs[0].Status)
	})

	t.Run("requested_unsupported_body_format_406", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, base, nil)
		req.Header.Add("Accept", "application/xml")
		req.Header.Add("Authorization", "Bearer "+s.AccessToken)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotAcceptable, w.Code)
	})

	t.Run("DELETE_subscriptions", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, serve(http.MethodDelete, base+"/1", s.AccessToken, "").Code)
		assert.Equal(t, http.StatusNotFound, serve(http.MethodDelete, base+"/1", s.AccessToken, "").Code)
		assert.Equal(t, http.StatusNotFound, serve(http.MethodDelete, base+"/3", s.AccessToken, "").Code)
		assert.True(t, decimal.NewFromInt(500_000).Equal(balanceOf(t, s.AccessToken)))

		w := serve(http.MethodGet, base, s.AccessToken, "")
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("OPTIONS_subscriptions", func(t *testing.T) {
		w := serve(http.MethodOptions, base, s.AccessToken, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "POST,OPTIONS,GET", w.Header().Get("Allow"))
	})
	engine.Wait()
}

// /api/v1/transactions and /api/v1/customer
func TestLedgerAndCustomerRoutes(t *testing.T) {
	owner := register(t, "ledger.owner@example.com")
	other := register(t, "ledger.other@example.com")

	require.Equal(t, http.StatusCreated, serve(http.MethodPost, "/api/v1/subscriptions", owner.AccessToken, `{"fund_id":"3","amount":50000}`).Code)
	require.Equal(t, http.StatusNoContent, serve(http.MethodDelete, "/api/v1/subscriptions/3", owner.AccessToken, "").Code)

	w := serve(http.MethodGet, "/api/v1/transactions", owner.AccessToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var txs []dto.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "Cancellation", txs[0].Type)
	assert.Equal(t, "Subscription", txs[1].Type)
	for _, tx := range txs {
		assert.Equal(t, "Completed", tx.Status)
		assert.True(t, decimal.NewFromInt(50_000).Equal(tx.Amount))
	}

	id := txs[0].ID.String()
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/transactions/"+id, owner.AccessToken, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/api/v1/transactions/"+id, other.AccessToken, "").Code)

	w = serve(http.MethodGet, "/api/v1/transactions", other.AccessToken, "")
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.Equal(t, http.StatusNoContent,
		serve(http.MethodPut, "/api/v1/customer/notification-preference", owner.AccessToken, `{"notification_preference":"SMS"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		serve(http.MethodPut, "/api/v1/customer/notification-preference", owner.AccessToken, `{"notification_preference":"fax"}`).Code)
	engine.Wait()
}
