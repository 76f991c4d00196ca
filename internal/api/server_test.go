package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/ledger"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
)

// setupTest creates a server backed by a fresh in-memory database.
func setupTest(t *testing.T) *Server {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	cfg := config.Ledger{InitialBalance: 10000, PriceWarningThreshold: 0.2, MaxConflictRetries: 3, BcryptCost: bcrypt.MinCost}
	svc := ledger.NewService(zap.NewNop(), cfg, store.New(db))
	return NewServer(config.Server{Port: 0}, svc, zap.NewNop())
}

// do sends a JSON request and decodes the response into out when given.
func do(t *testing.T, s *Server, method, path string, body any, out any) int {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestHealthAndStatus(t *testing.T) {
	s := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	var status map[string]string
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/status", nil, &status))
	assert.Equal(t, "stock-ledger", status["name"])
	assert.NotEmpty(t, status["uptime"])
}

func TestTradeFlow(t *testing.T) {
	s := setupTest(t)

	var user models.User
	code := do(t, s, http.MethodPost, "/api/v1/users", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "password123", "initial_balance": "1000",
	}, &user)
	require.Equal(t, http.StatusCreated, code)

	var stock models.Stock
	code = do(t, s, http.MethodPost, "/api/v1/stocks", map[string]any{
		"ticker": "acme", "company_name": "Acme Corp", "current_price": "100", "market_cap": 1000000, "sector": "Industrials",
	}, &stock)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "ACME", stock.Ticker)

	var portfolio models.Portfolio
	code = do(t, s, http.MethodPost, "/api/v1/portfolios", map[string]any{"user_id": user.ID, "name": "main"}, &portfolio)
	require.Equal(t, http.StatusCreated, code)

	trade := func(side string, qty int, price string) (int, ledger.TradeResult, ErrorResponse) {
		body := map[string]any{
			"user_id": user.ID, "portfolio_id": portfolio.ID, "stock_id": stock.ID,
			"type": side, "quantity": qty, "price_per_share": price,
		}
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		var res ledger.TradeResult
		var errResp ErrorResponse
		if rec.Code == http.StatusCreated {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		} else {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		}
		return rec.Code, res, errResp
	}

	code, res, _ := trade("BUY", 5, "100")
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, decimal.NewFromInt(500).Equal(res.UpdatedBalance))

	code, res, _ = trade("SELL", 3, "120")
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, decimal.NewFromInt(860).Equal(res.UpdatedBalance))

	code, _, errResp := trade("SELL", 3, "120")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, apperr.ErrInsufficientHoldings.Error(), errResp.Kind)

	code, _, errResp = trade("HOLD", 1, "100")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, apperr.ErrValidation.Error(), errResp.Kind)

	var got models.User
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", user.ID), nil, &got))
	assert.True(t, decimal.NewFromInt(860).Equal(got.Balance))

	var valuation ledger.Valuation
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, fmt.Sprintf("/api/v1/portfolios/%d/valuation", portfolio.ID), nil, &valuation))
	assert.True(t, decimal.NewFromInt(200).Equal(valuation.TotalValue))

	var txs []models.Transaction
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/transactions", user.ID), nil, &txs))
	assert.Len(t, txs, 2)

	var reversed ledger.TradeResult
	code = do(t, s, http.MethodPost, fmt.Sprintf("/api/v1/transactions/%d/reverse", txs[0].ID), map[string]any{"user_id": user.ID}, &reversed)
	require.Equal(t, http.StatusCreated, code)
	require.NotNil(t, reversed.Transaction.ReversalOf)
	assert.Equal(t, txs[0].ID, *reversed.Transaction.ReversalOf)
}

func TestErrorStatuses(t *testing.T) {
	s := setupTest(t)

	var owner, other models.User
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/users", map[string]any{
		"username": "owner", "email": "owner@example.com", "password": "password123",
	}, &owner))
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/users", map[string]any{
		"username": "other", "email": "other@example.com", "password": "password123",
	}, &other))
	assert.True(t, decimal.NewFromInt(10000).Equal(owner.Balance), "default initial balance")

	var stock models.Stock
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/stocks", map[string]any{
		"ticker": "ACME", "company_name": "Acme Corp", "current_price": "100", "market_cap": 1000000,
	}, &stock))
	var portfolio models.Portfolio
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/portfolios", map[string]any{"user_id": owner.ID, "name": "main"}, &portfolio))

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown user", http.MethodGet, "/api/v1/users/999", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/users/abc", nil, http.StatusBadRequest},
		{"duplicate user", http.MethodPost, "/api/v1/users", map[string]any{"username": "owner", "email": "x@example.com", "password": "password123"}, http.StatusConflict},
		{"invalid user", http.MethodPost, "/api/v1/users", map[string]any{"username": "x", "email": "nope", "password": "1"}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/stocks", "not an object", http.StatusBadRequest},
		{"foreign portfolio", http.MethodPost, "/api/v1/transactions", map[string]any{
			"user_id": other.ID, "portfolio_id": portfolio.ID, "stock_id": stock.ID, "type": "BUY", "quantity": 1, "price_per_share": "100",
		}, http.StatusForbidden},
		{"too expensive", http.MethodPost, "/api/v1/transactions", map[string]any{
			"user_id": owner.ID, "portfolio_id": portfolio.ID, "stock_id": stock.ID, "type": "BUY", "quantity": 1000, "price_per_share": "100",
		}, http.StatusUnprocessableEntity},
		{"overdraw", http.MethodPost, fmt.Sprintf("/api/v1/users/%d/balance", owner.ID), map[string]any{"amount": "20000", "operation": "subtract"}, http.StatusUnprocessableEntity},
		{"bad query", http.MethodGet, "/api/v1/transactions?user_id=x", nil, http.StatusBadRequest},
		{"delete missing stock", http.MethodDelete, "/api/v1/stocks/42", nil, http.StatusNotFound},
		{"remove missing watchlist entry", http.MethodDelete, fmt.Sprintf("/api/v1/users/%d/watchlist/1", other.ID), nil, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var resp ErrorResponse
			assert.Equal(t, tc.want, do(t, s, tc.method, tc.path, tc.body, &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestWatchlistAndAlerts(t *testing.T) {
	s := setupTest(t)

	var user models.User
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/users", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "password123",
	}, &user))
	var stock models.Stock
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/v1/stocks", map[string]any{
		"ticker": "ACME", "company_name": "Acme Corp", "current_price": "100", "market_cap": 1000000,
	}, &stock))

	var entry models.WatchlistEntry
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/watchlist", user.ID), map[string]any{
		"stock_id": stock.ID, "target_price": "120", "alert_enabled": true,
	}, &entry))
	assert.Equal(t, models.AlertAbove, entry.Direction)

	var alerts []ledger.TriggeredAlert
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/alerts", user.ID), nil, &alerts))
	assert.Empty(t, alerts)

	var change ledger.PriceChange
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPut, fmt.Sprintf("/api/v1/stocks/%d/price", stock.ID), map[string]any{"price": "125"}, &change))
	assert.NotEmpty(t, change.Warning)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/alerts", user.ID), nil, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "ACME", alerts[0].Ticker)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d/watchlist/%d", user.ID, entry.ID), nil, nil))
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("User", 1), http.StatusNotFound},
		{fmt.Errorf("%w: x", apperr.ErrOwnership), http.StatusForbidden},
		{fmt.Errorf("%w: x", apperr.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", apperr.ErrInsufficientHoldings), http.StatusUnprocessableEntity},
		{apperr.Validation("x"), http.StatusBadRequest},
		{fmt.Errorf("retry: %w", apperr.ErrConcurrencyConflict), http.StatusConflict},
		{apperr.ErrDuplicate, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}
