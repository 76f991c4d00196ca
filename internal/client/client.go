// Package client is a Go client for the ledger HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/ledger"
	"stock-portfolio-ledger/internal/models"
)

const apiPrefix = "/api/v1"

// LedgerClient defines the operations of the ledger API client.
type LedgerClient interface {
	Health(ctx context.Context) error
	RegisterUser(ctx context.Context, in ledger.RegisterInput) (*models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	AdjustBalance(ctx context.Context, userID uint, adj ledger.BalanceAdjustment) (*models.User, error)
	CreateStock(ctx context.Context, in ledger.StockInput) (*models.Stock, error)
	ListStocks(ctx context.Context, f ledger.StockFilter) ([]models.Stock, error)
	UpdateStockPrice(ctx context.Context, stockID uint, price decimal.Decimal) (*ledger.PriceChange, error)
	CreatePortfolio(ctx context.Context, in ledger.PortfolioInput) (*models.Portfolio, error)
	Valuation(ctx context.Context, portfolioID uint) (*ledger.Valuation, error)
	Trade(ctx context.Context, req TradeRequest) (*ledger.TradeResult, error)
	Reverse(ctx context.Context, userID, transactionID uint) (*ledger.TradeResult, error)
	ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]models.Transaction, error)
	UpsertWatchlist(ctx context.Context, userID uint, req WatchlistRequest) (*models.WatchlistEntry, error)
	Alerts(ctx context.Context, userID uint) ([]ledger.TriggeredAlert, error)
}

// TradeRequest is a buy or sell sent to the ledger.
type TradeRequest struct {
	UserID        uint                   `json:"user_id"`
	PortfolioID   uint                   `json:"portfolio_id"`
	StockID       uint                   `json:"stock_id"`
	Type          models.TransactionType `json:"type"`
	Quantity      int64                  `json:"quantity"`
	PricePerShare decimal.Decimal        `json:"price_per_share"`
	Notes         string                 `json:"notes,omitempty"`
}

// WatchlistRequest creates or replaces a watchlist entry.
type WatchlistRequest struct {
	StockID      uint                  `json:"stock_id"`
	TargetPrice  decimal.NullDecimal   `json:"target_price"`
	AlertEnabled bool                  `json:"alert_enabled"`
	Direction    models.AlertDirection `json:"direction,omitempty"`
	Notes        string                `json:"notes,omitempty"`
}

// APIError is a request the ledger answered with an error status.
// It unwraps to the matching apperr kind so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger api: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return apperr.Lookup(e.Kind)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Client is a rate limited client for the ledger API.
// It implements the LedgerClient.
type Client struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// ensure Client implements the interface
var _ LedgerClient = (*Client)(nil)

// New creates a new ledger API client.
func New(cfg config.Client, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	// rate.Limit is requests per second; zero or less means unlimited.
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	limiter := rate.NewLimiter(limit, cfg.RateLimitBurst)

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Client{
		client:     client,
		logger:     logger.Named("ledger-client"),
		limiter:    limiter,
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

// doRequest executes req with rate limiting. 429 answers are always retried with
// exponential backoff. Network failures and 5xx answers are retried only for idempotent
// methods, or when the connection was never established, so a trade the server may have
// committed is never sent twice. Any other error status is returned as an *APIError.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	req.SetContext(ctx).SetError(&errorBody{})

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= http.StatusInternalServerError:
				shouldRetry = idempotent(method)
			}
			err = apiError(resp)
		} else if ctx.Err() == nil {
			shouldRetry = idempotent(method) || neverSent(err)
		}

		if !shouldRetry {
			return nil, err
		}

		if retryAfter == 0 {
			retryAfter = c.backoff << i
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, err)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// neverSent reports whether err happened while dialing, before any byte reached the server.
func neverSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func apiError(resp *resty.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode(), Message: resp.Status()}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		e.Message = body.Error
		e.Kind = body.Kind
	}
	return e
}

// Health checks that the ledger is reachable.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", c.client.R()); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (c *Client) RegisterUser(ctx context.Context, in ledger.RegisterInput) (*models.User, error) {
	var user models.User
	req := c.client.R().SetBody(in).SetResult(&user)
	if _, err := c.doRequest(ctx, http.MethodPost, apiPrefix+"/users", req); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return &user, nil
}

func (c *Client) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	req := c.client.R().SetResult(&user)
	if _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/users/%d", apiPrefix, id), req); err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

func (c *Client) AdjustBalance(ctx context.Context, userID uint, adj ledger.BalanceAdjustment) (*models.User, error) {
	var user models.User
	req := c.client.R().SetBody(adj).SetResult(&user)
	if _, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/users/%d/balance", apiPrefix, userID), req); err != nil {
		return nil, fmt.Errorf("failed to adjust balance of user %d: %w", userID, err)
	}
	return &user, nil
}

func (c *Client) CreateStock(ctx context.Context, in ledger.StockInput) (*models.Stock, error) {
	var stock models.Stock
	req := c.client.R().SetBody(in).SetResult(&stock)
	if _, err := c.doRequest(ctx, http.MethodPost, apiPrefix+"/stocks", req); err != nil {
		return nil, fmt.Errorf("failed to create stock: %w", err)
	}
	return &stock, nil
}

func (c *Client) ListStocks(ctx context.Context, f ledger.StockFilter) ([]models.Stock, error) {
	var stocks []models.Stock
	req := c.client.R().SetResult(&stocks)
	if f.Ticker != "" {
		req.SetQueryParam("ticker", f.Ticker)
	}
	if f.Sector != "" {
		req.SetQueryParam("sector", f.Sector)
	}
	if _, err := c.doRequest(ctx, http.MethodGet, apiPrefix+"/stocks", req); err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	return stocks, nil
}

func (c *Client) UpdateStockPrice(ctx context.Context, stockID uint, price decimal.Decimal) (*ledger.PriceChange, error) {
	var change ledger.PriceChange
	req := c.client.R().SetBody(map[string]decimal.Decimal{"price": price}).SetResult(&change)
	if _, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("%s/stocks/%d/price", apiPrefix, stockID), req); err != nil {
		return nil, fmt.Errorf("failed to update price of stock %d: %w", stockID, err)
	}
	if change.Warning != "" {
		c.logger.Warn("Price update flagged", zap.Uint("stock_id", stockID), zap.String("warning", change.Warning))
	}
	return &change, nil
}

func (c *Client) CreatePortfolio(ctx context.Context, in ledger.PortfolioInput) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	req := c.client.R().SetBody(in).SetResult(&portfolio)
	if _, err := c.doRequest(ctx, http.MethodPost, apiPrefix+"/portfolios", req); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	return &portfolio, nil
}

func (c *Client) Valuation(ctx context.Context, portfolioID uint) (*ledger.Valuation, error) {
	var valuation ledger.Valuation
	req := c.client.R().SetResult(&valuation)
	if _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/portfolios/%d/valuation", apiPrefix, portfolioID), req); err != nil {
		return nil, fmt.Errorf("failed to valuate portfolio %d: %w", portfolioID, err)
	}
	return &valuation, nil
}

// Trade submits a buy or a sell. Advisories on the result are logged.
func (c *Client) Trade(ctx context.Context, tr TradeRequest) (*ledger.TradeResult, error) {
	var result ledger.TradeResult
	req := c.client.R().SetBody(tr).SetResult(&result)
	if _, err := c.doRequest(ctx, http.MethodPost, apiPrefix+"/transactions", req); err != nil {
		c.logger.Error("Trade failed",
			zap.Error(err),
			zap.String("type", string(tr.Type)),
			zap.Uint("stock_id", tr.StockID),
		)
		return nil, fmt.Errorf("failed to process trade: %w", err)
	}
	for _, a := range result.Advisories {
		c.logger.Warn("Trade advisory", zap.String("code", a.Code), zap.String("message", a.Message))
	}
	return &result, nil
}

func (c *Client) Reverse(ctx context.Context, userID, transactionID uint) (*ledger.TradeResult, error) {
	var result ledger.TradeResult
	req := c.client.R().SetBody(map[string]uint{"user_id": userID}).SetResult(&result)
	if _, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/transactions/%d/reverse", apiPrefix, transactionID), req); err != nil {
		return nil, fmt.Errorf("failed to reverse transaction %d: %w", transactionID, err)
	}
	return &result, nil
}

func (c *Client) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]models.Transaction, error) {
	var txs []models.Transaction
	req := c.client.R().SetResult(&txs)
	for name, id := range map[string]uint{"user_id": f.UserID, "stock_id": f.StockID, "portfolio_id": f.PortfolioID} {
		if id != 0 {
			req.SetQueryParam(name, strconv.FormatUint(uint64(id), 10))
		}
	}
	if _, err := c.doRequest(ctx, http.MethodGet, apiPrefix+"/transactions", req); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (c *Client) UpsertWatchlist(ctx context.Context, userID uint, wr WatchlistRequest) (*models.WatchlistEntry, error) {
	var entry models.WatchlistEntry
	req := c.client.R().SetBody(wr).SetResult(&entry)
	if _, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("%s/users/%d/watchlist", apiPrefix, userID), req); err != nil {
		return nil, fmt.Errorf("failed to save watchlist entry: %w", err)
	}
	return &entry, nil
}

func (c *Client) Alerts(ctx context.Context, userID uint) ([]ledger.TriggeredAlert, error) {
	var alerts []ledger.TriggeredAlert
	req := c.client.R().SetResult(&alerts)
	if _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/users/%d/alerts", apiPrefix, userID), req); err != nil {
		return nil, fmt.Errorf("failed to evaluate alerts of user %d: %w", userID, err)
	}
	return alerts, nil
}
