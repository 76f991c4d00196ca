package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stock-portfolio-ledger/internal/ledger"
	"stock-portfolio-ledger/internal/models"
)

// TradeRequest is the body of POST /transactions.
type TradeRequest struct {
	UserID        uint                   `json:"user_id" binding:"required"`
	PortfolioID   uint                   `json:"portfolio_id" binding:"required"`
	StockID       uint                   `json:"stock_id" binding:"required"`
	Type          models.TransactionType `json:"type" binding:"required"`
	Quantity      int64                  `json:"quantity"`
	PricePerShare decimal.Decimal        `json:"price_per_share"`
	Notes         string                 `json:"notes,omitempty"`
}

// ReverseRequest is the body of POST /transactions/:id/reverse.
type ReverseRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Notes  string `json:"notes,omitempty"`
}

// WatchlistRequest is the body of PUT /users/:id/watchlist.
type WatchlistRequest struct {
	StockID      uint                  `json:"stock_id" binding:"required"`
	TargetPrice  decimal.NullDecimal   `json:"target_price"`
	AlertEnabled bool                  `json:"alert_enabled"`
	Direction    models.AlertDirection `json:"direction,omitempty"`
	Notes        string                `json:"notes,omitempty"`
}

// PriceRequest is the body of PUT /stocks/:id/price.
type PriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// Users

func (s *Server) registerUser(c *gin.Context) {
	var input ledger.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.svc.RegisterUser(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.svc.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := s.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteUser(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adjustBalance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var adj ledger.BalanceAdjustment
	if err := c.ShouldBindJSON(&adj); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.svc.AdjustBalance(c.Request.Context(), id, adj)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) listUserPortfolios(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, err := s.svc.GetUser(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	s.writePortfolios(c, id)
}

func (s *Server) listUserTransactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s.writeTransactions(c, ledger.TransactionFilter{UserID: id})
}

func (s *Server) listWatchlist(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	entries, err := s.svc.ListWatchlist(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) upsertWatchlist(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req WatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := s.svc.UpsertWatchlist(c.Request.Context(), ledger.WatchlistUpsertCommand{
		UserID:       id,
		StockID:      req.StockID,
		TargetPrice:  req.TargetPrice,
		AlertEnabled: req.AlertEnabled,
		Direction:    req.Direction,
		Notes:        req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) removeWatchlistEntry(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	entryID, ok := idParam(c, "entry")
	if !ok {
		return
	}
	if err := s.svc.RemoveWatchlistEntry(c.Request.Context(), id, entryID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) evaluateAlerts(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	alerts, err := s.svc.EvaluateAlerts(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// Stocks

func (s *Server) createStock(c *gin.Context) {
	var input ledger.StockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	stock, err := s.svc.CreateStock(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, stock)
}

func (s *Server) listStocks(c *gin.Context) {
	stocks, err := s.svc.ListStocks(c.Request.Context(), ledger.StockFilter{
		Ticker: c.Query("ticker"),
		Sector: c.Query("sector"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

func (s *Server) getStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	stock, err := s.svc.GetStock(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (s *Server) updateStockPrice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	change, err := s.svc.UpdateStockPrice(c.Request.Context(), id, req.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

func (s *Server) deleteStock(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteStock(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listStockTransactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s.writeTransactions(c, ledger.TransactionFilter{StockID: id})
}

// Portfolios

func (s *Server) createPortfolio(c *gin.Context) {
	var input ledger.PortfolioInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	portfolio, err := s.svc.CreatePortfolio(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, portfolio)
}

func (s *Server) listPortfolios(c *gin.Context) {
	userID, ok := idQuery(c, "user_id")
	if !ok {
		return
	}
	s.writePortfolios(c, userID)
}

func (s *Server) getPortfolio(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	portfolio, err := s.svc.GetPortfolio(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

func (s *Server) deletePortfolio(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.svc.DeletePortfolio(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) valuatePortfolio(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	valuation, err := s.svc.ValuatePortfolio(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, valuation)
}

func (s *Server) listPortfolioTransactions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s.writeTransactions(c, ledger.TransactionFilter{PortfolioID: id})
}

// Transactions

func (s *Server) processTrade(c *gin.Context) {
	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd, err := ledger.NewTradeCommand(req.Type, req.UserID, req.PortfolioID, req.StockID, req.Quantity, req.PricePerShare, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	result, err := s.svc.ProcessTrade(c.Request.Context(), cmd)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) listTransactions(c *gin.Context) {
	var f ledger.TransactionFilter
	var ok bool
	if f.UserID, ok = idQuery(c, "user_id"); !ok {
		return
	}
	if f.StockID, ok = idQuery(c, "stock_id"); !ok {
		return
	}
	if f.PortfolioID, ok = idQuery(c, "portfolio_id"); !ok {
		return
	}
	s.writeTransactions(c, f)
}

func (s *Server) getTransaction(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := s.svc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) reverseTransaction(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.svc.ReverseTransaction(c.Request.Context(), ledger.ReverseCommand{UserID: req.UserID, TransactionID: id, Notes: req.Notes})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) writePortfolios(c *gin.Context, userID uint) {
	portfolios, err := s.svc.ListPortfolios(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolios)
}

func (s *Server) writeTransactions(c *gin.Context, f ledger.TransactionFilter) {
	txs, err := s.svc.ListTransactions(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
