// Package api exposes the ledger over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/ledger"
)

// Server provides an HTTP interface for the ledger.
type Server struct {
	server    *http.Server
	router    *gin.Engine
	svc       *ledger.Service
	logger    *zap.Logger
	startTime time.Time
}

// NewServer creates a new Server listening on the configured port.
func NewServer(cfg config.Server, svc *ledger.Service, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		svc:       svc,
		logger:    logger.Named("api-server"),
		startTime: time.Now(),
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/api/v1")
	v1.GET("/status", s.statusHandler)

	users := v1.Group("/users")
	{
		users.POST("", s.registerUser)
		users.GET("", s.listUsers)
		users.GET("/:id", s.getUser)
		users.DELETE("/:id", s.deleteUser)
		users.POST("/:id/balance", s.adjustBalance)
		users.GET("/:id/portfolios", s.listUserPortfolios)
		users.GET("/:id/transactions", s.listUserTransactions)
		users.GET("/:id/watchlist", s.listWatchlist)
		users.PUT("/:id/watchlist", s.upsertWatchlist)
		users.DELETE("/:id/watchlist/:entry", s.removeWatchlistEntry)
		users.GET("/:id/alerts", s.evaluateAlerts)
	}

	stocks := v1.Group("/stocks")
	{
		stocks.POST("", s.createStock)
		stocks.GET("", s.listStocks)
		stocks.GET("/:id", s.getStock)
		stocks.PUT("/:id/price", s.updateStockPrice)
		stocks.DELETE("/:id", s.deleteStock)
		stocks.GET("/:id/transactions", s.listStockTransactions)
	}

	portfolios := v1.Group("/portfolios")
	{
		portfolios.POST("", s.createPortfolio)
		portfolios.GET("", s.listPortfolios)
		portfolios.GET("/:id", s.getPortfolio)
		portfolios.DELETE("/:id", s.deletePortfolio)
		portfolios.GET("/:id/valuation", s.valuatePortfolio)
		portfolios.GET("/:id/transactions", s.listPortfolioTransactions)
	}

	transactions := v1.Group("/transactions")
	{
		transactions.POST("", s.processTrade)
		transactions.GET("", s.listTransactions)
		transactions.GET("/:id", s.getTransaction)
		transactions.POST("/:id/reverse", s.reverseTransaction)
	}
}

// requestLogger logs every request once it has been served.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("Request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		s.logger.Debug("Request served", fields...)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":       "stock-ledger",
		"start_time": s.startTime.Format(time.RFC3339),
		"uptime":     time.Since(s.startTime).String(),
	})
}
