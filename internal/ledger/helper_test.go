package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
)

var testLedgerConfig = config.Ledger{
	InitialBalance:        10000,
	PriceWarningThreshold: 0.20,
	MaxConflictRetries:    3,
	BcryptCost:            bcrypt.MinCost,
}

// openTestDB opens a fresh in-memory database. The caller closes it.
func openTestDB(t require.TestingT) (*gorm.DB, func()) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db, func() { sqlDB.Close() }
}

// setupTest creates a service over a fresh in-memory database.
func setupTest(t *testing.T) (*Service, *gorm.DB) {
	db, closeDB := openTestDB(t)
	t.Cleanup(closeDB)
	return NewService(zap.NewNop(), testLedgerConfig, store.New(db)), db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustUser(t require.TestingT, s *Service, name, balance string) *models.User {
	b := dec(balance)
	u, err := s.RegisterUser(context.Background(), RegisterInput{
		Username:       name,
		Email:          name + "@example.com",
		Password:       "password123",
		InitialBalance: &b,
	})
	require.NoError(t, err)
	return u
}

func mustStock(t require.TestingT, s *Service, ticker, price string) *models.Stock {
	st, err := s.CreateStock(context.Background(), StockInput{
		Ticker:       ticker,
		CompanyName:  ticker + " Inc.",
		CurrentPrice: dec(price),
		MarketCap:    1_000_000,
		Sector:       "Technology",
	})
	require.NoError(t, err)
	return st
}

func mustPortfolio(t require.TestingT, s *Service, userID uint, name string) *models.Portfolio {
	p, err := s.CreatePortfolio(context.Background(), PortfolioInput{UserID: userID, Name: name})
	require.NoError(t, err)
	return p
}

// balanceOf reads the persisted balance, bypassing the service.
func balanceOf(t *testing.T, db *gorm.DB, userID uint) decimal.Decimal {
	var u models.User
	require.NoError(t, db.First(&u, userID).Error)
	return u.Balance
}

func countTransactions(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&n).Error)
	return n
}
