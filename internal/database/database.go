package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/logger"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/validation"
)

// NewDatabase opens the configured database and migrates the schema.
// The caller owns the returned handle and must release it with Close.
func NewDatabase(cfg config.Database, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log, cfg.SlowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the ledger tables. Existing rows are never dropped.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Seed creates the configured stocks that do not exist yet. Existing stocks keep their price.
func Seed(db *gorm.DB, stocks []config.SeedStock) error {
	for _, s := range stocks {
		ticker, err := validation.NormalizeTicker(s.Ticker)
		if err != nil {
			return fmt.Errorf("invalid seed stock: %w", err)
		}
		price := decimal.NewFromFloat(s.Price)
		if err := validation.Stock(ticker, s.CompanyName, price, s.MarketCap); err != nil {
			return fmt.Errorf("invalid seed stock %s: %w", ticker, err)
		}

		stock := models.Stock{
			Ticker:       ticker,
			CompanyName:  s.CompanyName,
			CurrentPrice: price,
			MarketCap:    s.MarketCap,
			Sector:       s.Sector,
			Industry:     s.Industry,
		}
		if err := db.FirstOrCreate(&stock, models.Stock{Ticker: ticker}).Error; err != nil {
			return fmt.Errorf("failed to populate stock '%s': %w", ticker, err)
		}
	}
	return nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
