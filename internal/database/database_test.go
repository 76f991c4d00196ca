package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/models"
)

func TestNewDatabase_MigratesSchema(t *testing.T) {
	cfg := config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ledger.db"), MaxOpenConns: 1}

	db, err := NewDatabase(cfg, zap.NewNop())
	require.NoError(t, err)
	defer Close(db)

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestNewDatabase_UnknownDriver(t *testing.T) {
	_, err := NewDatabase(config.Database{Driver: "oracle"}, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestSeed(t *testing.T) {
	cfg := config.Database{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1}
	db, err := NewDatabase(cfg, zap.NewNop())
	require.NoError(t, err)
	defer Close(db)

	stocks := []config.SeedStock{
		{Ticker: "aapl", CompanyName: "Apple Inc.", Price: 190, MarketCap: 3_000_000, Sector: "Technology"},
		{Ticker: "XOM", CompanyName: "Exxon Mobil", Price: 110, MarketCap: 400_000, Sector: "Energy"},
	}
	require.NoError(t, Seed(db, stocks))

	// Seeding twice must not duplicate rows or reset prices.
	require.NoError(t, db.Model(&models.Stock{}).Where("ticker = ?", "AAPL").Update("current_price", "200").Error)
	require.NoError(t, Seed(db, stocks))

	var count int64
	db.Model(&models.Stock{}).Count(&count)
	assert.Equal(t, int64(2), count)

	var apple models.Stock
	require.NoError(t, db.First(&apple, "ticker = ?", "AAPL").Error)
	assert.Equal(t, "200", apple.CurrentPrice.String())
}

func TestSeed_RejectsInvalidStock(t *testing.T) {
	db, err := NewDatabase(config.Database{DSN: "file::memory:", MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	defer Close(db)

	err = Seed(db, []config.SeedStock{{Ticker: "BAD1", CompanyName: "Bad", Price: 1, MarketCap: 1}})
	assert.Error(t, err)
}
