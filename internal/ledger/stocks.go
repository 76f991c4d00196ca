package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// StockInput carries the fields of a new instrument.
type StockInput struct {
	Ticker       string          `json:"ticker"`
	CompanyName  string          `json:"company_name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketCap    int64           `json:"market_cap"`
	Sector       string          `json:"sector"`
	Industry     string          `json:"industry,omitempty"`
}

// StockFilter narrows ListStocks. Empty fields match everything.
type StockFilter struct {
	Ticker string
	Sector string
}

// PriceChange describes a stock price update and its effect on portfolios.
type PriceChange struct {
	Stock         models.Stock    `json:"stock"`
	OldPrice      decimal.Decimal `json:"old_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Warning       string          `json:"warning,omitempty"`
	// Revalued lists the portfolios whose total value was refreshed.
	Revalued []uint `json:"revalued_portfolios"`
}

func (s *Service) CreateStock(ctx context.Context, in StockInput) (*models.Stock, error) {
	ticker, err := validation.NormalizeTicker(in.Ticker)
	if err != nil {
		return nil, err
	}
	if err := validation.Stock(ticker, in.CompanyName, in.CurrentPrice, in.MarketCap); err != nil {
		return nil, err
	}
	stock := &models.Stock{
		Ticker:       ticker,
		CompanyName:  strings.TrimSpace(in.CompanyName),
		CurrentPrice: in.CurrentPrice,
		MarketCap:    in.MarketCap,
		Sector:       in.Sector,
		Industry:     in.Industry,
	}
	if err := s.gw.Insert(ctx, stock); err != nil {
		return nil, err
	}
	s.logger.Info("Stock created", zap.Uint("stock_id", stock.ID), zap.String("ticker", stock.Ticker))
	return stock, nil
}

func (s *Service) GetStock(ctx context.Context, id uint) (*models.Stock, error) {
	if err := validation.ID("stock_id", id); err != nil {
		return nil, err
	}
	var stock models.Stock
	if err := s.gw.Get(ctx, &stock, id); err != nil {
		return nil, err
	}
	return &stock, nil
}

// GetStockByTicker looks a stock up by its normalized ticker.
func (s *Service) GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error) {
	ticker, err := validation.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	var stocks []models.Stock
	if err := s.gw.Find(ctx, &stocks, store.Query{Where: map[string]any{"ticker": ticker}, Limit: 1}); err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("%w: stock %s", apperr.ErrNotFound, ticker)
	}
	return &stocks[0], nil
}

func (s *Service) ListStocks(ctx context.Context, f StockFilter) ([]models.Stock, error) {
	where := map[string]any{}
	if f.Ticker != "" {
		ticker, err := validation.NormalizeTicker(f.Ticker)
		if err != nil {
			return nil, err
		}
		where["ticker"] = ticker
	}
	if f.Sector != "" {
		where["sector"] = f.Sector
	}
	stocks := []models.Stock{}
	if err := s.gw.Find(ctx, &stocks, store.Query{Where: where, Order: "ticker"}); err != nil {
		return nil, err
	}
	return stocks, nil
}

// UpdateStockPrice sets a new current price and revalues, in the same unit of work, every
// portfolio with a transaction in the stock. A move larger than the warning threshold is
// reported but still applied.
func (s *Service) UpdateStockPrice(ctx context.Context, id uint, price decimal.Decimal) (*PriceChange, error) {
	if err := validation.ID("stock_id", id); err != nil {
		return nil, err
	}
	if err := validation.Price("current_price", price); err != nil {
		return nil, err
	}

	var change *PriceChange
	err := s.gw.WithUnitOfWork(ctx, func(tx store.Gateway) error {
		var stock models.Stock
		if err := tx.Get(ctx, &stock, id); err != nil {
			return err
		}
		old := stock.CurrentPrice
		if err := tx.Update(ctx, &models.Stock{}, id, map[string]any{"current_price": price}); err != nil {
			return err
		}
		stock.CurrentPrice = price

		var txs []models.Transaction
		if err := tx.Find(ctx, &txs, store.Query{Where: map[string]any{"stock_id": id}, Order: "portfolio_id"}); err != nil {
			return err
		}
		revalued := []uint{}
		seen := make(map[uint]bool)
		for _, t := range txs {
			if seen[t.PortfolioID] {
				continue
			}
			seen[t.PortfolioID] = true
			if _, err := revalue(ctx, tx, t.PortfolioID); err != nil {
				return fmt.Errorf("failed to revalue portfolio %d: %w", t.PortfolioID, err)
			}
			revalued = append(revalued, t.PortfolioID)
		}

		change = &PriceChange{Stock: stock, OldPrice: old, NewPrice: price, ChangePercent: decimal.Zero, Revalued: revalued}
		if old.IsPositive() {
			ratio := price.Sub(old).Div(old)
			change.ChangePercent = ratio.Shift(2).Round(2)
			if s.cfg.PriceWarningThreshold > 0 && ratio.Abs().GreaterThan(decimal.NewFromFloat(s.cfg.PriceWarningThreshold)) {
				change.Warning = fmt.Sprintf("large price change of %s%% for %s", change.ChangePercent.StringFixed(2), stock.Ticker)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l := s.logger.With(zap.Uint("stock_id", id), zap.String("old_price", change.OldPrice.String()), zap.String("new_price", price.String()))
	if change.Warning != "" {
		l.Warn("Large stock price change", zap.String("change_percent", change.ChangePercent.String()))
	} else {
		l.Info("Stock price updated", zap.Int("revalued", len(change.Revalued)))
	}
	return change, nil
}

// DeleteStock removes an instrument and the watchlist entries following it.
// Stocks referenced by transactions are kept.
func (s *Service) DeleteStock(ctx context.Context, id uint) error {
	if err := validation.ID("stock_id", id); err != nil {
		return err
	}
	err := s.gw.WithUnitOfWork(ctx, func(tx store.Gateway) error {
		var stock models.Stock
		if err := tx.Get(ctx, &stock, id); err != nil {
			return err
		}
		referenced := store.Query{Where: map[string]any{"stock_id": id}}
		n, err := tx.Count(ctx, &models.Transaction{}, referenced)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("stock %s is referenced by %d transactions and cannot be deleted", stock.Ticker, n)
		}
		if err := tx.DeleteWhere(ctx, &models.WatchlistEntry{}, referenced); err != nil {
			return err
		}
		return tx.Delete(ctx, &models.Stock{}, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Stock deleted", zap.Uint("stock_id", id))
	return nil
}
