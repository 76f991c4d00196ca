package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// TriggeredAlert is a watchlist entry whose stock has crossed its target price.
type TriggeredAlert struct {
	EntryID      uint                  `json:"entry_id"`
	StockID      uint                  `json:"stock_id"`
	Ticker       string                `json:"ticker"`
	Direction    models.AlertDirection `json:"direction"`
	TargetPrice  decimal.Decimal       `json:"target_price"`
	CurrentPrice decimal.Decimal       `json:"current_price"`
}

// AlertEvaluator checks a user's watchlist against current prices.
// Nothing is recorded about previous evaluations.
type AlertEvaluator struct {
	logger *zap.Logger
	gw     store.Gateway
}

func NewAlertEvaluator(logger *zap.Logger, gw store.Gateway) *AlertEvaluator {
	return &AlertEvaluator{logger: logger.Named("alerts"), gw: gw}
}

// Evaluate returns the alerts of userID that currently trigger, ordered by entry.
func (a *AlertEvaluator) Evaluate(ctx context.Context, userID uint) ([]TriggeredAlert, error) {
	if err := validation.ID("user_id", userID); err != nil {
		return nil, err
	}
	var user models.User
	if err := a.gw.Get(ctx, &user, userID); err != nil {
		return nil, err
	}

	var entries []models.WatchlistEntry
	q := store.Query{Where: map[string]any{"user_id": userID, "alert_enabled": true}, Order: "id"}
	if err := a.gw.Find(ctx, &entries, q); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		if e.TargetPrice.Valid {
			ids = append(ids, e.StockID)
		}
	}
	triggered := []TriggeredAlert{}
	if len(ids) == 0 {
		return triggered, nil
	}

	var stocks []models.Stock
	if err := a.gw.Find(ctx, &stocks, store.Query{Where: map[string]any{"id": ids}}); err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Stock, len(stocks))
	for _, s := range stocks {
		byID[s.ID] = s
	}

	for _, e := range entries {
		stock, ok := byID[e.StockID]
		if !ok || !crossed(e, stock.CurrentPrice) {
			continue
		}
		triggered = append(triggered, TriggeredAlert{
			EntryID:      e.ID,
			StockID:      stock.ID,
			Ticker:       stock.Ticker,
			Direction:    direction(e),
			TargetPrice:  e.TargetPrice.Decimal,
			CurrentPrice: stock.CurrentPrice,
		})
	}

	a.logger.Debug("Alerts evaluated",
		zap.Uint("user_id", userID),
		zap.Int("watched", len(entries)),
		zap.Int("triggered", len(triggered)))
	return triggered, nil
}

func crossed(e models.WatchlistEntry, current decimal.Decimal) bool {
	if !e.AlertEnabled || !e.TargetPrice.Valid {
		return false
	}
	if direction(e) == models.AlertBelow {
		return current.LessThanOrEqual(e.TargetPrice.Decimal)
	}
	return current.GreaterThanOrEqual(e.TargetPrice.Decimal)
}

func direction(e models.WatchlistEntry) models.AlertDirection {
	if e.Direction == "" {
		return models.AlertAbove
	}
	return e.Direction
}
