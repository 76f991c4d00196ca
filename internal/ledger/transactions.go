package ledger

import (
	"context"

	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// TransactionFilter narrows ListTransactions. Zero fields match everything.
type TransactionFilter struct {
	UserID      uint
	StockID     uint
	PortfolioID uint
}

// ProcessTrade commits a buy or a sell.
func (s *Service) ProcessTrade(ctx context.Context, cmd TradeCommand) (*TradeResult, error) {
	return s.processor.Process(ctx, cmd)
}

// ReverseTransaction commits the compensating entry of a transaction.
func (s *Service) ReverseTransaction(ctx context.Context, cmd ReverseCommand) (*TradeResult, error) {
	return s.processor.Reverse(ctx, cmd)
}

func (s *Service) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	if err := validation.ID("transaction_id", id); err != nil {
		return nil, err
	}
	var t models.Transaction
	if err := s.gw.Get(ctx, &t, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransactions returns matching transactions, most recent first.
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	where := map[string]any{}
	if f.UserID != 0 {
		where["user_id"] = f.UserID
	}
	if f.StockID != 0 {
		where["stock_id"] = f.StockID
	}
	if f.PortfolioID != 0 {
		where["portfolio_id"] = f.PortfolioID
	}
	txs := []models.Transaction{}
	if err := s.gw.Find(ctx, &txs, store.Query{Where: where, Order: "executed_at desc, id desc"}); err != nil {
		return nil, err
	}
	return txs, nil
}
