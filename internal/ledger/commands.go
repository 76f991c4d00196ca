package ledger

import (
	"github.com/shopspring/decimal"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
)

// Command is the closed set of requests accepted by the ledger.
type Command interface {
	command()
}

// TradeCommand is a command that moves money and shares.
type TradeCommand interface {
	Command
	trade() trade
}

// trade is the normalized form every trade command reduces to.
type trade struct {
	UserID        uint
	PortfolioID   uint
	StockID       uint
	Type          models.TransactionType
	Quantity      int64
	PricePerShare decimal.Decimal
	Notes         string
	reversalOf    *uint
}

// BuyCommand debits the user and adds shares to the portfolio.
type BuyCommand struct {
	UserID        uint
	PortfolioID   uint
	StockID       uint
	Quantity      int64
	PricePerShare decimal.Decimal
	Notes         string
}

// SellCommand credits the user and removes shares from the portfolio.
type SellCommand struct {
	UserID        uint
	PortfolioID   uint
	StockID       uint
	Quantity      int64
	PricePerShare decimal.Decimal
	Notes         string
}

// ReverseCommand records a compensating entry for a committed transaction.
type ReverseCommand struct {
	UserID        uint
	TransactionID uint
	Notes         string
}

// WatchlistUpsertCommand creates or replaces the watchlist entry of (UserID, StockID).
type WatchlistUpsertCommand struct {
	UserID       uint
	StockID      uint
	TargetPrice  decimal.NullDecimal
	AlertEnabled bool
	Direction    models.AlertDirection
	Notes        string
}

func (BuyCommand) command()             {}
func (SellCommand) command()            {}
func (ReverseCommand) command()         {}
func (WatchlistUpsertCommand) command() {}

func (c BuyCommand) trade() trade {
	return trade{
		UserID: c.UserID, PortfolioID: c.PortfolioID, StockID: c.StockID,
		Type: models.TransactionBuy, Quantity: c.Quantity, PricePerShare: c.PricePerShare, Notes: c.Notes,
	}
}

func (c SellCommand) trade() trade {
	return trade{
		UserID: c.UserID, PortfolioID: c.PortfolioID, StockID: c.StockID,
		Type: models.TransactionSell, Quantity: c.Quantity, PricePerShare: c.PricePerShare, Notes: c.Notes,
	}
}

// NewTradeCommand builds the command variant matching t.
func NewTradeCommand(t models.TransactionType, userID, portfolioID, stockID uint, quantity int64, price decimal.Decimal, notes string) (TradeCommand, error) {
	switch t {
	case models.TransactionBuy:
		return BuyCommand{userID, portfolioID, stockID, quantity, price, notes}, nil
	case models.TransactionSell:
		return SellCommand{userID, portfolioID, stockID, quantity, price, notes}, nil
	}
	return nil, apperr.Validation("transaction type must be BUY or SELL, got %q", t)
}
