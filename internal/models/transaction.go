package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stock-portfolio-ledger/internal/apperr"
)

// TransactionType is the side of a ledger entry.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Opposite returns the side that compensates t.
func (t TransactionType) Opposite() TransactionType {
	if t == TransactionBuy {
		return TransactionSell
	}
	return TransactionBuy
}

// Transaction is a committed ledger entry. It is never updated or deleted;
// a reversal is recorded as a new entry pointing at the original via ReversalOf.
type Transaction struct {
	gorm.Model
	Reference     string          `gorm:"uniqueIndex;not null" json:"reference"`
	UserID        uint            `gorm:"index;not null" json:"user_id"`
	StockID       uint            `gorm:"index;not null" json:"stock_id"`
	PortfolioID   uint            `gorm:"index;not null" json:"portfolio_id"`
	Type          TransactionType `gorm:"not null" json:"type"`
	Quantity      int64           `gorm:"not null" json:"quantity"`
	PricePerShare decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price_per_share"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	Notes         string          `json:"notes,omitempty"`
	ReversalOf    *uint           `gorm:"index" json:"reversal_of,omitempty"`
	ExecutedAt    time.Time       `gorm:"not null" json:"executed_at"`
}

// BeforeCreate derives TotalAmount from quantity and price so the two can never disagree.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.Reference == "" {
		t.Reference = uuid.NewString()
	}
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}
	t.TotalAmount = t.PricePerShare.Mul(decimal.NewFromInt(t.Quantity))
	return nil
}

func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("%w: transaction %d cannot be updated", apperr.ErrImmutable, t.ID)
}

func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("%w: transaction %d cannot be deleted", apperr.ErrImmutable, t.ID)
}

// SignedQuantity is the quantity with the sign it contributes to a holding.
func (t Transaction) SignedQuantity() int64 {
	if t.Type == TransactionSell {
		return -t.Quantity
	}
	return t.Quantity
}
