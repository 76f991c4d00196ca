package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Portfolio groups the transactions of one user.
// TotalValue is derived from the transaction history and refreshed on every commit touching it.
type Portfolio struct {
	gorm.Model
	UserID      uint            `gorm:"uniqueIndex:idx_owner_name;not null" json:"user_id"`
	Name        string          `gorm:"uniqueIndex:idx_owner_name;not null" json:"name"`
	Description string          `json:"description,omitempty"`
	TotalValue  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_value"`
}
