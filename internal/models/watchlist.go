package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertDirection tells which side of the target price triggers an alert.
type AlertDirection string

const (
	AlertAbove AlertDirection = "ABOVE"
	AlertBelow AlertDirection = "BELOW"
)

// WatchlistEntry is a stock followed by a user. There is at most one entry per (user, stock).
type WatchlistEntry struct {
	gorm.Model
	UserID       uint                `gorm:"uniqueIndex:idx_user_stock;not null" json:"user_id"`
	StockID      uint                `gorm:"uniqueIndex:idx_user_stock;not null" json:"stock_id"`
	TargetPrice  decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"target_price"`
	AlertEnabled bool                `gorm:"not null;default:false" json:"alert_enabled"`
	Direction    AlertDirection      `gorm:"not null;default:ABOVE" json:"direction"`
	Notes        string              `json:"notes,omitempty"`
}

// All returns every persisted model, in dependency order for migrations.
func All() []any {
	return []any{&User{}, &Stock{}, &Portfolio{}, &Transaction{}, &WatchlistEntry{}}
}
