package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Stock represents a tradable instrument.
type Stock struct {
	gorm.Model
	Ticker       string          `gorm:"uniqueIndex;not null" json:"ticker"`
	CompanyName  string          `gorm:"not null" json:"company_name"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"current_price"`
	MarketCap    int64           `json:"market_cap"`
	Sector       string          `gorm:"index" json:"sector"`
	Industry     string          `json:"industry,omitempty"`
}
