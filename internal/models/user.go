package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is an account holder. Balance is only moved by the transaction processor
// and by explicit deposits or withdrawals.
type User struct {
	gorm.Model
	Username     string          `gorm:"uniqueIndex;not null" json:"username"`
	Email        string          `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string          `gorm:"not null" json:"-"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"balance"`
	// Version is bumped on every balance write and guards the read-modify-write.
	Version int64 `gorm:"not null;default:0" json:"-"`
}
