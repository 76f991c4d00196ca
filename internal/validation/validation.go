// Package validation holds the stateless field rules applied before any entity is loaded.
// Every failure wraps apperr.ErrValidation; functions checking several fields join their failures.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	tickerPattern   = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

const (
	minPasswordLength = 8
	// moneyScale is the number of fractional digits the money columns store.
	moneyScale = 4
)

// ID rejects the zero id, which never names a persisted row.
func ID(field string, id uint) error {
	if id == 0 {
		return apperr.Validation("%s is required", field)
	}
	return nil
}

// Quantity requires a strictly positive share count.
func Quantity(q int64) error {
	if q <= 0 {
		return apperr.Validation("quantity must be positive, got %d", q)
	}
	return nil
}

// Price requires a strictly positive amount the money columns can hold exactly.
func Price(field string, p decimal.Decimal) error {
	if !p.IsPositive() {
		return apperr.Validation("%s must be positive, got %s", field, p)
	}
	return scale(field, p)
}

// scale rejects amounts with more fractional digits than are stored. Trailing zeros are fine.
func scale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(moneyScale)) {
		return apperr.Validation("%s allows at most %d decimal places, got %s", field, moneyScale, d)
	}
	return nil
}

// TransactionType accepts only the two ledger sides.
func TransactionType(t models.TransactionType) error {
	switch t {
	case models.TransactionBuy, models.TransactionSell:
		return nil
	}
	return apperr.Validation("transaction type must be BUY or SELL, got %q", t)
}

// Balance rejects negative money.
func Balance(b decimal.Decimal) error {
	if b.IsNegative() {
		return apperr.Validation("balance cannot be negative, got %s", b)
	}
	return scale("balance", b)
}

// Trade checks the field set shared by every buy and sell request.
func Trade(userID, portfolioID, stockID uint, t models.TransactionType, q int64, price decimal.Decimal) error {
	return errors.Join(
		ID("user_id", userID),
		ID("portfolio_id", portfolioID),
		ID("stock_id", stockID),
		TransactionType(t),
		Quantity(q),
		Price("price_per_share", price),
	)
}

// NormalizeTicker upper-cases and trims a ticker and checks its shape.
func NormalizeTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(ticker) {
		return ticker, apperr.Validation("ticker must be 1-10 letters, got %q", ticker)
	}
	return ticker, nil
}

// Registration checks the fields of a new user.
func Registration(username, email, password string, initialBalance decimal.Decimal) error {
	var errs []error
	if !usernamePattern.MatchString(username) {
		errs = append(errs, apperr.Validation("username must be 3-50 letters, digits or underscores"))
	}
	if !emailPattern.MatchString(email) {
		errs = append(errs, apperr.Validation("invalid email format"))
	}
	if len(password) < minPasswordLength {
		errs = append(errs, apperr.Validation("password must be at least %d characters", minPasswordLength))
	}
	errs = append(errs, Balance(initialBalance))
	return errors.Join(errs...)
}

// Stock checks the fields of a new instrument. The ticker must already be normalized.
func Stock(ticker, companyName string, price decimal.Decimal, marketCap int64) error {
	var errs []error
	if !tickerPattern.MatchString(ticker) {
		errs = append(errs, apperr.Validation("ticker must be 1-10 uppercase letters, got %q", ticker))
	}
	if strings.TrimSpace(companyName) == "" {
		errs = append(errs, apperr.Validation("company name is required"))
	}
	errs = append(errs, Price("current_price", price))
	if marketCap <= 0 {
		errs = append(errs, apperr.Validation("market cap must be positive, got %d", marketCap))
	}
	return errors.Join(errs...)
}

// PortfolioName requires a non-blank name.
func PortfolioName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("portfolio name is required")
	}
	return nil
}

// TargetPrice accepts an absent target or a positive one.
func TargetPrice(target decimal.NullDecimal) error {
	if target.Valid && !target.Decimal.IsPositive() {
		return apperr.Validation("target price must be positive, got %s", target.Decimal)
	}
	if target.Valid {
		return scale("target_price", target.Decimal)
	}
	return nil
}

// AlertDirection accepts ABOVE and BELOW.
func AlertDirection(d models.AlertDirection) error {
	switch d {
	case models.AlertAbove, models.AlertBelow:
		return nil
	}
	return apperr.Validation("alert direction must be ABOVE or BELOW, got %q", d)
}
