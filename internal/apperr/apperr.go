// Package apperr defines the error kinds reported by the ledger.
// Callers match them with errors.Is; every error produced by the ledger wraps exactly one kind.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrOwnership            = errors.New("ownership mismatch")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrValidation           = errors.New("validation failed")
	ErrConcurrencyConflict  = errors.New("concurrency conflict")
	ErrDuplicate            = errors.New("already exists")
	ErrImmutable            = errors.New("immutable record")
)

// NotFound reports a missing entity of the given kind.
func NotFound(entity string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// Validation wraps a field-level failure.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var kinds = []error{
	ErrNotFound, ErrOwnership, ErrInsufficientFunds, ErrInsufficientHoldings,
	ErrValidation, ErrConcurrencyConflict, ErrDuplicate, ErrImmutable,
}

// Kind returns the sentinel wrapped by err, or nil when err carries none.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Lookup returns the sentinel whose message is name, or nil.
func Lookup(name string) error {
	for _, kind := range kinds {
		if kind.Error() == name {
			return kind
		}
	}
	return nil
}
