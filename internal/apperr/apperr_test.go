package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want error
	}{
		{"not found", NotFound("Stock", 7), ErrNotFound},
		{"validation", Validation("quantity must be positive, got %d", 0), ErrValidation},
		{"wrapped twice", fmt.Errorf("giving up: %w", fmt.Errorf("%w: user 1", ErrConcurrencyConflict)), ErrConcurrencyConflict},
		{"joined", errors.Join(Validation("a"), Validation("b")), ErrValidation},
		{"plain", errors.New("boom"), nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	assert.EqualError(t, NotFound("Portfolio", 3), "not found: Portfolio 3")
}

func TestLookup(t *testing.T) {
	assert.Equal(t, ErrInsufficientHoldings, Lookup("insufficient holdings"))
	assert.Nil(t, Lookup("something else"))
}
