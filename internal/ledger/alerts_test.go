package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
)

func TestCrossed(t *testing.T) {
	target := decimal.NewNullDecimal(dec("100"))

	testCases := []struct {
		name    string
		entry   models.WatchlistEntry
		current string
		want    bool
	}{
		{"above reached", models.WatchlistEntry{AlertEnabled: true, TargetPrice: target, Direction: models.AlertAbove}, "100", true},
		{"above exceeded", models.WatchlistEntry{AlertEnabled: true, TargetPrice: target, Direction: models.AlertAbove}, "101", true},
		{"above not reached", models.WatchlistEntry{AlertEnabled: true, TargetPrice: target, Direction: models.AlertAbove}, "99.99", false},
		{"direction defaults to above", models.WatchlistEntry{AlertEnabled: true, TargetPrice: target}, "150", true},
		{"below reached", models.WatchlistEntry{AlertEnabled: true, TargetPrice: target, Direction: models.AlertBelow}, "100", true},
		{"below not reached", models.WatchlistEntry{AlertEnabled: true, TargetPrice: target, Direction: models.AlertBelow}, "100.01", false},
		{"disabled", models.WatchlistEntry{AlertEnabled: false, TargetPrice: target}, "150", false},
		{"no target", models.WatchlistEntry{AlertEnabled: true}, "150", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, crossed(tc.entry, dec(tc.current)))
		})
	}
}

func TestAlertEvaluator_Evaluate(t *testing.T) {
	s, _ := setupTest(t)
	ctx := context.Background()
	user := mustUser(t, s, "alice", "1000")
	acme := mustStock(t, s, "ACME", "120")
	globex := mustStock(t, s, "GLOBEX", "40")
	initech := mustStock(t, s, "INITECH", "10")
	hooli := mustStock(t, s, "HOOLI", "500")

	watch := []WatchlistUpsertCommand{
		{UserID: user.ID, StockID: acme.ID, TargetPrice: decimal.NewNullDecimal(dec("100")), AlertEnabled: true},
		{UserID: user.ID, StockID: globex.ID, TargetPrice: decimal.NewNullDecimal(dec("50")), AlertEnabled: true, Direction: models.AlertBelow},
		{UserID: user.ID, StockID: initech.ID, TargetPrice: decimal.NewNullDecimal(dec("5")), AlertEnabled: false},
		{UserID: user.ID, StockID: hooli.ID, AlertEnabled: true},
	}
	for _, cmd := range watch {
		_, err := s.UpsertWatchlist(ctx, cmd)
		require.NoError(t, err)
	}

	alerts, err := s.EvaluateAlerts(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "ACME", alerts[0].Ticker)
	assert.Equal(t, models.AlertAbove, alerts[0].Direction)
	assert.True(t, dec("120").Equal(alerts[0].CurrentPrice))
	assert.Equal(t, "GLOBEX", alerts[1].Ticker)
	assert.Equal(t, models.AlertBelow, alerts[1].Direction)

	again, err := s.EvaluateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, len(alerts), len(again), "evaluation keeps no state")

	_, err = s.UpdateStockPrice(ctx, acme.ID, dec("90"))
	require.NoError(t, err)
	alerts, err = s.EvaluateAlerts(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "GLOBEX", alerts[0].Ticker)
}

func TestAlertEvaluator_EmptyAndUnknownUser(t *testing.T) {
	s, _ := setupTest(t)
	ctx := context.Background()
	user := mustUser(t, s, "bob", "1000")

	alerts, err := s.EvaluateAlerts(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	_, err = s.EvaluateAlerts(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
