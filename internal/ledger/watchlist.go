package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// UpsertWatchlist creates the entry of (user, stock) or replaces all of its fields.
func (s *Service) UpsertWatchlist(ctx context.Context, cmd WatchlistUpsertCommand) (*models.WatchlistEntry, error) {
	if cmd.Direction == "" {
		cmd.Direction = models.AlertAbove
	}
	err := errors.Join(
		validation.ID("user_id", cmd.UserID),
		validation.ID("stock_id", cmd.StockID),
		validation.TargetPrice(cmd.TargetPrice),
		validation.AlertDirection(cmd.Direction),
	)
	if err != nil {
		return nil, err
	}

	var entry models.WatchlistEntry
	err = s.gw.WithUnitOfWork(ctx, func(tx store.Gateway) error {
		if err := tx.Get(ctx, &models.User{}, cmd.UserID); err != nil {
			return err
		}
		if err := tx.Get(ctx, &models.Stock{}, cmd.StockID); err != nil {
			return err
		}

		var existing []models.WatchlistEntry
		key := store.Query{Where: map[string]any{"user_id": cmd.UserID, "stock_id": cmd.StockID}, Limit: 1}
		if err := tx.Find(ctx, &existing, key); err != nil {
			return err
		}
		if len(existing) == 0 {
			entry = models.WatchlistEntry{
				UserID:       cmd.UserID,
				StockID:      cmd.StockID,
				TargetPrice:  cmd.TargetPrice,
				AlertEnabled: cmd.AlertEnabled,
				Direction:    cmd.Direction,
				Notes:        cmd.Notes,
			}
			return tx.Insert(ctx, &entry)
		}

		fields := map[string]any{
			"target_price":  cmd.TargetPrice,
			"alert_enabled": cmd.AlertEnabled,
			"direction":     cmd.Direction,
			"notes":         cmd.Notes,
		}
		if err := tx.Update(ctx, &models.WatchlistEntry{}, existing[0].ID, fields); err != nil {
			return err
		}
		return tx.Get(ctx, &entry, existing[0].ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Watchlist entry saved",
		zap.Uint("entry_id", entry.ID),
		zap.Uint("user_id", entry.UserID),
		zap.Uint("stock_id", entry.StockID))
	return &entry, nil
}

func (s *Service) ListWatchlist(ctx context.Context, userID uint) ([]models.WatchlistEntry, error) {
	if err := validation.ID("user_id", userID); err != nil {
		return nil, err
	}
	entries := []models.WatchlistEntry{}
	if err := s.gw.Find(ctx, &entries, store.Query{Where: map[string]any{"user_id": userID}, Order: "id"}); err != nil {
		return nil, err
	}
	return entries, nil
}

// RemoveWatchlistEntry deletes an entry owned by userID.
func (s *Service) RemoveWatchlistEntry(ctx context.Context, userID, entryID uint) error {
	if err := errors.Join(validation.ID("user_id", userID), validation.ID("entry_id", entryID)); err != nil {
		return err
	}
	err := s.gw.WithUnitOfWork(ctx, func(tx store.Gateway) error {
		var entry models.WatchlistEntry
		if err := tx.Get(ctx, &entry, entryID); err != nil {
			return err
		}
		if entry.UserID != userID {
			return fmt.Errorf("%w: watchlist entry %d belongs to user %d, not %d", apperr.ErrOwnership, entryID, entry.UserID, userID)
		}
		return tx.Delete(ctx, &models.WatchlistEntry{}, entryID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Watchlist entry removed", zap.Uint("entry_id", entryID), zap.Uint("user_id", userID))
	return nil
}

// EvaluateAlerts returns the watchlist alerts of userID that currently trigger.
func (s *Service) EvaluateAlerts(ctx context.Context, userID uint) ([]TriggeredAlert, error) {
	return s.alerts.Evaluate(ctx, userID)
}
