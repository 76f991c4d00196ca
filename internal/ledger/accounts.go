package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// Balance adjustment operations.
const (
	OperationAdd      = "add"
	OperationSubtract = "subtract"
)

// RegisterInput carries the fields of a new account.
// A nil InitialBalance takes the configured default.
type RegisterInput struct {
	Username       string           `json:"username"`
	Email          string           `json:"email"`
	Password       string           `json:"password"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	InitialBalance *decimal.Decimal `json:"initial_balance,omitempty"`
}

// BalanceAdjustment is a deposit or a withdrawal.
type BalanceAdjustment struct {
	Amount    decimal.Decimal `json:"amount"`
	Operation string          `json:"operation"`
}

// RegisterUser creates an account with a hashed password.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	balance := decimal.NewFromFloat(s.cfg.InitialBalance)
	if in.InitialBalance != nil {
		balance = *in.InitialBalance
	}
	if err := validation.Registration(in.Username, in.Email, in.Password, balance); err != nil {
		return nil, err
	}

	cost := s.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Balance:      balance,
	}
	if err := s.gw.Insert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// CheckPassword reports whether password matches the stored hash of the user.
func (s *Service) CheckPassword(ctx context.Context, userID uint, password string) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	if err := validation.ID("user_id", id); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.gw.Get(ctx, &user, id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.gw.Find(ctx, &users, store.Query{Order: "id"}); err != nil {
		return nil, err
	}
	return users, nil
}

// AdjustBalance deposits or withdraws money outside of trading.
// A withdrawal larger than the balance fails with ErrInsufficientFunds.
func (s *Service) AdjustBalance(ctx context.Context, userID uint, adj BalanceAdjustment) (*models.User, error) {
	if err := errors.Join(validation.ID("user_id", userID), validation.Price("amount", adj.Amount)); err != nil {
		return nil, err
	}
	if adj.Operation != OperationAdd && adj.Operation != OperationSubtract {
		return nil, apperr.Validation("operation must be %q or %q, got %q", OperationAdd, OperationSubtract, adj.Operation)
	}
	l := s.logger.With(zap.Uint("user_id", userID), zap.String("operation", adj.Operation), zap.String("amount", adj.Amount.String()))

	var user models.User
	err := retryOnConflict(ctx, l, s.gw, s.cfg.MaxConflictRetries, func(ctx context.Context, tx store.Gateway) error {
		if err := tx.Get(ctx, &user, userID); err != nil {
			return err
		}
		balance := user.Balance.Add(adj.Amount)
		if adj.Operation == OperationSubtract {
			if adj.Amount.GreaterThan(user.Balance) {
				return fmt.Errorf("%w: cannot withdraw %s, balance is %s", apperr.ErrInsufficientFunds, adj.Amount, user.Balance)
			}
			balance = user.Balance.Sub(adj.Amount)
		}
		if err := tx.UpdateVersioned(ctx, &models.User{}, userID, user.Version, map[string]any{"balance": balance}); err != nil {
			return err
		}
		user.Balance = balance
		user.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.Info("Balance adjusted", zap.String("balance", user.Balance.String()))
	return &user, nil
}

// DeleteUser removes an account with its portfolios and watchlist.
// Accounts that own transactions are kept so the ledger stays complete.
func (s *Service) DeleteUser(ctx context.Context, id uint) error {
	if err := validation.ID("user_id", id); err != nil {
		return err
	}
	err := s.gw.WithUnitOfWork(ctx, func(tx store.Gateway) error {
		var user models.User
		if err := tx.Get(ctx, &user, id); err != nil {
			return err
		}
		owned := store.Query{Where: map[string]any{"user_id": id}}
		n, err := tx.Count(ctx, &models.Transaction{}, owned)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("user %d owns %d transactions and cannot be deleted", id, n)
		}
		if err := tx.DeleteWhere(ctx, &models.WatchlistEntry{}, owned); err != nil {
			return err
		}
		if err := tx.DeleteWhere(ctx, &models.Portfolio{}, owned); err != nil {
			return err
		}
		return tx.Delete(ctx, &models.User{}, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.Uint("user_id", id))
	return nil
}
