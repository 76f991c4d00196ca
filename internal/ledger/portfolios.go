package ledger

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// PortfolioInput carries the fields of a new portfolio.
type PortfolioInput struct {
	UserID      uint   `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreatePortfolio opens an empty portfolio for an existing user. Names are unique per owner.
func (s *Service) CreatePortfolio(ctx context.Context, in PortfolioInput) (*models.Portfolio, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := errors.Join(validation.ID("user_id", in.UserID), validation.PortfolioName(in.Name)); err != nil {
		return nil, err
	}

	portfolio := &models.Portfolio{UserID: in.UserID, Name: in.Name, Description: in.Description}
	err := s.gw.WithUnitOfWork(ctx, func(tx store.Gateway) error {
		if err := tx.Get(ctx, &models.User{}, in.UserID); err != nil {
			return err
		}
		return tx.Insert(ctx, portfolio)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Portfolio created", zap.Uint("portfolio_id", portfolio.ID), zap.Uint("user_id", portfolio.UserID))
	return portfolio, nil
}

func (s *Service) GetPortfolio(ctx context.Context, id uint) (*models.Portfolio, error) {
	if err := validation.ID("portfolio_id", id); err != nil {
		return nil, err
	}
	var portfolio models.Portfolio
	if err := s.gw.Get(ctx, &portfolio, id); err != nil {
		return nil, err
	}
	return &portfolio, nil
}

// ListPortfolios returns the portfolios of userID, or every portfolio when userID is 0.
func (s *Service) ListPortfolios(ctx context.Context, userID uint) ([]models.Portfolio, error) {
	q := store.Query{Order: "id"}
	if userID != 0 {
		q.Where = map[string]any{"user_id": userID}
	}
	portfolios := []models.Portfolio{}
	if err := s.gw.Find(ctx, &portfolios, q); err != nil {
		return nil, err
	}
	return portfolios, nil
}

// ValuatePortfolio prices a portfolio at the current stock prices.
func (s *Service) ValuatePortfolio(ctx context.Context, id uint) (*Valuation, error) {
	return s.valuator.Valuate(ctx, id)
}

// DeletePortfolio removes a portfolio that has never traded.
func (s *Service) DeletePortfolio(ctx context.Context, id uint) error {
	if err := validation.ID("portfolio_id", id); err != nil {
		return err
	}
	err := s.gw.WithUnitOfWork(ctx, func(tx store.Gateway) error {
		if err := tx.Get(ctx, &models.Portfolio{}, id); err != nil {
			return err
		}
		n, err := tx.Count(ctx, &models.Transaction{}, store.Query{Where: map[string]any{"portfolio_id": id}})
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("portfolio %d holds %d transactions and cannot be deleted", id, n)
		}
		return tx.Delete(ctx, &models.Portfolio{}, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Portfolio deleted", zap.Uint("portfolio_id", id))
	return nil
}
