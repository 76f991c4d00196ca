package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// AdvisoryLargePriceDeviation flags a trade priced far from the stock's current price.
const AdvisoryLargePriceDeviation = "LARGE_PRICE_DEVIATION"

// Advisory is a non-blocking warning attached to a successful result.
type Advisory struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TradeResult is the outcome of a committed trade.
type TradeResult struct {
	Transaction    models.Transaction `json:"transaction"`
	UpdatedBalance decimal.Decimal    `json:"updated_balance"`
	PortfolioValue decimal.Decimal    `json:"portfolio_value"`
	Advisories     []Advisory         `json:"advisories,omitempty"`
}

// Processor applies trades to the ledger. Each trade loads the user, portfolio and stock,
// checks ownership, funds and holdings, and writes the balance, the transaction and the
// portfolio value in a single unit of work.
type Processor struct {
	logger *zap.Logger
	cfg    config.Ledger
	gw     store.Gateway
}

// NewProcessor creates a new transaction processor.
func NewProcessor(logger *zap.Logger, cfg config.Ledger, gw store.Gateway) *Processor {
	return &Processor{
		logger: logger.Named("processor"),
		cfg:    cfg,
		gw:     gw,
	}
}

// Process validates and commits a buy or sell.
func (p *Processor) Process(ctx context.Context, cmd TradeCommand) (*TradeResult, error) {
	t := cmd.trade()
	if err := validation.Trade(t.UserID, t.PortfolioID, t.StockID, t.Type, t.Quantity, t.PricePerShare); err != nil {
		return nil, err
	}

	l := p.logger.With(
		zap.Uint("user_id", t.UserID),
		zap.Uint("portfolio_id", t.PortfolioID),
		zap.Uint("stock_id", t.StockID),
		zap.String("type", string(t.Type)),
		zap.Int64("quantity", t.Quantity),
		zap.String("price_per_share", t.PricePerShare.String()),
	)

	var result *TradeResult
	err := retryOnConflict(ctx, l, p.gw, p.cfg.MaxConflictRetries, func(ctx context.Context, tx store.Gateway) error {
		var err error
		result, err = p.apply(ctx, tx, t)
		return err
	})
	if err != nil {
		l.Info("Trade rejected", zap.Error(err))
		return nil, err
	}

	l.Info("Trade committed",
		zap.Uint("transaction_id", result.Transaction.ID),
		zap.String("balance", result.UpdatedBalance.String()),
		zap.Int("advisories", len(result.Advisories)))
	return result, nil
}

// Reverse compensates a committed transaction with an entry of the opposite side at the
// original price and quantity. History is never rewritten.
func (p *Processor) Reverse(ctx context.Context, cmd ReverseCommand) (*TradeResult, error) {
	if err := errors.Join(validation.ID("user_id", cmd.UserID), validation.ID("transaction_id", cmd.TransactionID)); err != nil {
		return nil, err
	}
	l := p.logger.With(zap.Uint("user_id", cmd.UserID), zap.Uint("reversed_transaction_id", cmd.TransactionID))

	var result *TradeResult
	err := retryOnConflict(ctx, l, p.gw, p.cfg.MaxConflictRetries, func(ctx context.Context, tx store.Gateway) error {
		var original models.Transaction
		if err := tx.Get(ctx, &original, cmd.TransactionID); err != nil {
			return err
		}
		if original.UserID != cmd.UserID {
			return fmt.Errorf("%w: transaction %d belongs to user %d, not %d", apperr.ErrOwnership, original.ID, original.UserID, cmd.UserID)
		}
		if original.ReversalOf != nil {
			return apperr.Validation("transaction %d is itself a reversal", original.ID)
		}
		n, err := tx.Count(ctx, &models.Transaction{}, store.Query{Where: map[string]any{"reversal_of": original.ID}})
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Validation("transaction %d is already reversed", original.ID)
		}

		notes := cmd.Notes
		if notes == "" {
			notes = fmt.Sprintf("reversal of %s", original.Reference)
		}
		result, err = p.apply(ctx, tx, trade{
			UserID:        original.UserID,
			PortfolioID:   original.PortfolioID,
			StockID:       original.StockID,
			Type:          original.Type.Opposite(),
			Quantity:      original.Quantity,
			PricePerShare: original.PricePerShare,
			Notes:         notes,
			reversalOf:    &original.ID,
		})
		return err
	})
	if err != nil {
		l.Info("Reversal rejected", zap.Error(err))
		return nil, err
	}

	l.Info("Reversal committed", zap.Uint("transaction_id", result.Transaction.ID))
	return result, nil
}

// apply runs inside a unit of work; any error rolls back every write made here.
func (p *Processor) apply(ctx context.Context, tx store.Gateway, t trade) (*TradeResult, error) {
	var user models.User
	if err := tx.Get(ctx, &user, t.UserID); err != nil {
		return nil, err
	}
	var portfolio models.Portfolio
	if err := tx.Get(ctx, &portfolio, t.PortfolioID); err != nil {
		return nil, err
	}
	var stock models.Stock
	if err := tx.Get(ctx, &stock, t.StockID); err != nil {
		return nil, err
	}

	if portfolio.UserID != user.ID {
		return nil, fmt.Errorf("%w: portfolio %d belongs to user %d, not %d", apperr.ErrOwnership, portfolio.ID, portfolio.UserID, user.ID)
	}

	var advisories []Advisory
	if t.reversalOf == nil {
		var err error
		if advisories, err = p.checkPrice(stock, t.PricePerShare); err != nil {
			return nil, err
		}
	}

	total := t.PricePerShare.Mul(decimal.NewFromInt(t.Quantity))
	var newBalance decimal.Decimal
	switch t.Type {
	case models.TransactionBuy:
		if total.GreaterThan(user.Balance) {
			return nil, fmt.Errorf("%w: need %s, have %s", apperr.ErrInsufficientFunds, total, user.Balance)
		}
		newBalance = user.Balance.Sub(total)
	case models.TransactionSell:
		held, err := netHolding(ctx, tx, user.ID, portfolio.ID, stock.ID)
		if err != nil {
			return nil, err
		}
		if t.Quantity > held {
			return nil, fmt.Errorf("%w: cannot sell %d of %s, position is only %d", apperr.ErrInsufficientHoldings, t.Quantity, stock.Ticker, held)
		}
		newBalance = user.Balance.Add(total)
	default:
		return nil, validation.TransactionType(t.Type)
	}

	if err := tx.UpdateVersioned(ctx, &models.User{}, user.ID, user.Version, map[string]any{"balance": newBalance}); err != nil {
		return nil, err
	}

	entry := models.Transaction{
		UserID:        user.ID,
		StockID:       stock.ID,
		PortfolioID:   portfolio.ID,
		Type:          t.Type,
		Quantity:      t.Quantity,
		PricePerShare: t.PricePerShare,
		Notes:         t.Notes,
		ReversalOf:    t.reversalOf,
	}
	if err := tx.Insert(ctx, &entry); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	valuation, err := revalue(ctx, tx, portfolio.ID)
	if err != nil {
		return nil, err
	}

	return &TradeResult{
		Transaction:    entry,
		UpdatedBalance: newBalance,
		PortfolioValue: valuation.TotalValue,
		Advisories:     advisories,
	}, nil
}

// checkPrice compares the caller's price with the stock's current price.
func (p *Processor) checkPrice(stock models.Stock, price decimal.Decimal) ([]Advisory, error) {
	if !stock.CurrentPrice.IsPositive() {
		return nil, nil
	}
	deviation := price.Sub(stock.CurrentPrice).Abs().Div(stock.CurrentPrice)

	if p.cfg.MaxPriceDeviation > 0 && deviation.GreaterThan(decimal.NewFromFloat(p.cfg.MaxPriceDeviation)) {
		return nil, apperr.Validation("price %s is %s%% away from the current price %s of %s",
			price, deviation.Shift(2).StringFixed(2), stock.CurrentPrice, stock.Ticker)
	}
	if p.cfg.PriceWarningThreshold > 0 && deviation.GreaterThan(decimal.NewFromFloat(p.cfg.PriceWarningThreshold)) {
		return []Advisory{{
			Code: AdvisoryLargePriceDeviation,
			Message: fmt.Sprintf("price %s differs from the current price %s of %s by %s%%",
				price, stock.CurrentPrice, stock.Ticker, deviation.Shift(2).StringFixed(2)),
		}}, nil
	}
	return nil, nil
}

// retryOnConflict runs fn in a unit of work, retrying it while the balance row was
// changed concurrently. Once started, the unit of work ignores cancellation of ctx so it
// always ends in a commit or a rollback; fn must use the context it is handed.
func retryOnConflict(ctx context.Context, l *zap.Logger, gw store.Gateway, retries int, fn func(ctx context.Context, tx store.Gateway) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	detached := context.WithoutCancel(ctx)

	attempts := retries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = gw.WithUnitOfWork(detached, func(tx store.Gateway) error {
			return fn(detached, tx)
		})
		if !errors.Is(err, apperr.ErrConcurrencyConflict) {
			return err
		}
		l.Warn("Concurrent update detected, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
