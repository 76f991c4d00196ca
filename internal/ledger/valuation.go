package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
	"stock-portfolio-ledger/internal/validation"
)

// Holding is the net position of one stock inside a portfolio.
type Holding struct {
	StockID     uint            `json:"stock_id"`
	Ticker      string          `json:"ticker"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// Valuation is a portfolio priced at the current stock prices.
type Valuation struct {
	PortfolioID uint            `json:"portfolio_id"`
	Holdings    []Holding       `json:"holdings"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// Quantities returns the net quantity per stock.
func (v Valuation) Quantities() map[uint]int64 {
	q := make(map[uint]int64, len(v.Holdings))
	for _, h := range v.Holdings {
		q[h.StockID] = h.Quantity
	}
	return q
}

// Valuator prices portfolios from their transaction history.
type Valuator struct {
	logger *zap.Logger
	gw     store.Gateway
}

func NewValuator(logger *zap.Logger, gw store.Gateway) *Valuator {
	return &Valuator{logger: logger.Named("valuation"), gw: gw}
}

// Valuate computes the current value of a portfolio. It does not touch the cached total.
func (v *Valuator) Valuate(ctx context.Context, portfolioID uint) (*Valuation, error) {
	if err := validation.ID("portfolio_id", portfolioID); err != nil {
		return nil, err
	}
	var portfolio models.Portfolio
	if err := v.gw.Get(ctx, &portfolio, portfolioID); err != nil {
		return nil, err
	}
	valuation, err := valuate(ctx, v.gw, portfolioID)
	if err != nil {
		return nil, err
	}
	v.logger.Debug("Portfolio valuated",
		zap.Uint("portfolio_id", portfolioID),
		zap.Int("holdings", len(valuation.Holdings)),
		zap.String("total_value", valuation.TotalValue.String()))
	return valuation, nil
}

// valuate nets BUY minus SELL per stock over the committed transactions of a portfolio and
// prices each open position at the stock's current price. Closed positions are omitted.
func valuate(ctx context.Context, gw store.Gateway, portfolioID uint) (*Valuation, error) {
	var txs []models.Transaction
	if err := gw.Find(ctx, &txs, store.Query{Where: map[string]any{"portfolio_id": portfolioID}}); err != nil {
		return nil, err
	}

	net := make(map[uint]int64)
	for _, t := range txs {
		net[t.StockID] += t.SignedQuantity()
	}

	ids := make([]uint, 0, len(net))
	for id, q := range net {
		if q != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	valuation := &Valuation{PortfolioID: portfolioID, Holdings: []Holding{}, TotalValue: decimal.Zero}
	if len(ids) == 0 {
		return valuation, nil
	}

	var stocks []models.Stock
	if err := gw.Find(ctx, &stocks, store.Query{Where: map[string]any{"id": ids}, Order: "id"}); err != nil {
		return nil, err
	}
	for _, s := range stocks {
		value := s.CurrentPrice.Mul(decimal.NewFromInt(net[s.ID]))
		valuation.Holdings = append(valuation.Holdings, Holding{
			StockID:     s.ID,
			Ticker:      s.Ticker,
			Quantity:    net[s.ID],
			Price:       s.CurrentPrice,
			MarketValue: value,
		})
		valuation.TotalValue = valuation.TotalValue.Add(value)
	}
	return valuation, nil
}

// revalue recomputes a portfolio and stores the result as its cached total value.
func revalue(ctx context.Context, gw store.Gateway, portfolioID uint) (*Valuation, error) {
	valuation, err := valuate(ctx, gw, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := gw.Update(ctx, &models.Portfolio{}, portfolioID, map[string]any{"total_value": valuation.TotalValue}); err != nil {
		return nil, err
	}
	return valuation, nil
}

// netHolding is the quantity of a stock a user holds in one portfolio.
func netHolding(ctx context.Context, gw store.Gateway, userID, portfolioID, stockID uint) (int64, error) {
	var txs []models.Transaction
	err := gw.Find(ctx, &txs, store.Query{Where: map[string]any{
		"user_id":      userID,
		"portfolio_id": portfolioID,
		"stock_id":     stockID,
	}})
	if err != nil {
		return 0, err
	}
	var held int64
	for _, t := range txs {
		held += t.SignedQuantity()
	}
	return held, nil
}
