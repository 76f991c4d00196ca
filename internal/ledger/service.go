// Package ledger implements the stock portfolio ledger: the transaction processor that keeps
// balances, holdings and the transaction history consistent, and the account, instrument,
// portfolio and watchlist operations built around it.
package ledger

import (
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/store"
)

// Service is the entry point used by the API layer.
type Service struct {
	logger    *zap.Logger
	cfg       config.Ledger
	gw        store.Gateway
	processor *Processor
	valuator  *Valuator
	alerts    *AlertEvaluator
}

// NewService wires the ledger components over one persistence gateway.
func NewService(logger *zap.Logger, cfg config.Ledger, gw store.Gateway) *Service {
	return &Service{
		logger:    logger.Named("ledger"),
		cfg:       cfg,
		gw:        gw,
		processor: NewProcessor(logger, cfg, gw),
		valuator:  NewValuator(logger, gw),
		alerts:    NewAlertEvaluator(logger, gw),
	}
}
