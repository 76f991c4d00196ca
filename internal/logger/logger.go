package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stock-portfolio-ledger/internal/config"
)

// serviceName is attached to every entry.
const serviceName = "stock-ledger"

// NewLogger builds the process logger from the logger section of the configuration.
// The "json" format selects zap's production preset, anything else the development one.
func NewLogger(cfg config.Logger) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}

	zc.Level = zap.NewAtomicLevelAt(logLevel)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.InitialFields = map[string]interface{}{"service": serviceName}

	return zc.Build()
}
