package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Seed     Seed     `mapstructure:"seed"`
	Client   Client   `mapstructure:"client"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds the configuration for the HTTP API.
type Server struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the persistence gateway.
type Database struct {
	Driver             string        `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN                string        `mapstructure:"dsn"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// Ledger holds the rules applied by the transaction processor.
type Ledger struct {
	InitialBalance        float64 `mapstructure:"initial_balance"`
	PriceWarningThreshold float64 `mapstructure:"price_warning_threshold"`
	// MaxPriceDeviation rejects trades priced further than this ratio from the stock price. 0 disables it.
	MaxPriceDeviation  float64 `mapstructure:"max_price_deviation"`
	MaxConflictRetries int     `mapstructure:"max_conflict_retries"`
	BcryptCost         int     `mapstructure:"bcrypt_cost"`
}

// Seed lists reference data created on startup when missing.
type Seed struct {
	Stocks []SeedStock `mapstructure:"stocks"`
}

// SeedStock describes one instrument to seed.
type SeedStock struct {
	Ticker      string  `mapstructure:"ticker"`
	CompanyName string  `mapstructure:"company_name"`
	Price       float64 `mapstructure:"price"`
	MarketCap   int64   `mapstructure:"market_cap"`
	Sector      string  `mapstructure:"sector"`
	Industry    string  `mapstructure:"industry"`
}

// Client holds the configuration for the ledger API client.
type Client struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "ledger.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.slow_query_threshold", 200*time.Millisecond)
	v.SetDefault("ledger.initial_balance", 10000.00)
	v.SetDefault("ledger.price_warning_threshold", 0.20)
	v.SetDefault("ledger.max_price_deviation", 0)
	v.SetDefault("ledger.max_conflict_retries", 3)
	v.SetDefault("ledger.bcrypt_cost", 12)
	v.SetDefault("client.base_url", "http://localhost:8000")
	v.SetDefault("client.timeout", 10*time.Second)
	v.SetDefault("client.rate_limit", 20)      // requests per second
	v.SetDefault("client.rate_limit_burst", 5) // burst size
	v.SetDefault("client.max_retries", 3)
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and the environment still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	SetDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	err = v.Unmarshal(&config)
	return
}
