package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stock-portfolio-ledger/internal/api"
	"stock-portfolio-ledger/internal/config"
	"stock-portfolio-ledger/internal/database"
	"stock-portfolio-ledger/internal/ledger"
	"stock-portfolio-ledger/internal/logger"
	"stock-portfolio-ledger/internal/store"
)

func main() {
	// A .env file is optional; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	closeDB := func() {
		if err := database.Close(db); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}
	defer closeDB()
	log.Info("Database connection successful and schema migrated.", zap.String("driver", cfg.Database.Driver))

	if err := database.Seed(db, cfg.Seed.Stocks); err != nil {
		log.Error("Failed to seed stocks", zap.Error(err))
		// os.Exit skips deferred calls.
		closeDB()
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Stocks seeded", zap.Int("count", len(cfg.Seed.Stocks)))

	svc := ledger.NewService(log, cfg.Ledger, store.New(db))
	server := api.NewServer(cfg.Server, svc, log)
	server.Start()

	// Wait for a shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}

	log.Info("Ledger has been shut down.")
}
