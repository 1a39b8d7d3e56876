package main

import (
	"fmt"
	"os"

	"github.com/consultpay/backend/internal/infrastructure/config"
	"github.com/consultpay/backend/internal/infrastructure/logger"
	"github.com/consultpay/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// Applies the payment schema to the configured database and exits.
func main() {
	log, err := logger.New(&logger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Migration complete",
		zap.String("database", cfg.Database.DBName),
		zap.String("host", cfg.Database.Host))
}
