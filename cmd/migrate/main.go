package main

import (
	"github.com/shaurya35/exness/internal/config"
	"github.com/shaurya35/exness/internal/infrastructure/logging"
	inframarketdata "github.com/shaurya35/exness/internal/infrastructure/marketdata"
	"github.com/shaurya35/exness/internal/infrastructure/marketdata/gormstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	if err := cfg.ValidateStore(); err != nil {
		logger.Fatalf("store config: %v", err)
	}

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := gormstore.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			logger.Fatalf("migrate sqlite: %v", err)
		}
		store.Close()
	default:
		if err := inframarketdata.Migrate(cfg.Postgres.DSN); err != nil {
			logger.Fatalf("migrate postgres: %v", err)
		}
	}
	logger.WithField("driver", cfg.Store.Driver).Info("schema migrated")
}
