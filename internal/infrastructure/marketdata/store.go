package marketdata

import (
	"context"
	"fmt"

	"github.com/shaurya35/exness/internal/config"
	"github.com/shaurya35/exness/internal/domain/interfaces"
	"github.com/shaurya35/exness/internal/infrastructure/marketdata/gormstore"
	"github.com/shaurya35/exness/internal/infrastructure/marketdata/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns the store selected by STORE_DRIVER. Postgres migrations only
// run when RUN_MIGRATIONS is set; sqlite always migrates on open.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Logger) (interfaces.MarketDataRepository, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		store, err := gormstore.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.Store.SQLitePath).Info("sqlite store opened")
		return store, nil
	case config.DriverPostgres:
		if cfg.Store.RunMigrations {
			if err := Migrate(cfg.Postgres.DSN); err != nil {
				return nil, err
			}
			log.Info("schema migrated")
		}
		repo, err := NewRepository(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := repo.Ping(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Migrate creates the tick and candle tables on postgres through gorm.
func Migrate(dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return fmt.Errorf("open postgres for migration: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres handle: %w", err)
	}
	defer sqlDB.Close()

	return models.Migrate(db)
}
