// Package gormstore is the gorm-backed market data store used with sqlite
// for local runs and tests.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	"github.com/shaurya35/exness/internal/infrastructure/marketdata/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var candleUpdateColumns = []string{"window_end", "open", "high", "low", "close", "last_trade_id", "updated_at"}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// OpenSQLite opens (and creates if missing) a sqlite database file and
// migrates the schema.
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return New(db), nil
}

func (s *Store) UpsertCandle(ctx context.Context, candle domain.Candle) error {
	table := candle.Timeframe.Table()
	if err := domain.CheckTable(table); err != nil {
		return err
	}
	row := models.NewCandle(candle)
	row.UpdatedAt = s.now().UTC()

	err := s.db.WithContext(ctx).Table(table.String()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}, {Name: "window_start"}},
		DoUpdates: clause.AssignmentColumns(candleUpdateColumns),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert candle %s %s %d: %w", table, candle.Asset, candle.WindowStart, err)
	}
	return nil
}

func (s *Store) GetCandles(ctx context.Context, query domain.CandleQuery) ([]domain.Candle, error) {
	table := query.Timeframe.Table()
	if err := domain.CheckTable(table); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Table(table.String()).Where("asset = ?", query.Asset)
	if query.StartTime != nil {
		tx = tx.Where("window_start >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		tx = tx.Where("window_start <= ?", *query.EndTime)
	}

	var rows []models.Candle
	if err := tx.Order("window_start ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, row.ToDomain(query.Timeframe))
	}
	return candles, nil
}

// InsertTicks skips rows whose (asset, trade_id) already exists, including
// duplicates inside the batch.
func (s *Store) InsertTicks(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	type tickKey struct {
		asset string
		id    int64
	}
	seen := make(map[tickKey]struct{}, len(trades))
	rows := make([]models.Tick, 0, len(trades))
	for _, trade := range trades {
		key := tickKey{asset: trade.Asset, id: trade.TradeID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		row, err := models.NewTick(trade)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("insert ticks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, table domain.Table, age time.Duration) (int64, error) {
	if err := domain.CheckTable(table); err != nil {
		return 0, err
	}
	if age <= 0 {
		return 0, errors.New("retention age must be positive")
	}
	cutoff := s.now().Add(-age).UnixMilli()

	var model any = &models.Candle{}
	if table == domain.TableTicks {
		model = &models.Tick{}
	}
	res := s.db.WithContext(ctx).Table(table.String()).
		Where(models.CutoffColumn(table)+" < ?", cutoff).
		Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
