package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	"github.com/shaurya35/exness/internal/infrastructure/marketdata/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool, now: time.Now}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Candles

const upsertCandleQuery = `
	INSERT INTO %s (asset, window_start, window_end, open, high, low, close, last_trade_id, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	ON CONFLICT (asset, window_start) DO UPDATE SET
		window_end = EXCLUDED.window_end,
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		last_trade_id = EXCLUDED.last_trade_id,
		updated_at = EXCLUDED.updated_at`

func (r *Repository) UpsertCandle(ctx context.Context, candle domain.Candle) error {
	table := candle.Timeframe.Table()
	if err := domain.CheckTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(upsertCandleQuery, pgx.Identifier{table.String()}.Sanitize())
	_, err := r.pool.Exec(ctx, query,
		candle.Asset,
		candle.WindowStart,
		candle.WindowEnd,
		candle.Open.String(),
		candle.High.String(),
		candle.Low.String(),
		candle.Close.String(),
		candle.LastTradeID,
	)
	if err != nil {
		return fmt.Errorf("upsert candle %s %s %d: %w", table, candle.Asset, candle.WindowStart, err)
	}
	return nil
}

func (r *Repository) GetCandles(ctx context.Context, q domain.CandleQuery) ([]domain.Candle, error) {
	table := q.Timeframe.Table()
	if err := domain.CheckTable(table); err != nil {
		return nil, err
	}

	conditions := []string{"asset = $1"}
	args := []any{q.Asset}
	if q.StartTime != nil {
		args = append(args, *q.StartTime)
		conditions = append(conditions, fmt.Sprintf("window_start >= $%d", len(args)))
	}
	if q.EndTime != nil {
		args = append(args, *q.EndTime)
		conditions = append(conditions, fmt.Sprintf("window_start <= $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT asset, window_start, window_end, open::text, high::text, low::text, close::text, last_trade_id
		FROM %s
		WHERE %s
		ORDER BY window_start ASC`,
		pgx.Identifier{table.String()}.Sanitize(), strings.Join(conditions, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		candle, err := scanCandle(rows, q.Timeframe)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, rows.Err()
}

func scanCandle(row pgx.Row, tf domain.Timeframe) (domain.Candle, error) {
	var (
		candle                 = domain.Candle{Timeframe: tf}
		open, high, low, close string
	)
	if err := row.Scan(
		&candle.Asset,
		&candle.WindowStart,
		&candle.WindowEnd,
		&open,
		&high,
		&low,
		&close,
		&candle.LastTradeID,
	); err != nil {
		return domain.Candle{}, err
	}

	var err error
	if candle.Open, err = decimal.NewFromString(open); err != nil {
		return domain.Candle{}, fmt.Errorf("scan open: %w", err)
	}
	if candle.High, err = decimal.NewFromString(high); err != nil {
		return domain.Candle{}, fmt.Errorf("scan high: %w", err)
	}
	if candle.Low, err = decimal.NewFromString(low); err != nil {
		return domain.Candle{}, fmt.Errorf("scan low: %w", err)
	}
	if candle.Close, err = decimal.NewFromString(close); err != nil {
		return domain.Candle{}, fmt.Errorf("scan close: %w", err)
	}
	return candle, nil
}

// Ticks

const insertTickQuery = `
	INSERT INTO ticks (asset, trade_id, price, quantity, event_time)
	VALUES ($1,$2,$3,$4,$5)
	ON CONFLICT (asset, trade_id) DO NOTHING`

func (r *Repository) InsertTicks(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, trade := range trades {
		batch.Queue(insertTickQuery, trade.Asset, trade.TradeID, trade.Price, trade.Quantity, trade.EventTime)
	}

	results := r.pool.SendBatch(ctx, batch)
	var inserted int64
	var errs []error
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			errs = append(errs, fmt.Errorf("insert tick %s/%d: %w", trades[i].Asset, trades[i].TradeID, err))
			continue
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		errs = append(errs, err)
	}
	return inserted, errors.Join(errs...)
}

// Retention

func (r *Repository) DeleteOlderThan(ctx context.Context, table domain.Table, age time.Duration) (int64, error) {
	if err := domain.CheckTable(table); err != nil {
		return 0, err
	}
	if age <= 0 {
		return 0, errors.New("retention age must be positive")
	}
	cutoff := r.now().Add(-age).UnixMilli()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s < $1",
		pgx.Identifier{table.String()}.Sanitize(), models.CutoffColumn(table))

	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}
