package interfaces

import (
	"context"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"
)

type CandleRepository interface {
	UpsertCandle(ctx context.Context, candle marketdata.Candle) error
	GetCandles(ctx context.Context, query marketdata.CandleQuery) ([]marketdata.Candle, error)
}

type TickRepository interface {
	// InsertTicks stores a batch and skips rows whose (asset, trade id) is
	// already present. It returns the number of rows actually inserted.
	InsertTicks(ctx context.Context, trades []marketdata.Trade) (int64, error)
}

type RetentionRepository interface {
	DeleteOlderThan(ctx context.Context, table marketdata.Table, age time.Duration) (int64, error)
}

type MarketDataRepository interface {
	CandleRepository
	TickRepository
	RetentionRepository

	Ping(ctx context.Context) error
	Close()
}

// TradeSource is one connection to an upstream feed. Stream blocks until the
// session ends and writes decoded messages to out.
type TradeSource interface {
	Name() string
	Stream(ctx context.Context, out chan<- marketdata.TradeMessage) error
}

// TradePublisher forwards feed messages to a broker.
type TradePublisher interface {
	PublishTrade(ctx context.Context, msg marketdata.TradeMessage) error
	Close() error
}
