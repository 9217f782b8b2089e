package marketdata

import (
	"context"
	"errors"
	"strings"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	interfaces "github.com/shaurya35/exness/internal/domain/interfaces"
)

var (
	ErrMissingAsset     = errors.New("asset is required")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
)

type Service struct {
	repo interfaces.MarketDataRepository
}

func NewService(repo interfaces.MarketDataRepository) *Service {
	return &Service{repo: repo}
}

// Ticks

func (s *Service) InsertTicks(ctx context.Context, trades []marketdata.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	return s.repo.InsertTicks(ctx, trades)
}

// Candles

func (s *Service) UpsertCandle(ctx context.Context, candle marketdata.Candle) error {
	if candle.Asset == "" {
		return ErrMissingAsset
	}
	if !candle.Timeframe.Valid() {
		return ErrInvalidTimeframe
	}
	return s.repo.UpsertCandle(ctx, candle)
}

// GetCandles returns stored candles ascending by window start. A reversed
// range is swapped rather than rejected.
func (s *Service) GetCandles(ctx context.Context, query marketdata.CandleQuery) ([]marketdata.Candle, error) {
	query.Asset = strings.ToUpper(strings.TrimSpace(query.Asset))
	if query.Asset == "" {
		return nil, ErrMissingAsset
	}
	if !query.Timeframe.Valid() {
		return nil, ErrInvalidTimeframe
	}
	if query.StartTime != nil && query.EndTime != nil && *query.StartTime > *query.EndTime {
		query.StartTime, query.EndTime = query.EndTime, query.StartTime
	}
	return s.repo.GetCandles(ctx, query)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) Close() {
	s.repo.Close()
}
