package marketdata

import "github.com/shopspring/decimal"

// CandleKey identifies one candle instance.
type CandleKey struct {
	Asset       string
	Timeframe   Timeframe
	WindowStart int64
}

// Candle is an OHLC summary of one window. Values handed to persistence are
// finalized snapshots and are never mutated afterwards.
type Candle struct {
	Asset       string          `json:"asset"`
	Timeframe   Timeframe       `json:"timeframe"`
	WindowStart int64           `json:"windowStart"`
	WindowEnd   int64           `json:"windowEnd"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	LastTradeID int64           `json:"lastTradeId"`
}

func (c Candle) Key() CandleKey {
	return CandleKey{Asset: c.Asset, Timeframe: c.Timeframe, WindowStart: c.WindowStart}
}

// CandleQuery filters stored candles by asset and an optional window start
// range. Nil bounds are open.
type CandleQuery struct {
	Asset     string
	Timeframe Timeframe
	StartTime *int64
	EndTime   *int64
}
