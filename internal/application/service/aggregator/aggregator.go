// Package aggregator turns a trade stream into per-timeframe OHLC candles.
//
// Each timeframe has its own book of in-progress candles guarded by its own
// mutex. Ingest and Sweep take the same per-book lock, so a trade and a sweep
// never interleave on one timeframe, while different timeframes proceed
// independently.
package aggregator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedTrade = errors.New("malformed trade")
	ErrLateTrade      = errors.New("trade for finalized window")
	ErrUnknownPolicy  = errors.New("unknown late trade policy")

	// ErrLateMemoryTooShort means finalized keys would be forgotten before
	// the sweeper stops finalizing their windows.
	ErrLateMemoryTooShort = errors.New("late memory must exceed twice the longest timeframe")
)

// LatePolicy decides what happens to a trade whose window was already finalized.
type LatePolicy string

const (
	LatePolicyDrop   LatePolicy = "drop"
	LatePolicyReopen LatePolicy = "reopen"
)

func ParseLatePolicy(s string) (LatePolicy, error) {
	switch p := LatePolicy(s); p {
	case LatePolicyDrop, LatePolicyReopen:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

const defaultLateMemory = 24 * time.Hour

// Sink receives finalized candles. It is called outside the book lock and
// must not block the caller on I/O.
type Sink interface {
	Finalized(candle marketdata.Candle)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(candle marketdata.Candle)

func (f SinkFunc) Finalized(candle marketdata.Candle) { f(candle) }

type Config struct {
	Timeframes []marketdata.Timeframe
	LatePolicy LatePolicy
	// LateMemory bounds how long finalized keys are remembered, measured from
	// window start against the sweep clock.
	LateMemory time.Duration
}

type Aggregator struct {
	sink       Sink
	policy     LatePolicy
	lateMemory time.Duration
	timeframes []marketdata.Timeframe
	books      map[marketdata.Timeframe]*book
}

type inProgress struct {
	candle   marketdata.Candle
	earliest int64
}

type book struct {
	tf     marketdata.Timeframe
	mu     sync.Mutex
	open   map[marketdata.CandleKey]*inProgress
	closed map[marketdata.CandleKey]inProgress
}

func New(cfg Config, sink Sink) (*Aggregator, error) {
	if sink == nil {
		return nil, errors.New("aggregator sink is nil")
	}
	timeframes := cfg.Timeframes
	if len(timeframes) == 0 {
		timeframes = marketdata.Timeframes()
	}
	policy := cfg.LatePolicy
	if policy == "" {
		policy = LatePolicyDrop
	}
	if _, err := ParseLatePolicy(string(policy)); err != nil {
		return nil, err
	}
	lateMemory := cfg.LateMemory
	if lateMemory <= 0 {
		lateMemory = defaultLateMemory
	}

	a := &Aggregator{
		sink:       sink,
		policy:     policy,
		lateMemory: lateMemory,
		timeframes: make([]marketdata.Timeframe, 0, len(timeframes)),
		books:      make(map[marketdata.Timeframe]*book, len(timeframes)),
	}
	for _, tf := range timeframes {
		if !tf.Valid() {
			return nil, fmt.Errorf("%w: %q", marketdata.ErrUnknownTimeframe, string(tf))
		}
		if _, dup := a.books[tf]; dup {
			continue
		}
		a.timeframes = append(a.timeframes, tf)
		a.books[tf] = &book{
			tf:     tf,
			open:   make(map[marketdata.CandleKey]*inProgress),
			closed: make(map[marketdata.CandleKey]inProgress),
		}
	}
	if horizon := 2 * marketdata.LongestDuration(a.timeframes); lateMemory <= horizon {
		return nil, fmt.Errorf("%w: %s <= %s", ErrLateMemoryTooShort, lateMemory, horizon)
	}
	return a, nil
}

// Ingest applies the trade to every timeframe. Failures are per timeframe:
// the returned error joins them and the remaining timeframes are still updated.
func (a *Aggregator) Ingest(trade marketdata.Trade) error {
	var errs []error
	for _, tf := range a.timeframes {
		finalized, err := a.books[tf].apply(trade, a.policy)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tf, err))
			continue
		}
		if finalized != nil {
			a.sink.Finalized(*finalized)
		}
	}
	return errors.Join(errs...)
}

// Sweep finalizes every open candle whose window started more than two
// durations before now. It returns the number of candles finalized.
func (a *Aggregator) Sweep(now time.Time) int {
	nowMs := now.UnixMilli()
	total := 0
	for _, tf := range a.timeframes {
		stale := a.books[tf].sweep(nowMs, a.lateMemory.Milliseconds())
		for _, candle := range stale {
			a.sink.Finalized(candle)
		}
		total += len(stale)
	}
	return total
}

// Candle returns a copy of an in-progress candle.
func (a *Aggregator) Candle(key marketdata.CandleKey) (marketdata.Candle, bool) {
	b, ok := a.books[key.Timeframe]
	if !ok {
		return marketdata.Candle{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.open[key]
	if !ok {
		return marketdata.Candle{}, false
	}
	return state.candle, true
}

// OpenCount reports in-progress candles across all timeframes.
func (a *Aggregator) OpenCount() int {
	total := 0
	for _, tf := range a.timeframes {
		b := a.books[tf]
		b.mu.Lock()
		total += len(b.open)
		b.mu.Unlock()
	}
	return total
}

func (b *book) apply(trade marketdata.Trade, policy LatePolicy) (*marketdata.Candle, error) {
	price, err := parseDecimal("price", trade.Price)
	if err != nil {
		return nil, err
	}
	if _, err := parseDecimal("quantity", trade.Quantity); err != nil {
		return nil, err
	}

	start, end := b.tf.Window(trade.EventTime)
	key := marketdata.CandleKey{Asset: trade.Asset, Timeframe: b.tf, WindowStart: start}

	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.open[key]
	if !ok {
		if last, done := b.closed[key]; done {
			if policy == LatePolicyDrop {
				return nil, fmt.Errorf("%w: %s window %d", ErrLateTrade, trade.Asset, start)
			}
			delete(b.closed, key)
			reopened := last
			state = &reopened
			b.open[key] = state
			ok = true
		}
	}

	if !ok {
		state = &inProgress{
			candle: marketdata.Candle{
				Asset:       trade.Asset,
				Timeframe:   b.tf,
				WindowStart: start,
				WindowEnd:   end,
				Open:        price,
				High:        price,
				Low:         price,
				Close:       price,
				LastTradeID: trade.TradeID,
			},
			earliest: trade.EventTime,
		}
		b.open[key] = state
	} else {
		c := &state.candle
		if trade.EventTime < state.earliest {
			c.Open = price
			state.earliest = trade.EventTime
		}
		if price.GreaterThan(c.High) {
			c.High = price
		}
		if price.LessThan(c.Low) {
			c.Low = price
		}
		c.Close = price
		c.LastTradeID = trade.TradeID
	}

	if trade.EventTime >= end {
		snapshot := b.finalizeLocked(key, state)
		return &snapshot, nil
	}
	return nil, nil
}

func (b *book) sweep(nowMs, lateMemoryMs int64) []marketdata.Candle {
	limit := 2 * b.tf.DurationMs()

	b.mu.Lock()
	defer b.mu.Unlock()

	var stale []marketdata.Candle
	for key, state := range b.open {
		if nowMs-key.WindowStart > limit {
			stale = append(stale, b.finalizeLocked(key, state))
		}
	}
	for key := range b.closed {
		if nowMs-key.WindowStart > lateMemoryMs {
			delete(b.closed, key)
		}
	}
	return stale
}

func (b *book) finalizeLocked(key marketdata.CandleKey, state *inProgress) marketdata.Candle {
	delete(b.open, key)
	b.closed[key] = *state
	return state.candle
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s %q: %v", ErrMalformedTrade, field, value, err)
	}
	return d, nil
}
