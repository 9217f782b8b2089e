package persistence

import (
	"context"
	"fmt"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	interfaces "github.com/shaurya35/exness/internal/domain/interfaces"
)

// CandleWriter upserts finalized candles through the queue. It satisfies
// aggregator.Sink.
type CandleWriter struct {
	queue *Queue
	repo  interfaces.CandleRepository
}

func NewCandleWriter(queue *Queue, repo interfaces.CandleRepository) *CandleWriter {
	return &CandleWriter{queue: queue, repo: repo}
}

func (w *CandleWriter) Finalized(candle marketdata.Candle) {
	name := fmt.Sprintf("upsert_candle:%s:%s:%d", candle.Timeframe, candle.Asset, candle.WindowStart)
	w.queue.Submit(name, func(ctx context.Context) error {
		return w.repo.UpsertCandle(ctx, candle)
	})
}

// TickWriter hands tick batches to the queue.
type TickWriter struct {
	queue *Queue
	repo  interfaces.TickRepository
}

func NewTickWriter(queue *Queue, repo interfaces.TickRepository) *TickWriter {
	return &TickWriter{queue: queue, repo: repo}
}

// WriteTicks never blocks on storage. It fails only when the queue is closed.
func (w *TickWriter) WriteTicks(_ context.Context, trades []marketdata.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	batch := make([]marketdata.Trade, len(trades))
	copy(batch, trades)

	name := fmt.Sprintf("insert_ticks:%d", len(batch))
	if !w.queue.Submit(name, func(ctx context.Context) error {
		_, err := w.repo.InsertTicks(ctx, batch)
		return err
	}) {
		return ErrQueueClosed
	}
	return nil
}
