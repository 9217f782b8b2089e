// Package ingest drives trades from a feed channel into the tick batcher and
// the candle aggregator on a single goroutine.
package ingest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/shaurya35/exness/internal/application/service/aggregator"
	"github.com/shaurya35/exness/internal/application/service/normalizer"
	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

type TickBuffer interface {
	AddTick(trade marketdata.Trade) error
}

type CandleIngester interface {
	Ingest(trade marketdata.Trade) error
}

type Stats struct {
	Processed uint64
	Rejected  uint64
	Late      uint64
}

type Pipeline struct {
	normalizer *normalizer.Normalizer
	ticks      TickBuffer
	candles    CandleIngester
	logger     *logrus.Entry

	processed atomic.Uint64
	rejected  atomic.Uint64
	late      atomic.Uint64
}

func NewPipeline(n *normalizer.Normalizer, ticks TickBuffer, candles CandleIngester, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		normalizer: n,
		ticks:      ticks,
		candles:    candles,
		logger:     logger.WithField("component", "ingest"),
	}
}

// Run processes messages in arrival order until ctx is done or in is closed.
func (p *Pipeline) Run(ctx context.Context, in <-chan marketdata.TradeMessage) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			p.Handle(msg)
		}
	}
}

// Handle processes one message. Errors are logged and counted, never returned.
func (p *Pipeline) Handle(msg marketdata.TradeMessage) {
	trade, err := p.normalizer.Normalize(msg)
	if err != nil {
		p.rejected.Add(1)
		p.logger.WithError(err).WithField("trade_id", msg.TradeID).Warn("trade rejected")
		return
	}

	if err := p.ticks.AddTick(trade); err != nil {
		p.logger.WithError(err).WithField("trade_id", trade.TradeID).Warn("tick buffer rejected trade")
	}

	if err := p.candles.Ingest(trade); err != nil {
		entry := p.logger.WithError(err).WithFields(logrus.Fields{
			"asset":      trade.Asset,
			"trade_id":   trade.TradeID,
			"event_time": trade.EventTime,
		})
		switch {
		case errors.Is(err, aggregator.ErrMalformedTrade):
			p.rejected.Add(1)
			entry.Warn("candle update rejected")
			return
		case errors.Is(err, aggregator.ErrLateTrade):
			p.late.Add(1)
			entry.Debug("late trade dropped")
		default:
			entry.Warn("candle update failed")
		}
	}
	p.processed.Add(1)
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Rejected:  p.rejected.Load(),
		Late:      p.late.Load(),
	}
}
