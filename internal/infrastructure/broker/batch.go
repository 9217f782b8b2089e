package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

const defaultBatchSize = 100

// BatchConfig controls batching thresholds for tick ingestion. A zero
// Timeout flushes on size only.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

// FlushFunc receives a full batch. It must not retain the slice.
type FlushFunc func(ctx context.Context, batch []marketdata.Trade) error

// TickBatcher buffers normalized trades and hands fixed-size batches to flush.
type TickBatcher struct {
	ticks *batchBuffer[marketdata.Trade]
}

func NewTickBatcher(cfg BatchConfig, flush FlushFunc, logger *logrus.Logger) *TickBatcher {
	if cfg.Size <= 0 {
		cfg.Size = defaultBatchSize
	}
	componentLogger := logger.WithField("component", "tick_batcher")
	return &TickBatcher{
		ticks: newBatchBuffer[marketdata.Trade](cfg, flush, componentLogger),
	}
}

// Run sets the base context for flush operations.
func (b *TickBatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	b.ticks.setContext(ctx)
}

// Stop flushes the partial batch using the provided context.
func (b *TickBatcher) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.ticks.setContext(ctx)
	return b.ticks.drain(ctx)
}

func (b *TickBatcher) AddTick(trade marketdata.Trade) error {
	return b.ticks.enqueue(trade)
}

// Pending reports buffered trades not yet flushed.
func (b *TickBatcher) Pending() int {
	b.ticks.mu.Lock()
	defer b.ticks.mu.Unlock()
	return len(b.ticks.items)
}

type batchBuffer[T any] struct {
	cfg     BatchConfig
	mu      sync.Mutex
	items   []T
	timer   *time.Timer
	flushFn func(context.Context, []T) error
	logger  *logrus.Entry
	ctx     context.Context
}

func newBatchBuffer[T any](cfg BatchConfig, flushFn func(context.Context, []T) error, logger *logrus.Entry) *batchBuffer[T] {
	return &batchBuffer[T]{
		cfg:     cfg,
		items:   make([]T, 0, cfg.Size),
		flushFn: flushFn,
		logger:  logger,
	}
}

func (bb *batchBuffer[T]) setContext(ctx context.Context) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	bb.ctx = ctx
}

func (bb *batchBuffer[T]) enqueue(item T) error {
	bb.mu.Lock()
	ctx := bb.ctx
	if ctx == nil {
		bb.mu.Unlock()
		return errors.New("batch buffer is not running")
	}
	bb.items = append(bb.items, item)
	var batch []T
	if len(bb.items) >= bb.cfg.Size {
		batch = bb.takeBatchLocked()
	} else if bb.timer == nil && bb.cfg.Timeout > 0 {
		bb.startTimerLocked()
	}
	bb.mu.Unlock()

	return bb.flush(ctx, batch)
}

func (bb *batchBuffer[T]) startTimerLocked() {
	bb.timer = time.AfterFunc(bb.cfg.Timeout, func() {
		bb.mu.Lock()
		ctx := bb.ctx
		batch := bb.takeBatchLocked()
		bb.mu.Unlock()

		if err := bb.flush(ctx, batch); err != nil {
			bb.logger.WithError(err).Warn("timed batch flush failed")
		}
	})
}

func (bb *batchBuffer[T]) takeBatchLocked() []T {
	if bb.timer != nil {
		bb.timer.Stop()
		bb.timer = nil
	}
	if len(bb.items) == 0 {
		return nil
	}
	batch := make([]T, len(bb.items))
	copy(batch, bb.items)
	bb.items = bb.items[:0]
	return batch
}

func (bb *batchBuffer[T]) flush(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := bb.flushFn(ctx, batch); err != nil {
		return err
	}
	bb.logger.WithFields(logrus.Fields{
		"size":    len(batch),
		"took_ms": time.Since(start).Milliseconds(),
	}).Debug("flushed batch")
	return nil
}

func (bb *batchBuffer[T]) drain(ctx context.Context) error {
	bb.mu.Lock()
	batch := bb.takeBatchLocked()
	bb.mu.Unlock()
	return bb.flush(ctx, batch)
}
