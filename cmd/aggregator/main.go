package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/shaurya35/exness/internal/application/service/aggregator"
	"github.com/shaurya35/exness/internal/application/service/ingest"
	appmarketdata "github.com/shaurya35/exness/internal/application/service/marketdata"
	"github.com/shaurya35/exness/internal/application/service/normalizer"
	"github.com/shaurya35/exness/internal/application/service/persistence"
	"github.com/shaurya35/exness/internal/application/service/retention"
	"github.com/shaurya35/exness/internal/config"
	domain "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	"github.com/shaurya35/exness/internal/domain/interfaces"
	"github.com/shaurya35/exness/internal/infrastructure/broker"
	"github.com/shaurya35/exness/internal/infrastructure/feed"
	"github.com/shaurya35/exness/internal/infrastructure/logging"
	inframarketdata "github.com/shaurya35/exness/internal/infrastructure/marketdata"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const tradeBuffer = 1024

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	repo, err := inframarketdata.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("init marketdata store: %v", err)
	}
	defer repo.Close()
	service := appmarketdata.NewService(repo)

	queue := persistence.NewQueue(cfg.Persistence.Timeout, logger)
	tickWriter := persistence.NewTickWriter(queue, service)

	batcher := broker.NewTickBatcher(broker.BatchConfig{
		Size:    cfg.TickBatch.Size,
		Timeout: cfg.TickBatch.Timeout,
	}, tickWriter.WriteTicks, logger)
	batcher.Run(context.Background())

	latePolicy, err := aggregator.ParseLatePolicy(cfg.Aggregator.LatePolicy)
	if err != nil {
		logger.Fatalf("late policy: %v", err)
	}
	agg, err := aggregator.New(aggregator.Config{
		Timeframes: domain.Timeframes(),
		LatePolicy: latePolicy,
		LateMemory: cfg.Aggregator.LateMemory,
	}, persistence.NewCandleWriter(queue, service))
	if err != nil {
		logger.Fatalf("init aggregator: %v", err)
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		logger.Fatalf("init trade source: %v", err)
	}
	reconnectPolicy, err := feed.ParseReconnectPolicy(cfg.Feed.ReconnectPolicy)
	if err != nil {
		logger.Fatalf("reconnect policy: %v", err)
	}

	supervisor := feed.NewSupervisor(source, reconnectPolicy, logger)
	pipeline := ingest.NewPipeline(normalizer.New(), batcher, agg, logger)
	sweeper := aggregator.NewSweeper(agg, cfg.Aggregator.SweepInterval, logger)
	pruner := retention.NewPruner(retention.Config{
		Interval:     cfg.Retention.Interval,
		StartupDelay: cfg.Retention.StartupDelay,
		Policies:     retentionPolicies(cfg.Retention),
	}, repo, logger)

	trades := make(chan domain.TradeMessage, tradeBuffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(trades)
		return supervisor.Run(gctx, trades)
	})
	g.Go(func() error {
		// Runs until the feed closes trades so buffered messages are still applied.
		return pipeline.Run(context.WithoutCancel(gctx), trades)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		return pruner.Run(gctx)
	})

	logger.WithFields(logrus.Fields{
		"source":      source.Name(),
		"timeframes":  len(domain.Timeframes()),
		"late_policy": string(latePolicy),
		"reconnect":   string(reconnectPolicy),
		"store":       cfg.Store.Driver,
	}).Info("aggregator started")

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.WithError(runErr).Error("aggregator stopped with error")
	}

	stats := pipeline.Stats()
	logger.WithFields(logrus.Fields{
		"processed":    stats.Processed,
		"rejected":     stats.Rejected,
		"late":         stats.Late,
		"open_candles": agg.OpenCount(),
	}).Infof("shutting down aggregator")

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Persistence.DrainTimeout)
	defer cancel()

	if err := batcher.Stop(drainCtx); err != nil {
		logger.WithError(err).Warn("flush partial tick batch")
	}
	if err := queue.Drain(drainCtx); err != nil {
		logger.WithError(err).Warn("persistence drain incomplete")
	}
	qs := queue.Stats()
	logger.WithFields(logrus.Fields{
		"submitted": qs.Submitted,
		"succeeded": qs.Succeeded,
		"failed":    qs.Failed,
		"rejected":  qs.Rejected,
	}).Info("aggregator stopped")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Exit(1)
	}
}

func newSource(cfg *config.Config, logger *logrus.Logger) (interfaces.TradeSource, error) {
	switch cfg.Feed.Source {
	case config.SourceBinance:
		return feed.NewBinanceSource(cfg.Feed, logger)
	case config.SourceAMQP:
		return broker.NewConsumer(cfg.RabbitMQ, logger)
	case config.SourceKafka:
		return broker.NewKafkaConsumer(cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Feed.Source)
	}
}

func retentionPolicies(cfg config.RetentionConfig) []retention.Policy {
	return []retention.Policy{
		{Table: domain.TableTicks, MaxAge: cfg.Ticks},
		{Table: domain.OneMinute.Table(), MaxAge: cfg.Candles1m},
		{Table: domain.FiveMinutes.Table(), MaxAge: cfg.Candles5m},
		{Table: domain.TenMinutes.Table(), MaxAge: cfg.Candles10m},
		{Table: domain.ThirtyMinutes.Table(), MaxAge: cfg.Candles30m},
	}
}
