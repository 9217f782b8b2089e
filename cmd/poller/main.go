package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaurya35/exness/internal/config"
	domain "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	"github.com/shaurya35/exness/internal/domain/interfaces"
	"github.com/shaurya35/exness/internal/infrastructure/broker"
	"github.com/shaurya35/exness/internal/infrastructure/feed"
	"github.com/shaurya35/exness/internal/infrastructure/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const publishTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Fatalf("config error: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	source, err := feed.NewBinanceSource(cfg.Feed, logger)
	if err != nil {
		logger.Fatalf("init binance feed: %v", err)
	}
	policy, err := feed.ParseReconnectPolicy(cfg.Feed.ReconnectPolicy)
	if err != nil {
		logger.Fatalf("reconnect policy: %v", err)
	}

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatalf("init publisher: %v", err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Errorf("close publisher: %v", err)
		}
	}()

	trades := make(chan domain.TradeMessage, 256)
	supervisor := feed.NewSupervisor(source, policy, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(trades)
		return supervisor.Run(gctx, trades)
	})
	g.Go(func() error {
		return pumpTrades(gctx, trades, pub, logger)
	})

	logger.WithFields(logrus.Fields{
		"symbols": cfg.Feed.Symbols,
		"broker":  cfg.Feed.Broker,
		"url":     source.StreamURL(),
	}).Info("poller started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("poller stopped with error: %v", err)
	}
	logger.Info("poller stopped")
}

func newPublisher(cfg *config.Config, logger *logrus.Logger) (interfaces.TradePublisher, error) {
	switch cfg.Feed.Broker {
	case config.SourceAMQP:
		return broker.NewPublisher(cfg.RabbitMQ, logger)
	case config.SourceKafka:
		return broker.NewKafkaPublisher(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown feed broker %q", cfg.Feed.Broker)
	}
}

func pumpTrades(ctx context.Context, in <-chan domain.TradeMessage, pub interfaces.TradePublisher, logger *logrus.Logger) error {
	log := logger.WithField("component", "trade_pump")
	var published int64
	for msg := range in {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		err := pub.PublishTrade(pubCtx, msg)
		cancel()
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"asset":    msg.Asset,
				"trade_id": msg.TradeID,
			}).Warn("publish trade")
			continue
		}
		published++
		if published%1000 == 0 {
			log.WithField("published", published).Debug("trades published")
		}
	}
	log.WithField("published", published).Info("trade pump stopped")
	return nil
}
