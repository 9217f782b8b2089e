package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaurya35/exness/internal/config"
	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaConsumer reads feed messages from a Kafka topic as part of a
// consumer group.
type KafkaConsumer struct {
	cfg    config.KafkaConfig
	logger *logrus.Entry
}

func NewKafkaConsumer(cfg config.KafkaConfig, logger *logrus.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &KafkaConsumer{
		cfg:    cfg,
		logger: logger.WithFields(logrus.Fields{"component": "kafka_consumer", "topic": cfg.Topic}),
	}, nil
}

func (c *KafkaConsumer) Name() string { return "kafka" }

func (c *KafkaConsumer) Stream(ctx context.Context, out chan<- marketdata.TradeMessage) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       c.cfg.Topic,
		GroupID:     c.cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	defer reader.Close()

	c.logger.Info("kafka consumer started")
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		msg, err := decodeTrade(m.Value)
		if err != nil {
			c.logger.WithError(err).WithField("offset", m.Offset).Warn("failed to process message")
		} else {
			select {
			case out <- msg:
			case <-ctx.Done():
				return nil
			}
		}

		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.WithError(err).Warn("failed to commit offset")
		}
	}
}

// KafkaPublisher writes feed messages keyed by asset so one asset stays on
// one partition and keeps its order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}, nil
}

func (p *KafkaPublisher) PublishTrade(ctx context.Context, msg marketdata.TradeMessage) error {
	body, err := encodeTrade(msg)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.Asset), Value: body}); err != nil {
		return fmt.Errorf("publish trade to kafka: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
