package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shaurya35/exness/internal/config"
	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

var ErrDeliveriesClosed = errors.New("rabbitmq deliveries channel closed")

// Consumer reads feed messages from a RabbitMQ fanout exchange. Each Stream
// call is one AMQP session with its own exclusive queue.
type Consumer struct {
	cfg    config.RabbitMQConfig
	logger *logrus.Entry
}

func NewConsumer(cfg config.RabbitMQConfig, logger *logrus.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.Exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger.WithFields(logrus.Fields{"component": "amqp_consumer", "exchange": cfg.Exchange}),
	}, nil
}

func (c *Consumer) Name() string { return "amqp" }

// Stream consumes until ctx is cancelled or the connection drops.
func (c *Consumer) Stream(ctx context.Context, out chan<- marketdata.TradeMessage) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, deliveries, err := c.subscribe(conn)
	if err != nil {
		return err
	}
	defer ch.Close()

	c.logger.Info("rabbitmq consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			msg, err := decodeTrade(delivery.Body)
			if err != nil {
				c.logger.WithError(err).Warn("failed to process message")
				_ = delivery.Nack(false, false)
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				_ = delivery.Nack(false, true)
				return nil
			}
			if err := delivery.Ack(false); err != nil {
				c.logger.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}

func (c *Consumer) subscribe(conn *amqp.Connection) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", c.cfg.Exchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("bind queue %s to %s: %w", queue.Name, c.cfg.Exchange, err)
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("start consume: %w", err)
	}
	return ch, deliveries, nil
}

// Publisher writes feed messages to a RabbitMQ fanout exchange.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logrus.Entry
	mu       sync.Mutex
}

func NewPublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) (*Publisher, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	p := &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger.WithFields(logrus.Fields{"component": "amqp_publisher", "exchange": cfg.Exchange}),
	}
	p.logger.Info("rabbitmq publisher ready")
	return p, nil
}

func (p *Publisher) PublishTrade(ctx context.Context, msg marketdata.TradeMessage) error {
	body, err := encodeTrade(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	var errs []error
	if err := p.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rabbitmq channel: %w", err))
	}
	if err := p.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rabbitmq connection: %w", err))
	}
	return errors.Join(errs...)
}
