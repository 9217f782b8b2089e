package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shaurya35/exness/internal/config"
	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const defaultReadTimeout = 60 * time.Second

// BinanceSource is one combined-stream websocket session against Binance.
type BinanceSource struct {
	baseURL     string
	symbols     []string
	readTimeout time.Duration
	dialer      *websocket.Dialer
	logger      *logrus.Entry
}

// envelope is the combined stream wrapper:
//
//	{"stream":"btcusdt@trade","data":{"e":"trade","t":12345,"s":"BTCUSDT","p":"0.001","q":"100","T":1672515782136}}
type envelope struct {
	Stream string       `json:"stream"`
	Data   tradePayload `json:"data"`
}

type tradePayload struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	TradeID   int64  `json:"t"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

func NewBinanceSource(cfg config.FeedConfig, logger *logrus.Logger) (*BinanceSource, error) {
	if cfg.URL == "" {
		return nil, errors.New("feed url is required")
	}
	symbols := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &BinanceSource{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		symbols:     symbols,
		readTimeout: readTimeout,
		dialer:      websocket.DefaultDialer,
		logger:      logger.WithField("component", "binance_feed"),
	}, nil
}

func (b *BinanceSource) Name() string { return "binance" }

// StreamURL renders the combined stream URL for all symbols.
func (b *BinanceSource) StreamURL() string {
	streams := make([]string, 0, len(b.symbols))
	for _, s := range b.symbols {
		streams = append(streams, s+"@trade")
	}
	return fmt.Sprintf("%s/stream?streams=%s", b.baseURL, strings.Join(streams, "/"))
}

// Stream maintains a single websocket session until ctx is cancelled or the
// connection fails. A clean shutdown returns nil.
func (b *BinanceSource) Stream(ctx context.Context, out chan<- marketdata.TradeMessage) error {
	conn, _, err := b.dialer.DialContext(ctx, b.StreamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	b.logger.WithField("streams", len(b.symbols)).Info("binance feed connected")
	for {
		if err := conn.SetReadDeadline(time.Now().Add(b.readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		msg, err := decodeEnvelope(raw)
		if err != nil {
			b.logger.WithError(err).Warn("skip feed message")
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func decodeEnvelope(raw []byte) (marketdata.TradeMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return marketdata.TradeMessage{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Data.Event != "" && env.Data.Event != "trade" {
		return marketdata.TradeMessage{}, fmt.Errorf("unexpected event type: %s", env.Data.Event)
	}
	return marketdata.TradeMessage{
		TradeID:   env.Data.TradeID,
		Asset:     env.Data.Symbol,
		Price:     env.Data.Price,
		Quantity:  env.Data.Quantity,
		EventTime: env.Data.TradeTime,
	}, nil
}
