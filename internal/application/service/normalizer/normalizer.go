package normalizer

import (
	"errors"
	"fmt"
	"strings"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

var ErrInvalidMessage = errors.New("invalid trade message")

// Normalizer turns feed messages into canonical trades. It keeps no state
// and is safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

func New() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// Decode parses a raw JSON feed message and normalizes it.
func (n *Normalizer) Decode(raw []byte) (marketdata.Trade, error) {
	var msg marketdata.TradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return marketdata.Trade{}, fmt.Errorf("%w: decode: %v", ErrInvalidMessage, err)
	}
	return n.Normalize(msg)
}

func (n *Normalizer) Normalize(msg marketdata.TradeMessage) (marketdata.Trade, error) {
	msg.Asset = strings.ToUpper(strings.TrimSpace(msg.Asset))
	msg.Price = strings.TrimSpace(msg.Price)
	msg.Quantity = strings.TrimSpace(msg.Quantity)

	if err := n.validate.Struct(&msg); err != nil {
		return marketdata.Trade{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if _, err := decimal.NewFromString(msg.Price); err != nil {
		return marketdata.Trade{}, fmt.Errorf("%w: price %q: %v", ErrInvalidMessage, msg.Price, err)
	}
	if _, err := decimal.NewFromString(msg.Quantity); err != nil {
		return marketdata.Trade{}, fmt.Errorf("%w: quantity %q: %v", ErrInvalidMessage, msg.Quantity, err)
	}

	return marketdata.Trade{
		TradeID:   msg.TradeID,
		Asset:     msg.Asset,
		Price:     msg.Price,
		Quantity:  msg.Quantity,
		EventTime: msg.EventTime,
	}, nil
}
