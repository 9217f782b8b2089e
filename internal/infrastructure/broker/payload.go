package broker

import (
	"errors"
	"fmt"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	json "github.com/goccy/go-json"
)

type BaseMessage struct {
	Trade *marketdata.TradeMessage `json:"trade,omitempty"`
}

func encodeTrade(msg marketdata.TradeMessage) ([]byte, error) {
	body, err := json.Marshal(BaseMessage{Trade: &msg})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return body, nil
}

func decodeTrade(body []byte) (marketdata.TradeMessage, error) {
	var payload BaseMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return marketdata.TradeMessage{}, fmt.Errorf("decode payload: %w", err)
	}
	if payload.Trade == nil {
		return marketdata.TradeMessage{}, errors.New("trade payload is nil")
	}
	return *payload.Trade, nil
}
