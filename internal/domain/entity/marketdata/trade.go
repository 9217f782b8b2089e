package marketdata

// TradeMessage is a decoded feed message before normalization. Brokers carry
// it as JSON between the poller and the aggregator.
type TradeMessage struct {
	TradeID   int64  `json:"tradeId" validate:"gte=0"`
	Asset     string `json:"asset" validate:"required"`
	Price     string `json:"price" validate:"required"`
	Quantity  string `json:"quantity" validate:"required"`
	EventTime int64  `json:"eventTime" validate:"gte=0"`
}

// Trade models a single executed trade as reported by the feed.
// Price and Quantity stay in their textual form until a consumer needs
// numeric values, so no precision is lost in transit.
type Trade struct {
	TradeID   int64  `json:"tradeId"`
	Asset     string `json:"asset"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	EventTime int64  `json:"eventTime"`
}
