package models

import (
	"fmt"
	"time"

	domain "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tick is one raw trade. (asset, trade_id) is the primary key so redelivered
// trades collapse into one row.
type Tick struct {
	Asset     string          `gorm:"primaryKey;column:asset;type:varchar(32);not null"`
	TradeID   int64           `gorm:"primaryKey;column:trade_id;autoIncrement:false"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric;not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric;not null"`
	EventTime int64           `gorm:"column:event_time;not null;index:idx_ticks_event_time"`
	CreatedAt time.Time       `gorm:"column:created_at;type:timestamp;default:CURRENT_TIMESTAMP"`
}

func (Tick) TableName() string {
	return domain.TableTicks.String()
}

// Candle is shared by every candle_<timeframe> table; callers pick the table
// with db.Table.
type Candle struct {
	Asset       string          `gorm:"primaryKey;column:asset;type:varchar(32);not null"`
	WindowStart int64           `gorm:"primaryKey;column:window_start;autoIncrement:false"`
	WindowEnd   int64           `gorm:"column:window_end;not null"`
	Open        decimal.Decimal `gorm:"column:open;type:numeric;not null"`
	High        decimal.Decimal `gorm:"column:high;type:numeric;not null"`
	Low         decimal.Decimal `gorm:"column:low;type:numeric;not null"`
	Close       decimal.Decimal `gorm:"column:close;type:numeric;not null"`
	LastTradeID int64           `gorm:"column:last_trade_id;not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;type:timestamp;default:CURRENT_TIMESTAMP"`
}

// Migrate creates or updates the tick table and one table per timeframe.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Tick{}); err != nil {
		return fmt.Errorf("migrate %s: %w", domain.TableTicks, err)
	}
	for _, tf := range domain.Timeframes() {
		table := tf.Table().String()
		if err := db.Table(table).AutoMigrate(&Candle{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

func NewTick(trade domain.Trade) (Tick, error) {
	price, err := decimal.NewFromString(trade.Price)
	if err != nil {
		return Tick{}, fmt.Errorf("tick %d price: %w", trade.TradeID, err)
	}
	quantity, err := decimal.NewFromString(trade.Quantity)
	if err != nil {
		return Tick{}, fmt.Errorf("tick %d quantity: %w", trade.TradeID, err)
	}
	return Tick{
		Asset:     trade.Asset,
		TradeID:   trade.TradeID,
		Price:     price,
		Quantity:  quantity,
		EventTime: trade.EventTime,
	}, nil
}

func NewCandle(c domain.Candle) Candle {
	return Candle{
		Asset:       c.Asset,
		WindowStart: c.WindowStart,
		WindowEnd:   c.WindowEnd,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		LastTradeID: c.LastTradeID,
	}
}

func (c Candle) ToDomain(tf domain.Timeframe) domain.Candle {
	return domain.Candle{
		Asset:       c.Asset,
		Timeframe:   tf,
		WindowStart: c.WindowStart,
		WindowEnd:   c.WindowEnd,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		LastTradeID: c.LastTradeID,
	}
}

// CutoffColumn is the column retention compares against for a table.
func CutoffColumn(table domain.Table) string {
	if table == domain.TableTicks {
		return "event_time"
	}
	return "window_start"
}
