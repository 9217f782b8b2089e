package gormstore

import (
	"context"
	"testing"
	"time"

	domain "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	"github.com/shaurya35/exness/internal/infrastructure/marketdata/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenSQLite(":memory:")
	require.NoError(t, err, "failed to initialize test database")
	store.now = func() time.Time { return fixedNow }
	t.Cleanup(store.Close)
	return store
}

func seedCandle(t *testing.T, store *Store, tf domain.Timeframe, asset string, windowStart int64, closePrice string) domain.Candle {
	t.Helper()

	price := decimal.RequireFromString(closePrice)
	candle := domain.Candle{
		Asset:       asset,
		Timeframe:   tf,
		WindowStart: windowStart,
		WindowEnd:   windowStart + tf.DurationMs() - 1,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		LastTradeID: 1,
	}
	require.NoError(t, store.UpsertCandle(context.Background(), candle), "failed to seed candle")
	return candle
}

func countRows(t *testing.T, store *Store, table domain.Table) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.db.Table(table.String()).Count(&n).Error)
	return n
}

func TestOpenSQLite_CreatesAllTables(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range domain.Tables() {
		assert.Truef(t, store.db.Migrator().HasTable(table.String()), "table %s", table)
	}
	assert.NoError(t, store.Ping(context.Background()))
}

func TestStore_InsertTicksIgnoresDuplicates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	trade := func(id int64) domain.Trade {
		return domain.Trade{TradeID: id, Asset: "BTCUSDT", Price: "64000.5", Quantity: "0.01", EventTime: id}
	}

	n, err := store.InsertTicks(ctx, []domain.Trade{trade(1), trade(2), trade(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.InsertTicks(ctx, []domain.Trade{trade(2), trade(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	other := trade(3)
	other.Asset = "ETHUSDT"
	n, err = store.InsertTicks(ctx, []domain.Trade{other})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "trade ids are scoped per asset")

	assert.Equal(t, int64(4), countRows(t, store, domain.TableTicks))

	var stored models.Tick
	require.NoError(t, store.db.Where("asset = ? AND trade_id = ?", "BTCUSDT", 1).First(&stored).Error)
	assert.True(t, decimal.RequireFromString("64000.5").Equal(stored.Price))
}

func TestStore_InsertTicksRejectsBadDecimal(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.InsertTicks(context.Background(), []domain.Trade{{TradeID: 1, Asset: "X", Price: "abc", Quantity: "1", EventTime: 1}})
	assert.Error(t, err)
	assert.Zero(t, countRows(t, store, domain.TableTicks))
}

func TestStore_UpsertCandleIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	candle := seedCandle(t, store, domain.OneMinute, "BTCUSDT", 60_000, "10")
	require.NoError(t, store.UpsertCandle(ctx, candle))

	candle.High = decimal.RequireFromString("12")
	candle.Close = decimal.RequireFromString("11")
	candle.LastTradeID = 9
	require.NoError(t, store.UpsertCandle(ctx, candle))

	assert.Equal(t, int64(1), countRows(t, store, domain.OneMinute.Table()))
	assert.Zero(t, countRows(t, store, domain.FiveMinutes.Table()))

	got, err := store.GetCandles(ctx, domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.OneMinute})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.RequireFromString("11").Equal(got[0].Close))
	assert.True(t, decimal.RequireFromString("12").Equal(got[0].High))
	assert.Equal(t, int64(9), got[0].LastTradeID)
	assert.Equal(t, int64(119_999), got[0].WindowEnd)
	assert.Equal(t, domain.OneMinute, got[0].Timeframe)
}

func TestStore_GetCandles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedCandle(t, store, domain.FiveMinutes, "BTCUSDT", 600_000, "3")
	seedCandle(t, store, domain.FiveMinutes, "BTCUSDT", 0, "1")
	seedCandle(t, store, domain.FiveMinutes, "BTCUSDT", 300_000, "2")
	seedCandle(t, store, domain.FiveMinutes, "ETHUSDT", 300_000, "100")

	int64Ptr := func(v int64) *int64 { return &v }

	tests := []struct {
		name  string
		query domain.CandleQuery
		want  []int64
	}{
		{
			name:  "all windows ascending",
			query: domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.FiveMinutes},
			want:  []int64{0, 300_000, 600_000},
		},
		{
			name:  "start bound inclusive",
			query: domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.FiveMinutes, StartTime: int64Ptr(300_000)},
			want:  []int64{300_000, 600_000},
		},
		{
			name:  "closed range",
			query: domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.FiveMinutes, StartTime: int64Ptr(1), EndTime: int64Ptr(300_000)},
			want:  []int64{300_000},
		},
		{
			name:  "other asset",
			query: domain.CandleQuery{Asset: "ETHUSDT", Timeframe: domain.FiveMinutes},
			want:  []int64{300_000},
		},
		{
			name:  "other timeframe is empty",
			query: domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.ThirtyMinutes},
			want:  []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetCandles(ctx, tt.query)
			require.NoError(t, err)
			starts := make([]int64, 0, len(got))
			for _, c := range got {
				starts = append(starts, c.WindowStart)
				assert.Equal(t, tt.query.Asset, c.Asset)
			}
			assert.Equal(t, tt.want, starts)
		})
	}

	_, err := store.GetCandles(ctx, domain.CandleQuery{Asset: "BTCUSDT", Timeframe: "1h"})
	assert.ErrorIs(t, err, domain.ErrUnknownTable)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	day := 24 * time.Hour

	tenDaysAgo, _ := domain.OneMinute.Window(fixedNow.Add(-10 * day).UnixMilli())
	fortyDaysAgo, _ := domain.OneMinute.Window(fixedNow.Add(-40 * day).UnixMilli())
	seedCandle(t, store, domain.OneMinute, "BTCUSDT", tenDaysAgo, "1")
	seedCandle(t, store, domain.OneMinute, "BTCUSDT", fortyDaysAgo, "1")

	deleted, err := store.DeleteOlderThan(ctx, domain.OneMinute.Table(), 30*day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := store.GetCandles(ctx, domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.OneMinute})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tenDaysAgo, got[0].WindowStart)

	_, err = store.InsertTicks(ctx, []domain.Trade{
		{TradeID: 1, Asset: "X", Price: "1", Quantity: "1", EventTime: fixedNow.Add(-2 * day).UnixMilli()},
		{TradeID: 2, Asset: "X", Price: "1", Quantity: "1", EventTime: fixedNow.Add(-time.Hour).UnixMilli()},
	})
	require.NoError(t, err)

	deleted, err = store.DeleteOlderThan(ctx, domain.TableTicks, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, int64(1), countRows(t, store, domain.TableTicks))

	_, err = store.DeleteOlderThan(ctx, "users", day)
	assert.ErrorIs(t, err, domain.ErrUnknownTable)
}
