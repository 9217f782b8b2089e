//go:build integration

package marketdata

import (
	"context"
	"testing"
	"time"

	domain "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("exness_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(dsn), "failed to migrate schema")

	repo, err := NewRepository(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	require.NoError(t, repo.Ping(ctx))
	return repo
}

func TestRepository_CandleRoundTrip(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	candle := domain.Candle{
		Asset:       "BTCUSDT",
		Timeframe:   domain.FiveMinutes,
		WindowStart: 300_000,
		WindowEnd:   599_999,
		Open:        decimal.RequireFromString("64000.12345678"),
		High:        decimal.RequireFromString("64100.1234567890123456789012345"),
		Low:         decimal.RequireFromString("63900"),
		Close:       decimal.RequireFromString("64050.000000000000000001"),
		LastTradeID: 42,
	}
	require.NoError(t, repo.UpsertCandle(ctx, candle))

	candle.Close = decimal.RequireFromString("64060")
	candle.LastTradeID = 43
	require.NoError(t, repo.UpsertCandle(ctx, candle))

	got, err := repo.GetCandles(ctx, domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.FiveMinutes})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, candle.Open.Equal(got[0].Open))
	assert.True(t, candle.Close.Equal(got[0].Close))
	assert.Equal(t, "64100.1234567890123456789012345", got[0].High.String(), "fractional digits beyond 18 survive")
	assert.Equal(t, int64(43), got[0].LastTradeID)

	empty, err := repo.GetCandles(ctx, domain.CandleQuery{Asset: "BTCUSDT", Timeframe: domain.OneMinute})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_InsertTicksAndRetention(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	trades := []domain.Trade{
		{TradeID: 1, Asset: "BTCUSDT", Price: "1.5", Quantity: "2", EventTime: now.Add(-48 * time.Hour).UnixMilli()},
		{TradeID: 2, Asset: "BTCUSDT", Price: "1.6", Quantity: "2", EventTime: now.Add(-time.Hour).UnixMilli()},
	}
	n, err := repo.InsertTicks(ctx, trades)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.InsertTicks(ctx, trades)
	require.NoError(t, err)
	assert.Zero(t, n)

	deleted, err := repo.DeleteOlderThan(ctx, domain.TableTicks, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.DeleteOlderThan(ctx, "pg_class", time.Hour)
	assert.ErrorIs(t, err, domain.ErrUnknownTable)
}
