package persistence

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) UpsertCandle(ctx context.Context, candle marketdata.Candle) error {
	args := m.Called(ctx, candle)
	return args.Error(0)
}

func (m *mockRepository) GetCandles(ctx context.Context, query marketdata.CandleQuery) ([]marketdata.Candle, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]marketdata.Candle), args.Error(1)
}

func (m *mockRepository) InsertTicks(ctx context.Context, trades []marketdata.Trade) (int64, error) {
	args := m.Called(ctx, trades)
	return args.Get(0).(int64), args.Error(1)
}

func waitDrained(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))
}

func TestQueue_CountsOutcomes(t *testing.T) {
	q := NewQueue(time.Second, quietLogger())

	assert.True(t, q.Submit("ok", func(context.Context) error { return nil }))
	assert.True(t, q.Submit("ok", func(context.Context) error { return nil }))
	assert.True(t, q.Submit("fail", func(context.Context) error { return errors.New("db down") }))

	waitDrained(t, q)

	stats := q.Stats()
	assert.Equal(t, uint64(3), stats.Submitted)
	assert.Equal(t, uint64(2), stats.Succeeded)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Empty(t, q.InFlight())
}

func TestQueue_TaskContextHasTimeout(t *testing.T) {
	q := NewQueue(20*time.Millisecond, quietLogger())

	var sawDeadline atomic.Bool
	q.Submit("slow", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		<-ctx.Done()
		return ctx.Err()
	})

	waitDrained(t, q)
	assert.True(t, sawDeadline.Load())
	assert.Equal(t, uint64(1), q.Stats().Failed)
}

func TestQueue_SubmitDoesNotBlock(t *testing.T) {
	q := NewQueue(time.Second, quietLogger())
	release := make(chan struct{})

	start := time.Now()
	q.Submit("blocked", func(context.Context) error {
		<-release
		return nil
	})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	pending := q.InFlight()
	require.Len(t, pending, 1)
	assert.Equal(t, "blocked", pending[0].Name)

	close(release)
	waitDrained(t, q)
}

func TestQueue_RejectsAfterDrain(t *testing.T) {
	q := NewQueue(time.Second, quietLogger())
	waitDrained(t, q)

	assert.False(t, q.Submit("late", func(context.Context) error { return nil }))
	assert.Equal(t, uint64(1), q.Stats().Rejected)
}

func TestQueue_DrainDeadlineReportsPending(t *testing.T) {
	q := NewQueue(time.Minute, quietLogger())

	cancelled := make(chan struct{})
	q.Submit("stuck_write", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Drain(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "stuck_write")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("pending task was not cancelled")
	}
}

func TestCandleWriter_Finalized(t *testing.T) {
	repo := new(mockRepository)
	q := NewQueue(time.Second, quietLogger())
	writer := NewCandleWriter(q, repo)

	candle := marketdata.Candle{
		Asset:       "BTCUSDT",
		Timeframe:   marketdata.OneMinute,
		WindowStart: 60_000,
		WindowEnd:   119_999,
		Open:        decimal.RequireFromString("1"),
		High:        decimal.RequireFromString("2"),
		Low:         decimal.RequireFromString("1"),
		Close:       decimal.RequireFromString("2"),
		LastTradeID: 7,
	}
	repo.On("UpsertCandle", mock.Anything, candle).Return(nil).Once()

	writer.Finalized(candle)
	waitDrained(t, q)

	repo.AssertExpectations(t)
	assert.Equal(t, uint64(1), q.Stats().Succeeded)
}

func TestCandleWriter_FailureIsCounted(t *testing.T) {
	repo := new(mockRepository)
	q := NewQueue(time.Second, quietLogger())
	writer := NewCandleWriter(q, repo)

	repo.On("UpsertCandle", mock.Anything, mock.Anything).Return(errors.New("constraint")).Once()

	writer.Finalized(marketdata.Candle{Asset: "X", Timeframe: marketdata.FiveMinutes})
	waitDrained(t, q)

	repo.AssertExpectations(t)
	assert.Equal(t, uint64(1), q.Stats().Failed)
}

func TestTickWriter_WriteTicks(t *testing.T) {
	repo := new(mockRepository)
	q := NewQueue(time.Second, quietLogger())
	writer := NewTickWriter(q, repo)

	trades := []marketdata.Trade{
		{TradeID: 1, Asset: "X", Price: "1", Quantity: "1", EventTime: 1},
		{TradeID: 2, Asset: "X", Price: "2", Quantity: "1", EventTime: 2},
	}
	expected := []marketdata.Trade{trades[0], trades[1]}
	repo.On("InsertTicks", mock.Anything, expected).Return(int64(2), nil).Once()

	require.NoError(t, writer.WriteTicks(context.Background(), trades))
	trades[0].Price = "999"

	waitDrained(t, q)
	repo.AssertExpectations(t)

	require.NoError(t, writer.WriteTicks(context.Background(), nil))
	assert.ErrorIs(t, writer.WriteTicks(context.Background(), trades), ErrQueueClosed)
}
