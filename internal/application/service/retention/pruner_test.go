package retention

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   map[marketdata.Table]time.Duration
	deleted map[marketdata.Table]int64
	fail    map[marketdata.Table]error
	barrier *sync.WaitGroup
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		calls:   make(map[marketdata.Table]time.Duration),
		deleted: make(map[marketdata.Table]int64),
		fail:    make(map[marketdata.Table]error),
	}
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, table marketdata.Table, age time.Duration) (int64, error) {
	if f.barrier != nil {
		f.barrier.Done()
		waited := make(chan struct{})
		go func() {
			f.barrier.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[table] = age
	if err := f.fail[table]; err != nil {
		return 0, err
	}
	return f.deleted[table], nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestDefaultPolicies(t *testing.T) {
	day := 24 * time.Hour
	want := map[marketdata.Table]time.Duration{
		"ticks":       day,
		"candles_1m":  30 * day,
		"candles_5m":  90 * day,
		"candles_10m": 180 * day,
		"candles_30m": 365 * day,
	}

	got := make(map[marketdata.Table]time.Duration)
	for _, p := range DefaultPolicies() {
		got[p.Table] = p.MaxAge
	}
	assert.Equal(t, want, got)
}

func TestPruner_PruneOnce(t *testing.T) {
	store := newFakeStore()
	store.deleted[marketdata.TableTicks] = 120
	store.deleted["candles_1m"] = 3
	store.fail["candles_5m"] = errors.New("lock timeout")

	pruner := NewPruner(Config{}, store, quietLogger())
	results := pruner.PruneOnce(context.Background())

	require.Len(t, results, 5)
	byTable := make(map[marketdata.Table]Result)
	for _, res := range results {
		byTable[res.Table] = res
	}

	assert.Equal(t, int64(120), byTable[marketdata.TableTicks].Deleted)
	assert.Equal(t, int64(3), byTable["candles_1m"].Deleted)
	assert.Error(t, byTable["candles_5m"].Err)
	assert.NoError(t, byTable["candles_30m"].Err)

	assert.Equal(t, 5, store.callCount(), "a failing table must not stop the others")
	assert.Equal(t, 30*24*time.Hour, store.calls["candles_1m"])
}

func TestPruner_DeletesConcurrently(t *testing.T) {
	store := newFakeStore()
	policies := DefaultPolicies()
	store.barrier = &sync.WaitGroup{}
	store.barrier.Add(len(policies))

	pruner := NewPruner(Config{Policies: policies}, store, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results := pruner.PruneOnce(ctx)
	for _, res := range results {
		assert.NoErrorf(t, res.Err, "table %s", res.Table)
	}
}

func TestPruner_RunStopsDuringStartupDelay(t *testing.T) {
	store := newFakeStore()
	pruner := NewPruner(Config{StartupDelay: time.Hour}, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pruner.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
	assert.Zero(t, store.callCount())
}

func TestPruner_RunPrunesAfterDelay(t *testing.T) {
	store := newFakeStore()
	pruner := NewPruner(Config{StartupDelay: 5 * time.Millisecond, Interval: time.Hour}, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pruner.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.callCount() == 5 }, time.Second, 5*time.Millisecond)
}
