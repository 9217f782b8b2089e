package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframe_Window(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tf        Timeframe
		eventTime int64
		wantStart int64
		wantEnd   int64
	}{
		{name: "start of epoch", tf: OneMinute, eventTime: 0, wantStart: 0, wantEnd: 59_999},
		{name: "inside first minute", tf: OneMinute, eventTime: 100, wantStart: 0, wantEnd: 59_999},
		{name: "last ms of window", tf: OneMinute, eventTime: 59_999, wantStart: 0, wantEnd: 59_999},
		{name: "first ms of next window", tf: OneMinute, eventTime: 60_000, wantStart: 60_000, wantEnd: 119_999},
		{name: "five minutes", tf: FiveMinutes, eventTime: 310_000, wantStart: 300_000, wantEnd: 599_999},
		{name: "ten minutes", tf: TenMinutes, eventTime: 1_234_567, wantStart: 1_200_000, wantEnd: 1_799_999},
		{name: "thirty minutes", tf: ThirtyMinutes, eventTime: 1_700_000_123_456, wantStart: 1_699_999_200_000, wantEnd: 1_700_000_999_999},
		{name: "negative time floors down", tf: OneMinute, eventTime: -1, wantStart: -60_000, wantEnd: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.tf.Window(tt.eventTime)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestParseTimeframe(t *testing.T) {
	t.Parallel()

	for _, tf := range Timeframes() {
		got, err := ParseTimeframe(tf.String())
		require.NoError(t, err)
		assert.Equal(t, tf, got)
	}

	_, err := ParseTimeframe("1h")
	assert.ErrorIs(t, err, ErrUnknownTimeframe)

	_, err = ParseTimeframe("")
	assert.ErrorIs(t, err, ErrUnknownTimeframe)
}

func TestLongestDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*time.Minute, LongestDuration(Timeframes()))
	assert.Equal(t, 5*time.Minute, LongestDuration([]Timeframe{OneMinute, FiveMinutes}))
	assert.Zero(t, LongestDuration(nil))
}

func TestTables(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Table{"ticks", "candles_1m", "candles_5m", "candles_10m", "candles_30m"}, Tables())

	tf, ok := Table("candles_10m").Timeframe()
	assert.True(t, ok)
	assert.Equal(t, TenMinutes, tf)

	_, ok = TableTicks.Timeframe()
	assert.False(t, ok)

	assert.NoError(t, CheckTable(TableTicks))
	assert.ErrorIs(t, CheckTable("users; DROP TABLE ticks"), ErrUnknownTable)
}
