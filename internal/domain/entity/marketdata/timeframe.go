package marketdata

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe is one of the fixed candle resolutions.
type Timeframe string

const (
	OneMinute     Timeframe = "1m"
	FiveMinutes   Timeframe = "5m"
	TenMinutes    Timeframe = "10m"
	ThirtyMinutes Timeframe = "30m"
)

var timeframeDurations = map[Timeframe]time.Duration{
	OneMinute:     time.Minute,
	FiveMinutes:   5 * time.Minute,
	TenMinutes:    10 * time.Minute,
	ThirtyMinutes: 30 * time.Minute,
}

var timeframeOrder = []Timeframe{OneMinute, FiveMinutes, TenMinutes, ThirtyMinutes}

// Timeframes returns every supported timeframe, shortest first.
func Timeframes() []Timeframe {
	out := make([]Timeframe, len(timeframeOrder))
	copy(out, timeframeOrder)
	return out
}

// ParseTimeframe resolves the textual form used by the API ("1m", "5m", ...).
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s))
	if !tf.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
	}
	return tf, nil
}

func (t Timeframe) String() string {
	return string(t)
}

func (t Timeframe) Valid() bool {
	_, ok := timeframeDurations[t]
	return ok
}

func (t Timeframe) Duration() time.Duration {
	return timeframeDurations[t]
}

func (t Timeframe) DurationMs() int64 {
	return t.Duration().Milliseconds()
}

// LongestDuration returns the largest duration among tfs, zero when empty.
func LongestDuration(tfs []Timeframe) time.Duration {
	var longest time.Duration
	for _, tf := range tfs {
		if d := tf.Duration(); d > longest {
			longest = d
		}
	}
	return longest
}

// Window returns the inclusive bounds of the window containing eventTime.
// end is start + duration - 1.
func (t Timeframe) Window(eventTime int64) (start, end int64) {
	dur := t.DurationMs()
	start = floorDiv(eventTime, dur) * dur
	return start, start + dur - 1
}

// Table is the per-timeframe candle table.
func (t Timeframe) Table() Table {
	return Table("candles_" + string(t))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
