package marketdata

import (
	"errors"
	"fmt"
)

var ErrUnknownTable = errors.New("unknown table")

// Table names a persisted table subject to retention.
type Table string

const TableTicks Table = "ticks"

// Tables lists the raw tick table followed by every candle table.
func Tables() []Table {
	tables := []Table{TableTicks}
	for _, tf := range timeframeOrder {
		tables = append(tables, tf.Table())
	}
	return tables
}

func (t Table) String() string {
	return string(t)
}

func (t Table) Valid() bool {
	if t == TableTicks {
		return true
	}
	_, ok := t.Timeframe()
	return ok
}

// Timeframe reports the timeframe a candle table belongs to.
func (t Table) Timeframe() (Timeframe, bool) {
	for _, tf := range timeframeOrder {
		if tf.Table() == t {
			return tf, true
		}
	}
	return "", false
}

// CheckTable rejects names outside the known schema. Stores interpolate
// table names into SQL, so they must call it first.
func CheckTable(t Table) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	return nil
}
