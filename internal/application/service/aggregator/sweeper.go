package aggregator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSweepInterval = 60 * time.Second

// Sweeper periodically force-finalizes stale candles of an Aggregator.
type Sweeper struct {
	aggregator *Aggregator
	interval   time.Duration
	now        func() time.Time
	logger     *logrus.Entry
}

func NewSweeper(aggregator *Aggregator, interval time.Duration, logger *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		aggregator: aggregator,
		interval:   interval,
		now:        time.Now,
		logger:     logger.WithField("component", "idle_sweeper"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval.String()).Info("idle sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("idle sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs a single pass against the current clock.
func (s *Sweeper) SweepOnce() int {
	finalized := s.aggregator.Sweep(s.now())
	if finalized > 0 {
		s.logger.WithFields(logrus.Fields{
			"finalized": finalized,
			"open":      s.aggregator.OpenCount(),
		}).Debug("swept stale candles")
	}
	return finalized
}
