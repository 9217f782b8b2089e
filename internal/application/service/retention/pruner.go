// Package retention deletes persisted ticks and candles past their age limit.
package retention

import (
	"context"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	interfaces "github.com/shaurya35/exness/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval     = 15 * time.Minute
	defaultStartupDelay = time.Minute
	defaultPruneTimeout = 5 * time.Minute
)

// Policy is the maximum age kept for one table.
type Policy struct {
	Table  marketdata.Table
	MaxAge time.Duration
}

func DefaultPolicies() []Policy {
	day := 24 * time.Hour
	return []Policy{
		{Table: marketdata.TableTicks, MaxAge: day},
		{Table: marketdata.OneMinute.Table(), MaxAge: 30 * day},
		{Table: marketdata.FiveMinutes.Table(), MaxAge: 90 * day},
		{Table: marketdata.TenMinutes.Table(), MaxAge: 180 * day},
		{Table: marketdata.ThirtyMinutes.Table(), MaxAge: 365 * day},
	}
}

type Config struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Policies     []Policy
}

// Result is the outcome for one table in a run.
type Result struct {
	Table   marketdata.Table
	Deleted int64
	Err     error
}

type Pruner struct {
	store        interfaces.RetentionRepository
	interval     time.Duration
	startupDelay time.Duration
	policies     []Policy
	logger       *logrus.Entry
}

func NewPruner(cfg Config, store interfaces.RetentionRepository, logger *logrus.Logger) *Pruner {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = defaultStartupDelay
	}
	if len(cfg.Policies) == 0 {
		cfg.Policies = DefaultPolicies()
	}
	return &Pruner{
		store:        store,
		interval:     cfg.Interval,
		startupDelay: cfg.StartupDelay,
		policies:     cfg.Policies,
		logger:       logger.WithField("component", "retention_pruner"),
	}
}

// Run waits for the startup delay, then prunes on every interval until ctx ends.
func (p *Pruner) Run(ctx context.Context) error {
	p.logger.WithFields(logrus.Fields{
		"interval":      p.interval.String(),
		"startup_delay": p.startupDelay.String(),
	}).Info("retention pruner started")

	if p.startupDelay > 0 {
		timer := time.NewTimer(p.startupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("retention pruner stopped")
			return nil
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.PruneOnce(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("retention pruner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PruneOnce deletes expired rows from every table concurrently. Failures are
// logged and reported in the results but never stop the other tables.
func (p *Pruner) PruneOnce(ctx context.Context) []Result {
	ctx, cancel := context.WithTimeout(ctx, defaultPruneTimeout)
	defer cancel()

	start := time.Now()
	results := make([]Result, len(p.policies))

	var g errgroup.Group
	for i, policy := range p.policies {
		g.Go(func() error {
			deleted, err := p.store.DeleteOlderThan(ctx, policy.Table, policy.MaxAge)
			results[i] = Result{Table: policy.Table, Deleted: deleted, Err: err}
			if err != nil {
				p.logger.WithError(err).WithField("table", policy.Table.String()).Warn("retention delete failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	fields := logrus.Fields{"took_ms": time.Since(start).Milliseconds()}
	var total int64
	for _, res := range results {
		if res.Err != nil {
			fields[res.Table.String()] = "error"
			continue
		}
		fields[res.Table.String()] = res.Deleted
		total += res.Deleted
	}
	fields["total"] = total
	p.logger.WithFields(fields).Info("retention run finished")
	return results
}
