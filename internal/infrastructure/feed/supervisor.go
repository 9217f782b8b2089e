// Package feed connects to upstream trade feeds and keeps them connected.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	marketdata "github.com/shaurya35/exness/internal/domain/entity/marketdata"
	interfaces "github.com/shaurya35/exness/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

var (
	ErrFeedDisconnected = errors.New("feed disconnected")
	ErrUnknownPolicy    = errors.New("unknown reconnect policy")
	errSessionEnded     = errors.New("session ended")
)

// ReconnectPolicy controls what a reconnect means for downstream consumers.
// No policy detects or backfills the gap.
type ReconnectPolicy string

const (
	ReconnectAccept ReconnectPolicy = "accept"
	ReconnectWarn   ReconnectPolicy = "warn"
	ReconnectExit   ReconnectPolicy = "exit"
)

func ParseReconnectPolicy(s string) (ReconnectPolicy, error) {
	switch p := ReconnectPolicy(s); p {
	case ReconnectAccept, ReconnectWarn, ReconnectExit:
		return p, nil
	case "":
		return ReconnectAccept, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Supervisor runs a TradeSource session after session, backing off
// exponentially between failed attempts.
type Supervisor struct {
	source interfaces.TradeSource
	policy ReconnectPolicy
	logger *logrus.Entry

	initialBackoff time.Duration
	maxBackoff     time.Duration
	wait           func(ctx context.Context, d time.Duration) bool
}

func NewSupervisor(source interfaces.TradeSource, policy ReconnectPolicy, logger *logrus.Logger) *Supervisor {
	if policy == "" {
		policy = ReconnectAccept
	}
	return &Supervisor{
		source:         source,
		policy:         policy,
		logger:         logger.WithFields(logrus.Fields{"component": "feed_supervisor", "source": source.Name()}),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		wait:           sleepContext,
	}
}

// Run streams into out until ctx is cancelled. It returns an error only under
// the exit policy.
func (s *Supervisor) Run(ctx context.Context, out chan<- marketdata.TradeMessage) error {
	backoff := s.initialBackoff
	var lastEventTime int64

	for {
		received, err := s.session(ctx, out, &lastEventTime)
		if ctx.Err() != nil {
			s.logger.Info("feed stopped")
			return nil
		}
		if err == nil {
			err = errSessionEnded
		}
		if received > 0 {
			backoff = s.initialBackoff
		}

		entry := s.logger.WithError(err).WithFields(logrus.Fields{
			"received":        received,
			"last_event_time": lastEventTime,
			"retry_in":        backoff.String(),
		})
		switch s.policy {
		case ReconnectExit:
			entry.Error("feed disconnected, exiting")
			return fmt.Errorf("%w: %v", ErrFeedDisconnected, err)
		case ReconnectWarn:
			entry.WithField("disconnected_at", time.Now().UTC().Format(time.RFC3339Nano)).
				Warn("feed disconnected, trades in the gap are lost")
		default:
			entry.Info("feed disconnected, reconnecting")
		}

		if !s.wait(ctx, backoff) {
			s.logger.Info("feed stopped")
			return nil
		}
		if backoff < s.maxBackoff {
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
		}
	}
}

func (s *Supervisor) session(ctx context.Context, out chan<- marketdata.TradeMessage, lastEventTime *int64) (int, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan marketdata.TradeMessage)
	errc := make(chan error, 1)
	go func() { errc <- s.source.Stream(sessionCtx, in) }()

	received := 0
	for {
		select {
		case msg := <-in:
			received++
			*lastEventTime = msg.EventTime
			select {
			case out <- msg:
			case <-ctx.Done():
				cancel()
				return received, <-errc
			}
		case err := <-errc:
			return received, err
		case <-ctx.Done():
			cancel()
			return received, <-errc
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
