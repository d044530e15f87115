package health

import (
	"context"
	"time"

	"github.com/buildhive/buildhive/pkg/deadline"
	"github.com/buildhive/buildhive/pkg/log"
	"github.com/buildhive/buildhive/pkg/metrics"
	"github.com/buildhive/buildhive/pkg/types"
)

// DefaultProbeInterval is the wait between endpoint probes
const DefaultProbeInterval = 2 * time.Second

// Waiter polls a worker endpoint until it answers one probe or the run's
// deadline expires. Each probe carries its own short connect and total
// timeouts, independent of the global deadline.
type Waiter struct {
	tracker *deadline.Tracker

	// ProbeInterval is a field so tests can shrink it
	ProbeInterval time.Duration

	// NewChecker builds the probe for one endpoint. Replaceable in tests.
	NewChecker func(host string, bundle *types.CredentialBundle) (Checker, error)
}

// NewWaiter creates a waiter bound to the run's deadline tracker.
func NewWaiter(tracker *deadline.Tracker) *Waiter {
	return &Waiter{
		tracker:       tracker,
		ProbeInterval: DefaultProbeInterval,
		NewChecker: func(host string, bundle *types.CredentialBundle) (Checker, error) {
			return NewTLSChecker(host, bundle)
		},
	}
}

// WaitReady returns once a single probe against the worker endpoint
// succeeds, or with a timeout error when the deadline expires first.
func (w *Waiter) WaitReady(ctx context.Context, host string, bundle *types.CredentialBundle) error {
	checker, err := w.NewChecker(host, bundle)
	if err != nil {
		return err
	}

	logger := log.WithComponent("health")

	for w.tracker.Remaining() {
		result := checker.Check(ctx)
		if result.Healthy {
			metrics.HealthProbesTotal.WithLabelValues("success").Inc()
			logger.Debug().
				Str("host", host).
				Dur("duration", result.Duration).
				Msg("worker endpoint reachable")
			return nil
		}
		metrics.HealthProbesTotal.WithLabelValues("failure").Inc()
		logger.Debug().
			Str("host", host).
			Str("message", result.Message).
			Msg("worker endpoint not reachable yet")

		select {
		case <-time.After(w.ProbeInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return w.tracker.Err("health")
}
