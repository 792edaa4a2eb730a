package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	"github.com/couchcryptid/garage-occupancy-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Ingester runs a single ingestion cycle.
type Ingester interface {
	Ingest(ctx context.Context) (domain.Snapshot, error)
}

// Publisher hands a successful observation to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, obs domain.Observation) error
}

// Poller runs ingestion cycles on a fixed cadence and publishes each snapshot.
type Poller struct {
	ingester  Ingester
	publisher Publisher
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewPoller creates a Poller. A nil publisher only refreshes readiness and
// metrics; a nil clock uses real time.
func NewPoller(i Ingester, pub Publisher, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		ingester:  i,
		publisher: pub,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a cycle has succeeded.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful ingestion cycle yet")
	}
	return nil
}

// Run polls immediately and then once per interval until ctx is cancelled.
// A failed cycle is not retried early; the next tick is the retry.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("poller interval must be positive")
	}

	p.logger.Info("poller started", "interval", p.interval)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		}

		p.poll(ctx)

		select {
		case <-ctx.Done():
		case <-ticker.Chan():
		}
	}
}

// poll runs one cycle and publishes the result. Failures are logged by the
// ingester; publish failures are counted and never stop the loop.
func (p *Poller) poll(ctx context.Context) {
	snapshot, err := p.ingester.Ingest(ctx)
	if err != nil {
		return
	}
	p.ready.Store(true)

	if p.publisher == nil {
		return
	}
	obs := domain.Observe(snapshot)
	if err := p.publisher.Publish(ctx, obs); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.PublishErrors.Inc()
		p.logger.Error("publish snapshot failed", "error", err, "garages", len(snapshot))
		return
	}
	p.metrics.SnapshotsPublished.Inc()
	p.logger.Debug("snapshot published", "garages", len(snapshot), "observed_at", obs.ObservedAt)
}
