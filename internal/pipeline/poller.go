package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
)

// HistoryAppender persists one cycle's readings.
type HistoryAppender interface {
	AppendReadings(ctx context.Context, records []domain.StationRecord) error
}

// ReadingsSink publishes one cycle's records to an external consumer.
type ReadingsSink interface {
	PublishReadings(ctx context.Context, records []domain.StationRecord) error
}

// Poller re-runs the aggregation cycle on a fixed interval. The interval is
// the retry mechanism: a failed cycle is not retried in-cycle, the next tick
// self-heals transient upstream trouble.
type Poller struct {
	aggregator *Aggregator
	history    HistoryAppender
	sink       ReadingsSink
	interval   time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// NewPoller creates a Poller. history and sink may be nil.
func NewPoller(a *Aggregator, history HistoryAppender, sink ReadingsSink, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	return &Poller{
		aggregator: a,
		history:    history,
		sink:       sink,
		interval:   interval,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no aggregation cycle has completed yet")
	}
	return nil
}

// Run executes an immediate cycle and then one per interval until the context
// is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	p.cycle(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	records := p.aggregator.Aggregate(ctx)
	p.ready.Store(true)

	if p.history != nil {
		if err := p.history.AppendReadings(ctx, records); err != nil {
			p.logger.Error("append readings to history failed", "error", err)
		}
	}
	if p.sink != nil {
		if err := p.sink.PublishReadings(ctx, records); err != nil {
			p.logger.Error("publish readings failed", "error", err)
		}
	}
}
