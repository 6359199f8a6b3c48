package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/observability"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHistory struct {
	mu      sync.Mutex
	batches [][]domain.StationRecord
}

func (h *recordingHistory) AppendReadings(_ context.Context, records []domain.StationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches = append(h.batches, records)
	return nil
}

func (h *recordingHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.batches)
}

func newTestPoller(history pipeline.HistoryAppender, clock clockwork.Clock) *pipeline.Poller {
	fetcher := &mockFetcher{payloads: map[int]string{2: validPayload("18/11/2025 10:00:00")}}
	agg := newAggregator(&mockDiscoverer{ids: []int{2}}, fetcher, nil, 4)
	return pipeline.NewPoller(agg, history, nil, time.Minute, clock,
		discardLogger(), observability.NewMetricsForTesting())
}

func TestPoller_ReadyAfterFirstCycle(t *testing.T) {
	fc := clockwork.NewFakeClock()
	history := &recordingHistory{}
	p := newTestPoller(history, fc)

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before any cycle")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// The immediate first cycle completes before Run blocks on the ticker.
	require.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, history.count())

	cancel()
	require.NoError(t, <-done)
}

func TestPoller_TicksDriveFurtherCycles(t *testing.T) {
	fc := clockwork.NewFakeClock()
	history := &recordingHistory{}
	p := newTestPoller(history, fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return history.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	fc.BlockUntil(1) // Run is waiting on the ticker
	fc.Advance(time.Minute)
	require.Eventually(t, func() bool { return history.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
