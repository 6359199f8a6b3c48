// Package discovery determines the live set of upstream station IDs, either
// from explicit configuration or by probing a numeric ID range.
package discovery

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/batch"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/observability"
)

// consecutiveFailureLimit stops a range scan once this many IDs in a row have
// failed after at least one station was found. Station IDs are allocated
// densely from the bottom of the range, so a long failure streak means the
// populated region is behind us. A fleet with a gap wider than the limit
// would be under-discovered; that trade-off is accepted.
const consecutiveFailureLimit = 5

// StationProber is the existence check against the upstream API.
// A nil error means the ID is a live station.
type StationProber interface {
	Probe(ctx context.Context, stationID int) error
}

// Prober resolves the live station ID set for one aggregation cycle.
type Prober struct {
	client      StationProber
	configured  []int
	minID       int
	maxID       int
	maxStations int
	batchSize   int
	pause       time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewProber creates a Prober. When configured is non-empty the range scan is
// skipped entirely and the configured IDs are used as-is.
func NewProber(client StationProber, configured []int, minID, maxID, maxStations, batchSize int, pause time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Prober {
	return &Prober{
		client:      client,
		configured:  configured,
		minID:       minID,
		maxID:       maxID,
		maxStations: maxStations,
		batchSize:   batchSize,
		pause:       pause,
		logger:      logger,
		metrics:     metrics,
	}
}

// Discover returns the live station IDs: unique, ascending, capped at
// maxStations.
func (p *Prober) Discover(ctx context.Context) ([]int, error) {
	if len(p.configured) > 0 {
		ids := normalizeIDs(p.configured, p.maxStations)
		p.logger.Debug("using configured station ids", "ids", ids)
		return ids, nil
	}
	return p.scanRange(ctx)
}

// scanRange probes [minID, maxID] in paced batches, walking outcomes in ID
// order so the consecutive-failure counter is deterministic regardless of
// which probe responds first.
func (p *Prober) scanRange(ctx context.Context) ([]int, error) {
	var found []int
	failures := 0

	for lo := p.minID; lo <= p.maxID; lo += p.batchSize {
		hi := min(lo+p.batchSize-1, p.maxID)
		ids := idRange(lo, hi)

		outcomes := batch.Run(ctx, ids, p.probeOne, p.batchSize, 0)

		stop := false
		for i, o := range outcomes {
			if o.Failed() {
				p.metrics.DiscoveryProbes.WithLabelValues("missing").Inc()
				failures++
				if failures >= consecutiveFailureLimit && len(found) > 0 {
					stop = true
					break
				}
				continue
			}
			p.metrics.DiscoveryProbes.WithLabelValues("found").Inc()
			found = append(found, ids[i])
			failures = 0
		}
		if stop {
			p.logger.Info("discovery stopped early",
				"found", len(found),
				"consecutive_failures", failures,
				"last_probed", hi,
			)
			break
		}

		if hi < p.maxID && p.pause > 0 {
			select {
			case <-ctx.Done():
				return normalizeIDs(found, p.maxStations), ctx.Err()
			case <-time.After(p.pause):
			}
		}
	}

	ids := normalizeIDs(found, p.maxStations)
	p.logger.Info("discovery complete", "stations", len(ids))
	return ids, nil
}

func (p *Prober) probeOne(ctx context.Context, id int) (struct{}, error) {
	return struct{}{}, p.client.Probe(ctx, id)
}

func idRange(lo, hi int) []int {
	ids := make([]int, 0, hi-lo+1)
	for id := lo; id <= hi; id++ {
		ids = append(ids, id)
	}
	return ids
}

// normalizeIDs dedupes, sorts ascending, and truncates to maxStations.
func normalizeIDs(ids []int, maxStations int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	if maxStations > 0 && len(out) > maxStations {
		out = out[:maxStations]
	}
	return out
}
