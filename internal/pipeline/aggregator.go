// Package pipeline orchestrates one aggregation cycle: discover the live
// station set, fetch every station in paced parallel batches, map payloads to
// canonical records, and order the result for display.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/batch"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/observability"
)

// Discoverer yields the live station ID set for a cycle.
type Discoverer interface {
	Discover(ctx context.Context) ([]int, error)
}

// StationFetcher retrieves one station's current reading envelope.
type StationFetcher interface {
	FetchStation(ctx context.Context, stationID int) (*domain.StationPayload, error)
}

// LocationResolver looks up operator-entered station metadata. May be nil.
type LocationResolver interface {
	GetLocation(ctx context.Context, stationID int) (domain.StationLocation, bool, error)
}

// Aggregator runs the discover-fetch-map-select cycle.
type Aggregator struct {
	discoverer Discoverer
	fetcher    StationFetcher
	locations  LocationResolver

	batchSize    int
	batchPause   time.Duration
	fetchTimeout time.Duration
	maxActive    int

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Aggregator. locations may be nil when no metadata store is
// configured.
func New(d Discoverer, f StationFetcher, locations LocationResolver, batchSize int, batchPause, fetchTimeout time.Duration, maxActive int, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		discoverer:   d,
		fetcher:      f,
		locations:    locations,
		batchSize:    batchSize,
		batchPause:   batchPause,
		fetchTimeout: fetchTimeout,
		maxActive:    maxActive,
		logger:       logger,
		metrics:      metrics,
	}
}

// Aggregate produces the ordered record set for one cycle. It never fails:
// per-station problems become error records and a broken discovery yields an
// empty list with a logged diagnostic.
//
// Output ordering is a two-tier policy: the maxActive most recently read
// valid records first (timestamp descending, missing timestamps last), then
// everything else — error records and valid overflow — in fetch order. No
// station's failure is silently dropped.
func (a *Aggregator) Aggregate(ctx context.Context) []domain.StationRecord {
	start := time.Now()
	a.metrics.CyclesTotal.Inc()

	ids, err := a.discoverer.Discover(ctx)
	if err != nil {
		a.logger.Error("station discovery failed", "error", err)
		return []domain.StationRecord{}
	}
	if len(ids) == 0 {
		a.logger.Warn("no stations discovered")
		return []domain.StationRecord{}
	}

	a.metrics.FetchBatchSize.Observe(float64(len(ids)))

	outcomes := batch.Run(ctx, ids, a.fetchOne, a.batchSize, a.batchPause)

	records := make([]domain.StationRecord, 0, len(ids))
	for i, o := range outcomes {
		if o.Failed() {
			a.metrics.StationsFetched.WithLabelValues("failure").Inc()
			records = append(records, domain.ErrorRecord(ids[i], "Erro ao buscar dados: "+o.Err.Error()))
			continue
		}
		rec := domain.MapStationRecord(ids[i], o.Value)
		if rec.Errored() {
			a.metrics.StationsFetched.WithLabelValues("error").Inc()
		} else {
			a.metrics.StationsFetched.WithLabelValues("success").Inc()
		}
		records = append(records, a.attachLocation(ctx, rec))
	}

	out := selectRecords(records, a.maxActive)

	a.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("aggregation cycle complete",
		"stations", len(ids),
		"valid", countValid(out),
		"duration", time.Since(start),
	)
	return out
}

// AggregateOne fetches and maps a single station, for the per-station
// endpoint. Fetch failures become an error record, same as in a full cycle.
func (a *Aggregator) AggregateOne(ctx context.Context, stationID int) domain.StationRecord {
	payload, err := a.fetchOne(ctx, stationID)
	if err != nil {
		return domain.ErrorRecord(stationID, "Erro ao buscar dados: "+err.Error())
	}
	return a.attachLocation(ctx, domain.MapStationRecord(stationID, payload))
}

// fetchOne bounds a single station fetch with its own deadline so one slow
// station cannot hold back its batch siblings.
func (a *Aggregator) fetchOne(ctx context.Context, stationID int) (*domain.StationPayload, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()
	return a.fetcher.FetchStation(fetchCtx, stationID)
}

func (a *Aggregator) attachLocation(ctx context.Context, rec domain.StationRecord) domain.StationRecord {
	if a.locations == nil || rec.Errored() {
		return rec
	}
	loc, ok, err := a.locations.GetLocation(ctx, rec.StationID)
	if err != nil {
		a.logger.Debug("location lookup failed", "station_id", rec.StationID, "error", err)
		return rec
	}
	if !ok {
		return rec
	}
	if loc.Nome != "" {
		rec.Name = loc.Nome
	}
	rec.Location = loc.Endereco
	return rec
}

// selectRecords applies the two-tier display policy. Sorting is stable so
// valid records with equal timestamps keep their fetch order.
func selectRecords(records []domain.StationRecord, maxActive int) []domain.StationRecord {
	valid := make([]domain.StationRecord, 0, len(records))
	for _, r := range records {
		if !r.Errored() {
			valid = append(valid, r)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return recordInstant(valid[i]).After(recordInstant(valid[j]))
	})

	n := maxActive
	if n > len(valid) {
		n = len(valid)
	}
	selected := valid[:n]

	selectedIDs := make(map[int]struct{}, len(selected))
	for _, r := range selected {
		selectedIDs[r.StationID] = struct{}{}
	}

	out := make([]domain.StationRecord, 0, len(records))
	out = append(out, selected...)
	for _, r := range records {
		if _, ok := selectedIDs[r.StationID]; ok && !r.Errored() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// recordInstant orders records without a timestamp as oldest.
func recordInstant(r domain.StationRecord) time.Time {
	if r.Timestamp == nil {
		return time.Time{}
	}
	return *r.Timestamp
}

func countValid(records []domain.StationRecord) int {
	n := 0
	for _, r := range records {
		if !r.Errored() {
			n++
		}
	}
	return n
}
