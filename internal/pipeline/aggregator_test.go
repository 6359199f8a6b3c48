package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/observability"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mocks ---

type mockDiscoverer struct {
	ids []int
	err error
}

func (m *mockDiscoverer) Discover(context.Context) ([]int, error) {
	return m.ids, m.err
}

// mockFetcher serves canned payloads per station ID; IDs in fail get a
// transport error, IDs in hang block until the per-fetch deadline fires.
type mockFetcher struct {
	payloads map[int]string
	fail     map[int]error
	hang     map[int]bool
}

func (m *mockFetcher) FetchStation(ctx context.Context, id int) (*domain.StationPayload, error) {
	if m.hang[id] {
		<-ctx.Done()
		return nil, fmt.Errorf("station %d: %w", id, ctx.Err())
	}
	if err := m.fail[id]; err != nil {
		return nil, err
	}
	raw, ok := m.payloads[id]
	if !ok {
		return nil, fmt.Errorf("station %d: no payload", id)
	}
	var p domain.StationPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type mockLocations struct {
	byID map[int]domain.StationLocation
}

func (m *mockLocations) GetLocation(_ context.Context, id int) (domain.StationLocation, bool, error) {
	loc, ok := m.byID[id]
	return loc, ok, nil
}

func validPayload(ts string) string {
	return fmt.Sprintf(`{"code":200,"arrResponse":{"Última Leitura":%q,"Temperatura":"25 °C"}}`, ts)
}

func newAggregator(d pipeline.Discoverer, f pipeline.StationFetcher, locations pipeline.LocationResolver, maxActive int) *pipeline.Aggregator {
	return pipeline.New(d, f, locations, 10, 0, 200*time.Millisecond, maxActive,
		discardLogger(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestAggregate_EndToEndScenario(t *testing.T) {
	// Stations 2, 3, 7 answer (2 most recent), station 8 hangs past its
	// deadline. Expected: [2, 3, 7, error(8)].
	fetcher := &mockFetcher{
		payloads: map[int]string{
			2: validPayload("18/11/2025 10:00:00"),
			3: validPayload("18/11/2025 09:30:00"),
			7: validPayload("18/11/2025 09:00:00"),
		},
		hang: map[int]bool{8: true},
	}
	agg := newAggregator(&mockDiscoverer{ids: []int{2, 3, 7, 8}}, fetcher, nil, 4)

	records := agg.Aggregate(context.Background())

	require.Len(t, records, 4)
	assert.Equal(t, 2, records[0].StationID)
	assert.Equal(t, 3, records[1].StationID)
	assert.Equal(t, 7, records[2].StationID)
	assert.Equal(t, 8, records[3].StationID)
	assert.True(t, records[3].Errored())
	for _, r := range records[:3] {
		assert.False(t, r.Errored())
	}
}

func TestAggregate_EmptyDiscovery(t *testing.T) {
	agg := newAggregator(&mockDiscoverer{}, &mockFetcher{}, nil, 4)
	records := agg.Aggregate(context.Background())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestAggregate_DiscoveryFailureYieldsEmptySet(t *testing.T) {
	agg := newAggregator(&mockDiscoverer{err: errors.New("probe sweep failed")}, &mockFetcher{}, nil, 4)
	records := agg.Aggregate(context.Background())
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestAggregate_CapOverflowKeepsFetchOrder(t *testing.T) {
	// Five valid stations, cap 2. The two most recent lead; the remaining
	// three follow in fetch order, not recency order.
	fetcher := &mockFetcher{
		payloads: map[int]string{
			1: validPayload("18/11/2025 08:00:00"),
			2: validPayload("18/11/2025 10:00:00"),
			3: validPayload("18/11/2025 07:00:00"),
			4: validPayload("18/11/2025 09:00:00"),
			5: validPayload("18/11/2025 07:30:00"),
		},
	}
	agg := newAggregator(&mockDiscoverer{ids: []int{1, 2, 3, 4, 5}}, fetcher, nil, 2)

	records := agg.Aggregate(context.Background())

	require.Len(t, records, 5)
	assert.Equal(t, 2, records[0].StationID)
	assert.Equal(t, 4, records[1].StationID)
	// Overflow preserves fetch-phase order: 1, 3, 5.
	assert.Equal(t, 1, records[2].StationID)
	assert.Equal(t, 3, records[3].StationID)
	assert.Equal(t, 5, records[4].StationID)
}

func TestAggregate_MissingTimestampSortsLast(t *testing.T) {
	fetcher := &mockFetcher{
		payloads: map[int]string{
			// Reading field present but unparseable: timestamp is nil.
			1: `{"code":200,"arrResponse":{"Última Leitura":"???","Temperatura":"20"}}`,
			2: validPayload("18/11/2025 10:00:00"),
		},
	}
	agg := newAggregator(&mockDiscoverer{ids: []int{1, 2}}, fetcher, nil, 4)

	records := agg.Aggregate(context.Background())

	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].StationID)
	assert.Equal(t, 1, records[1].StationID)
	assert.Nil(t, records[1].Timestamp)
	assert.False(t, records[1].Errored(), "bad timestamp alone is not an error record")
}

func TestAggregate_AllStationsFailing(t *testing.T) {
	down := errors.New("connection refused")
	fetcher := &mockFetcher{fail: map[int]error{2: down, 3: down}}
	agg := newAggregator(&mockDiscoverer{ids: []int{2, 3}}, fetcher, nil, 4)

	records := agg.Aggregate(context.Background())

	require.Len(t, records, 2)
	for i, id := range []int{2, 3} {
		assert.Equal(t, id, records[i].StationID)
		assert.True(t, records[i].Errored())
		assert.Contains(t, records[i].Error, "Erro ao buscar dados")
	}
}

func TestAggregate_AttachesLocations(t *testing.T) {
	fetcher := &mockFetcher{payloads: map[int]string{2: validPayload("18/11/2025 10:00:00")}}
	locations := &mockLocations{byID: map[int]domain.StationLocation{
		2: {Nome: "Praça Central", Endereco: "Av. Paulista, 1000"},
	}}
	agg := newAggregator(&mockDiscoverer{ids: []int{2}}, fetcher, locations, 4)

	records := agg.Aggregate(context.Background())

	require.Len(t, records, 1)
	assert.Equal(t, "Praça Central", records[0].Name)
	assert.Equal(t, "Av. Paulista, 1000", records[0].Location)
}

func TestAggregate_UnregisteredStationKeepsDefaultName(t *testing.T) {
	fetcher := &mockFetcher{payloads: map[int]string{5: validPayload("18/11/2025 10:00:00")}}
	agg := newAggregator(&mockDiscoverer{ids: []int{5}}, fetcher, &mockLocations{}, 4)

	records := agg.Aggregate(context.Background())

	require.Len(t, records, 1)
	assert.Equal(t, "Estação 5", records[0].Name)
}

func TestAggregateOne(t *testing.T) {
	fetcher := &mockFetcher{
		payloads: map[int]string{2: validPayload("18/11/2025 10:00:00")},
		fail:     map[int]error{9: errors.New("connection reset")},
	}
	agg := newAggregator(&mockDiscoverer{}, fetcher, nil, 4)

	rec := agg.AggregateOne(context.Background(), 2)
	assert.False(t, rec.Errored())
	assert.Equal(t, 2, rec.StationID)

	rec = agg.AggregateOne(context.Background(), 9)
	assert.True(t, rec.Errored())
	assert.Contains(t, rec.Error, "connection reset")
}
