// Package telemetry is the HTTP client for the upstream weather-station API.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
)

// userAgent identifies the dashboard to the upstream telemetry service.
const userAgent = "EstacaoMeteorologica-Dashboard/1.0"

var (
	// ErrTimeout marks a fetch that exceeded its deadline. Timeouts fail only
	// the one station they belong to, never the batch.
	ErrTimeout = errors.New("timeout na requisição")

	// ErrEmptyBody marks a 2xx response with no payload.
	ErrEmptyBody = errors.New("resposta vazia da API")

	// ErrStationNotFound marks a probe whose response is not a live station.
	ErrStationNotFound = errors.New("estação não encontrada")
)

// Client queries the upstream station API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a telemetry client. The timeout bounds each individual
// request; callers impose tighter per-item deadlines via context.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchStation retrieves one station's current reading envelope.
func (c *Client) FetchStation(ctx context.Context, stationID int) (*domain.StationPayload, error) {
	u := fmt.Sprintf("%s/%d", c.baseURL, stationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("station %d: %w", stationID, ErrTimeout)
		}
		return nil, fmt.Errorf("station %d request: %w", stationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("station %d: HTTP %d: %s", stationID, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("station %d: %w", stationID, ErrTimeout)
		}
		return nil, fmt.Errorf("station %d read body: %w", stationID, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("station %d: %w", stationID, ErrEmptyBody)
	}

	var payload domain.StationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("station %d decode: %w", stationID, err)
	}
	return &payload, nil
}

// Probe performs a lightweight existence check: the station exists when the
// envelope decodes with code 200 and a non-empty field set. Full sensor
// parsing is deliberately not part of the success criterion.
func (c *Client) Probe(ctx context.Context, stationID int) error {
	payload, err := c.FetchStation(ctx, stationID)
	if err != nil {
		return err
	}
	if payload.Code != 200 || len(payload.Fields) == 0 {
		return fmt.Errorf("station %d: %w", stationID, ErrStationNotFound)
	}
	return nil
}

// isTimeout classifies deadline errors from the transport so the batch layer
// can report them distinctly from other transport failures.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return os.IsTimeout(err)
}
