package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// StationRecord is the canonical per-station output of one aggregation cycle.
// JSON field names follow the dashboard wire contract. Sensor fields are
// pointers: nil distinguishes "no sensor value" from an explicit zero.
type StationRecord struct {
	StationID int        `json:"estacao_id"`
	Name      string     `json:"nome,omitempty"`
	Location  string     `json:"endereco,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	Temperature   *float64 `json:"temperatura"`
	Humidity      *float64 `json:"umidade"`
	Pressure      *float64 `json:"pressao"`
	WindSpeed     *float64 `json:"vento_velocidade"`
	WindDirection *float64 `json:"vento_direcao"`
	Noise         *float64 `json:"ruido"`
	Illuminance   *float64 `json:"iluminancia"`
	RainTotal     *float64 `json:"chuva_total"`
	PM25          *float64 `json:"pm25"`
	PM10          *float64 `json:"pm10"`

	// Error is non-empty when the station could not be read this cycle.
	// When set, the sensor fields carry no meaning.
	Error string `json:"erro,omitempty"`
}

// Errored reports whether the record is an error record rather than a reading.
func (r StationRecord) Errored() bool {
	return r.Error != ""
}

// Active reports whether the record's last reading falls within the recency
// window. Errored records and records without a timestamp are never active.
func (r StationRecord) Active(window time.Duration) bool {
	if r.Errored() || r.Timestamp == nil {
		return false
	}
	return clock.Now().Sub(*r.Timestamp) <= window
}

// ErrorRecord builds a record representing a failed fetch or invalid payload.
func ErrorRecord(stationID int, reason string) StationRecord {
	return StationRecord{
		StationID: stationID,
		Name:      DefaultStationName(stationID),
		Error:     reason,
	}
}

// DefaultStationName is the display name used when no location is registered.
func DefaultStationName(stationID int) string {
	return fmt.Sprintf("Estação %d", stationID)
}

// StationLocation is the operator-maintained metadata for one station.
// Latitude and longitude are kept as strings because field technicians enter
// them free-form; the rendering layer parses them.
type StationLocation struct {
	Nome      string `json:"nome"`
	Endereco  string `json:"endereco"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// StationPayload is the decoded upstream envelope. Fields holds the sensor
// key/value map regardless of which of the two known response shapes the
// station used: the nested arrResponse container is preferred, falling back
// to the flat top-level form.
type StationPayload struct {
	Code   int
	Fields map[string]any
}

// UnmarshalJSON resolves the nested-vs-flat payload shapes into Fields.
func (p *StationPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if code, ok := raw["code"].(float64); ok {
		p.Code = int(code)
	}

	if nested, ok := raw["arrResponse"].(map[string]any); ok {
		p.Fields = nested
		return nil
	}

	delete(raw, "code")
	if len(raw) > 0 {
		p.Fields = raw
	}
	return nil
}
