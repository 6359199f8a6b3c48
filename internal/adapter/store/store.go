// Package store persists station locations and reading history in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/upsert-location.sql
var upsertLocationSQL string

//go:embed sql/get-location.sql
var getLocationSQL string

//go:embed sql/list-locations.sql
var listLocationsSQL string

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-readings.sql
var getReadingsSQL string

// Store wraps a SQLite database holding per-station metadata and readings.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database file (and parent directory) if needed and
// applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutLocation inserts or replaces the location metadata for a station.
func (s *Store) PutLocation(ctx context.Context, stationID int, loc domain.StationLocation) error {
	_, err := s.db.ExecContext(ctx, upsertLocationSQL,
		stationID, loc.Nome, loc.Endereco, loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("upsert location for station %d: %w", stationID, err)
	}
	return nil
}

// GetLocation returns the stored location for a station. The second return
// value is false when no row exists.
func (s *Store) GetLocation(ctx context.Context, stationID int) (domain.StationLocation, bool, error) {
	var loc domain.StationLocation
	err := s.db.QueryRowContext(ctx, getLocationSQL, stationID).
		Scan(&loc.Nome, &loc.Endereco, &loc.Latitude, &loc.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StationLocation{}, false, nil
	}
	if err != nil {
		return domain.StationLocation{}, false, fmt.Errorf("get location for station %d: %w", stationID, err)
	}
	return loc, true, nil
}

// ListLocations returns all stored locations keyed by station ID.
func (s *Store) ListLocations(ctx context.Context) (map[int]domain.StationLocation, error) {
	rows, err := s.db.QueryContext(ctx, listLocationsSQL)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close locations rows", "error", err)
		}
	}()

	out := make(map[int]domain.StationLocation)
	for rows.Next() {
		var id int
		var loc domain.StationLocation
		if err := rows.Scan(&id, &loc.Nome, &loc.Endereco, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, err
		}
		out[id] = loc
	}
	return out, rows.Err()
}

// AppendReadings stores the valid records from an aggregation cycle.
// Errored records and records without a timestamp are skipped; duplicate
// (station, timestamp) pairs are ignored so repeated polls of a stale
// station do not accumulate rows.
func (s *Store) AppendReadings(ctx context.Context, records []domain.StationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin readings transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Error("rollback readings transaction", "error", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return fmt.Errorf("prepare insert reading: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.Errored() || rec.Timestamp == nil {
			continue
		}
		ts := rec.Timestamp.UTC().Format(time.RFC3339)
		_, err := stmt.ExecContext(ctx, rec.StationID, ts,
			nullable(rec.Temperature), nullable(rec.Humidity), nullable(rec.Pressure),
			nullable(rec.WindSpeed), nullable(rec.WindDirection), nullable(rec.Noise),
			nullable(rec.Illuminance), nullable(rec.RainTotal),
			nullable(rec.PM25), nullable(rec.PM10))
		if err != nil {
			return fmt.Errorf("insert reading for station %d: %w", rec.StationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit readings transaction: %w", err)
	}
	return nil
}

// Readings returns up to limit stored readings for a station, oldest first.
func (s *Store) Readings(ctx context.Context, stationID, limit int) ([]domain.StationRecord, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx, getReadingsSQL, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("get readings for station %d: %w", stationID, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close readings rows", "error", err)
		}
	}()

	var out []domain.StationRecord
	for rows.Next() {
		var rec domain.StationRecord
		var ts string
		var temp, hum, press, windV, windD, noise, lux, rain, pm25, pm10 sql.NullFloat64
		if err := rows.Scan(&rec.StationID, &ts,
			&temp, &hum, &press, &windV, &windD, &noise, &lux, &rain, &pm25, &pm10); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp %q: %w", ts, err)
		}
		rec.Timestamp = &t
		rec.Temperature = fromNull(temp)
		rec.Humidity = fromNull(hum)
		rec.Pressure = fromNull(press)
		rec.WindSpeed = fromNull(windV)
		rec.WindDirection = fromNull(windD)
		rec.Noise = fromNull(noise)
		rec.Illuminance = fromNull(lux)
		rec.RainTotal = fromNull(rain)
		rec.PM25 = fromNull(pm25)
		rec.PM10 = fromNull(pm10)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query walks the index newest-first; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
