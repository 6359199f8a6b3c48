// Package config loads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Limits on the display cap. The dashboard renders at most maxActiveLimit
// station cards regardless of configuration.
const (
	minActiveStations = 1
	maxActiveLimit    = 50
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Upstream telemetry API.
	APIBaseURL   string
	StationMin   int
	StationMax   int
	FetchTimeout time.Duration

	// Aggregation policy.
	MaxActiveStations int
	ActiveStationIDs  []int
	FetchBatchSize    int
	FetchBatchDelay   time.Duration
	DiscoveryCacheTTL time.Duration
	RecencyWindow     time.Duration
	PollInterval      time.Duration

	// Serving.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Persistence.
	SQLitePath string

	// Optional readings sink.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	stationMin, err := envInt("ESTACOES_MIN", 1)
	if err != nil {
		return nil, err
	}
	stationMax, err := envInt("ESTACOES_MAX", 30)
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := envDuration("FETCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	batchDelay, err := envDuration("FETCH_BATCH_DELAY", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := envDuration("DISCOVERY_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	recencyWindow, err := envDuration("RECENCY_WINDOW", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	pollInterval, err := envDuration("POLL_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	batchSize, err := envInt("FETCH_BATCH_SIZE", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIBaseURL:   envOrDefault("API_BASE_URL", "https://iothub.eletromidia.com.br/api/v1/estacoes_mets"),
		StationMin:   stationMin,
		StationMax:   stationMax,
		FetchTimeout: fetchTimeout,

		MaxActiveStations: parseMaxActive(),
		ActiveStationIDs:  parseStationIDs(),
		FetchBatchSize:    batchSize,
		FetchBatchDelay:   batchDelay,
		DiscoveryCacheTTL: cacheTTL,
		RecencyWindow:     recencyWindow,
		PollInterval:      pollInterval,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		SQLitePath: envOrDefault("SQLITE_PATH", "data/stations.db"),

		KafkaEnabled:   envOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers:   parseBrokers(envOrLookup("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "station-readings"),
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if cfg.StationMin < 1 {
		return nil, errors.New("ESTACOES_MIN must be at least 1")
	}
	if cfg.StationMax < cfg.StationMin {
		return nil, errors.New("ESTACOES_MAX must be >= ESTACOES_MIN")
	}
	if cfg.FetchBatchSize < 1 {
		return nil, errors.New("FETCH_BATCH_SIZE must be at least 1")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envOrLookup honors an explicitly-set empty value rather than falling back.
func envOrLookup(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// parseMaxActive honors the legacy alias variables and clamps to [1, 50]
// rather than failing: operators have historically set wild values here and
// the dashboard should come up regardless.
func parseMaxActive() int {
	raw := firstEnv("MAX_ESTACOES_ATIVAS", "ESTACOES_ATIVAS", "NUM_ESTACOES_ATIVAS")
	n, err := strconv.Atoi(raw)
	if err != nil {
		n = 4
	}
	if n < minActiveStations {
		n = minActiveStations
	}
	if n > maxActiveLimit {
		n = maxActiveLimit
	}
	return n
}

// parseStationIDs reads the explicit ID list. An unset variable falls back to
// the default fleet; a variable explicitly set to the empty string selects
// range probing instead.
func parseStationIDs() []int {
	raw, set := lookupFirstEnv("ESTACOES_ATIVAS_IDS", "ACTIVE_STATIONS")
	if !set {
		raw = "2,3,7,8"
	}

	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.Atoi(part); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func firstEnv(keys ...string) string {
	v, _ := lookupFirstEnv(keys...)
	return v
}

func lookupFirstEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
	}
	return "", false
}
