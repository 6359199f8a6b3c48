package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/station-telemetry-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/adapter/store"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/config"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/discovery"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/observability"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/pipeline"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/telemetry"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.SQLitePath, logger)
	if err != nil {
		logger.Error("failed to open station store", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}

	client := telemetry.NewClient(cfg.APIBaseURL, cfg.FetchTimeout, logger)

	prober := discovery.NewProber(client, cfg.ActiveStationIDs, cfg.StationMin, cfg.StationMax,
		cfg.MaxActiveStations, cfg.FetchBatchSize, cfg.FetchBatchDelay, logger, metrics)
	cache := discovery.NewCache(cfg.DiscoveryCacheTTL, clockwork.NewRealClock(), metrics)
	stations := discovery.NewService(prober, cache)

	aggregator := pipeline.New(stations, client, db, cfg.FetchBatchSize, cfg.FetchBatchDelay,
		cfg.FetchTimeout, cfg.MaxActiveStations, logger, metrics)

	// Readings sink (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var sink pipeline.ReadingsSink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("kafka readings sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka readings sink disabled")
	}

	poller := pipeline.NewPoller(aggregator, db, sink, cfg.PollInterval,
		clockwork.NewRealClock(), logger, metrics)

	srv := httpapi.NewServer(cfg.HTTPAddr, aggregator, db, db, stations, poller,
		cfg.RecencyWindow, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the aggregation poller.
	go func() {
		if err := poller.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("station store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
