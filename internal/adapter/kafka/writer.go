// Package kafka publishes aggregated station readings to a sink topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/config"
	"github.com/couchcryptid/station-telemetry-aggregator/internal/domain"
)

// Writer produces station records to a Kafka topic.
// It implements pipeline.ReadingsSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishReadings serializes and publishes one cycle's records in a single
// WriteMessages call. Error records are published too: downstream consumers
// track station outages from them.
func (w *Writer) PublishReadings(ctx context.Context, records []domain.StationRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StationRecord into a Kafka message keyed by
// station so per-station ordering is preserved across partitions.
func serializeToMessage(rec domain.StationRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station record: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "station_id", Value: []byte(strconv.Itoa(rec.StationID))},
		{Key: "fetched_at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	}
	return kafkago.Message{
		Key:     []byte("estacao-" + strconv.Itoa(rec.StationID)),
		Value:   data,
		Headers: headers,
	}, nil
}
