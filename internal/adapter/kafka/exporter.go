// Package kafka publishes accepted state snapshots to a sink topic for
// downstream consumers (dashboards, historians).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/slopewatch/slope-monitor/internal/config"
	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// stateKey keys every message identically so a compacted topic retains only
// the latest snapshot.
const stateKey = "sensor-state"

// Exporter produces snapshots to the export topic. It implements
// state.Notifier; publish failures are logged and counted, never propagated
// back to the ingestion path.
type Exporter struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewExporter creates a Kafka producer for the configured export topic.
// Writes are asynchronous so a broker outage cannot stall notification.
func NewExporter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Exporter {
	e := &Exporter{logger: logger, metrics: metrics}
	e.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaExportTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				e.metrics.ExportFailures.Add(float64(len(messages)))
				e.logger.Warn("snapshot export failed", "error", err, "messages", len(messages))
				return
			}
			e.metrics.ExportsPublished.Add(float64(len(messages)))
		},
	}
	return e
}

// Broadcast serializes and publishes one snapshot.
func (e *Exporter) Broadcast(state domain.SensorState) {
	msg, err := serializeState(state)
	if err != nil {
		e.metrics.ExportFailures.Inc()
		e.logger.Warn("snapshot export failed", "error", err)
		return
	}
	// With Async set, WriteMessages only enqueues; delivery errors arrive
	// via the Completion callback.
	if err := e.writer.WriteMessages(context.Background(), msg); err != nil {
		e.metrics.ExportFailures.Inc()
		e.logger.Warn("snapshot export failed", "error", err)
	}
}

// Close flushes pending messages and releases the producer.
func (e *Exporter) Close() error {
	return e.writer.Close()
}

// serializeState marshals a snapshot into a Kafka message.
func serializeState(state domain.SensorState) (kafkago.Message, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sensor state: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(stateKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(state.Status)},
			{Key: "observed_at", Value: []byte(state.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}
