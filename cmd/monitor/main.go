package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/slopewatch/slope-monitor/internal/adapter/httpapi"
	kafkaadapter "github.com/slopewatch/slope-monitor/internal/adapter/kafka"
	"github.com/slopewatch/slope-monitor/internal/adapter/openmeteo"
	"github.com/slopewatch/slope-monitor/internal/adapter/usgs"
	"github.com/slopewatch/slope-monitor/internal/config"
	"github.com/slopewatch/slope-monitor/internal/hub"
	"github.com/slopewatch/slope-monitor/internal/ingest"
	"github.com/slopewatch/slope-monitor/internal/observability"
	"github.com/slopewatch/slope-monitor/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	h := hub.New(logger, metrics)

	// Snapshot export is feature-flagged via KAFKA_BROKERS.
	notifier := state.Notifier(h)
	var exporter *kafkaadapter.Exporter
	if cfg.KafkaEnabled() {
		exporter = kafkaadapter.NewExporter(cfg, logger, metrics)
		notifier = state.Combine(h, exporter)
		logger.Info("kafka snapshot export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaExportTopic)
	} else {
		logger.Info("kafka snapshot export disabled")
	}

	coordinator := state.New(notifier, logger, metrics)

	// Each transport is independently optional; a misconfigured serial
	// port must not take down MQTT ingestion.
	var workers []ingest.Worker
	if cfg.MQTTEnabled() {
		workers = append(workers, ingest.NewMQTTSubscriber(cfg, coordinator, logger, metrics))
	} else {
		logger.Info("mqtt ingestion disabled")
	}
	if cfg.SerialEnabled() {
		reader, err := ingest.NewSerialReader(cfg, coordinator, logger, metrics)
		if err != nil {
			logger.Error("serial ingestion unavailable", "error", err, "port", cfg.SerialPort)
		} else {
			workers = append(workers, reader)
		}
	} else {
		logger.Info("serial ingestion disabled")
	}
	if len(workers) == 0 {
		logger.Warn("no ingestion transports configured, serving defaults only")
	}

	supervisor := ingest.NewSupervisor(logger, workers...)

	weather := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.TelemetryTimeout, logger, metrics)
	quakes := usgs.NewCachedClient(
		usgs.NewClient(cfg.QuakeBaseURL, cfg.TelemetryTimeout, logger, metrics),
		cfg.QuakeCacheSize,
		cfg.QuakeCacheTTL,
		metrics,
	)

	srv := httpapi.NewServer(cfg, coordinator, h, weather, quakes, supervisor, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	supervisor.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	supervisor.Wait()
	if exporter != nil {
		if err := exporter.Close(); err != nil {
			logger.Error("kafka exporter close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
