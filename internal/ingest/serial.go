package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"github.com/slopewatch/slope-monitor/internal/config"
	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// SerialReader reads newline-delimited frames from a serial device. The read
// loop blocks by nature; it runs on its own goroutine, which the runtime
// parks on a dedicated thread during the blocking syscall, so it can never
// stall the coordinator or the other workers.
type SerialReader struct {
	port    serial.Port
	device  string
	applier Applier
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSerialReader opens the configured device at the configured baud rate.
// An unopenable device is a configuration error: the constructor fails fast
// so the caller can skip this worker while leaving the others running.
func NewSerialReader(cfg *config.Config, applier Applier, logger *slog.Logger, metrics *observability.Metrics) (*SerialReader, error) {
	port, err := serial.Open(cfg.SerialPort, &serial.Mode{BaudRate: cfg.SerialBaud})
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", cfg.SerialPort, err)
	}
	return &SerialReader{
		port:    port,
		device:  cfg.SerialPort,
		applier: applier,
		logger:  logger.With("transport", "serial", "device", cfg.SerialPort),
		metrics: metrics,
	}, nil
}

// Name identifies the worker in logs.
func (r *SerialReader) Name() string { return "serial" }

// Run consumes frames until ctx is cancelled. Cancellation closes the port,
// which unblocks the read loop.
func (r *SerialReader) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := r.port.Close(); err != nil {
			r.logger.Warn("closing serial port", "error", err)
		}
	})
	defer stop()

	r.metrics.WorkerRunning.WithLabelValues("serial").Set(1)
	defer r.metrics.WorkerRunning.WithLabelValues("serial").Set(0)

	r.logger.Info("serial reader started")
	r.readFrames(r.port)

	if ctx.Err() == nil {
		// The device disappeared (unplugged, driver fault). The state
		// simply goes stale; other transports keep running.
		r.logger.Warn("serial stream ended")
	}
	r.logger.Info("serial reader stopped")
	return nil
}

// readFrames decodes newline-delimited records from src until it is
// exhausted. Unparseable lines are dropped silently, same policy as the
// channel path.
func (r *SerialReader) readFrames(src io.Reader) {
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		payload, err := domain.DecodeInboundPayload(line)
		if err != nil {
			r.metrics.FramesDropped.WithLabelValues("serial").Inc()
			r.logger.Debug("dropping malformed line", "error", err)
			continue
		}
		r.metrics.FramesReceived.WithLabelValues("serial").Inc()
		r.applier.ApplyUpdate(payload)
	}
}
