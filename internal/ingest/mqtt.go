// Package ingest runs one worker per configured transport, decoding inbound
// frames and forwarding them to the state coordinator. Malformed frames are
// dropped silently on every transport; transient connection faults are
// retried and never crash the process.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/slopewatch/slope-monitor/internal/config"
	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// Applier accepts decoded payloads; satisfied by state.Coordinator.
type Applier interface {
	ApplyUpdate(p domain.InboundPayload)
}

// reconnectInterval is the fixed delay between broker connection attempts.
const reconnectInterval = 3 * time.Second

// MQTTSubscriber holds a long-lived subscription to the sensor topic.
type MQTTSubscriber struct {
	cfg     *config.Config
	applier Applier
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewMQTTSubscriber creates the channel subscriber worker. It does not
// connect; connection (and reconnection) happens inside Run.
func NewMQTTSubscriber(cfg *config.Config, applier Applier, logger *slog.Logger, metrics *observability.Metrics) *MQTTSubscriber {
	return &MQTTSubscriber{
		cfg:     cfg,
		applier: applier,
		logger:  logger.With("transport", "mqtt"),
		metrics: metrics,
	}
}

// Name identifies the worker in logs.
func (s *MQTTSubscriber) Name() string { return "mqtt" }

// Run subscribes to the configured topic and blocks until ctx is cancelled.
// Connection loss and the initial connect both retry at a fixed interval;
// a broker outage never surfaces as an error.
func (s *MQTTSubscriber) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", s.cfg.MQTTHost, s.cfg.MQTTPort)).
		SetClientID(fmt.Sprintf("slope-monitor-%d", time.Now().UnixNano())).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectInterval).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(reconnectInterval).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.logger.Warn("broker connection lost, retrying", "error", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			// Subscriptions do not survive a reconnect without session
			// state, so resubscribe on every connect.
			if token := c.Subscribe(s.cfg.MQTTTopic, 0, s.handleMessage); token.Wait() && token.Error() != nil {
				s.logger.Error("subscribe failed", "topic", s.cfg.MQTTTopic, "error", token.Error())
				return
			}
			s.logger.Info("subscribed", "topic", s.cfg.MQTTTopic)
		})
	if s.cfg.MQTTUsername != "" {
		opts.SetUsername(s.cfg.MQTTUsername)
		opts.SetPassword(s.cfg.MQTTPassword)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	s.metrics.WorkerRunning.WithLabelValues("mqtt").Set(1)
	defer s.metrics.WorkerRunning.WithLabelValues("mqtt").Set(0)

	<-ctx.Done()
	// With connect-retry enabled the token only completes once a connection
	// succeeds, so it may never complete while the broker is down. Give an
	// in-flight handshake a moment to settle, then disconnect regardless:
	// Disconnect also stops the retry loop.
	select {
	case <-token.Done():
	case <-time.After(time.Second):
	}
	client.Disconnect(250)
	s.logger.Info("subscriber stopped")
	return nil
}

// handleMessage decodes one inbound frame. Malformed frames are dropped
// without affecting the subscription.
func (s *MQTTSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	payload, err := domain.DecodeInboundPayload(msg.Payload())
	if err != nil {
		s.metrics.FramesDropped.WithLabelValues("mqtt").Inc()
		s.logger.Debug("dropping malformed frame", "error", err)
		return
	}
	s.metrics.FramesReceived.WithLabelValues("mqtt").Inc()
	s.applier.ApplyUpdate(payload)
}
