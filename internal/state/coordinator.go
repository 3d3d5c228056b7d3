// Package state owns the canonical sensor record. The Coordinator is the
// only writer; ingestion workers push decoded payloads in, readers take
// immutable snapshots out.
package state

import (
	"log/slog"
	"sync"

	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// Notifier receives an immutable copy of the state after each accepted update.
type Notifier interface {
	Broadcast(state domain.SensorState)
}

// Coordinator serializes concurrent writes from the ingestion workers into
// the shared SensorState and triggers notification.
type Coordinator struct {
	// notifyMu spans merge and notify so observers see states in apply
	// order. The state lock below is never held across a send.
	notifyMu sync.Mutex

	mu     sync.Mutex
	latest domain.SensorState

	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Coordinator holding the default state. notifier may be nil
// when no notification path is wired (tests, tools).
func New(notifier Notifier, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		latest:   domain.DefaultSensorState(),
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// ApplyUpdate merges a decoded payload into the state and notifies with an
// immutable copy. It never fails to the caller: observer and export errors
// are the notifier's concern.
func (c *Coordinator) ApplyUpdate(p domain.InboundPayload) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.latest = c.latest.Merge(p)
	snap := c.latest
	c.mu.Unlock()

	c.metrics.UpdatesApplied.Inc()
	c.logger.Debug("state updated", "observed_at", snap.ObservedAt, "status", snap.Status)

	if c.notifier != nil {
		c.notifier.Broadcast(snap)
	}
}

// Snapshot returns an immutable copy of the current state. It always
// succeeds, even before any transport has delivered a frame.
func (c *Coordinator) Snapshot() domain.SensorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Combine fans one notification stream out to several notifiers in order.
func Combine(notifiers ...Notifier) Notifier {
	return multiNotifier(notifiers)
}

type multiNotifier []Notifier

func (m multiNotifier) Broadcast(state domain.SensorState) {
	for _, n := range m {
		n.Broadcast(state)
	}
}
