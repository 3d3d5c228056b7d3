// Package hub fans the latest sensor state out to live observers.
package hub

import (
	"log/slog"
	"sync"

	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

// Observer is an opaque sink for serialized state notifications. A failed
// Send evicts the observer from the hub.
type Observer interface {
	Send(state domain.SensorState) error
}

// Hub maintains the set of currently registered observers. Membership is
// self-healing: any observer whose send fails is removed as part of the
// broadcast that failed, and one observer's failure never affects delivery
// to the others.
type Hub struct {
	mu        sync.Mutex
	observers map[Observer]struct{}

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an empty hub.
func New(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		observers: make(map[Observer]struct{}),
		logger:    logger,
		metrics:   metrics,
	}
}

// Register adds an observer and immediately sends it the given snapshot, so
// late joiners are not blind until the next update. If the initial send
// fails the observer is not retained and the error is returned.
func (h *Hub) Register(o Observer, current domain.SensorState) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := o.Send(current); err != nil {
		h.metrics.ObserverSendFailures.Inc()
		return err
	}
	h.observers[o] = struct{}{}
	h.metrics.ObserversConnected.Set(float64(len(h.observers)))
	h.logger.Info("observer registered", "observers", len(h.observers))
	return nil
}

// Unregister removes an observer. Idempotent.
func (h *Hub) Unregister(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(o)
}

// Broadcast delivers the same state value to every registered observer.
// Failed observers are removed before the call returns. The hub lock is held
// for the whole call, which serializes broadcasts and keeps membership
// stable during the iteration; sends are expected to bound their own write
// deadlines.
func (h *Hub) Broadcast(state domain.SensorState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.metrics.Broadcasts.Inc()

	var failed []Observer
	for o := range h.observers {
		if err := o.Send(state); err != nil {
			h.logger.Warn("observer send failed, removing", "error", err)
			h.metrics.ObserverSendFailures.Inc()
			failed = append(failed, o)
		}
	}
	for _, o := range failed {
		h.removeLocked(o)
	}
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

func (h *Hub) removeLocked(o Observer) {
	if _, ok := h.observers[o]; !ok {
		return
	}
	delete(h.observers, o)
	h.metrics.ObserversConnected.Set(float64(len(h.observers)))
	h.logger.Info("observer removed", "observers", len(h.observers))
}
