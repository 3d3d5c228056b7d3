package state_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
	"github.com/slopewatch/slope-monitor/internal/state"
)

type recordingNotifier struct {
	mu     sync.Mutex
	states []domain.SensorState
}

func (r *recordingNotifier) Broadcast(s domain.SensorState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingNotifier) all() []domain.SensorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SensorState(nil), r.states...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func TestApplyUpdate_MergesByPresence(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	c := state.New(nil, discardLogger(), observability.NewMetricsForTesting())
	before := c.Snapshot()

	fakeClock.Advance(time.Second)
	c.ApplyUpdate(domain.InboundPayload{Piezometer: ptr(14.9)})

	after := c.Snapshot()
	assert.Equal(t, 14.9, after.Piezometer)
	assert.Equal(t, before.Tiltmeter, after.Tiltmeter)
	assert.Equal(t, before.Vibration, after.Vibration)
	assert.Equal(t, before.Crackmeter, after.Crackmeter)
	assert.Equal(t, before.Status, after.Status)
	assert.True(t, after.ObservedAt.After(before.ObservedAt))
}

func TestApplyUpdate_NotifiesWithCopy(t *testing.T) {
	n := &recordingNotifier{}
	c := state.New(n, discardLogger(), observability.NewMetricsForTesting())

	c.ApplyUpdate(domain.InboundPayload{Crackmeter: ptr(23.0)})
	c.ApplyUpdate(domain.InboundPayload{Crackmeter: ptr(24.0)})

	states := n.all()
	require.Len(t, states, 2)
	assert.Equal(t, 23.0, states[0].Crackmeter)
	assert.Equal(t, 24.0, states[1].Crackmeter)
}

func TestSnapshot_IdempotentWithoutUpdates(t *testing.T) {
	c := state.New(nil, discardLogger(), observability.NewMetricsForTesting())

	a := c.Snapshot()
	b := c.Snapshot()
	assert.Equal(t, a, b)
}

func TestApplyUpdate_ConcurrentWritersSerialize(t *testing.T) {
	n := &recordingNotifier{}
	c := state.New(n, discardLogger(), observability.NewMetricsForTesting())

	const perWorker = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perWorker; i++ {
			c.ApplyUpdate(domain.InboundPayload{Tiltmeter: ptr(float64(i))})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perWorker; i++ {
			c.ApplyUpdate(domain.InboundPayload{Vibration: ptr(float64(i))})
		}
	}()
	wg.Wait()

	states := n.all()
	require.Len(t, states, 2*perWorker)

	// Merge-by-presence means the final state carries the last write from
	// each channel; untouched channels stay at their defaults.
	final := c.Snapshot()
	assert.Equal(t, float64(perWorker-1), final.Tiltmeter)
	assert.Equal(t, float64(perWorker-1), final.Vibration)
	assert.Equal(t, 12.0, final.Piezometer)
	assert.Equal(t, 18.0, final.Crackmeter)

	// Notifications observe monotonically advancing states per channel.
	lastTilt := -1.0
	for _, s := range states {
		if s.Tiltmeter != 15.0 {
			assert.GreaterOrEqual(t, s.Tiltmeter, lastTilt)
			lastTilt = s.Tiltmeter
		}
	}
}

func TestCombine_FansOutInOrder(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	c := state.New(state.Combine(a, b), discardLogger(), observability.NewMetricsForTesting())

	c.ApplyUpdate(domain.InboundPayload{Status: ptr(domain.StatusDegraded)})

	require.Len(t, a.all(), 1)
	require.Len(t, b.all(), 1)
	assert.Equal(t, domain.StatusDegraded, a.all()[0].Status)
}
