package ingest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopewatch/slope-monitor/internal/config"
	"github.com/slopewatch/slope-monitor/internal/domain"
	"github.com/slopewatch/slope-monitor/internal/observability"
)

type capturingApplier struct {
	payloads []domain.InboundPayload
}

func (c *capturingApplier) ApplyUpdate(p domain.InboundPayload) {
	c.payloads = append(c.payloads, p)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMessage implements mqtt.Message for handler tests.
type fakeMessage struct {
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "slope/sensors" }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestMQTTHandleMessage_ValidFrame(t *testing.T) {
	applier := &capturingApplier{}
	s := &MQTTSubscriber{
		applier: applier,
		logger:  discardLogger(),
		metrics: observability.NewMetricsForTesting(),
	}

	s.handleMessage(nil, &fakeMessage{payload: []byte(`{"tiltmeter":16.4,"status":"degraded"}`)})

	require.Len(t, applier.payloads, 1)
	require.NotNil(t, applier.payloads[0].Tiltmeter)
	assert.Equal(t, 16.4, *applier.payloads[0].Tiltmeter)
	require.NotNil(t, applier.payloads[0].Status)
	assert.Equal(t, domain.StatusDegraded, *applier.payloads[0].Status)
}

func TestMQTTHandleMessage_MalformedFrameDropped(t *testing.T) {
	applier := &capturingApplier{}
	s := &MQTTSubscriber{
		applier: applier,
		logger:  discardLogger(),
		metrics: observability.NewMetricsForTesting(),
	}

	s.handleMessage(nil, &fakeMessage{payload: []byte("garbage{{")})
	s.handleMessage(nil, &fakeMessage{payload: []byte(`[1,2]`)})

	assert.Empty(t, applier.payloads)
}

func TestMQTTRun_StopsOnCancelWhileBrokerUnreachable(t *testing.T) {
	cfg := &config.Config{
		MQTTHost:  "127.0.0.1",
		MQTTPort:  1, // nothing listens here, connect retries forever
		MQTTTopic: "slope/sensors",
	}
	s := NewMQTTSubscriber(cfg, &capturingApplier{}, discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop after cancellation")
	}
}

func TestSerialReadFrames(t *testing.T) {
	applier := &capturingApplier{}
	r := &SerialReader{
		applier: applier,
		logger:  discardLogger(),
		metrics: observability.NewMetricsForTesting(),
	}

	stream := strings.Join([]string{
		`{"vibration":9.1}`,
		``,
		`not json at all`,
		`  {"crackmeter":20.5,"piezometer":13.0}  `,
		`{"status":"offline"}`,
	}, "\n") + "\n"

	r.readFrames(strings.NewReader(stream))

	require.Len(t, applier.payloads, 3)
	assert.Equal(t, 9.1, *applier.payloads[0].Vibration)
	assert.Equal(t, 20.5, *applier.payloads[1].Crackmeter)
	assert.Equal(t, 13.0, *applier.payloads[1].Piezometer)
	assert.Equal(t, domain.StatusOffline, *applier.payloads[2].Status)
}

func TestSerialReadFrames_OnlyGarbage(t *testing.T) {
	applier := &capturingApplier{}
	r := &SerialReader{
		applier: applier,
		logger:  discardLogger(),
		metrics: observability.NewMetricsForTesting(),
	}

	r.readFrames(strings.NewReader("####\nxx yy\n{{{\n"))

	assert.Empty(t, applier.payloads)
}

func TestSupervisor_Readiness(t *testing.T) {
	s := NewSupervisor(discardLogger())

	require.Error(t, s.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	assert.NoError(t, s.CheckReadiness(context.Background()))
	s.Wait()
}

type stubWorker struct {
	name string
	ran  chan struct{}
}

func (w *stubWorker) Name() string { return w.name }

func (w *stubWorker) Run(ctx context.Context) error {
	close(w.ran)
	<-ctx.Done()
	return nil
}

func TestSupervisor_RunsWorkersUntilCancelled(t *testing.T) {
	w := &stubWorker{name: "stub", ran: make(chan struct{})}
	s := NewSupervisor(discardLogger(), w)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	<-w.ran
	cancel()
	s.Wait()
}
