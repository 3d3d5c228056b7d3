package domain_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopewatch/slope-monitor/internal/domain"
)

func TestDefaultSensorState(t *testing.T) {
	s := domain.DefaultSensorState()

	assert.Equal(t, 15.0, s.Tiltmeter)
	assert.Equal(t, 12.0, s.Piezometer)
	assert.Equal(t, 8.0, s.Vibration)
	assert.Equal(t, 18.0, s.Crackmeter)
	assert.Equal(t, domain.StatusOnline, s.Status)
	assert.False(t, s.ObservedAt.IsZero())
}

func TestDecodeInboundPayload_AllFields(t *testing.T) {
	p, err := domain.DecodeInboundPayload([]byte(
		`{"tiltmeter":17.2,"piezometer":13.1,"vibration":9.4,"crackmeter":21.0,"status":"degraded"}`,
	))
	require.NoError(t, err)

	require.NotNil(t, p.Tiltmeter)
	assert.Equal(t, 17.2, *p.Tiltmeter)
	require.NotNil(t, p.Piezometer)
	assert.Equal(t, 13.1, *p.Piezometer)
	require.NotNil(t, p.Vibration)
	assert.Equal(t, 9.4, *p.Vibration)
	require.NotNil(t, p.Crackmeter)
	assert.Equal(t, 21.0, *p.Crackmeter)
	require.NotNil(t, p.Status)
	assert.Equal(t, domain.StatusDegraded, *p.Status)
}

func TestDecodeInboundPayload_PartialFrame(t *testing.T) {
	p, err := domain.DecodeInboundPayload([]byte(`{"vibration":11.5}`))
	require.NoError(t, err)

	assert.Nil(t, p.Tiltmeter)
	assert.Nil(t, p.Piezometer)
	require.NotNil(t, p.Vibration)
	assert.Equal(t, 11.5, *p.Vibration)
	assert.Nil(t, p.Crackmeter)
	assert.Nil(t, p.Status)
}

func TestDecodeInboundPayload_UnknownFieldsIgnored(t *testing.T) {
	p, err := domain.DecodeInboundPayload([]byte(`{"tiltmeter":16.0,"battery_v":3.9,"firmware":"2.1"}`))
	require.NoError(t, err)

	require.NotNil(t, p.Tiltmeter)
	assert.Equal(t, 16.0, *p.Tiltmeter)
}

func TestDecodeInboundPayload_UnknownStatusDropped(t *testing.T) {
	p, err := domain.DecodeInboundPayload([]byte(`{"status":"onlien","crackmeter":19.0}`))
	require.NoError(t, err)

	assert.Nil(t, p.Status)
	require.NotNil(t, p.Crackmeter)
	assert.Equal(t, 19.0, *p.Crackmeter)
}

func TestDecodeInboundPayload_Malformed(t *testing.T) {
	for _, frame := range []string{
		"not json",
		`{"tiltmeter":`,
		`{"tiltmeter":"high"}`,
		`[1,2,3]`,
		`null`,
		`"online"`,
		`42`,
		``,
		`   `,
	} {
		_, err := domain.DecodeInboundPayload([]byte(frame))
		assert.Error(t, err, "frame %q should not decode", frame)
	}
}

func TestMerge_ByPresence(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	before := domain.DefaultSensorState()

	fakeClock.Advance(time.Minute)
	p, err := domain.DecodeInboundPayload([]byte(`{"crackmeter":22.4,"status":"degraded"}`))
	require.NoError(t, err)

	after := before.Merge(p)

	assert.Equal(t, 22.4, after.Crackmeter)
	assert.Equal(t, domain.StatusDegraded, after.Status)
	assert.Equal(t, before.Tiltmeter, after.Tiltmeter)
	assert.Equal(t, before.Piezometer, after.Piezometer)
	assert.Equal(t, before.Vibration, after.Vibration)
	assert.True(t, after.ObservedAt.After(before.ObservedAt))

	// The receiver itself is untouched.
	assert.Equal(t, 18.0, before.Crackmeter)
}

func TestMerge_EmptyPayloadStillAdvancesObservedAt(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	before := domain.DefaultSensorState()
	fakeClock.Advance(30 * time.Second)

	after := before.Merge(domain.InboundPayload{})

	assert.Equal(t, before.Tiltmeter, after.Tiltmeter)
	assert.Equal(t, before.Status, after.Status)
	assert.True(t, after.ObservedAt.After(before.ObservedAt))
}
