package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the health signal reported by the sensor array.
type Status string

const (
	StatusOnline   Status = "online"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// Calibration baselines used until the first frame arrives.
const (
	DefaultTiltmeter  = 15.0
	DefaultPiezometer = 12.0
	DefaultVibration  = 8.0
	DefaultCrackmeter = 18.0
)

// SensorState is the latest-known reading set for all local sensor channels.
// It is a value type: the coordinator hands out copies, never pointers into
// its guarded record.
type SensorState struct {
	Tiltmeter  float64   `json:"tiltmeter"`
	Piezometer float64   `json:"piezometer"`
	Vibration  float64   `json:"vibration"`
	Crackmeter float64   `json:"crackmeter"`
	Status     Status    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}

// DefaultSensorState returns the baseline state used at process start.
func DefaultSensorState() SensorState {
	return SensorState{
		Tiltmeter:  DefaultTiltmeter,
		Piezometer: DefaultPiezometer,
		Vibration:  DefaultVibration,
		Crackmeter: DefaultCrackmeter,
		Status:     StatusOnline,
		ObservedAt: clock.Now().UTC(),
	}
}

// InboundPayload is one decoded transport frame. Nil fields were absent from
// the frame and leave the corresponding state field unchanged.
type InboundPayload struct {
	Tiltmeter  *float64 `json:"tiltmeter"`
	Piezometer *float64 `json:"piezometer"`
	Vibration  *float64 `json:"vibration"`
	Crackmeter *float64 `json:"crackmeter"`
	Status     *Status  `json:"status"`
}

// DecodeInboundPayload parses a wire frame into an InboundPayload.
// Unknown JSON fields are ignored. A status value outside the known enum is
// dropped from the payload rather than failing the frame. Anything that is
// not a JSON object is malformed; in particular a literal null must not pass
// as an empty payload, which would advance ObservedAt.
func DecodeInboundPayload(data []byte) (InboundPayload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return InboundPayload{}, fmt.Errorf("decode inbound payload: not a JSON object")
	}
	var p InboundPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return InboundPayload{}, fmt.Errorf("decode inbound payload: %w", err)
	}
	if p.Status != nil {
		switch *p.Status {
		case StatusOnline, StatusDegraded, StatusOffline:
		default:
			p.Status = nil
		}
	}
	return p, nil
}

// Merge applies a payload to the state by presence and stamps ObservedAt.
// Absent fields are untouched; ObservedAt always advances to the current
// clock time, even for an empty payload.
func (s SensorState) Merge(p InboundPayload) SensorState {
	if p.Tiltmeter != nil {
		s.Tiltmeter = *p.Tiltmeter
	}
	if p.Piezometer != nil {
		s.Piezometer = *p.Piezometer
	}
	if p.Vibration != nil {
		s.Vibration = *p.Vibration
	}
	if p.Crackmeter != nil {
		s.Crackmeter = *p.Crackmeter
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	s.ObservedAt = clock.Now().UTC()
	return s
}
