package domain

import (
	"math"
	"time"
)

// WeatherSummary is the current-conditions slice of external weather telemetry.
type WeatherSummary struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	WindSpeedMs  float64 `json:"wind_speed_ms"`
	PrecipRateMm float64 `json:"precip_rate_mm"`
}

// SeismicSummary condenses recent regional seismicity.
type SeismicSummary struct {
	StrongestMagnitude float64 `json:"strongest_magnitude"`
	CountLast24h       int     `json:"count_last_24h"`
}

// RiskLevel is the categorical severity derived from the fused score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskAssessment is the fused risk output. It is derived on demand and never
// persisted; Factors surfaces every intermediate term for explainability.
type RiskAssessment struct {
	Score       float64            `json:"score"`
	Level       RiskLevel          `json:"level"`
	Factors     map[string]float64 `json:"factors"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Fuse combines external weather and seismic telemetry with the local sensor
// state into a bounded risk score. Deterministic and side-effect free; the
// weights are documented in the package comment. Negative and non-finite
// inputs contribute zero, so the function never panics or rejects input.
func Fuse(weather WeatherSummary, rain24hMm float64, seismic SeismicSummary, local SensorState) RiskAssessment {
	rainFactor := math.Min(100, nonNegative(rain24hMm)*4)
	rateBoost := math.Min(30, nonNegative(weather.PrecipRateMm)*6)
	windFactor := math.Min(30, nonNegative(weather.WindSpeedMs)*1.5)

	seismicFactor := math.Min(100,
		nonNegative(seismic.StrongestMagnitude)*15+
			math.Min(20, nonNegative(float64(seismic.CountLast24h))*1.5))

	localFactor := math.Min(100,
		nonNegative(local.Crackmeter)/25*60+
			nonNegative(local.Vibration)/12*20+
			nonNegative(local.Piezometer)/20*10+
			nonNegative(local.Tiltmeter)/25*10)

	score := 0.4*(rainFactor+rateBoost) +
		0.25*seismicFactor +
		0.15*windFactor +
		0.20*localFactor
	score = math.Min(100, math.Max(0, score))

	return RiskAssessment{
		Score: score,
		Level: levelFor(score),
		Factors: map[string]float64{
			"rain":       rainFactor,
			"rate_boost": rateBoost,
			"wind":       windFactor,
			"seismic":    seismicFactor,
			"local":      localFactor,
		},
		GeneratedAt: clock.Now().UTC(),
	}
}

// levelFor maps a score to its severity band. Boundaries are inclusive at
// 40 and 70.
func levelFor(score float64) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// nonNegative clamps negative and non-finite values to zero.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
