// Package domain models the slope-stability sensor array and the risk
// fusion that combines it with environmental telemetry.
//
// # Sensor channels
//
// Four instruments are installed on the monitored slope:
//
//	tiltmeter   — surface inclination, degrees ×10
//	piezometer  — pore water pressure, kPa
//	vibration   — ground motion, mm/s peak particle velocity
//	crackmeter  — crack displacement, mm
//
// Readings are kept in sensor-native units; the fusion weights below absorb
// the unit differences. When no transport has delivered a frame yet, the
// state holds the calibration baselines 15 / 12 / 8 / 18.
//
// # Wire format
//
// Both ingestion transports carry the same frame: one UTF-8 JSON object per
// MQTT message or serial line, with any subset of the fields
//
//	{"tiltmeter": 17.2, "piezometer": 13.1, "vibration": 9.4,
//	 "crackmeter": 21.0, "status": "online"}
//
// A present field overwrites the stored reading; an absent field leaves it
// untouched (merge-by-presence). Unknown fields are ignored so firmware can
// add channels without breaking older deployments. Frames that are not a
// JSON object are dropped by the ingestion workers.
//
// Accepted status values are "online", "degraded", and "offline". Anything
// else is treated as absent rather than failing the whole frame, because
// field sensors have shipped misspelled status strings before.
//
// # Risk fusion
//
// Fuse combines rainfall, wind, seismicity, and the local sensor array into
// a 0–100 score with fixed weights:
//
//	rain      = min(100, rain24h × 4)            24h accumulation, mm
//	rateBoost = min(30, precipRate × 6)          current rate, mm/h
//	wind      = min(30, windSpeed × 1.5)         m/s
//	seismic   = min(100, maxMag × 15 + min(20, count24h × 1.5))
//	local     = min(100, crack/25×60 + vib/12×20 + piezo/20×10 + tilt/25×10)
//
//	score = clamp(0.4×(rain+rateBoost) + 0.25×seismic + 0.15×wind + 0.20×local)
//
// Levels: score ≥ 70 is HIGH, ≥ 40 is MEDIUM, otherwise LOW. Negative and
// non-finite inputs contribute zero; the function is total over its inputs.
package domain
