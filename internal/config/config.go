package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
// Each ingestion transport and the Kafka export are independently optional:
// a transport is active only when its minimal required variable is set.
type Config struct {
	// MQTT channel subscriber. Active when MQTTHost is set.
	MQTTHost     string
	MQTTPort     int
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string

	// Serial line reader. Active when SerialPort is set.
	SerialPort string
	SerialBaud int

	// Kafka state export. Active when KafkaBrokers is non-empty.
	KafkaBrokers     []string
	KafkaExportTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// External telemetry providers for the auto risk query.
	WeatherBaseURL   string
	QuakeBaseURL     string
	TelemetryTimeout time.Duration
	QuakeCacheTTL    time.Duration
	QuakeCacheSize   int

	// Default site coordinates when a risk query omits lat/lon.
	SiteLat float64
	SiteLon float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	mqttPort, err := intEnv("MQTT_PORT", 1883)
	if err != nil {
		return nil, err
	}
	serialBaud, err := intEnv("SERIAL_BAUD", 115200)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	telemetryTimeout, err := durationEnv("TELEMETRY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	quakeCacheTTL, err := durationEnv("QUAKE_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	quakeCacheSize, err := intEnv("QUAKE_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	siteLat, err := floatEnv("SITE_LAT", 0)
	if err != nil {
		return nil, err
	}
	siteLon, err := floatEnv("SITE_LON", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MQTTHost:     os.Getenv("MQTT_HOST"),
		MQTTPort:     mqttPort,
		MQTTUsername: os.Getenv("MQTT_USERNAME"),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:    envOrDefault("MQTT_TOPIC", "slope/sensors"),

		SerialPort: os.Getenv("SERIAL_PORT"),
		SerialBaud: serialBaud,

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaExportTopic: envOrDefault("KAFKA_EXPORT_TOPIC", "slope-state-updates"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WeatherBaseURL:   envOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com"),
		QuakeBaseURL:     envOrDefault("QUAKE_BASE_URL", "https://earthquake.usgs.gov"),
		TelemetryTimeout: telemetryTimeout,
		QuakeCacheTTL:    quakeCacheTTL,
		QuakeCacheSize:   quakeCacheSize,

		SiteLat: siteLat,
		SiteLon: siteLon,
	}

	if cfg.MQTTPort < 1 || cfg.MQTTPort > 65535 {
		return nil, fmt.Errorf("MQTT_PORT out of range: %d", cfg.MQTTPort)
	}
	if cfg.SerialBaud <= 0 {
		return nil, fmt.Errorf("SERIAL_BAUD must be positive: %d", cfg.SerialBaud)
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.TelemetryTimeout <= 0 {
		return nil, fmt.Errorf("TELEMETRY_TIMEOUT must be positive")
	}
	if cfg.QuakeCacheSize <= 0 {
		return nil, fmt.Errorf("QUAKE_CACHE_SIZE must be positive: %d", cfg.QuakeCacheSize)
	}
	if cfg.MQTTEnabled() && cfg.MQTTTopic == "" {
		return nil, fmt.Errorf("MQTT_TOPIC is required when MQTT_HOST is set")
	}
	if cfg.KafkaEnabled() && cfg.KafkaExportTopic == "" {
		return nil, fmt.Errorf("KAFKA_EXPORT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// MQTTEnabled reports whether the MQTT channel subscriber should start.
func (c *Config) MQTTEnabled() bool { return c.MQTTHost != "" }

// SerialEnabled reports whether the serial line reader should start.
func (c *Config) SerialEnabled() bool { return c.SerialPort != "" }

// KafkaEnabled reports whether accepted snapshots are exported to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return n, nil
}

func floatEnv(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return d, nil
}

// parseBrokers splits a comma-separated broker list, trimming blanks.
func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
