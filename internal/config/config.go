package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/hurricane-risk-service/internal/ingest"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

// Default upstream endpoints.
const (
	defaultIndexURL    = "https://www.nhc.noaa.gov/CurrentStorms.json"
	defaultNowCoastURL = "https://mapservices.weather.noaa.gov/tropical/rest/services/tropical/NHC_tropical_weather/MapServer"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	Offline         bool

	NHCIndexURL string
	NowCoastURL string
	StormID     string
	ManualURLs  ingest.ManualURLs

	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string

	BatchConcurrency int
	Weights          risk.Weights
}

// GetLogLevel implements observability.LoggerConfig.
func (c *Config) GetLogLevel() string { return c.LogLevel }

// GetLogFormat implements observability.LoggerConfig.
func (c *Config) GetLogFormat() string { return c.LogFormat }

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	weights, err := parseWeights()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RefreshInterval: refreshInterval,
		FetchTimeout:    fetchTimeout,
		Offline:         envBool("OFFLINE", false),

		NHCIndexURL: envOrDefault("NHC_INDEX_URL", defaultIndexURL),
		NowCoastURL: envOrDefault("NOWCOAST_URL", defaultNowCoastURL),
		StormID:     os.Getenv("STORM_ID"),
		ManualURLs: ingest.ManualURLs{
			Cone:     os.Getenv("MIRROR_CONE_URL"),
			Track:    os.Getenv("MIRROR_TRACK_URL"),
			Points:   os.Getenv("MIRROR_POINTS_URL"),
			Wind:     os.Getenv("MIRROR_WIND_URL"),
			Warnings: os.Getenv("MIRROR_WARNINGS_URL"),
		},

		KafkaEnabled:    envBool("KAFKA_ENABLED", false),
		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "hurricane-risk-alerts"),

		BatchConcurrency: envInt("BATCH_CONCURRENCY", 8),
		Weights:          weights,
	}

	if cfg.RefreshInterval < time.Minute {
		return nil, errors.New("REFRESH_INTERVAL must be at least 1m")
	}
	if cfg.BatchConcurrency <= 0 {
		return nil, errors.New("BATCH_CONCURRENCY must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_ALERT_TOPIC is empty")
	}

	return cfg, nil
}

// parseWeights reads the six risk weights from RISK_WEIGHT_* variables,
// keeping defaults for any unset.
func parseWeights() (risk.Weights, error) {
	w := risk.DefaultWeights()
	for _, f := range []struct {
		env string
		dst *float64
	}{
		{"RISK_WEIGHT_WARNINGS", &w.Warnings},
		{"RISK_WEIGHT_SURGE", &w.Surge},
		{"RISK_WEIGHT_ARRIVAL", &w.Arrival},
		{"RISK_WEIGHT_DURATION", &w.Duration},
		{"RISK_WEIGHT_INTENSITY", &w.Intensity},
		{"RISK_WEIGHT_COASTAL", &w.Coastal},
	} {
		s := os.Getenv(f.env)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return risk.Weights{}, fmt.Errorf("invalid %s: %q", f.env, s)
		}
		*f.dst = v
	}
	return w, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
