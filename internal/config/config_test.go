package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so host environment and .env
// leftovers cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT",
		"REFRESH_INTERVAL", "FETCH_TIMEOUT", "OFFLINE",
		"NHC_INDEX_URL", "NOWCOAST_URL", "STORM_ID",
		"MIRROR_CONE_URL", "MIRROR_TRACK_URL", "MIRROR_POINTS_URL",
		"MIRROR_WIND_URL", "MIRROR_WARNINGS_URL",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_ALERT_TOPIC",
		"BATCH_CONCURRENCY",
		"RISK_WEIGHT_WARNINGS", "RISK_WEIGHT_SURGE", "RISK_WEIGHT_ARRIVAL",
		"RISK_WEIGHT_DURATION", "RISK_WEIGHT_INTENSITY", "RISK_WEIGHT_COASTAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.False(t, cfg.Offline)
	assert.Equal(t, defaultIndexURL, cfg.NHCIndexURL)
	assert.Equal(t, defaultNowCoastURL, cfg.NowCoastURL)
	assert.Empty(t, cfg.StormID)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "hurricane-risk-alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, 8, cfg.BatchConcurrency)
	assert.Equal(t, 1.5, cfg.Weights.Surge)
	assert.Equal(t, 1.0, cfg.Weights.Warnings)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REFRESH_INTERVAL", "2m")
	t.Setenv("OFFLINE", "true")
	t.Setenv("STORM_ID", "AL172025")
	t.Setenv("MIRROR_WIND_URL", "https://mirror.example/wind.json")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval)
	assert.True(t, cfg.Offline)
	assert.Equal(t, "AL172025", cfg.StormID)
	assert.Equal(t, "https://mirror.example/wind.json", cfg.ManualURLs.Wind)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers, "whitespace trimmed")
}

func TestLoad_RefreshIntervalValidation(t *testing.T) {
	clearEnv(t)

	t.Setenv("REFRESH_INTERVAL", "30s")
	_, err := Load()
	assert.ErrorContains(t, err, "REFRESH_INTERVAL must be at least 1m")

	t.Setenv("REFRESH_INTERVAL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid REFRESH_INTERVAL")
}

func TestLoad_BatchConcurrencyValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("BATCH_CONCURRENCY", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "BATCH_CONCURRENCY must be positive")
}

func TestLoad_KafkaValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")

	_, err := Load()
	assert.ErrorContains(t, err, "KAFKA_BROKERS is empty")
}

func TestLoad_WeightOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RISK_WEIGHT_SURGE", "2.5")
	t.Setenv("RISK_WEIGHT_COASTAL", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Weights.Surge)
	assert.Zero(t, cfg.Weights.Coastal)
	assert.Equal(t, 1.0, cfg.Weights.Arrival, "unset weights keep defaults")
}

func TestLoad_WeightValidation(t *testing.T) {
	clearEnv(t)

	t.Setenv("RISK_WEIGHT_ARRIVAL", "-1")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid RISK_WEIGHT_ARRIVAL")

	t.Setenv("RISK_WEIGHT_ARRIVAL", "heavy")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid RISK_WEIGHT_ARRIVAL")
}

func TestEnvBool(t *testing.T) {
	t.Setenv("FLAG", "1")
	assert.True(t, envBool("FLAG", false))
	t.Setenv("FLAG", "true")
	assert.True(t, envBool("FLAG", false))
	t.Setenv("FLAG", "no")
	assert.False(t, envBool("FLAG", true))
	t.Setenv("FLAG", "")
	assert.True(t, envBool("FLAG", true), "unset keeps the default")
}
