package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "USD", cfg.Analytics.DefaultCurrency)
	assert.Equal(t, "en", cfg.Analytics.DefaultLocale)
	assert.Equal(t, "@every 1h", cfg.Rollup.Spec)
	assert.True(t, cfg.Rollup.Enabled)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("DEFAULT_CURRENCY", "eur")
	t.Setenv("ROLLUP_ENABLED", "false")
	t.Setenv("INGEST_RATE_LIMIT", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "EUR", cfg.Analytics.DefaultCurrency)
	assert.False(t, cfg.Rollup.Enabled)
	assert.Equal(t, 2.5, cfg.Ingestion.RateLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("SERVER_WRITE_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
}

func TestNewLogger(t *testing.T) {
	log := LogConfig{Level: "debug", Format: "json"}.NewLogger()
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = LogConfig{Level: "loud", Format: "text"}.NewLogger()
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}
