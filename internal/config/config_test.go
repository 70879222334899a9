package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTelemetryFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_ENABLED", "")

	tel := loadTelemetry()
	assert.Equal(t, "debug", tel.LogLevel)
	assert.Equal(t, "collector:4317", tel.OTLPEndpoint)
	assert.Equal(t, "http", tel.OTLPProtocol)
	assert.Nil(t, tel.ExportEnabled)

	t.Setenv("OTEL_ENABLED", "off")
	tel = loadTelemetry()
	require.NotNil(t, tel.ExportEnabled)
	assert.False(t, *tel.ExportEnabled)
}

func TestLoadReadsWebhookSettings(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_MODE", "WEBHOOK")
	t.Setenv("TELEGRAM_WEBHOOK_URL", "")
	t.Setenv("WEBHOOK_URL", "https://bot.example")
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", " s3cret ")

	cfg := Load()
	assert.True(t, cfg.IsWebhook())
	assert.Equal(t, "https://bot.example", cfg.Telegram.WebhookURL)
	assert.Equal(t, "s3cret", cfg.Telegram.WebhookSecret)
}
