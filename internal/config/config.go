package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Telegram  TelegramConfig
	Admin     AdminConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
}

// TelemetryConfig is the raw logging and OTLP environment.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
	// ExportEnabled is nil when OTEL_ENABLED is unset.
	ExportEnabled *bool
}

type TelegramConfig struct {
	Token         string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	Channel       string
}

type AdminConfig struct {
	TelegramID string
	TokenHash  string
}

type PipelineConfig struct {
	TrialPeriod        time.Duration
	TokenTTL           time.Duration
	TokenSweepInterval time.Duration
	ProviderTimeout    time.Duration
	MediaFetchTimeout  time.Duration
	ScratchDir         string
	FFmpegPath         string
	CaptionLimit       int
	PhotoBatchSize     int
	LinkPattern        string
	ReferralBonusDays  int
	SubscriptionDays   int
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LinkRate      float64
	LinkBurst     int
	LinkLockTTL   time.Duration
}

const (
	BotModePolling = "polling"
	BotModeWebhook = "webhook"
)

const DefaultLinkPattern = `https?://(www\.)?tiktok\.com/\S+|https?://vm\.tiktok\.com/\S+|https?://vt\.tiktok\.com/\S+`

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "teleload"),
		AppVersion:        getenv("SERVICE_VERSION", getenv("APP_VERSION", "0.1.0")),
		Environment:       getenv("DEPLOYMENT_ENV", getenv("ENVIRONMENT", "development")),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		Telemetry:         loadTelemetry(),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "teleload"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "teleload.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Telegram: TelegramConfig{
			Token:         strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			Mode:          normalizeBotMode(getenv("TELEGRAM_BOT_MODE", getenv("BOT_MODE", BotModePolling))),
			WebhookURL:    strings.TrimSpace(getenv("TELEGRAM_WEBHOOK_URL", getenv("WEBHOOK_URL", ""))),
			WebhookSecret: strings.TrimSpace(getenv("TELEGRAM_WEBHOOK_SECRET", "")),
			Channel:       strings.TrimSpace(getenv("TELEGRAM_CHANNEL", "@TeleLoadd")),
		},
		Admin: AdminConfig{
			TelegramID: strings.TrimSpace(getenv("ADMIN_TELEGRAM_ID", "")),
			TokenHash:  strings.TrimSpace(getenv("ADMIN_TOKEN_HASH", "")),
		},
		Pipeline: PipelineConfig{
			TrialPeriod:        time.Duration(getenvInt("TRIAL_HOURS", 24)) * time.Hour,
			TokenTTL:           getenvDuration("TOKEN_TTL", 15*time.Minute),
			TokenSweepInterval: getenvDuration("TOKEN_SWEEP_INTERVAL", 5*time.Minute),
			ProviderTimeout:    getenvDuration("PROVIDER_TIMEOUT", 15*time.Second),
			MediaFetchTimeout:  getenvDuration("MEDIA_FETCH_TIMEOUT", 60*time.Second),
			ScratchDir:         getenv("SCRATCH_DIR", "tmp"),
			FFmpegPath:         strings.TrimSpace(getenv("FFMPEG_PATH", "")),
			CaptionLimit:       getenvInt("CAPTION_LIMIT", 1024),
			PhotoBatchSize:     getenvInt("PHOTO_BATCH_SIZE", 10),
			LinkPattern:        getenv("LINK_PATTERN", DefaultLinkPattern),
			ReferralBonusDays:  getenvInt("REFERRAL_BONUS_DAYS", 1),
			SubscriptionDays:   getenvInt("SUBSCRIPTION_BONUS_DAYS", 7),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", true),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("REDIS_DB", 0),
			LinkRate:      getenvFloat("LINK_RATE", 0.2),
			LinkBurst:     getenvInt("LINK_BURST", 3),
			LinkLockTTL:   getenvDuration("LINK_LOCK_TTL", 2*time.Minute),
		},
	}

	return cfg
}

func loadTelemetry() TelemetryConfig {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	t := TelemetryConfig{
		LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		OTLPEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", ""))),
		OTLPProtocol:  strings.ToLower(strings.TrimSpace(protocol)),
		SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
	if raw := strings.TrimSpace(os.Getenv("OTEL_ENABLED")); raw != "" {
		enabled := getenvBool("OTEL_ENABLED", false)
		t.ExportEnabled = &enabled
	}
	return t
}

func (c Config) IsWebhook() bool {
	return c.Telegram.Mode == BotModeWebhook
}

func normalizeBotMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case BotModeWebhook:
		return BotModeWebhook
	default:
		return BotModePolling
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
