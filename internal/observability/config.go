package observability

import (
	"strings"

	"github.com/smallbiznis/teleload/internal/config"
)

const DefaultServiceName = "teleload"

// Config is the resolved telemetry setup shared by the logger, tracer and meter.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	Export        bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

// LoadConfig resolves the telemetry environment. Export follows OTEL_ENABLED
// when set and otherwise turns on only when an endpoint is configured.
func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry

	out := Config{
		ServiceName:   strings.TrimSpace(cfg.AppName),
		Environment:   strings.TrimSpace(cfg.Environment),
		Version:       strings.TrimSpace(cfg.AppVersion),
		LogLevel:      orDefault(t.LogLevel, "info"),
		LogFormat:     orDefault(t.LogFormat, "json"),
		Endpoint:      strings.TrimSpace(t.OTLPEndpoint),
		Protocol:      orDefault(t.OTLPProtocol, "grpc"),
		SamplingRatio: min(max(t.SamplingRatio, 0), 1),
	}
	if out.ServiceName == "" {
		out.ServiceName = DefaultServiceName
	}
	out.Export = out.Endpoint != ""
	if t.ExportEnabled != nil {
		out.Export = *t.ExportEnabled
	}
	return out
}

// Debug is on for LOG_LEVEL=debug and for development environments.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func orDefault(value, def string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return def
	}
	return value
}
