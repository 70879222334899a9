package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes OTLP-exported business instruments.
type Metrics struct {
	linksReceived   metric.Int64Counter
	downloads       metric.Int64Counter
	audioDelivered  metric.Int64Counter
	rateLimitDenied metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}
	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the business instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "teleload"
	}
	meter := provider.Meter(name)

	linksReceived, err := meter.Int64Counter("teleload_links_received_total")
	if err != nil {
		return nil, err
	}
	downloads, err := meter.Int64Counter("teleload_downloads_recorded_total")
	if err != nil {
		return nil, err
	}
	audioDelivered, err := meter.Int64Counter("teleload_audio_delivered_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("teleload_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		linksReceived:   linksReceived,
		downloads:       downloads,
		audioDelivered:  audioDelivered,
		rateLimitDenied: rateLimitDenied,
	}, nil
}

// NewNop returns instruments backed by the noop provider.
func NewNop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordLinkReceived counts a link message by entitlement state.
func (m *Metrics) RecordLinkReceived(ctx context.Context, entitlement string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("entitlement", strings.TrimSpace(entitlement)))
	m.linksReceived.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDownload counts a recorded download by media kind and provider.
func (m *Metrics) RecordDownload(ctx context.Context, mediaKind, provider string, watermarked bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("media_kind", strings.TrimSpace(mediaKind)),
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.Bool("watermarked", watermarked),
	)
	m.downloads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAudioDelivered(ctx context.Context) {
	if m == nil {
		return
	}
	m.audioDelivered.Add(ctx, 1)
}

// RecordRateLimitDenied counts a rejected link submission.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// User ids, chat ids and links never become metric labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"entitlement": {},
	"media_kind":  {},
	"provider":    {},
	"watermarked": {},
	"reason":      {},
	"outcome":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
