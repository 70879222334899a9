// Package resolver turns a submitted link into downloadable media by walking
// an ordered chain of extraction providers.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/teleload/internal/config"
	obsmetrics "github.com/smallbiznis/teleload/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const DefaultProviderTimeout = 15 * time.Second

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	Providers *config.ProviderConfigHolder
}

type Resolver struct {
	log     *zap.Logger
	timeout time.Duration
	chain   func() ([]Provider, bool)
}

func New(p Params) *Resolver {
	log := p.Log.Named("resolver")
	client := &http.Client{}
	holder := p.Providers

	return &Resolver{
		log:     log,
		timeout: p.Config.Pipeline.ProviderTimeout,
		chain: func() ([]Provider, bool) {
			cfg := holder.Get()
			providers, err := Build(cfg.EnabledProviders(), client)
			if err != nil {
				log.Warn("skipping providers", zap.Error(err))
			}
			return providers, cfg.PreferVideo
		},
	}
}

// NewStatic builds a resolver over a fixed chain.
func NewStatic(log *zap.Logger, providers []Provider, preferVideo bool, timeout time.Duration) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		log:     log.Named("resolver"),
		timeout: timeout,
		chain: func() ([]Provider, bool) {
			return providers, preferVideo
		},
	}
}

// Resolve tries each provider in order and stops at the first non-empty answer.
// It never returns an error: provider failures advance to the next provider.
func (r *Resolver) Resolve(ctx context.Context, sourceURL string) Resolution {
	ctx, span := otel.Tracer("teleload/resolver").Start(ctx, "resolver.Resolve")
	defer span.End()

	start := time.Now()
	providers, preferVideo := r.chain()
	metrics := obsmetrics.Pipeline()

	for _, provider := range providers {
		name := slug.Make(provider.Name())
		payload, err := r.fetch(ctx, provider, sourceURL)
		if err != nil {
			metrics.IncProviderAttempt(name, obsmetrics.ProviderOutcomeError)
			r.log.Warn("provider failed, trying next",
				zap.String("provider", name),
				zap.Error(err),
			)
			continue
		}
		if payload.Empty() {
			metrics.IncProviderAttempt(name, obsmetrics.ProviderOutcomeEmpty)
			r.log.Debug("provider returned nothing", zap.String("provider", name))
			continue
		}

		metrics.IncProviderAttempt(name, obsmetrics.ProviderOutcomeSuccess)
		media := normalize(payload, preferVideo)
		metrics.ObserveResolveDuration(time.Since(start))
		span.SetAttributes(attribute.String("resolver.provider", name))
		return Resolution{Media: media, Provider: name}
	}

	metrics.ObserveResolveDuration(time.Since(start))
	return Resolution{Media: NotFound{}}
}

func (r *Resolver) fetch(ctx context.Context, provider Provider, sourceURL string) (payload Payload, err error) {
	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider panic: %v", rec)
		}
	}()
	return provider.Fetch(ctx, sourceURL)
}

func normalize(p Payload, preferVideo bool) Media {
	title := strings.TrimSpace(p.Title)
	video := strings.TrimSpace(p.VideoURL)
	hasVideo := video != ""
	hasPhotos := len(p.Photos) > 0

	if hasVideo && (preferVideo || !hasPhotos) {
		return Video{URL: video, Title: title}
	}
	if hasPhotos {
		items := make([]Photo, len(p.Photos))
		copy(items, p.Photos)
		return PhotoSet{Items: items, Title: title}
	}
	return NotFound{}
}
