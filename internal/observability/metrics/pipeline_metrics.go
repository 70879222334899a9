package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ProviderOutcomeSuccess = "success"
	ProviderOutcomeEmpty   = "empty"
	ProviderOutcomeError   = "error"
)

// PipelineMetrics tracks the download pipeline: provider health, link and
// audio request outcomes, and the token store size.
type PipelineMetrics struct {
	providerAttempts *prometheus.CounterVec
	resolveDuration  prometheus.Histogram
	links            *prometheus.CounterVec
	audio            *prometheus.CounterVec
	tokensSwept      prometheus.Counter
	tokensLive       prometheus.Gauge
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	m := &PipelineMetrics{
		providerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "resolver_provider_attempts_total",
			Help:        "Upstream provider calls by provider and outcome.",
			ConstLabels: labels,
		}, []string{"provider", "outcome"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "resolver_duration_seconds",
			Help:        "Time to walk the provider chain for one link.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30, 45, 60},
			ConstLabels: labels,
		}),
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pipeline_links_total",
			Help:        "Link submissions by terminal outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		audio: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pipeline_audio_requests_total",
			Help:        "Audio extraction requests by terminal outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		tokensSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "token_store_swept_total",
			Help:        "Expired audio tokens removed by the sweeper.",
			ConstLabels: labels,
		}),
		tokensLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "token_store_entries",
			Help:        "Audio tokens currently held in memory.",
			ConstLabels: labels,
		}),
	}

	registerer.MustRegister(
		m.providerAttempts,
		m.resolveDuration,
		m.links,
		m.audio,
		m.tokensSwept,
		m.tokensLive,
	)
	return m
}

func (m *PipelineMetrics) IncProviderAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *PipelineMetrics) ObserveResolveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

// IncLink counts a finished link submission; outcome is "success" or an error kind.
func (m *PipelineMetrics) IncLink(outcome string) {
	if m == nil {
		return
	}
	m.links.WithLabelValues(outcome).Inc()
}

// IncAudio counts a finished audio request; outcome is "success" or an error kind.
func (m *PipelineMetrics) IncAudio(outcome string) {
	if m == nil {
		return
	}
	m.audio.WithLabelValues(outcome).Inc()
}

// ObserveTokenSweep records one sweep pass.
func (m *PipelineMetrics) ObserveTokenSweep(removed, remaining int) {
	if m == nil {
		return
	}
	if removed > 0 {
		m.tokensSwept.Add(float64(removed))
	}
	m.tokensLive.Set(float64(remaining))
}
