package metrics

import (
	"net/http"
	"time"

	"mediagate/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Registry struct {
	reg *prometheus.Registry

	Requests         *prometheus.CounterVec
	RateLimited      prometheus.Counter
	ProviderAttempts *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	DispatchFailures prometheus.Counter
	JanitorEvictions prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediagate_requests_total",
			Help: "Total requests received by route",
		}, []string{"route"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagate_rate_limited_total",
			Help: "Total rate limited responses",
		}),
		ProviderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediagate_provider_attempts_total",
			Help: "Fallback provider attempts by outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediagate_provider_latency_seconds",
			Help:    "Fallback provider call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16},
		}, []string{"provider"}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagate_dispatch_failures_total",
			Help: "Dispatches where every provider failed",
		}),
		JanitorEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediagate_janitor_evictions_total",
			Help: "Idle rate limit entries evicted from the memory store",
		}),
	}
	r.reg.MustRegister(
		r.Requests,
		r.RateLimited,
		r.ProviderAttempts,
		r.ProviderLatency,
		r.DispatchFailures,
		r.JanitorEvictions,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ProviderObserver logs and counts dispatcher outcomes.
type ProviderObserver struct {
	m *Registry
}

func NewProviderObserver(m *Registry) *ProviderObserver {
	return &ProviderObserver{m: m}
}

func (o *ProviderObserver) ProviderFailed(p service.Provider, attempt int, err *service.ProviderError, elapsed time.Duration) {
	log.Warn().
		Str("provider", p.Name).
		Int("attempt", attempt).
		Int("status", err.Status).
		Err(err.Err).
		Dur("elapsed", elapsed).
		Msg("provider failed")
	if o.m == nil {
		return
	}
	o.m.ProviderAttempts.WithLabelValues(p.Name, "failure").Inc()
	o.m.ProviderLatency.WithLabelValues(p.Name).Observe(elapsed.Seconds())
}

func (o *ProviderObserver) ProviderSucceeded(p service.Provider, attempt int, elapsed time.Duration) {
	log.Debug().
		Str("provider", p.Name).
		Int("attempt", attempt).
		Dur("elapsed", elapsed).
		Msg("provider succeeded")
	if o.m == nil {
		return
	}
	o.m.ProviderAttempts.WithLabelValues(p.Name, "success").Inc()
	o.m.ProviderLatency.WithLabelValues(p.Name).Observe(elapsed.Seconds())
}
