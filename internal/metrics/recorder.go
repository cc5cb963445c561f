package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes service metrics on a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	fetchTotal     *prometheus.CounterVec
	fitDuration    *prometheus.HistogramVec
	intentTotal    *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewRecorder creates a Recorder with Go and process collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_provider_fetch_total",
			Help: "Historical fetches by provider and result.",
		}, []string{"provider", "result"}),
		fitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_fit_duration_seconds",
			Help:    "Duration of forecast model fits.",
			Buckets: prometheus.DefBuckets,
		}, []string{"variable", "result"}),
		intentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_intent_total",
			Help: "Routed chat questions by intent.",
		}, []string{"intent"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live user sessions.",
		}),
	}
	registry.MustRegister(r.fetchTotal, r.fitDuration, r.intentTotal, r.activeSessions)
	return r
}

func (r *Recorder) RecordFetch(provider string, err error) {
	r.fetchTotal.WithLabelValues(provider, result(err)).Inc()
}

func (r *Recorder) RecordFit(variable string, d time.Duration, err error) {
	r.fitDuration.WithLabelValues(variable, result(err)).Observe(d.Seconds())
}

func (r *Recorder) RecordIntent(intent string) {
	r.intentTotal.WithLabelValues(intent).Inc()
}

func (r *Recorder) SetActiveSessions(n int) {
	r.activeSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
