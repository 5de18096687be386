package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tunein/go-logging/v7/pkg/rootcollector"
)

// Metrics records request and prediction outcomes
type Metrics interface {
	ObserveRequest(endpoint string, status int, duration time.Duration)
	ObservePrediction(class string)
}

// PrometheusMetrics exports metrics on a dedicated registry
type PrometheusMetrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	predictions *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new registry with request, latency and
// prediction collectors plus the Go runtime collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "activity_spectra",
			Name:      "requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "activity_spectra",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"endpoint"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "activity_spectra",
			Name:      "predictions_total",
			Help:      "Successful predictions by class.",
		}, []string{"class"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.predictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *PrometheusMetrics) ObserveRequest(endpoint string, status int, duration time.Duration) {
	m.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObservePrediction(class string) {
	m.predictions.WithLabelValues(class).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// CollectorMetrics forwards metrics to the tunein root collector. The root
// logger must be configured before the first metric is sent.
type CollectorMetrics struct {
	tags []string
}

// NewCollectorMetrics creates collector metrics with tags added to every metric
func NewCollectorMetrics(tags ...string) *CollectorMetrics {
	return &CollectorMetrics{tags: tags}
}

func (c *CollectorMetrics) ObserveRequest(endpoint string, status int, duration time.Duration) {
	tags := append(append([]string{}, c.tags...), "endpoint:"+endpoint, "status:"+strconv.Itoa(status))
	rootcollector.Metric("activity.spectra.request.duration.microseconds", duration.Microseconds(), tags)
}

func (c *CollectorMetrics) ObservePrediction(class string) {
	tags := append(append([]string{}, c.tags...), "class:"+class)
	rootcollector.Metric("activity.spectra.prediction.count", 1, tags)
}

// MultiMetrics fans out to several backends
type MultiMetrics []Metrics

func (mm MultiMetrics) ObserveRequest(endpoint string, status int, duration time.Duration) {
	for _, m := range mm {
		m.ObserveRequest(endpoint, status, duration)
	}
}

func (mm MultiMetrics) ObservePrediction(class string) {
	for _, m := range mm {
		m.ObservePrediction(class)
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, int, time.Duration) {}
func (noopMetrics) ObservePrediction(string)                  {}
