// Package metrics exposes Prometheus collectors for generation, prediction,
// image generation and HTTP traffic. Collectors live on a private registry
// so tests and multiple servers in one process never collide.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Image generation outcomes.
const (
	ImageGenerated = "generated"
	ImageFallback  = "fallback"
	ImageDisabled  = "disabled"
)

// Metrics holds every mochi collector. A nil *Metrics is safe to use; all
// methods are no-ops on nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	recordsGenerated *prometheus.CounterVec
	generationErrors prometheus.Counter
	predictions      *prometheus.CounterVec
	imageOutcomes    *prometheus.CounterVec
	imageDuration    prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers the collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mochi",
			Name:      "records_generated_total",
			Help:      "Synthetic records generated, by activity.",
		}, []string{"activity"}),
		generationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mochi",
			Name:      "generation_errors_total",
			Help:      "Record generation attempts that failed with a configuration error.",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mochi",
			Name:      "predictions_total",
			Help:      "Activity predictions served, by predicted activity.",
		}, []string{"activity"}),
		imageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mochi",
			Name:      "image_requests_total",
			Help:      "Image generation requests, by outcome (generated, fallback, disabled).",
		}, []string{"outcome"}),
		imageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mochi",
			Name:      "image_generation_duration_seconds",
			Help:      "Histogram of text-to-image request durations.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mochi",
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mochi",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recordsGenerated,
		m.generationErrors,
		m.predictions,
		m.imageOutcomes,
		m.imageDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordGenerated(activity string) {
	if m == nil {
		return
	}
	m.recordsGenerated.WithLabelValues(activity).Inc()
}

func (m *Metrics) GenerationError() {
	if m == nil {
		return
	}
	m.generationErrors.Inc()
}

func (m *Metrics) Prediction(activity string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(activity).Inc()
}

// ImageRequest counts one image request. duration is only observed for
// requests that reached the provider.
func (m *Metrics) ImageRequest(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.imageOutcomes.WithLabelValues(outcome).Inc()
	if outcome != ImageDisabled {
		m.imageDuration.Observe(duration.Seconds())
	}
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}
