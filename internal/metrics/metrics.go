// Package metrics exposes Prometheus instrumentation for the recipe API.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recipe"

// Label resolution outcomes.
const (
	OutcomeCreated = "created"
	OutcomeReused  = "reused"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	labels       *prometheus.CounterVec
	images       *prometheus.CounterVec

	gcDeleted  prometheus.Counter
	gcBytes    prometheus.Counter
	gcDuration prometheus.Histogram
	gcLastRun  prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		labels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_resolved_total",
			Help:      "Tags and ingredients resolved from recipe payloads, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_uploads_total",
			Help:      "Recipe image uploads by result.",
		}, []string{"result"}),
		gcDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "images_deleted_total",
			Help:      "Orphan images removed from the image store.",
		}),
		gcBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "bytes_freed_total",
			Help:      "Bytes freed by orphan image collection.",
		}),
		gcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "run_duration_seconds",
			Help:      "Duration of orphan image collection runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		gcLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed collection run.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.labels,
		m.images,
		m.gcDeleted,
		m.gcBytes,
		m.gcDuration,
		m.gcLastRun,
	)
	return m
}

// Registry returns the underlying registry.
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
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// LabelResolved records a get-or-create outcome for kind.
func (m *Metrics) LabelResolved(kind string, created bool) {
	if m == nil {
		return
	}
	outcome := OutcomeReused
	if created {
		outcome = OutcomeCreated
	}
	m.labels.WithLabelValues(kind, outcome).Inc()
}

// ImageUploaded records an upload attempt.
func (m *Metrics) ImageUploaded(ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "stored"
	}
	m.images.WithLabelValues(result).Inc()
}

// RecordGCRun records a completed orphan image collection run.
func (m *Metrics) RecordGCRun(elapsed time.Duration, deleted int, bytesFreed int64) {
	if m == nil {
		return
	}
	m.gcDeleted.Add(float64(deleted))
	m.gcBytes.Add(float64(bytesFreed))
	m.gcDuration.Observe(elapsed.Seconds())
	m.gcLastRun.SetToCurrentTime()
}
