package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// Release outcomes reported by the asset release worker.
const (
	ReleaseDeleted  = "deleted"
	ReleaseRejected = "rejected"
	ReleaseFailed   = "failed"
	ReleaseCanceled = "canceled"
)

// WorkerMetrics covers deferred image deletions handled by cmd/worker.
type WorkerMetrics struct {
	registry *prometheus.Registry
	backend  string

	releases *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewWorkerMetrics labels every series with the service and the asset
// backend the worker deletes from.
func NewWorkerMetrics(service, backend string) *WorkerMetrics {
	constLabels := prometheus.Labels{"service": service}
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		backend:  backend,
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "asset_releases_total",
			Help:        "Deferred scan image deletions by backend and outcome.",
			ConstLabels: constLabels,
		}, []string{"backend", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "asset_release_duration_seconds",
			Help:        "Time spent deleting one scan image, retries included.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: constLabels,
		}, []string{"backend", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "asset_releases_in_flight",
			Help:        "Scan image deletions currently running.",
			ConstLabels: constLabels,
		}),
	}
	m.registry.MustRegister(m.releases, m.latency, m.inFlight)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackRelease marks a deletion as started; the returned func records its
// outcome and must be called exactly once.
func (m *WorkerMetrics) TrackRelease() func(err error) string {
	m.inFlight.Inc()
	start := time.Now()
	return func(err error) string {
		m.inFlight.Dec()
		outcome := ReleaseOutcome(err)
		m.releases.WithLabelValues(m.backend, outcome).Inc()
		m.latency.WithLabelValues(m.backend, outcome).Observe(time.Since(start).Seconds())
		return outcome
	}
}

// ReleaseOutcome buckets a release error into a metric label.
func ReleaseOutcome(err error) string {
	switch {
	case err == nil:
		return ReleaseDeleted
	case errors.Is(err, context.Canceled):
		return ReleaseCanceled
	case domain.IsKind(err, domain.ErrInvalidInput):
		return ReleaseRejected
	default:
		return ReleaseFailed
	}
}
