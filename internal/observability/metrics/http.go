package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cropguard"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	stageTotal               *prometheus.CounterVec
	detectDuration           *prometheus.HistogramVec
	validatorFailOpenTotal   *prometheus.CounterVec
	assetReleaseFailureTotal *prometheus.CounterVec
	breakerTransitionsTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "stage_attempts_total",
			Help:      "Classifier stage attempts by outcome.",
		},
		[]string{"service", "stage", "outcome"},
	)
	detectDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "Detect request duration by answering stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 12, 20, 30},
		},
		[]string{"service", "stage"},
	)
	validatorFailOpenTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "validator_fail_open_total",
			Help:      "Uploads let through because the plant validator was unavailable.",
		},
		[]string{"service"},
	)
	assetReleaseFailureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "release_failures_total",
			Help:      "Inline image asset releases that failed on scan delete.",
		},
		[]string{"service"},
	)
	breakerTransitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by operation.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		stageTotal,
		detectDuration,
		validatorFailOpenTotal,
		assetReleaseFailureTotal,
		breakerTransitionsTotal,
	)

	return &HTTPServerMetrics{
		registry:                 registry,
		requestTotal:             requestTotal,
		requestDuration:          requestDuration,
		requestInFlight:          requestInFlight,
		stageTotal:               stageTotal,
		detectDuration:           detectDuration,
		validatorFailOpenTotal:   validatorFailOpenTotal,
		assetReleaseFailureTotal: assetReleaseFailureTotal,
		breakerTransitionsTotal:  breakerTransitionsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency. Paths are labelled with the
// chi route pattern when one matched so scan ids do not explode cardinality.
func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routeLabel(r)
		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	switch path := r.URL.Path; {
	case strings.HasPrefix(path, "/v1/scans/"):
		return "/v1/scans/{id}"
	case strings.HasPrefix(path, "/swagger/"):
		return "/swagger/*"
	default:
		return path
	}
}

// RecordBreakerTransition matches resilience.Config.OnStateChange.
func (m *HTTPServerMetrics) RecordBreakerTransition(service, operation, to string) {
	m.breakerTransitionsTotal.WithLabelValues(service, operation, to).Inc()
}

// Detection returns an observer for the detect and scan use cases.
func (m *HTTPServerMetrics) Detection(service string) *DetectionObserver {
	return &DetectionObserver{metrics: m, service: service}
}

type DetectionObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func (o *DetectionObserver) ObserveStage(stage, outcome string) {
	if stage == "" {
		stage = "unknown"
	}
	o.metrics.stageTotal.WithLabelValues(o.service, stage, outcome).Inc()
}

func (o *DetectionObserver) ObserveValidatorFailOpen() {
	o.metrics.validatorFailOpenTotal.WithLabelValues(o.service).Inc()
}

func (o *DetectionObserver) ObserveDetection(stage string, seconds float64) {
	o.metrics.detectDuration.WithLabelValues(o.service, stage).Observe(seconds)
}

func (o *DetectionObserver) ObserveAssetReleaseFailure() {
	o.metrics.assetReleaseFailureTotal.WithLabelValues(o.service).Inc()
}
