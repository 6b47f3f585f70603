package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMiddlewareNormalizesScanPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	h := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/scans/abc-123", nil))

	out := scrape(t, m.Handler())
	want := `cropguard_http_requests_total{method="DELETE",path="/v1/scans/{id}",service="api",status="404"} 1`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %q in:\n%s", want, out)
	}
}

func TestDetectionObserverRecordsStagesAndFailOpen(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	obs := m.Detection("api")
	obs.ObserveStage("groq", "failure")
	obs.ObserveStage("huggingface", "success")
	obs.ObserveValidatorFailOpen()
	obs.ObserveDetection("huggingface", 1.5)
	obs.ObserveAssetReleaseFailure()
	m.RecordBreakerTransition("api", "groq.detect", "open")

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`cropguard_detection_stage_attempts_total{outcome="failure",service="api",stage="groq"} 1`,
		`cropguard_detection_validator_fail_open_total{service="api"} 1`,
		`cropguard_assets_release_failures_total{service="api"} 1`,
		`cropguard_provider_breaker_transitions_total{operation="groq.detect",service="api",to="open"} 1`,
		`cropguard_detection_duration_seconds_count{service="api",stage="huggingface"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestMiddlewareLabelsChiRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return m.Middleware("api", next) })
	r.Get("/v1/crops/validate", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/crops/validate?name=", nil))

	out := scrape(t, m.Handler())
	want := `cropguard_http_requests_total{method="GET",path="/v1/crops/validate",service="api",status="400"} 1`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %q in:\n%s", want, out)
	}
}

func TestWorkerMetricsCountsReleasesByOutcome(t *testing.T) {
	m := NewWorkerMetrics("worker", "cloudinary")

	if outcome := m.TrackRelease()(nil); outcome != ReleaseDeleted {
		t.Fatalf("expected deleted outcome, got %q", outcome)
	}
	invalid := domain.WrapError(domain.ErrInvalidInput, "release asset", errors.New("asset id is required"))
	if outcome := m.TrackRelease()(invalid); outcome != ReleaseRejected {
		t.Fatalf("expected rejected outcome, got %q", outcome)
	}
	if outcome := m.TrackRelease()(errors.New("cloudinary 503")); outcome != ReleaseFailed {
		t.Fatalf("expected failed outcome, got %q", outcome)
	}

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`cropguard_worker_asset_releases_total{backend="cloudinary",outcome="deleted",service="worker"} 1`,
		`cropguard_worker_asset_releases_total{backend="cloudinary",outcome="rejected",service="worker"} 1`,
		`cropguard_worker_asset_releases_total{backend="cloudinary",outcome="failed",service="worker"} 1`,
		`cropguard_worker_asset_releases_in_flight{service="worker"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestReleaseOutcomeTreatsCancellationSeparately(t *testing.T) {
	if got := ReleaseOutcome(fmt.Errorf("delete: %w", context.Canceled)); got != ReleaseCanceled {
		t.Fatalf("expected canceled outcome, got %q", got)
	}
}
