package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		category string
	}{
		{"validation", domain.WrapError(domain.ErrInvalidInput, "detect", errors.New("image is required")), http.StatusBadRequest, categoryValidation},
		{"crop mismatch", domain.WrapError(domain.ErrInvalidInput, "detect", &domain.CropMismatchError{}), http.StatusUnprocessableEntity, categoryCropMismatch},
		{"not a plant", domain.WrapError(domain.ErrInvalidInput, "detect", &domain.NotPlantError{}), http.StatusUnprocessableEntity, categoryNotPlant},
		{"unauthorized", domain.WrapError(domain.ErrUnauthorized, "detect", errors.New("no owner")), http.StatusUnauthorized, categoryUnauthorized},
		{"not found", domain.WrapError(domain.ErrScanNotFound, "delete scan", errors.New("id=x")), http.StatusNotFound, categoryNotFound},
		{"rate limited", domain.WrapError(domain.ErrRateLimited, "groq.detect", errors.New("429")), http.StatusTooManyRequests, categoryRateLimit},
		{"configuration", domain.WrapError(domain.ErrProviderConfig, "groq.detect", errors.New("401")), http.StatusServiceUnavailable, categoryConfiguration},
		{"temporary", domain.WrapError(domain.ErrTemporary, "groq.detect", errors.New("502")), http.StatusBadGateway, categoryNetwork},
		{"timeout", domain.WrapError(domain.ErrTimeout, "detect", context.DeadlineExceeded), http.StatusGatewayTimeout, categoryTimeout},
		{"unknown disease", domain.WrapError(domain.ErrDiseaseNotFound, "detect", errors.New("Rust")), http.StatusInternalServerError, categoryUnknown},
		{"plain", errors.New("boom"), http.StatusInternalServerError, categoryUnknown},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, got)
		}
		if got := errorCategory(tc.err); got != tc.category {
			t.Fatalf("%s: expected category %q, got %q", tc.name, tc.category, got)
		}
	}
}

func TestDetectCropMismatchReturnsVerdict(t *testing.T) {
	verdict := domain.CropMatchVerdict{
		Matches:      false,
		SelectedCrop: "Apple",
		DetectedCrop: "Banana",
		Confidence:   85,
		Message:      "You selected Apple but the image shows Banana",
	}
	detector := &detectorFake{err: domain.WrapError(domain.ErrInvalidInput, "detect", &domain.CropMismatchError{Verdict: verdict})}
	handler := newTestHandler(config.Config{}, testDeps{detector: detector})

	body, contentType := multipartUpload(t, "image/jpeg", []byte("jpeg"), "Apple")
	req := authorizedRequest(t, "POST", "/v1/detect", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	out := decodeBody(t, res)
	if out["category"] != categoryCropMismatch {
		t.Fatalf("unexpected category %v", out["category"])
	}
	match, ok := out["crop_match"].(map[string]any)
	if !ok || match["detected_crop"] != "Banana" || match["matches"] != false {
		t.Fatalf("expected verdict in body, got %v", out["crop_match"])
	}
	if _, ok := out["details"]; ok {
		t.Fatalf("details must be hidden outside development")
	}
}

func TestProviderErrorsHideRawMessageOutsideDevelopment(t *testing.T) {
	raw := fmt.Errorf("groq.detect: %w", domain.WrapError(domain.ErrProviderConfig, "groq.detect", errors.New("invalid api key gsk_secret")))

	for _, env := range []string{"production", "development"} {
		detector := &detectorFake{err: raw}
		handler := newTestHandler(config.Config{AppEnv: env}, testDeps{detector: detector})

		body, contentType := multipartUpload(t, "image/jpeg", []byte("jpeg"), "Tomato")
		req := authorizedRequest(t, "POST", "/v1/detect", body)
		req.Header.Set("Content-Type", contentType)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)

		if res.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", env, res.Code)
		}
		out := decodeBody(t, res)
		if out["error"] != "analysis service is misconfigured" {
			t.Fatalf("%s: unexpected error message %v", env, out["error"])
		}
		_, hasDetails := out["details"]
		if hasDetails != (env == "development") {
			t.Fatalf("%s: unexpected details presence %v", env, out)
		}
	}
}

func TestDeleteScanReturns404ForForeignScan(t *testing.T) {
	scans := &scansFake{err: domain.WrapError(domain.ErrScanNotFound, "delete scan", errors.New("id=other-owners"))}
	handler := newTestHandler(config.Config{}, testDeps{scans: scans})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authorizedRequest(t, http.MethodDelete, "/v1/scans/other-owners", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if out := decodeBody(t, res); out["error"] != "scan not found" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestListScansFallsBackToEmptyPageOnReadError(t *testing.T) {
	scans := &scansFake{err: errors.New("connection refused")}
	handler := newTestHandler(config.Config{}, testDeps{scans: scans})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authorizedRequest(t, http.MethodGet, "/v1/scans", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	out := decodeBody(t, res)
	if list, ok := out["scans"].([]any); !ok || len(list) != 0 {
		t.Fatalf("expected empty scans list, got %v", out["scans"])
	}
	page, ok := out["pagination"].(map[string]any)
	if !ok || page["total"] != float64(0) || page["total_pages"] != float64(0) {
		t.Fatalf("expected zeroed pagination, got %v", out["pagination"])
	}
	if out["error"] == nil {
		t.Fatalf("expected error field")
	}
}

func TestStatsFallsBackToZeroedAggregate(t *testing.T) {
	scans := &scansFake{err: errors.New("connection refused")}
	handler := newTestHandler(config.Config{}, testDeps{scans: scans})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authorizedRequest(t, http.MethodGet, "/v1/stats", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	out := decodeBody(t, res)
	if out["total_scans"] != float64(0) || out["error"] == nil {
		t.Fatalf("unexpected body %v", out)
	}
	if months, ok := out["scans_by_month"].([]any); !ok || len(months) != 0 {
		t.Fatalf("expected empty month list, got %v", out["scans_by_month"])
	}
}
