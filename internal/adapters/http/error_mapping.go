package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const (
	categoryValidation    = "validation"
	categoryCropMismatch  = "crop_mismatch"
	categoryNotPlant      = "not_a_plant"
	categoryUnauthorized  = "unauthorized"
	categoryNotFound      = "not_found"
	categoryRateLimit     = "rate_limit"
	categoryConfiguration = "configuration"
	categoryNetwork       = "network"
	categoryTimeout       = "timeout"
	categoryUnknown       = "unknown"
)

func mapErrorToHTTPStatus(err error) int {
	switch errorCategory(err) {
	case categoryCropMismatch, categoryNotPlant:
		return http.StatusUnprocessableEntity
	case categoryValidation:
		return http.StatusBadRequest
	case categoryUnauthorized:
		return http.StatusUnauthorized
	case categoryNotFound:
		return http.StatusNotFound
	case categoryRateLimit:
		return http.StatusTooManyRequests
	case categoryConfiguration:
		return http.StatusServiceUnavailable
	case categoryNetwork:
		return http.StatusBadGateway
	case categoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorCategory(err error) string {
	var mismatch *domain.CropMismatchError
	var notPlant *domain.NotPlantError
	switch {
	case err == nil:
		return categoryUnknown
	case errors.As(err, &mismatch):
		return categoryCropMismatch
	case errors.As(err, &notPlant):
		return categoryNotPlant
	case domain.IsKind(err, domain.ErrInvalidInput):
		return categoryValidation
	case domain.IsKind(err, domain.ErrUnauthorized):
		return categoryUnauthorized
	case domain.IsKind(err, domain.ErrScanNotFound):
		return categoryNotFound
	case domain.IsKind(err, domain.ErrRateLimited):
		return categoryRateLimit
	case domain.IsKind(err, domain.ErrProviderConfig):
		return categoryConfiguration
	case domain.IsKind(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return categoryTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return categoryNetwork
	default:
		return categoryUnknown
	}
}

// publicMessage keeps provider output away from clients. Validation failures
// are the only ones whose cause is shown verbatim.
func publicMessage(category string, err error) string {
	switch category {
	case categoryValidation, categoryCropMismatch, categoryNotPlant:
		return causeMessage(err)
	case categoryUnauthorized:
		return "not authorized"
	case categoryNotFound:
		return "scan not found"
	case categoryRateLimit:
		return "analysis service is rate limited, try again shortly"
	case categoryConfiguration:
		return "analysis service is misconfigured"
	case categoryNetwork:
		return "analysis service is unreachable"
	case categoryTimeout:
		return "analysis timed out"
	default:
		if domain.IsKind(err, domain.ErrDiseaseNotFound) {
			return "detected disease has no treatment guidance"
		}
		return "internal error"
	}
}

// causeMessage follows the last wrapped error of each layer, which is where
// domain.WrapError keeps the original cause.
func causeMessage(err error) string {
	for {
		switch e := err.(type) {
		case *domain.CropMismatchError, *domain.NotPlantError:
			return e.Error()
		case interface{ Unwrap() []error }:
			errs := e.Unwrap()
			if len(errs) == 0 {
				return err.Error()
			}
			err = errs[len(errs)-1]
		default:
			return err.Error()
		}
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	category := errorCategory(err)
	status := mapErrorToHTTPStatus(err)

	body := map[string]any{
		"error":    publicMessage(category, err),
		"category": category,
	}
	var mismatch *domain.CropMismatchError
	if errors.As(err, &mismatch) {
		body["crop_match"] = mismatch.Verdict
	}
	var notPlant *domain.NotPlantError
	if errors.As(err, &notPlant) {
		body["validation"] = notPlant.Validation
	}
	if rt.development {
		body["details"] = err.Error()
	}

	attrs := []any{
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"category", category,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed", attrs...)
	} else {
		slog.Warn("http_request_rejected", attrs...)
	}
	writeJSON(w, status, body)
}
