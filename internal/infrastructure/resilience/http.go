package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// HTTPStatusError is a non-2xx reply from a remote provider.
type HTTPStatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "provider status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Provider, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Provider, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// ClassifyHTTPError decides retry and breaker accounting for provider calls.
// Credential and rate-limit replies are not retried: the cascade moves on or
// aborts instead. A provider that outlives its stage deadline counts against
// its breaker; the caller's own cancellation or deadline does not.
func ClassifyHTTPError(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, domain.ErrStageTimeout) {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return ErrorClassification{Retryable: false, RecordFailure: true}
		case IsRetryableHTTPStatus(statusErr.StatusCode):
			return ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// WrapProviderError attaches the domain kind a provider failure maps to.
func WrapProviderError(operation string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{domain.ErrProviderConfig, domain.ErrRateLimited, domain.ErrTemporary} {
		if domain.IsKind(err, kind) {
			return err
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapError(domain.ErrProviderConfig, operation, err)
		case http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		}
	}

	if ClassifyHTTPError(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
