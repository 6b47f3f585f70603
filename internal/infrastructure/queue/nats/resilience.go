package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
)

// brokerOutages are the connection-level failures worth another publish.
var brokerOutages = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
}

func isBrokerOutage(err error) bool {
	for _, target := range brokerOutages {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case isBrokerOutage(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// wrapTemporaryIfNeeded tags broker outages and open circuits as
// ErrTemporary; anything else is returned as is.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if isBrokerOutage(err) || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "nats publish asset release", err)
	}
	return err
}
