package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor guards provider, storage and broker calls with retry and a
// per-operation circuit breaker. A detection stage whose breaker is open
// fails fast so the cascade can move to the next provider.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Execute runs fn under the breaker for operation. Open-circuit errors are
// returned wrapped with the operation name and still match IsCircuitOpen.
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classifier)
	}

	_, err := e.breaker(op, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, fn, classifier)
	})
	if IsCircuitOpen(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return err
}

// States reports the breaker state of every operation seen so far.
func (e *Executor) States() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(e.breakers))
	for name, breaker := range e.breakers {
		out[name] = breaker.State().String()
	}
	return out
}

// OpenOperations lists operations whose breaker is currently open, sorted.
func (e *Executor) OpenOperations() []string {
	var open []string
	for name, state := range e.States() {
		if state == gobreaker.StateOpen.String() {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

func (e *Executor) retry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	maxAttempts := e.cfg.RetryMaxAttempts

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return withCause(ctx, ctxErr)
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		err = withCause(ctx, err)
		if attempt == maxAttempts || !classifier(err).Retryable {
			return err
		}

		wait := e.backoff(attempt)
		// Sleeping past the caller's deadline only eats into the budget the
		// next stage needs.
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= wait {
			slog.Warn("retry_skipped", "operation", operation, "attempt", attempt, "reason", "deadline", "error", err)
			return err
		}

		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if !sleep(ctx, wait) {
			return err
		}
	}
	return err
}

// backoff grows geometrically from the initial value, is capped at the max
// and shortened by up to RetryJitter of itself.
func (e *Executor) backoff(attempt int) time.Duration {
	wait := float64(e.cfg.RetryInitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= e.cfg.RetryMultiplier
		if wait >= float64(e.cfg.RetryMaxBackoff) {
			break
		}
	}
	if wait > float64(e.cfg.RetryMaxBackoff) {
		wait = float64(e.cfg.RetryMaxBackoff)
	}
	if e.cfg.RetryJitter > 0 {
		wait -= wait * e.cfg.RetryJitter * rand.Float64()
	}
	return time.Duration(wait)
}

// withCause attaches the cancellation cause of a finished ctx so classifiers
// can tell a stage sub-deadline apart from the caller's own deadline.
func withCause(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(err, cause) {
		return err
	}
	return fmt.Errorf("%w: %w", err, cause)
}

func sleep(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.cfg.OnStateChange != nil {
				e.cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
