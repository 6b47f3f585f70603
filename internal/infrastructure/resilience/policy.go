package resilience

import "time"

// Config tunes retry and breaker behaviour for one Executor. Zero fields
// fall back to DefaultConfig.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// RetryJitter is the fraction, in [0,1], by which a backoff may be shortened.
	RetryJitter float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	OnStateChange func(operation, from, to string)
}

// DefaultConfig keeps retries short: a detection stage runs under a
// sub-deadline of its own and a slow provider is better skipped than waited on.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 250 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     2.0,
		RetryJitter:         0.2,

		BreakerEnabled:          true,
		BreakerMinRequests:      4,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.RetryMaxAttempts = orDefault(out.RetryMaxAttempts <= 0, def.RetryMaxAttempts, out.RetryMaxAttempts)
	out.RetryInitialBackoff = orDefault(out.RetryInitialBackoff <= 0, def.RetryInitialBackoff, out.RetryInitialBackoff)
	out.RetryMaxBackoff = orDefault(out.RetryMaxBackoff <= 0, def.RetryMaxBackoff, out.RetryMaxBackoff)
	out.RetryMaxBackoff = max(out.RetryMaxBackoff, out.RetryInitialBackoff)
	out.RetryMultiplier = orDefault(out.RetryMultiplier < 1, def.RetryMultiplier, out.RetryMultiplier)
	out.RetryJitter = min(max(out.RetryJitter, 0), 1)

	out.BreakerMinRequests = orDefault(out.BreakerMinRequests == 0, def.BreakerMinRequests, out.BreakerMinRequests)
	out.BreakerFailureRatio = orDefault(out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1, def.BreakerFailureRatio, out.BreakerFailureRatio)
	out.BreakerOpenTimeout = orDefault(out.BreakerOpenTimeout <= 0, def.BreakerOpenTimeout, out.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = orDefault(out.BreakerHalfOpenMaxCalls == 0, def.BreakerHalfOpenMaxCalls, out.BreakerHalfOpenMaxCalls)
	return out
}

func orDefault[T any](useDefault bool, def, v T) T {
	if useDefault {
		return def
	}
	return v
}
