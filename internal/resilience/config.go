package resilience

import (
	"time"

	"github.com/sells-group/auction-cli/internal/config"
)

// FromSourceConfig converts a source's settings to a RetryConfig.
func FromSourceConfig(name string, sc config.SourceConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if sc.MaxRetries >= 0 {
		cfg.MaxAttempts = sc.MaxRetries + 1
	}
	cfg.OnRetry = RetryLogger(name, "request")
	return cfg
}

// LimiterFor builds the per-source limiter from its configured interval.
func LimiterFor(name string, sc config.SourceConfig) *Limiter {
	return NewLimiter(name, time.Duration(sc.MinIntervalMs)*time.Millisecond)
}

// FromBreakerConfig converts breaker settings to a CircuitBreakerConfig.
func FromBreakerConfig(bc config.BreakerConfig) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if bc.FailureThreshold > 0 {
		cfg.FailureThreshold = bc.FailureThreshold
	}
	return cfg
}
