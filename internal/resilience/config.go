package resilience

import (
	"os"
	"time"
)

// FromRetryConfig converts raw config values to a RetryConfig.
func FromRetryConfig(maxAttempts, baseDelayMs, maxDelayMs int, multiplier, jitterFraction float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if baseDelayMs > 0 {
		cfg.InitialBackoff = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		cfg.MaxBackoff = time.Duration(maxDelayMs) * time.Millisecond
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	if jitterFraction >= 0 {
		cfg.JitterFraction = jitterFraction
	}
	return cfg
}

// FromCircuitConfig converts raw config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}

// ProfileFor selects the retry profile for the current environment. When
// running in a CI/batch environment the windows are stretched by
// timeoutMultiplier so flaky targets get a more generous envelope.
// ciOverride forces the decision either way; when nil the CI env var is
// consulted.
func ProfileFor(base RetryConfig, timeoutMultiplier float64, ciOverride *bool) RetryConfig {
	ci := InCIEnvironment()
	if ciOverride != nil {
		ci = *ciOverride
	}
	if !ci {
		return base
	}
	return base.Scaled(timeoutMultiplier)
}

// InCIEnvironment reports whether the process is running under a CI/batch
// runner.
func InCIEnvironment() bool {
	return os.Getenv("CI") != "" || os.Getenv("BATCH_MODE") != ""
}
