package resilience

import (
	"time"
)

// PolicyFrom builds a RetryPolicy from configured values. Non-positive
// values keep the defaults.
func PolicyFrom(maxAttempts, baseDelayMs, maxDelayMs int, multiplier, jitter float64) RetryPolicy {
	p := DefaultRetryPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if baseDelayMs > 0 {
		p.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		p.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	if multiplier > 0 {
		p.Multiplier = multiplier
	}
	if jitter > 0 {
		p.Jitter = jitter
	}
	return p
}

// BreakerFrom builds a BreakerConfig from configured values. A zero
// threshold disables breaking.
func BreakerFrom(threshold, cooldownSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Threshold = threshold
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}
