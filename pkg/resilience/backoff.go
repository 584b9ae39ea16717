package resilience

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
// This prevents thundering herd by spreading retry attempts over time
type ExponentialBackoff struct {
	BaseDelay  time.Duration // Initial delay (e.g., 300ms)
	MaxDelay   time.Duration // Maximum delay (e.g., 10s)
	Multiplier float64       // Exponential multiplier (typically 2.0)
	Jitter     float64       // Jitter factor (0.0-1.0, typically 0.1 for ±10%)
}

// GatewayBackoff returns the backoff used for backend gateway retries.
// Short sequence: the caller is an interactive flow, not a batch job.
//
// Retry sequence (±10% jitter):
//   - Attempt 0: ~300ms
//   - Attempt 1: ~600ms
//   - Attempt 2: ~1.2s
func GatewayBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  300 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// NextDelay calculates the delay for the given attempt number (0-indexed)
//
// The delay is calculated as: BaseDelay * (Multiplier ^ attempt) ± jitter,
// capped at MaxDelay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return eb.BaseDelay
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	jitterAmount := delay * eb.Jitter
	jitter := (rand.Float64()*2 - 1) * jitterAmount

	finalDelay := time.Duration(delay + jitter)
	if finalDelay < 0 {
		finalDelay = eb.BaseDelay
	}

	return finalDelay
}

// FixedBackoff implements a simple fixed delay backoff
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay returns the fixed delay regardless of attempt number
func (fb *FixedBackoff) NextDelay(attempt int) time.Duration {
	return fb.Delay
}
