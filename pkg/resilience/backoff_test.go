package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffProgression(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
		Jitter:     0, // deterministic for the test
	}

	assert.Equal(t, 100*time.Millisecond, eb.NextDelay(0))
	assert.Equal(t, 200*time.Millisecond, eb.NextDelay(1))
	assert.Equal(t, 400*time.Millisecond, eb.NextDelay(2))
	assert.Equal(t, 800*time.Millisecond, eb.NextDelay(3))

	// Capped at MaxDelay
	assert.Equal(t, 1*time.Second, eb.NextDelay(4))
	assert.Equal(t, 1*time.Second, eb.NextDelay(10))
}

func TestExponentialBackoffNegativeAttempt(t *testing.T) {
	eb := GatewayBackoff()
	assert.Equal(t, eb.BaseDelay, eb.NextDelay(-1))
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}

	for i := 0; i < 100; i++ {
		d := eb.NextDelay(1)
		assert.GreaterOrEqual(t, d, 180*time.Millisecond)
		assert.LessOrEqual(t, d, 220*time.Millisecond)
	}
}

func TestFixedBackoff(t *testing.T) {
	fb := &FixedBackoff{Delay: 50 * time.Millisecond}
	assert.Equal(t, 50*time.Millisecond, fb.NextDelay(0))
	assert.Equal(t, 50*time.Millisecond, fb.NextDelay(7))
}
