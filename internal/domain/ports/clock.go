package ports

import "time"

// Clock abstracts wall-clock time so TTL expiry and the one-coupon-per-day
// gate can be driven deterministically in tests
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface
type ClockFunc func() time.Time

// Now implements Clock
func (f ClockFunc) Now() time.Time {
	return f()
}
