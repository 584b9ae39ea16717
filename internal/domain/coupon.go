package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixman/coupon-flow/pkg/timeutil"
)

// CouponStatus represents the lifecycle state of a coupon
type CouponStatus string

const (
	CouponStatusAvailable CouponStatus = "AVAILABLE"
	CouponStatusActive    CouponStatus = "ACTIVE"
	CouponStatusRedeemed  CouponStatus = "REDEEMED"
	CouponStatusExpired   CouponStatus = "EXPIRED"
	CouponStatusUsed      CouponStatus = "USED"
	CouponStatusCancelled CouponStatus = "CANCELLED"
)

// Coupon is one purchasable/activatable discount coupon.
//
// The client only ever moves a coupon from AVAILABLE to ACTIVE (through the
// gateway). Every other transition is server-driven and merely observed on the
// next refresh.
type Coupon struct {
	// ID is the backend sort key in the form U#<cpf>#RP#<program>#<uuid>
	ID          string
	CouponCode  string
	Status      CouponStatus
	ProgramName string
	ProgramRule string
	Expires     time.Time
	CreatedAt   time.Time
	ActivatedAt time.Time
	RedeemedAt  time.Time
}

// ProgramKey groups coupons and reward metadata belonging to the same reward
// program. Derived from (name, rule) because a user can hold zero coupons for
// a program that still has to be displayed with its purchase affordance.
type ProgramKey struct {
	Name string
	Rule string
}

// Key returns the coupon's program key
func (c Coupon) Key() ProgramKey {
	return ProgramKey{Name: c.ProgramName, Rule: c.ProgramRule}
}

// IsActive reports whether the coupon is currently ACTIVE
func (c Coupon) IsActive() bool {
	return c.Status == CouponStatusActive
}

// IsAvailable reports whether the coupon can still be activated
func (c Coupon) IsAvailable() bool {
	return c.Status == CouponStatusAvailable
}

// ValidUntil returns the effective expiry of an activated coupon: the end of
// its activation day, regardless of the nominal Expires field.
func (c Coupon) ValidUntil() time.Time {
	base := c.ActivatedAt
	if base.IsZero() {
		base = c.CreatedAt
	}
	return timeutil.EndOfDay(base)
}

// VerificationCode extracts the human-checkable code from the coupon ID.
// The backend encodes a UUID as the last segment of U#<cpf>#RP#<program>#<uuid>;
// when the segment does not parse as a UUID the raw tail is returned as-is.
func (c Coupon) VerificationCode() string {
	parts := strings.Split(c.ID, "#")
	tail := parts[len(parts)-1]
	if tail == "" {
		return c.ID
	}
	if id, err := uuid.Parse(tail); err == nil {
		return id.String()
	}
	return tail
}
