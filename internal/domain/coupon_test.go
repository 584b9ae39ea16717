package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoupon_ValidUntil(t *testing.T) {
	activated := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	c := Coupon{Status: CouponStatusActive, ActivatedAt: activated}
	assert.Equal(t, time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC), c.ValidUntil())

	// without an activation timestamp the creation day bounds validity
	created := time.Date(2024, 3, 11, 22, 15, 0, 0, time.UTC)
	c = Coupon{Status: CouponStatusActive, CreatedAt: created}
	assert.Equal(t, time.Date(2024, 3, 11, 23, 59, 59, 0, time.UTC), c.ValidUntil())
}

func TestCoupon_VerificationCode(t *testing.T) {
	id := "e7b8a0f4-3c21-4f6e-9a75-8d2f10c4b9aa"
	c := Coupon{ID: "U#11144477735#RP#Cafezinho#" + id}
	assert.Equal(t, id, c.VerificationCode())

	// non-UUID tails are surfaced untouched
	c = Coupon{ID: "U#11144477735#RP#Cafezinho#ABC123"}
	assert.Equal(t, "ABC123", c.VerificationCode())

	// ids without separators fall back to the whole id
	c = Coupon{ID: "plain-id"}
	assert.Equal(t, "plain-id", c.VerificationCode())
}

func TestCoupon_KeyAndStatusPredicates(t *testing.T) {
	c := Coupon{ProgramName: "Cafezinho", ProgramRule: "10-compras", Status: CouponStatusAvailable}
	assert.Equal(t, ProgramKey{Name: "Cafezinho", Rule: "10-compras"}, c.Key())
	assert.True(t, c.IsAvailable())
	assert.False(t, c.IsActive())

	c.Status = CouponStatusActive
	assert.True(t, c.IsActive())
	assert.False(t, c.IsAvailable())

	c.Status = CouponStatusRedeemed
	assert.False(t, c.IsActive())
	assert.False(t, c.IsAvailable())
}
