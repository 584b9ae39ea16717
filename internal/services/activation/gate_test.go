package activation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/domain/ports"
	"github.com/pixman/coupon-flow/internal/services/registry"
	"github.com/pixman/coupon-flow/internal/testutil/mocks"
)

var discount = domain.ProgramKey{Name: "R$ 5,00 de desconto", Rule: "Acima de R$ 35,00"}

func coupon(id string, status domain.CouponStatus, created time.Time) domain.Coupon {
	return domain.Coupon{
		ID:          id,
		Status:      status,
		ProgramName: discount.Name,
		ProgramRule: discount.Rule,
		CreatedAt:   created,
	}
}

func newGate(t *testing.T, coupons []domain.Coupon, now time.Time) (*Gate, *registry.Registry, *mocks.MockGateway) {
	t.Helper()
	reg := registry.New()
	reg.Ingest(coupons)
	gw := mocks.NewMockGateway()
	return NewGate(reg, gw, mocks.NewMockClock(now), mocks.NewMockLogger()), reg, gw
}

func TestCanActivate(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		coupons []domain.Coupon
		want    bool
	}{
		{
			name:    "no coupons at all",
			coupons: nil,
			want:    false,
		},
		{
			name: "available and no active",
			coupons: []domain.Coupon{
				coupon("a", domain.CouponStatusAvailable, now.Add(-24*time.Hour)),
			},
			want: true,
		},
		{
			name: "active created today blocks",
			coupons: []domain.Coupon{
				coupon("a", domain.CouponStatusAvailable, now.Add(-24*time.Hour)),
				coupon("b", domain.CouponStatusActive, now.Add(-time.Hour)),
			},
			want: false,
		},
		{
			name: "active from yesterday does not block",
			coupons: []domain.Coupon{
				coupon("a", domain.CouponStatusAvailable, now.Add(-48*time.Hour)),
				coupon("b", domain.CouponStatusActive, now.Add(-24*time.Hour)),
			},
			want: true,
		},
		{
			name: "active today but nothing available",
			coupons: []domain.Coupon{
				coupon("b", domain.CouponStatusActive, now.Add(-time.Hour)),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, _, _ := newGate(t, tt.coupons, now)
			assert.Equal(t, tt.want, gate.CanActivate(discount, now))
		})
	}
}

func TestCanActivateDayBoundary(t *testing.T) {
	// An activation at 23:58 blocks for the rest of that day only: at the
	// next day's date comparison the coupon counts as expired with no
	// further network call.
	activatedAt := time.Date(2025, 6, 10, 23, 58, 0, 0, time.UTC)
	coupons := []domain.Coupon{
		coupon("active", domain.CouponStatusActive, activatedAt),
		coupon("spare", domain.CouponStatusAvailable, activatedAt.Add(-time.Hour)),
	}

	gate, _, _ := newGate(t, coupons, activatedAt)

	assert.False(t, gate.CanActivate(discount, activatedAt.Add(time.Minute)))
	assert.True(t, gate.CanActivate(discount, activatedAt.Add(3*time.Minute)))
}

func TestPickCandidateFIFO(t *testing.T) {
	now := time.Now()
	gate, _, _ := newGate(t, []domain.Coupon{
		coupon("first", domain.CouponStatusAvailable, now.Add(-2*time.Hour)),
		coupon("second", domain.CouponStatusAvailable, now),
	}, now)

	candidate, ok := gate.PickCandidate(discount)
	require.True(t, ok)
	assert.Equal(t, "first", candidate.ID)

	_, ok = gate.PickCandidate(domain.ProgramKey{Name: "other"})
	assert.False(t, ok)
}

func TestActivateSuccessRefreshesRegistry(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	gate, reg, gw := newGate(t, []domain.Coupon{
		coupon("a", domain.CouponStatusAvailable, now.Add(-time.Hour)),
	}, now)

	gw.Activation = ports.ActivationResult{Success: true}
	gw.Coupons = []domain.Coupon{
		coupon("a", domain.CouponStatusActive, now),
	}

	err := gate.Activate(context.Background(), "11144477735", "batel_grill", reg.AvailableFor(discount)[0])
	require.NoError(t, err)

	assert.Equal(t, 1, gw.ActivateCouponCalls)
	assert.Equal(t, "a", gw.LastActivatedCouponID)
	assert.Equal(t, 1, gw.ListUserCouponsCalls, "activation must trigger a registry refresh")
	require.NotNil(t, reg.ActiveFor(discount))
}

func TestActivateGatewayFailureLeavesStateAvailable(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	gate, reg, gw := newGate(t, []domain.Coupon{
		coupon("a", domain.CouponStatusAvailable, now.Add(-time.Hour)),
	}, now)

	gw.ActivationErr = domain.NewDomainError(domain.ErrorCodeNetwork, "connection refused")

	err := gate.Activate(context.Background(), "11144477735", "batel_grill", reg.AvailableFor(discount)[0])
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeNetwork))

	// Local snapshot untouched: the coupon is still AVAILABLE and a retry
	// is allowed
	assert.Len(t, reg.AvailableFor(discount), 1)
	assert.True(t, gate.CanActivate(discount, now))
	assert.Equal(t, 0, gw.ListUserCouponsCalls)
}

func TestActivateBackendRejection(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	gate, reg, gw := newGate(t, []domain.Coupon{
		coupon("a", domain.CouponStatusAvailable, now.Add(-time.Hour)),
	}, now)

	gw.Activation = ports.ActivationResult{Success: false, Message: "already active"}

	err := gate.Activate(context.Background(), "11144477735", "batel_grill", reg.AvailableFor(discount)[0])
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeCouponActivationFailed))
	assert.Len(t, reg.AvailableFor(discount), 1)
}

func TestActivateDeniedWhenGateClosed(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	gate, _, gw := newGate(t, []domain.Coupon{
		coupon("a", domain.CouponStatusAvailable, now.Add(-time.Hour)),
		coupon("b", domain.CouponStatusActive, now.Add(-time.Minute)),
	}, now)

	err := gate.Activate(context.Background(), "11144477735", "batel_grill",
		coupon("a", domain.CouponStatusAvailable, now.Add(-time.Hour)))
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeCouponActivationDenied))
	assert.Equal(t, 0, gw.ActivateCouponCalls, "denied activations must not reach the gateway")
}
