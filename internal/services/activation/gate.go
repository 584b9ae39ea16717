// Package activation decides whether a coupon may be activated and mediates
// the irreversible activation call.
package activation

import (
	"context"
	"time"

	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/domain/ports"
	"github.com/pixman/coupon-flow/internal/services/registry"
	"github.com/pixman/coupon-flow/pkg/observability"
	"github.com/pixman/coupon-flow/pkg/timeutil"
)

// Gate enforces the one-active-coupon-per-program-per-day rule against the
// last locally fetched snapshot.
//
// Decisions are snapshot-based: two sessions can both pass CanActivate before
// either activation lands server-side. That race is accepted here; the server
// is assumed to enforce the invariant authoritatively.
type Gate struct {
	registry *registry.Registry
	gateway  ports.ExternalGateway
	clock    ports.Clock
	logger   ports.Logger
}

// NewGate creates an activation gate over the given registry
func NewGate(reg *registry.Registry, gateway ports.ExternalGateway, clock ports.Clock, logger ports.Logger) *Gate {
	return &Gate{registry: reg, gateway: gateway, clock: clock, logger: logger}
}

// CanActivate reports whether a coupon from the program may be activated on
// the given day: no ACTIVE coupon created that day, and at least one
// AVAILABLE coupon. An ACTIVE coupon from a previous day no longer blocks;
// its validity ended at 23:59:59 of its activation day.
func (g *Gate) CanActivate(key domain.ProgramKey, today time.Time) bool {
	if active := g.registry.ActiveFor(key); active != nil {
		if timeutil.SameDay(today, active.CreatedAt) {
			return false
		}
	}
	return len(g.registry.AvailableFor(key)) > 0
}

// PickCandidate selects the coupon an activation would consume: the first
// AVAILABLE coupon in arrival order. No other tie-break is defined.
func (g *Gate) PickCandidate(key domain.ProgramKey) (domain.Coupon, bool) {
	available := g.registry.AvailableFor(key)
	if len(available) == 0 {
		return domain.Coupon{}, false
	}
	return available[0], true
}

// Activate performs the irreversible AVAILABLE → ACTIVE transition through
// the gateway and refreshes the registry from the backend afterwards.
//
// The caller must have collected an explicit user confirmation first: an
// activated coupon expires at the end of the current day and cannot be
// un-activated. On failure the coupon's local state is left AVAILABLE and
// the attempt may be retried.
func (g *Gate) Activate(ctx context.Context, cpf, slug string, coupon domain.Coupon) error {
	if !g.CanActivate(coupon.Key(), g.clock.Now()) {
		return domain.ErrActivationDenied
	}

	result, err := g.gateway.ActivateCoupon(ctx, cpf, slug, coupon.ID)
	if err != nil {
		observability.RecordActivation(false)
		g.logger.Error("coupon activation failed",
			ports.String("coupon_id", coupon.ID),
			ports.Err(err))
		return err
	}
	if !result.Success {
		observability.RecordActivation(false)
		g.logger.Warn("coupon activation rejected by backend",
			ports.String("coupon_id", coupon.ID),
			ports.String("message", result.Message))
		return domain.NewDomainError(domain.ErrorCodeCouponActivationFailed, "coupon activation failed").
			WithDetail("message", result.Message)
	}

	observability.RecordActivation(true)
	g.logger.Info("coupon activated",
		ports.String("coupon_id", coupon.ID),
		ports.String("program", coupon.ProgramName))

	return g.Refresh(ctx, cpf, slug)
}

// Refresh re-fetches the user's coupons and replaces the registry snapshot
func (g *Gate) Refresh(ctx context.Context, cpf, slug string) error {
	coupons, err := g.gateway.ListUserCoupons(ctx, cpf, slug,
		[]domain.CouponStatus{domain.CouponStatusActive, domain.CouponStatusAvailable})
	if err != nil {
		return err
	}
	g.registry.Ingest(coupons)
	return nil
}
