// Package registry holds the locally known set of coupons for one
// user+merchant pair, partitioned by reward program.
package registry

import (
	"sort"

	"github.com/pixman/coupon-flow/internal/domain"
)

// Registry is the coupon working set. It is replaced wholesale on each
// refresh (no incremental merge) and is single-writer: the owning flow is
// responsible for serializing access.
type Registry struct {
	groups map[domain.ProgramKey][]domain.Coupon
	order  []domain.ProgramKey
	total  int
}

// New creates an empty registry
func New() *Registry {
	return &Registry{groups: make(map[domain.ProgramKey][]domain.Coupon)}
}

// Ingest replaces the working set with a fresh gateway snapshot, grouping by
// program key. Arrival order within a group is preserved so candidate
// selection stays FIFO.
func (r *Registry) Ingest(coupons []domain.Coupon) {
	r.groups = make(map[domain.ProgramKey][]domain.Coupon, len(coupons))
	r.order = r.order[:0]
	r.total = len(coupons)

	for _, c := range coupons {
		key := c.Key()
		if _, seen := r.groups[key]; !seen {
			r.order = append(r.order, key)
		}
		r.groups[key] = append(r.groups[key], c)
	}
}

// AvailableFor returns the AVAILABLE coupons for a program, in arrival order
func (r *Registry) AvailableFor(key domain.ProgramKey) []domain.Coupon {
	var out []domain.Coupon
	for _, c := range r.groups[key] {
		if c.IsAvailable() {
			out = append(out, c)
		}
	}
	return out
}

// ActiveFor returns the program's ACTIVE coupon, or nil when none exists.
// The one-active-per-program invariant is server-enforced; if a snapshot
// ever violates it the first ACTIVE coupon wins.
func (r *Registry) ActiveFor(key domain.ProgramKey) *domain.Coupon {
	for _, c := range r.groups[key] {
		if c.IsActive() {
			coupon := c
			return &coupon
		}
	}
	return nil
}

// HasAnyCoupons reports whether the user holds any coupon for the program,
// whatever its status. Decides between the "purchase" and "activate"
// affordances.
func (r *Registry) HasAnyCoupons(key domain.ProgramKey) bool {
	return len(r.groups[key]) > 0
}

// Count returns the total number of coupons in the working set. The payment
// orchestrator watches this for passive purchase confirmation.
func (r *Registry) Count() int {
	return r.total
}

// Keys returns the program keys present in the working set, in first-seen order
func (r *Registry) Keys() []domain.ProgramKey {
	out := make([]domain.ProgramKey, len(r.order))
	copy(out, r.order)
	return out
}

// Sorted returns the program's coupons for display: ACTIVE first, then
// AVAILABLE, then everything else, newest first within a status
func (r *Registry) Sorted(key domain.ProgramKey) []domain.Coupon {
	out := make([]domain.Coupon, len(r.groups[key]))
	copy(out, r.groups[key])

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := statusRank(out[i].Status), statusRank(out[j].Status)
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func statusRank(s domain.CouponStatus) int {
	switch s {
	case domain.CouponStatusActive:
		return 0
	case domain.CouponStatusAvailable:
		return 1
	default:
		return 2
	}
}
