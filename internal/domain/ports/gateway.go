package ports

import (
	"context"

	"github.com/pixman/coupon-flow/internal/domain"
)

// ActivationResult is the backend's answer to an activation request
type ActivationResult struct {
	Success bool
	Message string
}

// PaymentCreation carries the opaque PIX payload returned by the backend.
// There is no explicit transaction identifier; extraction from the payload
// is heuristic and happens on our side.
type PaymentCreation struct {
	Payload string
}

// PaymentStatus is the backend's view of a PIX charge
type PaymentStatus struct {
	Status string
}

// ExternalGateway abstracts every backend operation the flow engine needs.
// Request/response framing and transport-level retries below a single call
// belong to the implementation, not to callers.
type ExternalGateway interface {
	GetMerchant(ctx context.Context, slug string) (*domain.Merchant, error)
	ListRewardPrograms(ctx context.Context, slug string) ([]domain.RewardProgram, error)

	// GetUser returns (nil, nil) when no user exists for the CPF
	GetUser(ctx context.Context, cpf string) (*domain.User, error)
	CreateUser(ctx context.Context, cpf, email string) (*domain.User, error)

	ListUserCoupons(ctx context.Context, cpf, slug string, statuses []domain.CouponStatus) ([]domain.Coupon, error)
	ActivateCoupon(ctx context.Context, cpf, slug, couponID string) (ActivationResult, error)

	CreatePayment(ctx context.Context, cpf, slug, rewardProgramID, token string) (PaymentCreation, error)
	GetPaymentStatus(ctx context.Context, txID string) (PaymentStatus, error)
}
