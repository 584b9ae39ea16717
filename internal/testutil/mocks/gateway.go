package mocks

import (
	"context"
	"sync"

	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/domain/ports"
)

// MockGateway is a hand-written implementation of ports.ExternalGateway for
// testing. Responses are set per operation; call counts and last arguments
// are tracked.
type MockGateway struct {
	mu sync.Mutex

	// Responses to return
	Merchant         *domain.Merchant
	MerchantErr      error
	Rewards          []domain.RewardProgram
	RewardsErr       error
	User             *domain.User
	UserErr          error
	CreatedUser      *domain.User
	CreateUserErr    error
	Coupons          []domain.Coupon
	CouponsErr       error
	Activation       ports.ActivationResult
	ActivationErr    error
	Payment          ports.PaymentCreation
	PaymentErr       error
	PaymentStatus    ports.PaymentStatus
	PaymentStatusErr error

	// Call tracking
	GetMerchantCalls        int
	ListRewardProgramsCalls int
	GetUserCalls            int
	CreateUserCalls         int
	ListUserCouponsCalls    int
	ActivateCouponCalls     int
	CreatePaymentCalls      int
	GetPaymentStatusCalls   int

	// Last request received
	LastActivatedCouponID string
	LastPaymentToken      string
	LastPaymentProgramID  string
	LastStatusTxID        string
	LastCouponStatuses    []domain.CouponStatus
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// GetMerchant returns the configured merchant
func (m *MockGateway) GetMerchant(ctx context.Context, slug string) (*domain.Merchant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetMerchantCalls++
	return m.Merchant, m.MerchantErr
}

// ListRewardPrograms returns the configured reward programs
func (m *MockGateway) ListRewardPrograms(ctx context.Context, slug string) ([]domain.RewardProgram, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListRewardProgramsCalls++
	return m.Rewards, m.RewardsErr
}

// GetUser returns the configured user, or (nil, nil) when unset
func (m *MockGateway) GetUser(ctx context.Context, cpf string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetUserCalls++
	return m.User, m.UserErr
}

// CreateUser returns the configured created user
func (m *MockGateway) CreateUser(ctx context.Context, cpf, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateUserCalls++
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	if m.CreatedUser != nil {
		return m.CreatedUser, nil
	}
	return &domain.User{CPF: cpf, Email: email}, nil
}

// ListUserCoupons returns the configured coupon snapshot
func (m *MockGateway) ListUserCoupons(ctx context.Context, cpf, slug string, statuses []domain.CouponStatus) ([]domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListUserCouponsCalls++
	m.LastCouponStatuses = statuses
	return m.Coupons, m.CouponsErr
}

// ActivateCoupon returns the configured activation result
func (m *MockGateway) ActivateCoupon(ctx context.Context, cpf, slug, couponID string) (ports.ActivationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActivateCouponCalls++
	m.LastActivatedCouponID = couponID
	return m.Activation, m.ActivationErr
}

// CreatePayment returns the configured payment creation result
func (m *MockGateway) CreatePayment(ctx context.Context, cpf, slug, rewardProgramID, token string) (ports.PaymentCreation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatePaymentCalls++
	m.LastPaymentToken = token
	m.LastPaymentProgramID = rewardProgramID
	return m.Payment, m.PaymentErr
}

// GetPaymentStatus returns the configured payment status
func (m *MockGateway) GetPaymentStatus(ctx context.Context, txID string) (ports.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetPaymentStatusCalls++
	m.LastStatusTxID = txID
	return m.PaymentStatus, m.PaymentStatusErr
}
