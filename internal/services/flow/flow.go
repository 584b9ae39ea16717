// Package flow drives a customer's storefront session as an explicit state
// machine: identify by CPF, register by email when unknown, then view,
// activate and purchase coupons.
package flow

import (
	"context"
	"sync"
	"time"

	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/domain/ports"
	"github.com/pixman/coupon-flow/internal/services/activation"
	"github.com/pixman/coupon-flow/internal/services/payment"
	"github.com/pixman/coupon-flow/internal/services/registry"
	"github.com/pixman/coupon-flow/internal/validation"
)

// ExpiryTickInterval is how often an open payment session is checked for
// TTL expiry in the background
const ExpiryTickInterval = 30 * time.Second

// Step is the customer's position in the identification funnel
type Step string

const (
	StepCPF    Step = "cpf"
	StepEmail  Step = "email"
	StepResult Step = "result"
)

// Flow composes the registry, activation gate and payment orchestrator for
// one merchant storefront. A Flow serves one customer session at a time;
// guards on each verb reject re-entrant submissions while a call is in
// flight.
type Flow struct {
	gateway ports.ExternalGateway
	clock   ports.Clock
	logger  ports.Logger

	slug string

	registry     *registry.Registry
	gate         *activation.Gate
	orchestrator *payment.Orchestrator

	mu         sync.Mutex
	step       Step
	merchant   *domain.Merchant
	rewards    []domain.RewardProgram
	user       *domain.User
	pendingCPF string
	submitting bool
	activating string // coupon id currently being activated
	fatal      error
}

// New creates a flow for the given merchant slug. Call Start before any
// other verb.
func New(gateway ports.ExternalGateway, store ports.KeyValueStore, clock ports.Clock, logger ports.Logger, slug string) *Flow {
	reg := registry.New()
	return &Flow{
		gateway:      gateway,
		clock:        clock,
		logger:       logger,
		slug:         slug,
		registry:     reg,
		gate:         activation.NewGate(reg, gateway, clock, logger),
		orchestrator: payment.NewOrchestrator(gateway, store, clock, logger),
	}
}

// Start loads the merchant and its reward programs. An unknown merchant is
// fatal: the flow stays unusable and Fatal reports why.
func (f *Flow) Start(ctx context.Context) error {
	merchant, err := f.gateway.GetMerchant(ctx, f.slug)
	if err != nil {
		if domain.IsNotFoundError(err) {
			f.mu.Lock()
			f.fatal = err
			f.mu.Unlock()
			f.logger.Error("merchant not found", ports.String("slug", f.slug))
		}
		return err
	}

	rewards, err := f.gateway.ListRewardPrograms(ctx, f.slug)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.merchant = merchant
	f.rewards = rewards
	f.step = StepCPF
	f.mu.Unlock()

	f.logger.Info("storefront loaded",
		ports.String("slug", f.slug),
		ports.Int("reward_programs", len(rewards)))
	return nil
}

// Run drives background maintenance until the context is done: the
// payment-session expiry tick, so an abandoned session is cleared when its
// TTL elapses without waiting for further user action. Meant to run on its
// own goroutine.
func (f *Flow) Run(ctx context.Context) {
	f.orchestrator.RunExpiryLoop(ctx, ExpiryTickInterval)
}

// SubmitCPF identifies the customer. A known CPF lands on the result step
// with its coupons loaded; an unknown one moves to email capture for
// registration. Validation failures never reach the gateway.
func (f *Flow) SubmitCPF(ctx context.Context, raw string) error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.end()

	if !validation.IsValidCPF(raw) {
		return domain.ErrInvalidCPF
	}
	cpf := validation.SanitizeCPF(raw)

	user, err := f.gateway.GetUser(ctx, cpf)
	if err != nil {
		return err
	}

	if user == nil {
		f.mu.Lock()
		f.pendingCPF = cpf
		f.step = StepEmail
		f.mu.Unlock()
		f.logger.Info("unknown cpf, collecting email", ports.String("cpf", validation.MaskCPF(cpf)))
		return nil
	}

	f.mu.Lock()
	f.user = user
	f.pendingCPF = ""
	f.step = StepResult
	f.mu.Unlock()

	if _, err := f.refreshCoupons(ctx); err != nil {
		return domain.WrapError(domain.ErrorCodeCouponFetchFailed, "initial coupon fetch failed", err)
	}
	return nil
}

// SubmitEmail registers a new user for the CPF collected on the previous
// step and lands on the result step
func (f *Flow) SubmitEmail(ctx context.Context, email string) error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.end()

	f.mu.Lock()
	cpf := f.pendingCPF
	f.mu.Unlock()
	if cpf == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "no pending CPF; restart the flow")
	}

	if !validation.IsValidEmail(email) {
		return domain.ErrInvalidEmail
	}

	user, err := f.gateway.CreateUser(ctx, cpf, email)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.user = user
	f.pendingCPF = ""
	f.step = StepResult
	f.mu.Unlock()

	// A just-created user holds no coupons; establish the empty baseline
	f.registry.Ingest(nil)
	f.orchestrator.ObserveCouponCount(ctx, 0)

	f.logger.Info("user registered", ports.String("cpf", validation.MaskCPF(cpf)))
	return nil
}

// RefreshCoupons re-fetches the customer's coupons and feeds the count into
// passive payment confirmation. Returns true when the refresh confirmed an
// open payment.
func (f *Flow) RefreshCoupons(ctx context.Context) (bool, error) {
	f.mu.Lock()
	identified := f.user != nil
	f.mu.Unlock()
	if !identified {
		return false, domain.NewDomainError(domain.ErrorCodeValidationFailed, "no identified user")
	}
	return f.refreshCoupons(ctx)
}

func (f *Flow) refreshCoupons(ctx context.Context) (bool, error) {
	f.mu.Lock()
	cpf := f.user.CPF
	f.mu.Unlock()

	if err := f.gate.Refresh(ctx, cpf, f.slug); err != nil {
		return false, err
	}
	confirmed := f.orchestrator.ObserveCouponCount(ctx, f.registry.Count())
	if confirmed {
		f.logger.Info("payment confirmed by coupon delivery")
	}
	return confirmed, nil
}

// ActivateCoupon activates one coupon from the program, picking the first
// available candidate. confirmed must carry the customer's explicit
// consent: activation is irreversible and the coupon expires at the end of
// the day, so the call refuses to proceed without it.
func (f *Flow) ActivateCoupon(ctx context.Context, key domain.ProgramKey, confirmed bool) error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.end()

	if !confirmed {
		return domain.NewDomainError(domain.ErrorCodeCouponActivationDenied, "activation requires explicit confirmation")
	}

	f.mu.Lock()
	if f.user == nil {
		f.mu.Unlock()
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "no identified user")
	}
	cpf := f.user.CPF
	f.mu.Unlock()

	candidate, ok := f.gate.PickCandidate(key)
	if !ok {
		return domain.ErrActivationDenied
	}

	f.mu.Lock()
	f.activating = candidate.ID
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.activating = ""
		f.mu.Unlock()
	}()

	return f.gate.Activate(ctx, cpf, f.slug, candidate)
}

// BuyReward opens (or replays) a payment session for the reward program at
// the given index in the storefront's program list
func (f *Flow) BuyReward(ctx context.Context, index int) (*domain.PaymentSession, error) {
	f.mu.Lock()
	if f.user == nil || f.merchant == nil {
		f.mu.Unlock()
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "no identified user")
	}
	if index < 0 || index >= len(f.rewards) {
		f.mu.Unlock()
		return nil, domain.NewDomainError(domain.ErrorCodePaymentCreateFailed, "unknown reward program")
	}
	reward := f.rewards[index]
	user := *f.user
	merchant := *f.merchant
	f.mu.Unlock()

	return f.orchestrator.CreateOrReplay(ctx, reward, user, merchant, index)
}

// ConfirmPayment checks the open payment by both channels: an active status
// poll when a transaction id is known, then a coupon refresh for the
// passive count-delta heuristic. Returns true when the payment is settled.
func (f *Flow) ConfirmPayment(ctx context.Context) (bool, error) {
	wasOpen := f.orchestrator.Session() != nil
	if !wasOpen {
		return false, nil
	}

	if _, err := f.orchestrator.VerifyPayment(ctx); err != nil {
		return false, err
	}
	if f.orchestrator.Session() == nil {
		return true, nil
	}

	confirmed, err := f.refreshCoupons(ctx)
	if err != nil {
		return false, err
	}
	return confirmed, nil
}

// ClosePayment dismisses the payment view without settling. The local
// cache entry survives, so reopening the same purchase replays the charge
// until its TTL expires.
func (f *Flow) ClosePayment() {
	f.orchestrator.Reset()
}

// Reset returns the flow to CPF capture for the next customer. The
// merchant and reward programs stay loaded.
func (f *Flow) Reset() {
	f.orchestrator.Reset()
	f.registry.Ingest(nil)

	f.mu.Lock()
	f.user = nil
	f.pendingCPF = ""
	f.step = StepCPF
	f.mu.Unlock()
}

// begin marks a submission in flight, rejecting re-entrant verbs
func (f *Flow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fatal != nil {
		return f.fatal
	}
	if f.submitting {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "submission already in progress")
	}
	f.submitting = true
	return nil
}

func (f *Flow) end() {
	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()
}

// Step returns the customer's current funnel position
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Merchant returns the loaded merchant, or nil before Start
func (f *Flow) Merchant() *domain.Merchant {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.merchant == nil {
		return nil
	}
	merchant := *f.merchant
	return &merchant
}

// Rewards returns the storefront's reward programs in display order
func (f *Flow) Rewards() []domain.RewardProgram {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RewardProgram, len(f.rewards))
	copy(out, f.rewards)
	return out
}

// User returns the identified customer, or nil
func (f *Flow) User() *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil
	}
	user := *f.user
	return &user
}

// Fatal returns the error that made the flow unusable, or nil
func (f *Flow) Fatal() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fatal
}

// ActivatingCouponID returns the id of the coupon mid-activation, or ""
func (f *Flow) ActivatingCouponID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activating
}

// CouponsFor returns the program's coupons in display order
func (f *Flow) CouponsFor(key domain.ProgramKey) []domain.Coupon {
	return f.registry.Sorted(key)
}

// ProgramKeys returns the program keys the customer holds coupons for
func (f *Flow) ProgramKeys() []domain.ProgramKey {
	return f.registry.Keys()
}

// HasAnyCoupons reports whether the customer holds any coupon for the
// program; decides between the purchase and activation affordances
func (f *Flow) HasAnyCoupons(key domain.ProgramKey) bool {
	return f.registry.HasAnyCoupons(key)
}

// CanActivate reports whether a coupon from the program may be activated
// right now
func (f *Flow) CanActivate(key domain.ProgramKey) bool {
	return f.gate.CanActivate(key, f.clock.Now())
}

// PaymentSession returns the open payment session, or nil
func (f *Flow) PaymentSession() *domain.PaymentSession {
	return f.orchestrator.Session()
}
