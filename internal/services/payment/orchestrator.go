// Package payment orchestrates PIX purchase sessions: deterministic
// idempotency tokens, TTL-bounded local replay, heuristic transaction-id
// extraction and payment confirmation.
package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pixman/coupon-flow/internal/domain"
	"github.com/pixman/coupon-flow/internal/domain/ports"
	"github.com/pixman/coupon-flow/pkg/observability"
)

// VerifyCooldown is the minimum gap between completed manual verification
// requests. Debounces repeated "já paguei" button presses.
const VerifyCooldown = 10 * time.Second

// Orchestrator owns at most one payment session at a time. All methods are
// safe for use from a single flow; the internal mutex only protects the
// session fields across the await points of gateway calls.
type Orchestrator struct {
	gateway ports.ExternalGateway
	store   ports.KeyValueStore
	clock   ports.Clock
	logger  ports.Logger

	mu         sync.Mutex
	session    *domain.PaymentSession
	selected   *domain.RewardProgram
	creating   bool
	verifying  bool
	lastVerify time.Time
	couponBase int
}

// NewOrchestrator creates a payment orchestrator
func NewOrchestrator(gateway ports.ExternalGateway, store ports.KeyValueStore, clock ports.Clock, logger ports.Logger) *Orchestrator {
	return &Orchestrator{gateway: gateway, store: store, clock: clock, logger: logger}
}

// DeriveToken computes the idempotency token for a purchase: a SHA-224 hash
// of CPF, merchant slug and the 1-based reward program id. Deterministic and
// independent of wall-clock time, so the same purchase intent always carries
// the same token across retries, reloads and process restarts.
func DeriveToken(cpf, slug string, rewardIndex int) string {
	sum := sha256.Sum224([]byte(cpf + slug + strconv.Itoa(rewardIndex+1)))
	return hex.EncodeToString(sum[:])
}

// CacheKey addresses the local store entry for a purchase intent. Distinct
// from the idempotency token: this key never leaves the client.
func CacheKey(slug string, rewardIndex int, cpf string) string {
	return fmt.Sprintf("pix:%s:%d:%s", slug, rewardIndex, cpf)
}

// CreateOrReplay returns the payment session for a purchase intent. A cached
// unexpired session is replayed without touching the network, which is what
// makes page reloads and double-clicks free of duplicate charges; a stale
// entry is evicted and a fresh charge created through the gateway.
func (o *Orchestrator) CreateOrReplay(ctx context.Context, reward domain.RewardProgram, user domain.User, merchant domain.Merchant, rewardIndex int) (*domain.PaymentSession, error) {
	o.mu.Lock()
	if o.creating {
		o.mu.Unlock()
		return nil, domain.NewDomainError(domain.ErrorCodePaymentCreateFailed, "payment creation already in progress")
	}
	o.creating = true
	o.selected = &reward
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.creating = false
		o.mu.Unlock()
	}()

	now := o.clock.Now()
	key := CacheKey(merchant.Slug, rewardIndex, user.CPF)

	if cached, ok := o.loadCached(ctx, key, now); ok {
		session := domain.PaymentSession{
			CPF:          user.CPF,
			MerchantSlug: merchant.Slug,
			RewardIndex:  rewardIndex,
			Token:        DeriveToken(user.CPF, merchant.Slug, rewardIndex),
			Payload:      cached.Payload,
			TxID:         cached.TxID,
			ExpiresAt:    cached.ExpiresAt,
		}
		o.openSession(session)
		observability.RecordPaymentSession("replayed")
		o.logger.Info("payment session replayed from local store",
			ports.String("cache_key", key),
			ports.Duration("remaining", cached.ExpiresAt.Sub(now)))
		return o.Session(), nil
	}

	token := DeriveToken(user.CPF, merchant.Slug, rewardIndex)
	creation, err := o.gateway.CreatePayment(ctx, user.CPF, merchant.Slug, strconv.Itoa(rewardIndex+1), token)
	if err != nil {
		// Clear the selection so the caller is not left pointing at a
		// session that was never created
		o.mu.Lock()
		o.selected = nil
		o.mu.Unlock()
		o.logger.Error("payment creation failed", ports.Err(err))
		return nil, err
	}

	session := domain.PaymentSession{
		CPF:          user.CPF,
		MerchantSlug: merchant.Slug,
		RewardIndex:  rewardIndex,
		Token:        token,
		Payload:      creation.Payload,
		TxID:         ExtractTxID(creation.Payload),
		CreatedAt:    now,
		ExpiresAt:    now.Add(domain.PaymentSessionTTL),
	}

	if err := o.persist(ctx, key, session); err != nil {
		// The charge exists server-side; losing the cache entry only costs
		// replay on reload
		o.logger.Warn("failed to persist payment session", ports.Err(err))
	}

	o.openSession(session)
	observability.RecordPaymentSession("created")
	o.logger.Info("payment session created",
		ports.String("merchant", merchant.Slug),
		ports.Int("reward_index", rewardIndex),
		ports.Bool("txid_extracted", session.TxID != ""))
	return o.Session(), nil
}

// loadCached returns the cached payment for key when present and unexpired.
// Stale and corrupt entries are evicted, never surfaced as errors.
func (o *Orchestrator) loadCached(ctx context.Context, key string, now time.Time) (domain.CachedPayment, bool) {
	raw, found, err := o.store.Get(ctx, key)
	if err != nil || !found {
		return domain.CachedPayment{}, false
	}

	var cached domain.CachedPayment
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		o.logger.Warn("discarding corrupt payment cache entry", ports.String("cache_key", key))
		_ = o.store.Remove(ctx, key)
		return domain.CachedPayment{}, false
	}
	if !now.Before(cached.ExpiresAt) {
		_ = o.store.Remove(ctx, key)
		return domain.CachedPayment{}, false
	}
	return cached, true
}

func (o *Orchestrator) persist(ctx context.Context, key string, session domain.PaymentSession) error {
	raw, err := json.Marshal(domain.CachedPayment{
		Payload:   session.Payload,
		TxID:      session.TxID,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return o.store.Set(ctx, key, string(raw))
}

func (o *Orchestrator) openSession(session domain.PaymentSession) {
	o.mu.Lock()
	o.session = &session
	o.mu.Unlock()
}

// VerifyPayment polls the backend for the open session's payment status and
// returns the normalized status string. It is a graceful no-op (empty
// status, nil error) when there is no session, no extracted transaction id,
// another verification is in flight, or the cooldown has not elapsed.
func (o *Orchestrator) VerifyPayment(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.session == nil || o.session.TxID == "" || o.verifying {
		o.mu.Unlock()
		return "", nil
	}
	now := o.clock.Now()
	if !o.lastVerify.IsZero() && now.Sub(o.lastVerify) < VerifyCooldown {
		o.mu.Unlock()
		return "", nil
	}
	txID := o.session.TxID
	o.verifying = true
	o.mu.Unlock()

	status, err := o.gateway.GetPaymentStatus(ctx, txID)

	o.mu.Lock()
	o.verifying = false
	o.lastVerify = o.clock.Now()
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn("payment status check failed", ports.String("txid", txID), ports.Err(err))
		return "", err
	}

	normalized := strings.ToUpper(strings.TrimSpace(status.Status))
	if IsPaidStatus(status.Status) {
		o.fulfill(ctx, "verified")
	}
	return normalized, nil
}

// ObserveCouponCount feeds the registry's coupon count into the passive
// confirmation heuristic. A count increase while a session is open means the
// purchased coupons were delivered: the session is treated as fulfilled and
// cleared. Returns true when that happened.
//
// This correlates by count delta, not by an explicit payment-to-coupon link,
// and can in principle be satisfied by an unrelated delivery.
func (o *Orchestrator) ObserveCouponCount(ctx context.Context, count int) bool {
	o.mu.Lock()
	open := o.session != nil
	base := o.couponBase
	if !open {
		o.couponBase = count
	}
	o.mu.Unlock()

	if open && count > base {
		o.fulfill(ctx, "confirmed")
		o.mu.Lock()
		o.couponBase = count
		o.mu.Unlock()
		return true
	}
	return false
}

// fulfill closes the open session as paid: the local store entry is removed
// so a settled charge can never be replayed, and in-memory state is cleared.
func (o *Orchestrator) fulfill(ctx context.Context, disposition string) {
	o.mu.Lock()
	session := o.session
	o.session = nil
	o.selected = nil
	o.mu.Unlock()

	if session == nil {
		return
	}
	session.Confirmed = true
	_ = o.store.Remove(ctx, CacheKey(session.MerchantSlug, session.RewardIndex, session.CPF))

	observability.RecordPaymentSession(disposition)
	o.logger.Info("payment session fulfilled",
		ports.String("disposition", disposition),
		ports.String("merchant", session.MerchantSlug),
		ports.Int("reward_index", session.RewardIndex))
}

// Reset clears the in-memory session and selection. It does not cancel any
// in-flight request and deliberately leaves the local store entry in place:
// replay stays possible until the TTL expires.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.session = nil
	o.selected = nil
	o.mu.Unlock()
}

// Tick expires the open session once its TTL has elapsed, without waiting
// for further user action
func (o *Orchestrator) Tick() {
	o.mu.Lock()
	expired := o.session != nil && o.session.Expired(o.clock.Now())
	o.mu.Unlock()

	if expired {
		observability.RecordPaymentSession("expired")
		o.logger.Info("payment session expired locally")
		o.Reset()
	}
}

// RunExpiryLoop calls Tick on the given interval until the context is done
func (o *Orchestrator) RunExpiryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick()
		}
	}
}

// Session returns a copy of the open session, or nil when none is open
func (o *Orchestrator) Session() *domain.PaymentSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	session := *o.session
	return &session
}

// Selected returns the reward program the open session is buying, or nil
func (o *Orchestrator) Selected() *domain.RewardProgram {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected == nil {
		return nil
	}
	selected := *o.selected
	return &selected
}
