package domain

import "time"

// PaymentSessionTTL bounds how long a cached PIX charge stays replayable.
// Within the window a reload returns the same charge instead of creating a
// duplicate; after it the cached entry is evicted and a new charge is issued.
const PaymentSessionTTL = 30 * time.Minute

// PaymentSession is one in-flight PIX purchase attempt, owned exclusively by
// the payment orchestrator and persisted in the local key-value store so a
// page reload inside the TTL window replays the same charge.
type PaymentSession struct {
	CPF          string
	MerchantSlug string
	RewardIndex  int

	// Token is the deterministic idempotency key sent to the backend
	Token string

	// Payload is the opaque PIX "copia e cola" string returned by the backend
	Payload string

	// TxID is the transaction identifier heuristically extracted from the
	// payload; empty when no heuristic matched
	TxID string

	CreatedAt time.Time
	ExpiresAt time.Time
	Confirmed bool
}

// Expired reports whether the session's replay window has closed
func (s PaymentSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CachedPayment is the JSON shape persisted to the local key-value store
type CachedPayment struct {
	Payload   string    `json:"payload"`
	TxID      string    `json:"txid,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}
