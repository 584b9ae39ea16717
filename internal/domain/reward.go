package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Merchant identifies the storefront the flow is running for
type Merchant struct {
	Slug        string
	DisplayName string
	Status      string
	LogoURL     string
}

// User is the customer record keyed by CPF. Immutable once created from the
// client's perspective.
type User struct {
	CPF       string
	Email     string
	CreatedAt time.Time
}

// RewardProgram describes one purchasable coupon bundle. Immutable once
// fetched for a session.
type RewardProgram struct {
	ProgramName string
	ProgramRule string
	Quantity    int
	Reward      string
	Price       decimal.Decimal
}

// Key returns the program key used to correlate this program with the
// user's coupons. Coupons carry the reward name, not the program's display
// name, so the key prefers Reward and only falls back to ProgramName when
// the backend omits it.
func (r RewardProgram) Key() ProgramKey {
	name := r.Reward
	if name == "" {
		name = r.ProgramName
	}
	return ProgramKey{Name: name, Rule: r.ProgramRule}
}

var priceJunk = regexp.MustCompile(`[^\d.,]`)

// ParsePrice normalizes a backend price into a decimal. Amounts arrive either
// as numbers or as pt-BR formatted strings ("5,00", "R$ 5,00"); anything
// unparsable becomes zero rather than an error.
func ParsePrice(raw string) decimal.Decimal {
	clean := priceJunk.ReplaceAllString(raw, "")
	clean = strings.ReplaceAll(clean, ",", ".")
	if i := strings.LastIndex(clean, "."); i >= 0 {
		// Collapse thousand separators: keep only the last dot
		clean = strings.ReplaceAll(clean[:i], ".", "") + clean[i:]
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatPrice renders a price the way the storefront shows it: two decimal
// places with a comma separator
func FormatPrice(d decimal.Decimal) string {
	return strings.ReplaceAll(d.StringFixed(2), ".", ",")
}
