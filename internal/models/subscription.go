package models

import (
	"time"
)

// Tier is a subscription duration class with an associated nominal price.
type Tier string

const (
	TierMonthly Tier = "monthly"
	TierYearly  Tier = "yearly"
)

// Credited durations are fixed per tier. Price and duration are decoupled:
// a price change never alters already-granted duration.
const (
	MonthlyDuration = 30 * 24 * time.Hour
	YearlyDuration  = 365 * 24 * time.Hour
)

// Duration returns the credited duration for the tier, or false for an
// unrecognized tier.
func (t Tier) Duration() (time.Duration, bool) {
	switch t {
	case TierMonthly:
		return MonthlyDuration, true
	case TierYearly:
		return YearlyDuration, true
	}
	return 0, false
}

// Subscription is the per-user ledger record. One row per address, created on
// the first successful settlement, extended on every subsequent one, never
// deleted. A lapsed expiry means inactive; the row stays for history.
type Subscription struct {
	Address           string    `json:"address" db:"address"`
	Tier              Tier      `json:"tier" db:"tier"`
	ExpiresAt         time.Time `json:"expires_at" db:"expires_at"`
	LastPaymentAmount int64     `json:"last_payment_amount" db:"last_payment_amount"`
	PaymentCount      int       `json:"payment_count" db:"payment_count"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// ActiveAt reports whether the subscription is active at the given instant.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// SubscriptionStatus is the public read view of a ledger record. Unknown
// addresses get a zero-value inactive status rather than an error.
type SubscriptionStatus struct {
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expires_at"`
}
