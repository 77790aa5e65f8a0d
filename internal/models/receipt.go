package models

import (
	"time"

	"github.com/google/uuid"
)

// Receipt records one settled payment. Amounts are integer base units of the
// reference asset except AmountIn, which is denominated in the payment token.
// AmountCharged is the actual swap output, never the nominal pre-swap input.
type Receipt struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Address       string    `json:"address" db:"address"`
	Tier          Tier      `json:"tier" db:"tier"`
	PaymentToken  string    `json:"payment_token" db:"payment_token"`
	AmountIn      int64     `json:"amount_in" db:"amount_in"`
	AmountCharged int64     `json:"amount_charged" db:"amount_charged"`
	NewExpiry     time.Time `json:"new_expiry" db:"new_expiry"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
