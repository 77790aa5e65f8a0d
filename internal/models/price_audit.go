package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceAuditEvent records an operator change to the price schedule. Settled
// payments are never repriced; the trail exists so a price at any past
// settlement can be reconstructed.
type PriceAuditEvent struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Actor      string    `json:"actor" db:"actor"`
	OldMonthly int64     `json:"old_monthly" db:"old_monthly"`
	OldYearly  int64     `json:"old_yearly" db:"old_yearly"`
	NewMonthly int64     `json:"new_monthly" db:"new_monthly"`
	NewYearly  int64     `json:"new_yearly" db:"new_yearly"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
