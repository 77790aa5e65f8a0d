package models

import (
	"time"

	"github.com/google/uuid"
)

// JournalState tracks how far a settlement progressed before it either
// committed or failed. The row is written before any funds move, so a crash
// mid-settlement leaves a trail the reconciler can act on.
type JournalState string

const (
	JournalPending     JournalState = "pending"      // row written, nothing pulled yet
	JournalFundsPulled JournalState = "funds_pulled" // payment token pulled from payer
	JournalSwapped     JournalState = "swapped"      // swap executed, reference asset held
	JournalCommitted   JournalState = "committed"    // ledger committed, proceeds still held
	JournalCompleted   JournalState = "completed"    // proceeds forwarded to the treasury
	JournalRolledBack  JournalState = "rolled_back"  // refunded, no ledger change
)

// SettlementJournal is the write-ahead record for one settlement attempt.
// AmountOut is zero until the swap executes.
type SettlementJournal struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Address      string       `json:"address" db:"address"`
	Tier         Tier         `json:"tier" db:"tier"`
	PaymentToken string       `json:"payment_token" db:"payment_token"`
	AmountIn     int64        `json:"amount_in" db:"amount_in"`
	AmountOut    int64        `json:"amount_out" db:"amount_out"`
	State        JournalState `json:"state" db:"state"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
