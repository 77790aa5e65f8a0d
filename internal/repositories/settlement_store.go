package repositories

import (
	"context"
	"fmt"

	"subsettle/internal/models"

	"github.com/google/uuid"
)

// SettlementStore commits the final leg of a settlement: the ledger upsert,
// the receipt insert and the journal advance to committed happen in one
// transaction, so a crash anywhere in between leaves either no trace or a
// journal row the reconciler can act on. There is never a ledger update
// without a matching receipt and committed journal entry.
type SettlementStore interface {
	Commit(ctx context.Context, journalID uuid.UUID, subscription *models.Subscription, receipt *models.Receipt) error
}

type settlementStore struct {
	db Database
}

func NewSettlementStore(db Database) SettlementStore {
	return &settlementStore{db: db}
}

func (s *settlementStore) Commit(ctx context.Context, journalID uuid.UUID, subscription *models.Subscription, receipt *models.Receipt) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement commit: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO subscriptions (address, tier, expires_at, last_payment_amount, payment_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		ON CONFLICT (address) DO UPDATE SET
			tier = EXCLUDED.tier,
			expires_at = EXCLUDED.expires_at,
			last_payment_amount = EXCLUDED.last_payment_amount,
			payment_count = subscriptions.payment_count + 1,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, upsert, subscription.Address, subscription.Tier, subscription.ExpiresAt, subscription.LastPaymentAmount); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	insertReceipt := `
		INSERT INTO receipts (id, address, tier, payment_token, amount_in, amount_charged, new_expiry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	if _, err := tx.Exec(ctx, insertReceipt, receipt.ID, receipt.Address, receipt.Tier, receipt.PaymentToken, receipt.AmountIn, receipt.AmountCharged, receipt.NewExpiry); err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	advanceJournal := `
		UPDATE settlement_journal
		SET state = $1, amount_out = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := tx.Exec(ctx, advanceJournal, models.JournalCommitted, receipt.AmountCharged, journalID); err != nil {
		return fmt.Errorf("advance journal: %w", err)
	}

	return tx.Commit(ctx)
}
