package repositories

import (
	"context"
	"time"

	"subsettle/internal/models"

	"github.com/google/uuid"
)

type JournalRepository interface {
	Create(ctx context.Context, entry *models.SettlementJournal) error
	SetState(ctx context.Context, id uuid.UUID, state models.JournalState, amountOut int64) error
	ListStale(ctx context.Context, olderThan time.Time) ([]*models.SettlementJournal, error)
}

type journalRepo struct {
	db Database
}

func NewJournalRepo(db Database) JournalRepository {
	return &journalRepo{db: db}
}

func (r *journalRepo) Create(ctx context.Context, entry *models.SettlementJournal) error {
	query := `
		INSERT INTO settlement_journal (id, address, tier, payment_token, amount_in, amount_out, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.Address, entry.Tier, entry.PaymentToken, entry.AmountIn, entry.AmountOut, entry.State)
	return err
}

func (r *journalRepo) SetState(ctx context.Context, id uuid.UUID, state models.JournalState, amountOut int64) error {
	query := `
		UPDATE settlement_journal
		SET state = $1, amount_out = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, state, amountOut, id)
	return err
}

// ListStale returns attempts that started before the cutoff and never reached
// a terminal state. These are the crash leftovers the reconciler refunds or,
// for committed rows, finishes forwarding.
func (r *journalRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*models.SettlementJournal, error) {
	query := `
		SELECT id, address, tier, payment_token, amount_in, amount_out, state, created_at, updated_at
		FROM settlement_journal
		WHERE state IN ('pending', 'funds_pulled', 'swapped', 'committed') AND updated_at < $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.SettlementJournal
	for rows.Next() {
		entry := &models.SettlementJournal{}
		if err := rows.Scan(&entry.ID, &entry.Address, &entry.Tier, &entry.PaymentToken, &entry.AmountIn, &entry.AmountOut, &entry.State, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
