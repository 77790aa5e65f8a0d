package repositories

import (
	"context"
	"errors"

	"subsettle/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ReceiptRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
	ListByAddress(ctx context.Context, address string, limit, offset int) ([]*models.Receipt, error)
}

type receiptRepo struct {
	db Database
}

func NewReceiptRepo(db Database) ReceiptRepository {
	return &receiptRepo{db: db}
}

// Receipts are inserted only inside the settlement commit transaction (see
// SettlementStore); this repository is the read side.
func (r *receiptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	query := `
		SELECT id, address, tier, payment_token, amount_in, amount_charged, new_expiry, created_at
		FROM receipts
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&receipt.ID, &receipt.Address, &receipt.Tier, &receipt.PaymentToken, &receipt.AmountIn, &receipt.AmountCharged, &receipt.NewExpiry, &receipt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return receipt, nil
}

func (r *receiptRepo) ListByAddress(ctx context.Context, address string, limit, offset int) ([]*models.Receipt, error) {
	query := `
		SELECT id, address, tier, payment_token, amount_in, amount_charged, new_expiry, created_at
		FROM receipts
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, address, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		receipt := &models.Receipt{}
		if err := rows.Scan(&receipt.ID, &receipt.Address, &receipt.Tier, &receipt.PaymentToken, &receipt.AmountIn, &receipt.AmountCharged, &receipt.NewExpiry, &receipt.CreatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}
