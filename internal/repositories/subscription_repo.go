package repositories

import (
	"context"
	"errors"

	"subsettle/internal/models"

	"github.com/jackc/pgx/v5"
)

type SubscriptionRepository interface {
	Get(ctx context.Context, address string) (*models.Subscription, error)
	List(ctx context.Context, limit, offset int) ([]*models.Subscription, error)
}

type subscriptionRepo struct {
	db Database
}

func NewSubscriptionRepo(db Database) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

// Get returns the ledger record for an address, or nil when the address has
// never settled a payment. Callers translate nil into the inactive default.
func (r *subscriptionRepo) Get(ctx context.Context, address string) (*models.Subscription, error) {
	subscription := &models.Subscription{}
	query := `
		SELECT address, tier, expires_at, last_payment_amount, payment_count, created_at, updated_at
		FROM subscriptions
		WHERE address = $1
	`
	err := r.db.QueryRow(ctx, query, address).Scan(&subscription.Address, &subscription.Tier, &subscription.ExpiresAt, &subscription.LastPaymentAmount, &subscription.PaymentCount, &subscription.CreatedAt, &subscription.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return subscription, nil
}

func (r *subscriptionRepo) List(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	query := `
		SELECT address, tier, expires_at, last_payment_amount, payment_count, created_at, updated_at
		FROM subscriptions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		subscription := &models.Subscription{}
		if err := rows.Scan(&subscription.Address, &subscription.Tier, &subscription.ExpiresAt, &subscription.LastPaymentAmount, &subscription.PaymentCount, &subscription.CreatedAt, &subscription.UpdatedAt); err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}
