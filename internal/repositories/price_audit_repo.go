package repositories

import (
	"context"

	"subsettle/internal/models"
)

type PriceAuditRepository interface {
	Create(ctx context.Context, event *models.PriceAuditEvent) error
	List(ctx context.Context, limit, offset int) ([]*models.PriceAuditEvent, error)
}

type priceAuditRepo struct {
	db Database
}

func NewPriceAuditRepo(db Database) PriceAuditRepository {
	return &priceAuditRepo{db: db}
}

func (r *priceAuditRepo) Create(ctx context.Context, event *models.PriceAuditEvent) error {
	query := `
		INSERT INTO price_audit_events (id, actor, old_monthly, old_yearly, new_monthly, new_yearly, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.db.Exec(ctx, query, event.ID, event.Actor, event.OldMonthly, event.OldYearly, event.NewMonthly, event.NewYearly)
	return err
}

func (r *priceAuditRepo) List(ctx context.Context, limit, offset int) ([]*models.PriceAuditEvent, error) {
	query := `
		SELECT id, actor, old_monthly, old_yearly, new_monthly, new_yearly, created_at
		FROM price_audit_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.PriceAuditEvent
	for rows.Next() {
		event := &models.PriceAuditEvent{}
		if err := rows.Scan(&event.ID, &event.Actor, &event.OldMonthly, &event.OldYearly, &event.NewMonthly, &event.NewYearly, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
