package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"subsettle/internal/caching"
	"subsettle/internal/models"
	"subsettle/internal/repositories"
)

const subscriptionCacheTTL = 5 * time.Minute

// LedgerService is the authoritative view of per-user subscription state.
// Reads are cache-backed; the only mutation path is Extend, whose result is
// persisted by the settlement commit, so expiry can never move except through
// a settled payment.
type LedgerService interface {
	GetRecord(ctx context.Context, address string) (*models.Subscription, error)
	GetStatus(ctx context.Context, address string) (*models.SubscriptionStatus, error)
	Extend(existing *models.Subscription, address string, tier models.Tier, creditedAmount int64, now time.Time) (*models.Subscription, error)
}

type ledgerService struct {
	subscriptionRepo repositories.SubscriptionRepository
	cacheSvc         caching.CacheService
}

func NewLedgerService(subscriptionRepo repositories.SubscriptionRepository, cacheSvc caching.CacheService) LedgerService {
	return &ledgerService{
		subscriptionRepo: subscriptionRepo,
		cacheSvc:         cacheSvc,
	}
}

// GetRecord returns the ledger record for an address. An address that never
// paid gets the default inactive record (zero expiry) rather than an error.
func (s *ledgerService) GetRecord(ctx context.Context, address string) (*models.Subscription, error) {
	if cached, err := s.cacheSvc.GetSubscription(ctx, address); err == nil && cached != nil {
		return cached, nil
	}

	subscription, err := s.subscriptionRepo.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscription: %w", err)
	}
	if subscription == nil {
		return &models.Subscription{Address: address}, nil
	}

	// Cache write failures never fail a read.
	if err := s.cacheSvc.SetSubscription(ctx, subscription, subscriptionCacheTTL); err != nil {
		log.Printf("WARN: failed to cache subscription for %s: %v", address, err)
	}
	return subscription, nil
}

func (s *ledgerService) GetStatus(ctx context.Context, address string) (*models.SubscriptionStatus, error) {
	record, err := s.GetRecord(ctx, address)
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionStatus{
		Address:   address,
		Active:    record.ActiveAt(time.Now()),
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Extend computes the record after crediting one payment. The new expiry is
// max(existing expiry, now) + tier duration: a lapsed subscriber starts a
// fresh period at payment time, an active one stacks the new period onto the
// remaining balance. Expiry never decreases. The credited amount is the
// post-swap reference-asset proceeds, recorded as LastPaymentAmount; it does
// not influence the duration.
func (s *ledgerService) Extend(existing *models.Subscription, address string, tier models.Tier, creditedAmount int64, now time.Time) (*models.Subscription, error) {
	duration, ok := tier.Duration()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}

	base := now
	if existing != nil && existing.ExpiresAt.After(now) {
		base = existing.ExpiresAt
	}

	updated := &models.Subscription{
		Address:           address,
		Tier:              tier,
		ExpiresAt:         base.Add(duration),
		LastPaymentAmount: creditedAmount,
		PaymentCount:      1,
	}
	if existing != nil {
		updated.PaymentCount = existing.PaymentCount + 1
		updated.CreatedAt = existing.CreatedAt
	}
	return updated, nil
}
