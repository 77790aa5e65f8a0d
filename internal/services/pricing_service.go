package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"subsettle/internal/caching"
	"subsettle/internal/models"
	"subsettle/internal/repositories"

	"github.com/google/uuid"
)

// PricingService holds the tiered price schedule, denominated in integer base
// units of the reference asset. The yearly price is stored already net of
// discount, fixed at construction, so quotes never recompute it and drift.
type PricingService interface {
	Quote(tier models.Tier) (int64, error)
	MonthlyPrice() int64
	YearlyPrice() int64
	UpdateSchedule(ctx context.Context, actor string, monthly, yearly int64) error
}

// PricingConfig carries the schedule's constructor parameters.
type PricingConfig struct {
	MonthlyPrice      int64
	YearlyPrice       int64
	YearlyDiscountBps int64
}

type pricingService struct {
	mu        sync.RWMutex
	monthly   int64
	yearly    int64
	auditRepo repositories.PriceAuditRepository
	cacheSvc  caching.CacheService
}

// NewPricingService validates the schedule and applies the yearly discount
// once. Validation failure is fatal and blocks deployment.
func NewPricingService(cfg PricingConfig, auditRepo repositories.PriceAuditRepository, cacheSvc caching.CacheService) (PricingService, error) {
	if cfg.MonthlyPrice < 0 || cfg.YearlyPrice < 0 {
		return nil, fmt.Errorf("%w: prices must be non-negative", ErrPriceScheduleMisconfigured)
	}
	if cfg.YearlyPrice < cfg.MonthlyPrice {
		return nil, fmt.Errorf("%w: yearly price %d below monthly price %d", ErrPriceScheduleMisconfigured, cfg.YearlyPrice, cfg.MonthlyPrice)
	}
	if cfg.YearlyDiscountBps < 0 || cfg.YearlyDiscountBps >= 10000 {
		return nil, fmt.Errorf("%w: yearly discount %d bps outside [0, 10000)", ErrPriceScheduleMisconfigured, cfg.YearlyDiscountBps)
	}

	yearly := cfg.YearlyPrice - cfg.YearlyPrice*cfg.YearlyDiscountBps/10000
	if yearly < cfg.MonthlyPrice {
		return nil, fmt.Errorf("%w: discounted yearly price %d below monthly price %d", ErrPriceScheduleMisconfigured, yearly, cfg.MonthlyPrice)
	}

	return &pricingService{
		monthly:   cfg.MonthlyPrice,
		yearly:    yearly,
		auditRepo: auditRepo,
		cacheSvc:  cacheSvc,
	}, nil
}

func (s *pricingService) Quote(tier models.Tier) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch tier {
	case models.TierMonthly:
		return s.monthly, nil
	case models.TierYearly:
		return s.yearly, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
}

func (s *pricingService) MonthlyPrice() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monthly
}

func (s *pricingService) YearlyPrice() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.yearly
}

// UpdateSchedule replaces both prices and writes an audit event. Settlements
// already in flight keep the quote they captured; nothing is repriced
// retroactively. The handler layer enforces that only an operator reaches
// this method.
func (s *pricingService) UpdateSchedule(ctx context.Context, actor string, monthly, yearly int64) error {
	if monthly < 0 || yearly < 0 {
		return fmt.Errorf("%w: prices must be non-negative", ErrPriceScheduleMisconfigured)
	}
	if yearly < monthly {
		return fmt.Errorf("%w: yearly price %d below monthly price %d", ErrPriceScheduleMisconfigured, yearly, monthly)
	}

	s.mu.Lock()
	event := &models.PriceAuditEvent{
		ID:         uuid.New(),
		Actor:      actor,
		OldMonthly: s.monthly,
		OldYearly:  s.yearly,
		NewMonthly: monthly,
		NewYearly:  yearly,
		CreatedAt:  time.Now(),
	}
	s.monthly = monthly
	s.yearly = yearly
	s.mu.Unlock()

	if err := s.auditRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record price change: %w", err)
	}

	// Persist so a restart restores this schedule instead of the deploy-time
	// defaults. No TTL: the schedule has no natural expiry.
	if err := s.cacheSvc.SetPrices(ctx, monthly, yearly, 0); err != nil {
		log.Printf("WARN: failed to persist price schedule: %v", err)
	}
	return nil
}
