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

// SettlementService orchestrates one payment end to end: quote, pull, swap,
// verify, extend, forward, receipt. Settlements for the same address are
// serialized; distinct addresses proceed in parallel. Any failure before the
// final commit refunds the payer and leaves the ledger untouched.
type SettlementService interface {
	PayFor(ctx context.Context, address string, tier models.Tier, paymentToken string) (*models.Receipt, error)
}

// SettlementConfig identifies the engine's own custody address, the treasury
// that receives settled proceeds, and the reference asset they are paid in.
type SettlementConfig struct {
	EngineAddress  string
	Treasury       string
	ReferenceToken string
}

type settlementService struct {
	cfg              SettlementConfig
	pricingSvc       PricingService
	swapSvc          SwapService
	tokenSvc         TokenService
	ledgerSvc        LedgerService
	subscriptionRepo repositories.SubscriptionRepository
	journalRepo      repositories.JournalRepository
	store            repositories.SettlementStore
	cacheSvc         caching.CacheService
	archiveSvc       ArchiveService

	locks sync.Map // address -> *sync.Mutex
	now   func() time.Time
}

func NewSettlementService(
	cfg SettlementConfig,
	pricingSvc PricingService,
	swapSvc SwapService,
	tokenSvc TokenService,
	ledgerSvc LedgerService,
	subscriptionRepo repositories.SubscriptionRepository,
	journalRepo repositories.JournalRepository,
	store repositories.SettlementStore,
	cacheSvc caching.CacheService,
	archiveSvc ArchiveService,
) SettlementService {
	return &settlementService{
		cfg:              cfg,
		pricingSvc:       pricingSvc,
		swapSvc:          swapSvc,
		tokenSvc:         tokenSvc,
		ledgerSvc:        ledgerSvc,
		subscriptionRepo: subscriptionRepo,
		journalRepo:      journalRepo,
		store:            store,
		cacheSvc:         cacheSvc,
		archiveSvc:       archiveSvc,
		now:              time.Now,
	}
}

func (s *settlementService) userLock(address string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(address, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// PayFor settles one subscription payment. The quote is captured once, up
// front, and held for the whole settlement; an operator price change landing
// mid-flight does not reprice it. A journal row is written before any funds
// move, so a crash at any point leaves a trail the reconciler can refund.
func (s *settlementService) PayFor(ctx context.Context, address string, tier models.Tier, paymentToken string) (*models.Receipt, error) {
	mu := s.userLock(address)
	mu.Lock()
	defer mu.Unlock()

	// Step 1: capture the quote.
	requiredAmount, err := s.pricingSvc.Quote(tier)
	if err != nil {
		return nil, err
	}

	// How much of the payment token the router needs to cover the price.
	amountIn, err := s.swapSvc.QuoteInput(ctx, paymentToken, requiredAmount)
	if err != nil {
		return nil, err
	}

	// Step 2 precondition: the payer must have approved at least amountIn.
	allowance, err := s.tokenSvc.Allowance(ctx, paymentToken, address, s.cfg.EngineAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}
	if allowance < amountIn {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientAllowance, allowance, amountIn)
	}

	// Write-ahead entry before any funds move.
	journal := &models.SettlementJournal{
		ID:           uuid.New(),
		Address:      address,
		Tier:         tier,
		PaymentToken: paymentToken,
		AmountIn:     amountIn,
		State:        models.JournalPending,
	}
	if err := s.journalRepo.Create(ctx, journal); err != nil {
		return nil, fmt.Errorf("failed to open settlement journal: %w", err)
	}

	// Step 2: pull funds from the payer.
	if err := s.tokenSvc.TransferFrom(ctx, paymentToken, address, s.cfg.EngineAddress, amountIn); err != nil {
		s.rollBack(ctx, journal.ID)
		return nil, fmt.Errorf("%w: %v", ErrInsufficientAllowance, err)
	}
	s.markState(ctx, journal.ID, models.JournalFundsPulled, 0)

	// Step 3: swap into the reference asset.
	amountOut, err := s.swapSvc.SwapToReference(ctx, paymentToken, amountIn, s.cfg.EngineAddress)
	if err != nil {
		s.refundAndClose(ctx, journal.ID, paymentToken, address, amountIn)
		return nil, err
	}
	s.markState(ctx, journal.ID, models.JournalSwapped, amountOut)

	// Step 4: real proceeds must cover the nominal price. Partial payments
	// are rejected, not partially credited.
	if amountOut < requiredAmount {
		s.refundAndClose(ctx, journal.ID, s.cfg.ReferenceToken, address, amountOut)
		return nil, fmt.Errorf("%w: swap yielded %d, price is %d", ErrUnderfundedPayment, amountOut, requiredAmount)
	}

	// Step 5: compute the extension off the stored ledger row. The read
	// bypasses the cache, which may lag a committed payment and would make
	// the extension shorten the subscription; the per-address lock keeps the
	// repository read consistent. Unknown addresses come back nil and start
	// a fresh record.
	existing, err := s.subscriptionRepo.Get(ctx, address)
	if err != nil {
		s.refundAndClose(ctx, journal.ID, s.cfg.ReferenceToken, address, amountOut)
		return nil, fmt.Errorf("failed to read subscription: %w", err)
	}

	now := s.now()
	subscription, err := s.ledgerSvc.Extend(existing, address, tier, amountOut, now)
	if err != nil {
		s.refundAndClose(ctx, journal.ID, s.cfg.ReferenceToken, address, amountOut)
		return nil, err
	}

	receipt := &models.Receipt{
		ID:            uuid.New(),
		Address:       address,
		Tier:          tier,
		PaymentToken:  paymentToken,
		AmountIn:      amountIn,
		AmountCharged: amountOut,
		NewExpiry:     subscription.ExpiresAt,
		CreatedAt:     now,
	}

	// Step 5 commit: ledger upsert, receipt insert and journal advance to
	// committed in one transaction. This is the point of finality. The
	// proceeds are still held by the engine here, so a failed commit can
	// refund the payer in full.
	if err := s.store.Commit(ctx, journal.ID, subscription, receipt); err != nil {
		s.refundAndClose(ctx, journal.ID, s.cfg.ReferenceToken, address, amountOut)
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	// Step 6: forward proceeds to the treasury. Favorable execution above
	// the nominal price is retained by the treasury, not refunded. The
	// subscription is already granted; if the forward fails the row stays
	// committed and the reconciler retries the transfer.
	if err := s.tokenSvc.Transfer(ctx, s.cfg.ReferenceToken, s.cfg.Treasury, amountOut); err != nil {
		log.Printf("ERROR: treasury forward of %d failed, leaving journal %s committed: %v", amountOut, journal.ID, err)
	} else {
		s.markState(ctx, journal.ID, models.JournalCompleted, amountOut)
	}

	if err := s.cacheSvc.DeleteSubscription(ctx, address); err != nil {
		log.Printf("WARN: failed to invalidate subscription cache for %s: %v", address, err)
	}
	if err := s.archiveSvc.StoreReceipt(ctx, receipt); err != nil {
		log.Printf("WARN: failed to archive receipt %s: %v", receipt.ID, err)
	}

	return receipt, nil
}

// refundAndClose returns held funds to the payer and marks the journal row
// rolled back. If the refund itself fails, the row keeps its current state so
// the reconciler retries instead of the failure being swallowed.
func (s *settlementService) refundAndClose(ctx context.Context, journalID uuid.UUID, token, to string, amount int64) {
	if err := s.tokenSvc.Transfer(ctx, token, to, amount); err != nil {
		log.Printf("ERROR: refund of %d %s to %s failed, leaving journal %s open: %v", amount, token, to, journalID, err)
		return
	}
	s.rollBack(ctx, journalID)
}

func (s *settlementService) markState(ctx context.Context, id uuid.UUID, state models.JournalState, amountOut int64) {
	if err := s.journalRepo.SetState(ctx, id, state, amountOut); err != nil {
		log.Printf("ERROR: failed to advance journal %s to %s: %v", id, state, err)
	}
}

func (s *settlementService) rollBack(ctx context.Context, id uuid.UUID) {
	if err := s.journalRepo.SetState(ctx, id, models.JournalRolledBack, 0); err != nil {
		log.Printf("ERROR: failed to mark journal %s rolled back: %v", id, err)
	}
}
