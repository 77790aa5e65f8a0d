package jobs

import (
	"context"
	"log"
	"time"

	"subsettle/internal/models"
	"subsettle/internal/repositories"
	"subsettle/internal/services"

	"github.com/go-co-op/gocron/v2"
)

const (
	reconcileInterval = time.Minute
	staleAfter        = 10 * time.Minute
)

// Reconciler sweeps settlement journal rows that never reached a terminal
// state: crash leftovers and refunds that failed mid-rollback. What it does
// with a row depends on how far the settlement got before stopping.
type Reconciler struct {
	scheduler   gocron.Scheduler
	journalRepo repositories.JournalRepository
	tokenSvc    services.TokenService
	cfg         services.SettlementConfig
}

func NewReconciler(journalRepo repositories.JournalRepository, tokenSvc services.TokenService, cfg services.SettlementConfig) (*Reconciler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	r := &Reconciler{
		scheduler:   scheduler,
		journalRepo: journalRepo,
		tokenSvc:    tokenSvc,
		cfg:         cfg,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(reconcileInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), reconcileInterval)
			defer cancel()
			if err := r.Run(ctx); err != nil {
				log.Printf("ERROR: journal reconciliation failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reconciler) Start() {
	log.Printf("Starting settlement journal reconciler (every %s, stale after %s)", reconcileInterval, staleAfter)
	r.scheduler.Start()
}

func (r *Reconciler) Stop() error {
	return r.scheduler.Shutdown()
}

// Run performs one reconciliation pass. Exported so startup can run an
// immediate sweep before accepting traffic.
func (r *Reconciler) Run(ctx context.Context) error {
	stale, err := r.journalRepo.ListStale(ctx, time.Now().Add(-staleAfter))
	if err != nil {
		return err
	}

	for _, entry := range stale {
		if err := r.reconcile(ctx, entry); err != nil {
			log.Printf("ERROR: could not reconcile journal %s (state %s): %v", entry.ID, entry.State, err)
		}
	}
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, entry *models.SettlementJournal) error {
	switch entry.State {
	case models.JournalPending:
		// Nothing was pulled; just close the row.
	case models.JournalFundsPulled:
		// Payment token sits with the engine; return it.
		if err := r.tokenSvc.Transfer(ctx, entry.PaymentToken, entry.Address, entry.AmountIn); err != nil {
			return err
		}
	case models.JournalSwapped:
		// Swap completed but the ledger never committed; return the
		// reference-asset proceeds.
		if err := r.tokenSvc.Transfer(ctx, r.cfg.ReferenceToken, entry.Address, entry.AmountOut); err != nil {
			return err
		}
	case models.JournalCommitted:
		// Ledger committed but the proceeds never reached the treasury.
		// The subscription stands; finish the forward instead of refunding.
		if err := r.tokenSvc.Transfer(ctx, r.cfg.ReferenceToken, r.cfg.Treasury, entry.AmountOut); err != nil {
			return err
		}
		return r.close(ctx, entry, models.JournalCompleted)
	default:
		return nil
	}
	return r.close(ctx, entry, models.JournalRolledBack)
}

func (r *Reconciler) close(ctx context.Context, entry *models.SettlementJournal, state models.JournalState) error {
	if err := r.journalRepo.SetState(ctx, entry.ID, state, entry.AmountOut); err != nil {
		return err
	}
	log.Printf("Reconciled settlement journal %s for %s (%s -> %s)", entry.ID, entry.Address, entry.State, state)
	return nil
}
