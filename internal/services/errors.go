package services

import "errors"

// Settlement error taxonomy. Every mutating failure guarantees zero partial
// state: no funds pulled without a matching ledger update, no ledger update
// without funds received.
var (
	// ErrInsufficientAllowance means the payer has not authorized enough
	// payment-token spend. Recoverable: re-approve and retry.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrSwapFailed means the router reverted, timed out or hit its deadline.
	// Recoverable: retry with fresh parameters. No state changed.
	ErrSwapFailed = errors.New("swap failed")

	// ErrUnderfundedPayment means the swap succeeded but yielded less than the
	// nominal price. Partial payments are rejected, not partially credited.
	ErrUnderfundedPayment = errors.New("underfunded payment")

	// ErrInvalidTier means an unrecognized subscription tier was requested.
	// Caller bug, not retried.
	ErrInvalidTier = errors.New("invalid tier")

	// ErrPriceScheduleMisconfigured is a construction-time validation failure.
	// Fatal: blocks startup.
	ErrPriceScheduleMisconfigured = errors.New("price schedule misconfigured")
)
