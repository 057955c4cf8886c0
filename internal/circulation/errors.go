// internal/circulation/errors.go
package circulation

import "errors"

// Validation errors. Each is detected before any write; the enclosing
// transaction rolls back and no aggregate is mutated.
var (
	ErrMemberNotEligible    = errors.New("member not eligible")
	ErrBookNotAvailable     = errors.New("book not available")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrLoanAlreadyReturned  = errors.New("loan already returned")
	ErrRenewalNotAllowed    = errors.New("renewal not allowed")
	ErrLoanNotCancellable   = errors.New("loan not cancellable")
	ErrFineNotFound         = errors.New("fine not found")
	ErrMemberMismatch       = errors.New("fine does not belong to member")
	ErrOverpayment          = errors.New("payment exceeds outstanding amount")
	ErrInvalidAmount        = errors.New("payment amount must be positive")
	ErrFineClosed           = errors.New("fine is already settled")
	ErrPaymentNotRefundable = errors.New("payment cannot be refunded")
	ErrInvalidTransition    = errors.New("invalid loan status transition")
)

// Store-level errors.
var (
	// ErrNotFound is returned by the store when a record id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict signals a concurrent modification of the same record.
	// The operation performed no writes and is safe to retry as a whole.
	ErrConflict = errors.New("concurrent modification conflict")
)
