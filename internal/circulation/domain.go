// internal/circulation/domain.go
package circulation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus tracks where a loan is in its lifecycle.
type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanRenewed   LoanStatus = "renewed"
	LoanOverdue   LoanStatus = "overdue"
	LoanReturned  LoanStatus = "returned"
	LoanLost      LoanStatus = "lost"
	LoanDamaged   LoanStatus = "damaged"
	LoanCancelled LoanStatus = "cancelled"
)

// loanTransitions is the closed transition table for the loan state
// machine. A damaged loan is still out with the member and may later be
// returned or declared lost.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanActive:  {LoanRenewed, LoanOverdue, LoanReturned, LoanLost, LoanDamaged, LoanCancelled},
	LoanRenewed: {LoanRenewed, LoanOverdue, LoanReturned, LoanLost, LoanDamaged},
	LoanOverdue: {LoanReturned, LoanLost, LoanDamaged},
	LoanDamaged: {LoanReturned, LoanLost},
}

// CanTransitionTo reports whether the state machine allows moving from
// s to the given status.
func (s LoanStatus) CanTransitionTo(to LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the loan lifecycle.
func (s LoanStatus) Terminal() bool {
	return s == LoanReturned || s == LoanLost || s == LoanCancelled
}

// ReturnCondition describes the physical state of a book at return time.
type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "good"
	ConditionDamaged ReturnCondition = "damaged"
	ConditionLost    ReturnCondition = "lost"
)

// Valid reports whether the condition is one of the known values.
func (c ReturnCondition) Valid() bool {
	return c == ConditionGood || c == ConditionDamaged || c == ConditionLost
}

// Loan represents a single borrowing event. MemberID and BookID are
// immutable after creation.
type Loan struct {
	ID            uuid.UUID       `json:"id"`
	MemberID      uuid.UUID       `json:"member_id"`
	BookID        uuid.UUID       `json:"book_id"`
	LoanDate      time.Time       `json:"loan_date"`
	DueDate       time.Time       `json:"due_date"`
	ReturnDate    *time.Time      `json:"return_date,omitempty"`
	Status        LoanStatus      `json:"status"`
	RenewalsCount int             `json:"renewals_count"`
	MaxRenewals   int             `json:"max_renewals"`
	IsReturned    bool            `json:"is_returned"`
	TotalFines    decimal.Decimal `json:"total_fines"`
	FinesPaid     decimal.Decimal `json:"fines_paid"`
	LateFeePerDay decimal.Decimal `json:"late_fee_per_day"`
	ProcessedBy   string          `json:"processed_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// Outstanding returns the unpaid share of the loan's fines. Derived so
// the invariant outstanding = total − paid cannot drift.
func (l *Loan) Outstanding() decimal.Decimal {
	return l.TotalFines.Sub(l.FinesPaid)
}

// Open reports whether the loan still binds the book to the member.
// Cancelled loans never took effect and lost loans are written off, so
// neither blocks the book.
func (l *Loan) Open() bool {
	return !l.IsReturned && l.Status != LoanCancelled && l.Status != LoanLost
}

// DaysOverdue returns the number of whole days the loan is past due at
// the given instant, never negative.
func (l *Loan) DaysOverdue(now time.Time) int {
	return DaysOverdue(l.DueDate, now)
}

// AccruedFine returns the overdue fine the loan would incur if returned
// at the given instant. Used for on-demand display; fines are only
// recorded at return time.
func (l *Loan) AccruedFine(now time.Time) decimal.Decimal {
	return OverdueFineAmount(l.DaysOverdue(now), l.LateFeePerDay)
}

// transitionTo moves the loan to the target status, refreshing a stale
// active/renewed status to overdue first so the transition table is
// applied against the loan's true state.
func (l *Loan) transitionTo(to LoanStatus, now time.Time) error {
	from := l.Status
	if (from == LoanActive || from == LoanRenewed) && l.DaysOverdue(now) > 0 {
		from = LoanOverdue
	}
	if from != to && !from.CanTransitionTo(to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	l.Status = to
	return nil
}

// Renew extends the due date by periodDays and records the attempt as a
// Renewal. Each call extends again; idempotency is the caller's
// responsibility. Cross-aggregate preconditions (member may renew,
// outstanding fines are zero) are checked by the coordinator.
func (l *Loan) Renew(now time.Time, periodDays int, processedBy string) (*Renewal, error) {
	if !l.Open() || l.IsReturned {
		return nil, fmt.Errorf("loan %s is %s: %w", l.ID, l.Status, ErrLoanAlreadyReturned)
	}
	if l.DaysOverdue(now) > 0 {
		return nil, fmt.Errorf("loan %s is overdue: %w", l.ID, ErrRenewalNotAllowed)
	}
	if l.RenewalsCount >= l.MaxRenewals {
		return nil, fmt.Errorf("loan %s used %d of %d renewals: %w", l.ID, l.RenewalsCount, l.MaxRenewals, ErrRenewalNotAllowed)
	}
	if err := l.transitionTo(LoanRenewed, now); err != nil {
		return nil, err
	}

	previousDue := l.DueDate
	l.DueDate = l.DueDate.AddDate(0, 0, periodDays)
	l.RenewalsCount++

	return &Renewal{
		ID:              uuid.New(),
		LoanID:          l.ID,
		RenewedAt:       now,
		PreviousDueDate: previousDue,
		NewDueDate:      l.DueDate,
		ProcessedBy:     processedBy,
	}, nil
}

// MarkReturned closes the loan as returned at the given instant.
func (l *Loan) MarkReturned(now time.Time) error {
	if l.IsReturned || !l.Open() {
		return fmt.Errorf("loan %s is %s: %w", l.ID, l.Status, ErrLoanAlreadyReturned)
	}
	if err := l.transitionTo(LoanReturned, now); err != nil {
		return err
	}
	returnedAt := now
	l.ReturnDate = &returnedAt
	l.IsReturned = true
	return nil
}

// Cancel voids a loan that was created in error. Only valid while the
// loan is active and not yet due; no fine results.
func (l *Loan) Cancel(now time.Time) error {
	if l.Status != LoanActive || l.IsReturned || now.After(l.DueDate) {
		return fmt.Errorf("loan %s (status %s): %w", l.ID, l.Status, ErrLoanNotCancellable)
	}
	l.Status = LoanCancelled
	return nil
}

// AddFine attaches a fine amount to the loan's running totals.
func (l *Loan) AddFine(amount decimal.Decimal) {
	l.TotalFines = l.TotalFines.Add(amount)
}

// Renewal is an append-only history record of one due-date extension.
type Renewal struct {
	ID              uuid.UUID `json:"id"`
	LoanID          uuid.UUID `json:"loan_id"`
	RenewedAt       time.Time `json:"renewed_at"`
	PreviousDueDate time.Time `json:"previous_due_date"`
	NewDueDate      time.Time `json:"new_due_date"`
	ProcessedBy     string    `json:"processed_by,omitempty"`
}

// FineStatus tracks settlement of a single fine.
type FineStatus string

const (
	FineOpen          FineStatus = "open"
	FinePartiallyPaid FineStatus = "partially_paid"
	FinePaid          FineStatus = "paid"
	FineWaived        FineStatus = "waived"
)

// FineReason names the violation that produced a fine.
type FineReason string

const (
	FineOverdue FineReason = "overdue"
	FineLost    FineReason = "lost"
	FineDamaged FineReason = "damaged"
)

// Fine is a per-violation monetary record derived from a loan.
type Fine struct {
	ID         uuid.UUID       `json:"id"`
	LoanID     uuid.UUID       `json:"loan_id"`
	MemberID   uuid.UUID       `json:"member_id"`
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Status     FineStatus      `json:"status"`
	Reason     FineReason      `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Version    int             `json:"version"`
}

// Outstanding returns the unpaid share of the fine.
func (f *Fine) Outstanding() decimal.Decimal {
	return f.Amount.Sub(f.AmountPaid)
}

// ApplyPayment records a partial or full settlement. The amount must be
// positive and must not exceed the outstanding balance.
func (f *Fine) ApplyPayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount %s: %w", amount, ErrInvalidAmount)
	}
	if f.Status == FineWaived || f.Status == FinePaid {
		return fmt.Errorf("fine %s is %s: %w", f.ID, f.Status, ErrFineClosed)
	}
	if amount.GreaterThan(f.Outstanding()) {
		return fmt.Errorf("amount %s exceeds outstanding %s: %w", amount, f.Outstanding(), ErrOverpayment)
	}

	f.AmountPaid = f.AmountPaid.Add(amount)
	if f.AmountPaid.Equal(f.Amount) {
		f.Status = FinePaid
	} else {
		f.Status = FinePartiallyPaid
	}
	return nil
}

// RevertPayment undoes a previously applied settlement, used when a
// payment is refunded.
func (f *Fine) RevertPayment(amount decimal.Decimal) {
	f.AmountPaid = f.AmountPaid.Sub(amount)
	if f.AmountPaid.IsZero() {
		f.Status = FineOpen
	} else {
		f.Status = FinePartiallyPaid
	}
}

// Waive forgives the outstanding balance without payment.
func (f *Fine) Waive() (decimal.Decimal, error) {
	if f.Status == FineWaived || f.Status == FinePaid {
		return decimal.Zero, fmt.Errorf("fine %s is %s: %w", f.ID, f.Status, ErrFineClosed)
	}
	forgiven := f.Outstanding()
	f.Status = FineWaived
	return forgiven, nil
}

// PaymentStatus tracks a payment's own lifecycle.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentDisputed   PaymentStatus = "disputed"
)

// PaymentMethod names how a payment was made.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodCard   PaymentMethod = "card"
	MethodOnline PaymentMethod = "online"
)

// Payment records one monetary settlement against a member's balance,
// optionally linked to a specific fine. Completed payments are
// immutable except for the refund and dispute transitions.
type Payment struct {
	ID          uuid.UUID       `json:"id"`
	MemberID    uuid.UUID       `json:"member_id"`
	FineID      uuid.NullUUID   `json:"fine_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	Status      PaymentStatus   `json:"status"`
	Reference   string          `json:"reference,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	Version     int             `json:"version"`
}

// Refund transitions a completed payment to refunded. The caller
// reverses the fine and member balance deltas in the same transaction.
func (p *Payment) Refund(reason string) error {
	if p.Status != PaymentCompleted {
		return fmt.Errorf("payment %s is %s: %w", p.ID, p.Status, ErrPaymentNotRefundable)
	}
	p.Status = PaymentRefunded
	p.Reference = reason
	return nil
}

// Dispute marks a completed payment as contested. Balances stay put
// until the dispute is resolved out of band.
func (p *Payment) Dispute() error {
	if p.Status != PaymentCompleted {
		return fmt.Errorf("payment %s is %s: %w", p.ID, p.Status, ErrPaymentNotRefundable)
	}
	p.Status = PaymentDisputed
	return nil
}
