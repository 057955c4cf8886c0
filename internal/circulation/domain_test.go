// internal/circulation/domain_test.go
package circulation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestLoan(due time.Time) *Loan {
	return &Loan{
		ID:            uuid.New(),
		MemberID:      uuid.New(),
		BookID:        uuid.New(),
		LoanDate:      testNow,
		DueDate:       due,
		Status:        LoanActive,
		MaxRenewals:   2,
		TotalFines:    decimal.Zero,
		FinesPaid:     decimal.Zero,
		LateFeePerDay: decimal.NewFromInt(1),
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
		Version:       1,
	}
}

func TestLoanStatusTransitions(t *testing.T) {
	tests := []struct {
		from    LoanStatus
		to      LoanStatus
		allowed bool
	}{
		{LoanActive, LoanReturned, true},
		{LoanActive, LoanRenewed, true},
		{LoanActive, LoanCancelled, true},
		{LoanRenewed, LoanRenewed, true},
		{LoanRenewed, LoanCancelled, false},
		{LoanOverdue, LoanReturned, true},
		{LoanOverdue, LoanRenewed, false},
		{LoanOverdue, LoanCancelled, false},
		{LoanDamaged, LoanReturned, true},
		{LoanDamaged, LoanLost, true},
		{LoanReturned, LoanActive, false},
		{LoanLost, LoanReturned, false},
		{LoanCancelled, LoanActive, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestLoanStatusTerminal(t *testing.T) {
	assert.True(t, LoanReturned.Terminal())
	assert.True(t, LoanLost.Terminal())
	assert.True(t, LoanCancelled.Terminal())
	assert.False(t, LoanActive.Terminal())
	assert.False(t, LoanOverdue.Terminal())
	assert.False(t, LoanDamaged.Terminal())
}

func TestLoanOpen(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))
	assert.True(t, loan.Open())

	loan.Status = LoanCancelled
	assert.False(t, loan.Open())

	loan.Status = LoanLost
	assert.False(t, loan.Open())

	loan = newTestLoan(testNow.AddDate(0, 0, 14))
	require.NoError(t, loan.MarkReturned(testNow))
	assert.False(t, loan.Open())
}

func TestLoanRenew(t *testing.T) {
	due := testNow.AddDate(0, 0, 14)
	loan := newTestLoan(due)

	renewal, err := loan.Renew(testNow.AddDate(0, 0, 7), 14, "desk-1")
	require.NoError(t, err)
	assert.Equal(t, LoanRenewed, loan.Status)
	assert.Equal(t, 1, loan.RenewalsCount)
	assert.True(t, loan.DueDate.Equal(due.AddDate(0, 0, 14)))
	assert.Equal(t, loan.ID, renewal.LoanID)
	assert.True(t, renewal.PreviousDueDate.Equal(due))
	assert.True(t, renewal.NewDueDate.Equal(loan.DueDate))
	assert.Equal(t, "desk-1", renewal.ProcessedBy)
}

func TestLoanRenewLimit(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))
	loan.MaxRenewals = 1

	_, err := loan.Renew(testNow, 14, "")
	require.NoError(t, err)

	_, err = loan.Renew(testNow, 14, "")
	assert.ErrorIs(t, err, ErrRenewalNotAllowed)
	assert.Equal(t, 1, loan.RenewalsCount)
}

func TestLoanRenewOverdue(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))

	_, err := loan.Renew(testNow.AddDate(0, 0, 16), 14, "")
	assert.ErrorIs(t, err, ErrRenewalNotAllowed)
}

func TestLoanRenewAfterReturn(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))
	require.NoError(t, loan.MarkReturned(testNow))

	_, err := loan.Renew(testNow, 14, "")
	assert.ErrorIs(t, err, ErrLoanAlreadyReturned)
}

func TestLoanMarkReturned(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))
	returnedAt := testNow.AddDate(0, 0, 3)

	require.NoError(t, loan.MarkReturned(returnedAt))
	assert.True(t, loan.IsReturned)
	assert.Equal(t, LoanReturned, loan.Status)
	require.NotNil(t, loan.ReturnDate)
	assert.True(t, loan.ReturnDate.Equal(returnedAt))

	err := loan.MarkReturned(returnedAt)
	assert.ErrorIs(t, err, ErrLoanAlreadyReturned)
}

func TestLoanMarkReturnedWhileOverdue(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))

	// A stale active status still returns cleanly through the overdue state.
	require.NoError(t, loan.MarkReturned(testNow.AddDate(0, 0, 20)))
	assert.Equal(t, LoanReturned, loan.Status)
}

func TestLoanCancel(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))
	require.NoError(t, loan.Cancel(testNow.AddDate(0, 0, 1)))
	assert.Equal(t, LoanCancelled, loan.Status)
}

func TestLoanCancelAfterDueDate(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))
	err := loan.Cancel(testNow.AddDate(0, 0, 15))
	assert.ErrorIs(t, err, ErrLoanNotCancellable)
}

func TestLoanCancelRenewed(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))
	_, err := loan.Renew(testNow, 14, "")
	require.NoError(t, err)

	err = loan.Cancel(testNow)
	assert.ErrorIs(t, err, ErrLoanNotCancellable)
}

func TestLoanAccruedFine(t *testing.T) {
	loan := newTestLoan(testNow.AddDate(0, 0, 14))

	assert.True(t, loan.AccruedFine(testNow).IsZero())
	got := loan.AccruedFine(testNow.AddDate(0, 0, 19))
	assert.True(t, got.Equal(decimal.RequireFromString("5.00")), "got %s", got)
}

func TestFineApplyPayment(t *testing.T) {
	fine := NewFine(uuid.New(), uuid.New(), FineOverdue, decimal.RequireFromString("5.00"), testNow)

	require.NoError(t, fine.ApplyPayment(decimal.RequireFromString("2.00")))
	assert.Equal(t, FinePartiallyPaid, fine.Status)
	assert.True(t, fine.Outstanding().Equal(decimal.RequireFromString("3.00")))

	require.NoError(t, fine.ApplyPayment(decimal.RequireFromString("3.00")))
	assert.Equal(t, FinePaid, fine.Status)
	assert.True(t, fine.Outstanding().IsZero())

	err := fine.ApplyPayment(decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrFineClosed)
}

func TestFineApplyPaymentRejectsOverpayment(t *testing.T) {
	fine := NewFine(uuid.New(), uuid.New(), FineOverdue, decimal.RequireFromString("5.00"), testNow)

	err := fine.ApplyPayment(decimal.RequireFromString("5.01"))
	assert.ErrorIs(t, err, ErrOverpayment)
	assert.Equal(t, FineOpen, fine.Status)
	assert.True(t, fine.AmountPaid.IsZero())
}

func TestFineApplyPaymentRejectsNonPositive(t *testing.T) {
	fine := NewFine(uuid.New(), uuid.New(), FineOverdue, decimal.RequireFromString("5.00"), testNow)

	assert.ErrorIs(t, fine.ApplyPayment(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, fine.ApplyPayment(decimal.NewFromInt(-1)), ErrInvalidAmount)
}

func TestFineRevertPayment(t *testing.T) {
	fine := NewFine(uuid.New(), uuid.New(), FineOverdue, decimal.RequireFromString("5.00"), testNow)
	require.NoError(t, fine.ApplyPayment(decimal.RequireFromString("5.00")))
	require.Equal(t, FinePaid, fine.Status)

	fine.RevertPayment(decimal.RequireFromString("5.00"))
	assert.Equal(t, FineOpen, fine.Status)
	assert.True(t, fine.Outstanding().Equal(decimal.RequireFromString("5.00")))

	require.NoError(t, fine.ApplyPayment(decimal.RequireFromString("3.00")))
	fine.RevertPayment(decimal.RequireFromString("1.00"))
	assert.Equal(t, FinePartiallyPaid, fine.Status)
}

func TestFineWaive(t *testing.T) {
	fine := NewFine(uuid.New(), uuid.New(), FineDamaged, decimal.RequireFromString("20.00"), testNow)
	require.NoError(t, fine.ApplyPayment(decimal.RequireFromString("8.00")))

	forgiven, err := fine.Waive()
	require.NoError(t, err)
	assert.True(t, forgiven.Equal(decimal.RequireFromString("12.00")))
	assert.Equal(t, FineWaived, fine.Status)

	_, err = fine.Waive()
	assert.ErrorIs(t, err, ErrFineClosed)
}

func TestPaymentRefund(t *testing.T) {
	payment := &Payment{ID: uuid.New(), Status: PaymentCompleted}

	require.NoError(t, payment.Refund("duplicate charge"))
	assert.Equal(t, PaymentRefunded, payment.Status)
	assert.Equal(t, "duplicate charge", payment.Reference)

	err := payment.Refund("again")
	assert.ErrorIs(t, err, ErrPaymentNotRefundable)
}

func TestPaymentDispute(t *testing.T) {
	payment := &Payment{ID: uuid.New(), Status: PaymentCompleted}
	require.NoError(t, payment.Dispute())
	assert.Equal(t, PaymentDisputed, payment.Status)

	assert.ErrorIs(t, payment.Dispute(), ErrPaymentNotRefundable)

	pending := &Payment{ID: uuid.New(), Status: PaymentPending}
	assert.ErrorIs(t, pending.Dispute(), ErrPaymentNotRefundable)
}

// Settlement bookkeeping holds under any sequence of valid payments:
// the paid amount never exceeds the fine and the status always matches
// the balance.
func TestFineSettlementProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(1, 10_000).Draw(t, "amount_cents")
		fine := NewFine(uuid.New(), uuid.New(), FineOverdue, decimal.New(cents, -2), testNow)

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			outstanding := fine.Outstanding()
			if outstanding.IsZero() {
				break
			}
			payCents := rapid.Int64Range(1, outstanding.Mul(decimal.NewFromInt(100)).IntPart()).Draw(t, "pay_cents")
			if err := fine.ApplyPayment(decimal.New(payCents, -2)); err != nil {
				t.Fatalf("valid payment rejected: %v", err)
			}

			if fine.AmountPaid.GreaterThan(fine.Amount) {
				t.Fatalf("paid %s exceeds amount %s", fine.AmountPaid, fine.Amount)
			}
			if fine.Outstanding().IsNegative() {
				t.Fatalf("negative outstanding %s", fine.Outstanding())
			}
			switch {
			case fine.Outstanding().IsZero() && fine.Status != FinePaid:
				t.Fatalf("settled fine has status %s", fine.Status)
			case !fine.Outstanding().IsZero() && fine.Status != FinePartiallyPaid:
				t.Fatalf("open balance %s with status %s", fine.Outstanding(), fine.Status)
			}
		}
	})
}
