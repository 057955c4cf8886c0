// internal/circulation/fines.go
package circulation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// damageShare is the fraction of a book's replacement cost charged for
// a damaged return.
var damageShare = decimal.NewFromFloat(0.5)

// DaysOverdue returns the number of whole days now is past dueDate,
// never negative. Partial days do not count.
func DaysOverdue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}

// OverdueFineAmount computes daysOverdue x perDay, rounded to cents.
func OverdueFineAmount(daysOverdue int, perDay decimal.Decimal) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	return perDay.Mul(decimal.NewFromInt(int64(daysOverdue))).Round(2)
}

// LostFineAmount is the full replacement cost, rounded to cents.
func LostFineAmount(replacementCost decimal.Decimal) decimal.Decimal {
	return replacementCost.Round(2)
}

// DamageFineAmount is half the replacement cost, rounded to cents.
func DamageFineAmount(replacementCost decimal.Decimal) decimal.Decimal {
	return replacementCost.Mul(damageShare).Round(2)
}

// NewFine builds an open fine owned by the given loan and member.
func NewFine(loanID, memberID uuid.UUID, reason FineReason, amount decimal.Decimal, now time.Time) *Fine {
	return &Fine{
		ID:         uuid.New(),
		LoanID:     loanID,
		MemberID:   memberID,
		Amount:     amount,
		AmountPaid: decimal.Zero,
		Status:     FineOpen,
		Reason:     reason,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
}
