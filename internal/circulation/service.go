// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is the transaction coordinator for the loan lifecycle and
// fine settlement. Every mutating operation is a single atomic unit of
// work: all resulting writes commit together or not at all.
type Service interface {
	CreateLoan(ctx context.Context, memberID, bookID uuid.UUID) (*Loan, error)
	RenewLoan(ctx context.Context, loanID uuid.UUID, processedBy string) (*Loan, error)
	ReturnLoan(ctx context.Context, loanID uuid.UUID, condition ReturnCondition, processedBy string) (*Loan, error)
	CancelLoan(ctx context.Context, loanID uuid.UUID, reason string) (*Loan, error)
	MarkLost(ctx context.Context, loanID uuid.UUID, processedBy string) (*Loan, error)
	MarkDamaged(ctx context.Context, loanID uuid.UUID, processedBy string) (*Loan, error)

	PayFine(ctx context.Context, memberID, fineID uuid.UUID, amount decimal.Decimal, method PaymentMethod) (*Payment, error)
	RefundPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*Payment, error)
	DisputePayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error)
	WaiveFine(ctx context.Context, fineID uuid.UUID, processedBy string) (*Fine, error)

	GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	GetFine(ctx context.Context, fineID uuid.UUID) (*Fine, error)
	ListMemberFines(ctx context.Context, memberID uuid.UUID) ([]*Fine, error)
	ListMemberLoans(ctx context.Context, memberID uuid.UUID) ([]*Loan, error)
}
