// internal/circulation/store.go
package circulation

import (
	"context"

	"github.com/google/uuid"

	"lendcore/internal/catalog"
	"lendcore/internal/membership"
)

// Store is the transactional persistence contract the coordinator runs
// on. WithinTx executes fn in one exclusive transaction scope: if fn
// returns an error, every write made through the Tx is discarded.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Read-only accessors for the surrounding API layer.
	GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error)
	GetFine(ctx context.Context, id uuid.UUID) (*Fine, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListFinesByMember(ctx context.Context, memberID uuid.UUID) ([]*Fine, error)
	ListLoansByMember(ctx context.Context, memberID uuid.UUID) ([]*Loan, error)
}

// Tx exposes the reads and writes available inside one transaction.
// ForUpdate reads take a row-level exclusive lock so the check-and-write
// sequence on a record is serialized with concurrent transactions.
// Missing records surface ErrNotFound; version mismatches on update
// surface ErrConflict.
type Tx interface {
	GetMemberForUpdate(ctx context.Context, id uuid.UUID) (*membership.Member, error)
	GetBookForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Book, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*catalog.Category, error)
	GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*Loan, error)
	GetFineForUpdate(ctx context.Context, id uuid.UUID) (*Fine, error)
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetOpenLoanByBook returns the book's single open loan, or
	// ErrNotFound when the book is unencumbered.
	GetOpenLoanByBook(ctx context.Context, bookID uuid.UUID) (*Loan, error)

	InsertLoan(ctx context.Context, loan *Loan) error
	UpdateLoan(ctx context.Context, loan *Loan) error
	InsertRenewal(ctx context.Context, renewal *Renewal) error
	InsertFine(ctx context.Context, fine *Fine) error
	UpdateFine(ctx context.Context, fine *Fine) error
	InsertPayment(ctx context.Context, payment *Payment) error
	UpdatePayment(ctx context.Context, payment *Payment) error
	UpdateMember(ctx context.Context, member *membership.Member) error
	UpdateBook(ctx context.Context, book *catalog.Book) error
}
