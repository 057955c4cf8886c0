// internal/store/memory/memory_test.go
package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendcore/internal/catalog"
	"lendcore/internal/circulation"
	"lendcore/internal/membership"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seedLoan(s *Store) *circulation.Loan {
	loan := &circulation.Loan{
		ID:            uuid.New(),
		MemberID:      uuid.New(),
		BookID:        uuid.New(),
		LoanDate:      now,
		DueDate:       now.AddDate(0, 0, 14),
		Status:        circulation.LoanActive,
		MaxRenewals:   2,
		TotalFines:    decimal.Zero,
		FinesPaid:     decimal.Zero,
		LateFeePerDay: decimal.NewFromInt(1),
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	_ = s.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		return tx.InsertLoan(ctx, loan)
	})
	return loan
}

func TestWithinTxCommit(t *testing.T) {
	s := New()
	loan := seedLoan(s)

	got, err := s.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)
	assert.Equal(t, circulation.LoanActive, got.Status)
}

func TestWithinTxRollback(t *testing.T) {
	s := New()
	loan := seedLoan(s)
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		staged, err := tx.GetLoanForUpdate(ctx, loan.ID)
		if err != nil {
			return err
		}
		staged.Status = circulation.LoanReturned
		staged.IsReturned = true
		if err := tx.UpdateLoan(ctx, staged); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The staged write never landed.
	got, err := s.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanActive, got.Status)
	assert.False(t, got.IsReturned)
	assert.Equal(t, 1, got.Version)
}

func TestUpdateVersionConflict(t *testing.T) {
	s := New()
	loan := seedLoan(s)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		stale := *loan
		stale.Version = 99
		return tx.UpdateLoan(ctx, &stale)
	})
	assert.ErrorIs(t, err, circulation.ErrConflict)
}

func TestUpdateBumpsVersion(t *testing.T) {
	s := New()
	loan := seedLoan(s)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		staged, err := tx.GetLoanForUpdate(ctx, loan.ID)
		if err != nil {
			return err
		}
		staged.RenewalsCount = 1
		return tx.UpdateLoan(ctx, staged)
	})
	require.NoError(t, err)

	got, err := s.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 1, got.RenewalsCount)
}

func TestGetOpenLoanByBook(t *testing.T) {
	s := New()
	loan := seedLoan(s)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx circulation.Tx) error {
		open, err := tx.GetOpenLoanByBook(ctx, loan.BookID)
		if err != nil {
			return err
		}
		assert.Equal(t, loan.ID, open.ID)
		return nil
	})
	require.NoError(t, err)

	// Cancelled loans do not encumber the book.
	err = s.WithinTx(ctx, func(ctx context.Context, tx circulation.Tx) error {
		staged, err := tx.GetLoanForUpdate(ctx, loan.ID)
		if err != nil {
			return err
		}
		staged.Status = circulation.LoanCancelled
		return tx.UpdateLoan(ctx, staged)
	})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx circulation.Tx) error {
		_, err := tx.GetOpenLoanByBook(ctx, loan.BookID)
		return err
	})
	assert.ErrorIs(t, err, circulation.ErrNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	member := &membership.Member{
		ID:              uuid.New(),
		Status:          membership.MemberActive,
		MaxBooksAllowed: 5,
		TotalFinesOwed:  decimal.Zero,
		TotalFinesPaid:  decimal.Zero,
		Version:         1,
	}
	s.PutMember(member)

	got, ok := s.Member(member.ID)
	require.True(t, ok)
	got.CurrentBooksCount = 99

	again, _ := s.Member(member.ID)
	assert.Equal(t, 0, again.CurrentBooksCount)
}

func TestSeededBookRoundTrip(t *testing.T) {
	s := New()
	book := &catalog.Book{
		ID:              uuid.New(),
		Title:           "Effective Concurrency",
		Status:          catalog.BookAvailable,
		IsLoanable:      true,
		ReplacementCost: decimal.NewFromInt(30),
		Version:         1,
	}
	s.PutBook(book)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx circulation.Tx) error {
		got, err := tx.GetBookForUpdate(ctx, book.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, book.Title, got.Title)
		got.Status = catalog.BookBorrowed
		return tx.UpdateBook(ctx, got)
	})
	require.NoError(t, err)

	got, _ := s.Book(book.ID)
	assert.Equal(t, catalog.BookBorrowed, got.Status)
	assert.Equal(t, 2, got.Version)
}
