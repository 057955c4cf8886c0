// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"lendcore/internal/catalog"
)

// service implements the Service interface.
type service struct {
	store  Store
	now    func() time.Time
	tracer trace.Tracer

	loansCreated     metric.Int64Counter
	loansReturned    metric.Int64Counter
	paymentsRecorded metric.Int64Counter
}

// Option configures the circulation service.
type Option func(*service)

// WithClock overrides the time source; tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// NewService creates the transaction coordinator over the given store.
func NewService(store Store, opts ...Option) Service {
	s := &service{
		store:  store,
		now:    time.Now,
		tracer: otel.Tracer("lendcore/circulation"),
	}

	meter := otel.Meter("lendcore/circulation")
	s.loansCreated, _ = meter.Int64Counter("circulation.loans.created")
	s.loansReturned, _ = meter.Int64Counter("circulation.loans.returned")
	s.paymentsRecorded, _ = meter.Int64Counter("circulation.payments.recorded")

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLoan validates member eligibility and book availability, then
// writes the new loan, the borrowed book and the bumped member counters
// as one unit.
func (s *service) CreateLoan(ctx context.Context, memberID, bookID uuid.UUID) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.create_loan",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	var loan *Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		member, err := tx.GetMemberForUpdate(ctx, memberID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("member %s does not exist: %w", memberID, ErrMemberNotEligible)
			}
			return fmt.Errorf("load member: %w", err)
		}
		if err := member.CanBorrow(now); err != nil {
			return fmt.Errorf("%v: %w", err, ErrMemberNotEligible)
		}

		book, err := tx.GetBookForUpdate(ctx, bookID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("book %s does not exist: %w", bookID, ErrBookNotAvailable)
			}
			return fmt.Errorf("load book: %w", err)
		}
		if !book.Borrowable() {
			return fmt.Errorf("book %s (status %s): %w", bookID, book.Status, ErrBookNotAvailable)
		}

		var category *catalog.Category
		if book.CategoryID.Valid {
			category, err = tx.GetCategory(ctx, book.CategoryID.UUID)
			if err != nil {
				return fmt.Errorf("load category: %w", err)
			}
			if !category.IsLoanable {
				return fmt.Errorf("category %s is not loanable: %w", category.Name, ErrBookNotAvailable)
			}
		}

		// The book row is locked, so this check is race-free: at most
		// one open loan per book can ever be committed.
		if _, err := tx.GetOpenLoanByBook(ctx, bookID); err == nil {
			return fmt.Errorf("book %s already has an open loan: %w", bookID, ErrBookNotAvailable)
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check open loan: %w", err)
		}

		policy := catalog.ResolvePolicy(book, category)

		loan = &Loan{
			ID:            uuid.New(),
			MemberID:      memberID,
			BookID:        bookID,
			LoanDate:      now,
			DueDate:       now.AddDate(0, 0, policy.LoanPeriodDays),
			Status:        LoanActive,
			MaxRenewals:   policy.MaxRenewals,
			TotalFines:    decimal.Zero,
			FinesPaid:     decimal.Zero,
			LateFeePerDay: policy.LateFeePerDay,
			CreatedAt:     now,
			UpdatedAt:     now,
			Version:       1,
		}

		book.Status = catalog.BookBorrowed
		member.CurrentBooksCount++
		member.TotalBooksLoaned++

		if err := tx.InsertLoan(ctx, loan); err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		if err := tx.UpdateBook(ctx, book); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		if err := tx.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.loansCreated.Add(ctx, 1)
	span.SetAttributes(attribute.String("loan.id", loan.ID.String()))
	return loan, nil
}

// RenewLoan extends the due date by the loan's policy period. Calling
// twice extends twice; that is explicit caller responsibility.
func (s *service) RenewLoan(ctx context.Context, loanID uuid.UUID, processedBy string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.renew_loan",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	var loan *Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		var err error
		loan, err = s.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}

		member, err := tx.GetMemberForUpdate(ctx, loan.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		if !member.CanRenew {
			return fmt.Errorf("member %s may not renew: %w", member.ID, ErrRenewalNotAllowed)
		}
		if loan.Outstanding().IsPositive() {
			return fmt.Errorf("loan %s has outstanding fines %s: %w", loanID, loan.Outstanding(), ErrRenewalNotAllowed)
		}

		book, err := tx.GetBookForUpdate(ctx, loan.BookID)
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}
		if book.Status != catalog.BookBorrowed || !book.IsLoanable {
			return fmt.Errorf("book %s (status %s): %w", book.ID, book.Status, ErrRenewalNotAllowed)
		}

		var category *catalog.Category
		if book.CategoryID.Valid {
			if category, err = tx.GetCategory(ctx, book.CategoryID.UUID); err != nil {
				return fmt.Errorf("load category: %w", err)
			}
		}
		policy := catalog.ResolvePolicy(book, category)

		renewal, err := loan.Renew(now, policy.LoanPeriodDays, processedBy)
		if err != nil {
			return err
		}
		loan.UpdatedAt = now

		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		if err := tx.InsertRenewal(ctx, renewal); err != nil {
			return fmt.Errorf("insert renewal: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return loan, nil
}

// ReturnLoan closes the loan, releases the book and member slot, and
// derives any overdue, damage or loss fines in the same transaction.
// A second call finds the loan already returned and writes nothing.
func (s *service) ReturnLoan(ctx context.Context, loanID uuid.UUID, condition ReturnCondition, processedBy string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return_loan",
		trace.WithAttributes(
			attribute.String("loan.id", loanID.String()),
			attribute.String("return.condition", string(condition)),
		),
	)
	defer span.End()

	if !condition.Valid() {
		return nil, fmt.Errorf("unknown return condition %q", condition)
	}

	var loan *Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		var err error
		loan, err = s.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}

		member, err := tx.GetMemberForUpdate(ctx, loan.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		book, err := tx.GetBookForUpdate(ctx, loan.BookID)
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}

		if err := loan.MarkReturned(now); err != nil {
			return err
		}
		loan.ProcessedBy = processedBy
		loan.UpdatedAt = now

		var fines []*Fine
		if days := DaysOverdue(loan.DueDate, now); days > 0 {
			amount := OverdueFineAmount(days, loan.LateFeePerDay)
			if amount.IsPositive() {
				fines = append(fines, NewFine(loan.ID, member.ID, FineOverdue, amount, now))
			}
		}

		switch condition {
		case ConditionGood:
			book.Status = catalog.BookAvailable
		case ConditionDamaged:
			book.Status = catalog.BookDamaged
			if amount := DamageFineAmount(book.ReplacementCost); amount.IsPositive() {
				fines = append(fines, NewFine(loan.ID, member.ID, FineDamaged, amount, now))
			}
		case ConditionLost:
			// Reported lost at the desk: the loan settles as lost, not
			// returned, and the replacement cost is charged.
			book.Status = catalog.BookLost
			loan.Status = LoanLost
			if amount := LostFineAmount(book.ReplacementCost); amount.IsPositive() {
				fines = append(fines, NewFine(loan.ID, member.ID, FineLost, amount, now))
			}
		}

		if member.CurrentBooksCount > 0 {
			member.CurrentBooksCount--
		}
		member.UpdatedAt = now

		for _, fine := range fines {
			loan.AddFine(fine.Amount)
			member.TotalFinesOwed = member.TotalFinesOwed.Add(fine.Amount)
			if err := tx.InsertFine(ctx, fine); err != nil {
				return fmt.Errorf("insert fine: %w", err)
			}
		}

		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		if err := tx.UpdateBook(ctx, book); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		if err := tx.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.loansReturned.Add(ctx, 1)
	return loan, nil
}

// CancelLoan voids an active, not-yet-due loan without a fine.
func (s *service) CancelLoan(ctx context.Context, loanID uuid.UUID, reason string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.cancel_loan",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	var loan *Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		var err error
		loan, err = s.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}

		member, err := tx.GetMemberForUpdate(ctx, loan.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		book, err := tx.GetBookForUpdate(ctx, loan.BookID)
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}

		if err := loan.Cancel(now); err != nil {
			return err
		}
		loan.ProcessedBy = reason
		loan.UpdatedAt = now

		book.Status = catalog.BookAvailable
		if member.CurrentBooksCount > 0 {
			member.CurrentBooksCount--
		}
		member.UpdatedAt = now

		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		if err := tx.UpdateBook(ctx, book); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		if err := tx.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return loan, nil
}

// MarkLost writes the loan off: the book will not come back, the member
// slot is released, and a replacement-cost fine is charged.
func (s *service) MarkLost(ctx context.Context, loanID uuid.UUID, processedBy string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.mark_lost",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	var loan *Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		var err error
		loan, err = s.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !loan.Open() {
			return fmt.Errorf("loan %s is %s: %w", loanID, loan.Status, ErrLoanAlreadyReturned)
		}

		member, err := tx.GetMemberForUpdate(ctx, loan.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		book, err := tx.GetBookForUpdate(ctx, loan.BookID)
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}

		if err := loan.transitionTo(LoanLost, now); err != nil {
			return err
		}
		loan.ProcessedBy = processedBy
		loan.UpdatedAt = now

		book.Status = catalog.BookLost
		if member.CurrentBooksCount > 0 {
			member.CurrentBooksCount--
		}
		member.UpdatedAt = now

		if amount := LostFineAmount(book.ReplacementCost); amount.IsPositive() {
			fine := NewFine(loan.ID, member.ID, FineLost, amount, now)
			loan.AddFine(amount)
			member.TotalFinesOwed = member.TotalFinesOwed.Add(amount)
			if err := tx.InsertFine(ctx, fine); err != nil {
				return fmt.Errorf("insert fine: %w", err)
			}
		}

		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		if err := tx.UpdateBook(ctx, book); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		if err := tx.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return loan, nil
}

// MarkDamaged records damage on a book that is still out. The loan
// stays open; a repair fine of half the replacement cost is charged.
func (s *service) MarkDamaged(ctx context.Context, loanID uuid.UUID, processedBy string) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.mark_damaged",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	var loan *Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		var err error
		loan, err = s.loanForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !loan.Open() {
			return fmt.Errorf("loan %s is %s: %w", loanID, loan.Status, ErrLoanAlreadyReturned)
		}

		member, err := tx.GetMemberForUpdate(ctx, loan.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		book, err := tx.GetBookForUpdate(ctx, loan.BookID)
		if err != nil {
			return fmt.Errorf("load book: %w", err)
		}

		if err := loan.transitionTo(LoanDamaged, now); err != nil {
			return err
		}
		loan.ProcessedBy = processedBy
		loan.UpdatedAt = now
		book.Status = catalog.BookDamaged

		if amount := DamageFineAmount(book.ReplacementCost); amount.IsPositive() {
			fine := NewFine(loan.ID, member.ID, FineDamaged, amount, now)
			loan.AddFine(amount)
			member.TotalFinesOwed = member.TotalFinesOwed.Add(amount)
			member.UpdatedAt = now
			if err := tx.InsertFine(ctx, fine); err != nil {
				return fmt.Errorf("insert fine: %w", err)
			}
			if err := tx.UpdateMember(ctx, member); err != nil {
				return fmt.Errorf("update member: %w", err)
			}
		}

		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		if err := tx.UpdateBook(ctx, book); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return loan, nil
}

// PayFine settles part or all of a fine. The payment record, the fine,
// the member balances and the owning loan's totals move together.
func (s *service) PayFine(ctx context.Context, memberID, fineID uuid.UUID, amount decimal.Decimal, method PaymentMethod) (*Payment, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.pay_fine",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("fine.id", fineID.String()),
			attribute.String("payment.amount", amount.String()),
		),
	)
	defer span.End()

	var payment *Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		fine, err := tx.GetFineForUpdate(ctx, fineID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("fine %s: %w", fineID, ErrFineNotFound)
			}
			return fmt.Errorf("load fine: %w", err)
		}
		if fine.MemberID != memberID {
			return fmt.Errorf("fine %s belongs to member %s: %w", fineID, fine.MemberID, ErrMemberMismatch)
		}

		member, err := tx.GetMemberForUpdate(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		loan, err := tx.GetLoanForUpdate(ctx, fine.LoanID)
		if err != nil {
			return fmt.Errorf("load loan: %w", err)
		}

		if err := fine.ApplyPayment(amount); err != nil {
			return err
		}
		fine.UpdatedAt = now

		member.TotalFinesPaid = member.TotalFinesPaid.Add(amount)
		member.TotalFinesOwed = member.TotalFinesOwed.Sub(amount)
		if member.TotalFinesOwed.IsNegative() {
			member.TotalFinesOwed = decimal.Zero
		}
		member.UpdatedAt = now

		loan.FinesPaid = loan.FinesPaid.Add(amount)
		loan.UpdatedAt = now

		payment = &Payment{
			ID:          uuid.New(),
			MemberID:    memberID,
			FineID:      uuid.NullUUID{UUID: fineID, Valid: true},
			Amount:      amount,
			Method:      method,
			Status:      PaymentCompleted,
			ProcessedAt: now,
			CreatedAt:   now,
			Version:     1,
		}

		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if err := tx.UpdateFine(ctx, fine); err != nil {
			return fmt.Errorf("update fine: %w", err)
		}
		if err := tx.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return fmt.Errorf("update loan: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.paymentsRecorded.Add(ctx, 1)
	span.SetAttributes(attribute.String("payment.id", payment.ID.String()))
	return payment, nil
}

// RefundPayment reverses a completed payment, restoring the fine,
// member and loan balances symmetrically.
func (s *service) RefundPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*Payment, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.refund_payment",
		trace.WithAttributes(attribute.String("payment.id", paymentID.String())),
	)
	defer span.End()

	var payment *Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		var err error
		payment, err = tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
			}
			return fmt.Errorf("load payment: %w", err)
		}

		if err := payment.Refund(reason); err != nil {
			return err
		}

		if payment.FineID.Valid {
			fine, err := tx.GetFineForUpdate(ctx, payment.FineID.UUID)
			if err != nil {
				return fmt.Errorf("load fine: %w", err)
			}
			fine.RevertPayment(payment.Amount)
			fine.UpdatedAt = now
			if err := tx.UpdateFine(ctx, fine); err != nil {
				return fmt.Errorf("update fine: %w", err)
			}

			loan, err := tx.GetLoanForUpdate(ctx, fine.LoanID)
			if err != nil {
				return fmt.Errorf("load loan: %w", err)
			}
			loan.FinesPaid = loan.FinesPaid.Sub(payment.Amount)
			loan.UpdatedAt = now
			if err := tx.UpdateLoan(ctx, loan); err != nil {
				return fmt.Errorf("update loan: %w", err)
			}
		}

		member, err := tx.GetMemberForUpdate(ctx, payment.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		member.TotalFinesPaid = member.TotalFinesPaid.Sub(payment.Amount)
		member.TotalFinesOwed = member.TotalFinesOwed.Add(payment.Amount)
		member.UpdatedAt = now
		if err := tx.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}

		return tx.UpdatePayment(ctx, payment)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return payment, nil
}

// DisputePayment marks a completed payment as contested. No balances
// move until the dispute is resolved out of band.
func (s *service) DisputePayment(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.dispute_payment",
		trace.WithAttributes(attribute.String("payment.id", paymentID.String())),
	)
	defer span.End()

	var payment *Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		payment, err = tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if err := payment.Dispute(); err != nil {
			return err
		}
		return tx.UpdatePayment(ctx, payment)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return payment, nil
}

// WaiveFine forgives a fine's outstanding balance without payment.
func (s *service) WaiveFine(ctx context.Context, fineID uuid.UUID, processedBy string) (*Fine, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.waive_fine",
		trace.WithAttributes(attribute.String("fine.id", fineID.String())),
	)
	defer span.End()

	var fine *Fine
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now().UTC()

		var err error
		fine, err = tx.GetFineForUpdate(ctx, fineID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("fine %s: %w", fineID, ErrFineNotFound)
			}
			return fmt.Errorf("load fine: %w", err)
		}

		forgiven, err := fine.Waive()
		if err != nil {
			return err
		}
		fine.UpdatedAt = now

		member, err := tx.GetMemberForUpdate(ctx, fine.MemberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}
		member.TotalFinesOwed = member.TotalFinesOwed.Sub(forgiven)
		if member.TotalFinesOwed.IsNegative() {
			member.TotalFinesOwed = decimal.Zero
		}
		member.UpdatedAt = now

		loan, err := tx.GetLoanForUpdate(ctx, fine.LoanID)
		if err != nil {
			return fmt.Errorf("load loan: %w", err)
		}
		loan.TotalFines = loan.TotalFines.Sub(forgiven)
		loan.UpdatedAt = now

		if err := tx.UpdateFine(ctx, fine); err != nil {
			return fmt.Errorf("update fine: %w", err)
		}
		if err := tx.UpdateMember(ctx, member); err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return fine, nil
}

// GetLoan retrieves a loan by id.
func (s *service) GetLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("loan %s: %w", loanID, ErrLoanNotFound)
		}
		return nil, err
	}
	return loan, nil
}

// GetFine retrieves a fine by id.
func (s *service) GetFine(ctx context.Context, fineID uuid.UUID) (*Fine, error) {
	fine, err := s.store.GetFine(ctx, fineID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("fine %s: %w", fineID, ErrFineNotFound)
		}
		return nil, err
	}
	return fine, nil
}

// ListMemberFines lists all fines owned by the member.
func (s *service) ListMemberFines(ctx context.Context, memberID uuid.UUID) ([]*Fine, error) {
	return s.store.ListFinesByMember(ctx, memberID)
}

// ListMemberLoans lists all loans taken out by the member.
func (s *service) ListMemberLoans(ctx context.Context, memberID uuid.UUID) ([]*Loan, error) {
	return s.store.ListLoansByMember(ctx, memberID)
}

// loanForUpdate loads and locks a loan, mapping a missing row to
// ErrLoanNotFound.
func (s *service) loanForUpdate(ctx context.Context, tx Tx, loanID uuid.UUID) (*Loan, error) {
	loan, err := tx.GetLoanForUpdate(ctx, loanID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("loan %s: %w", loanID, ErrLoanNotFound)
		}
		return nil, fmt.Errorf("load loan: %w", err)
	}
	return loan, nil
}
