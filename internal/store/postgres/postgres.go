// Package postgres implements the circulation store on PostgreSQL.
// Every unit of work runs in one database transaction; ForUpdate reads
// take row-level locks with SELECT ... FOR UPDATE and updates carry an
// optimistic version check as a second line of defense.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendcore/internal/catalog"
	"lendcore/internal/circulation"
	"lendcore/internal/membership"
)

// Store implements circulation.Store on a *sql.DB.
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ circulation.Store = (*Store)(nil)

// New creates a store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("lendcore/store/postgres"),
	}
}

// WithinTx runs fn inside one database transaction and commits only if
// fn succeeds. Serialization failures and deadlocks surface as
// circulation.ErrConflict so the caller can retry the whole operation.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx circulation.Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "store.within_tx")
	defer span.End()

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &tx{tx: sqlTx}); err != nil {
		span.SetAttributes(attribute.Bool("tx.rolled_back", true))
		return translateErr(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return translateErr(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// translateErr maps retryable database failures to ErrConflict.
func translateErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%v: %w", pqErr.Message, circulation.ErrConflict)
		}
	}
	return err
}

const loanColumns = `id, member_id, book_id, loan_date, due_date, return_date, status,
	renewals_count, max_renewals, is_returned, total_fines, fines_paid, late_fee_per_day,
	processed_by, created_at, updated_at, version`

const fineColumns = `id, loan_id, member_id, amount, amount_paid, status, reason,
	created_at, updated_at, version`

const paymentColumns = `id, member_id, fine_id, amount, method, status, reference,
	processed_at, created_at, version`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row scanner) (*circulation.Loan, error) {
	loan := &circulation.Loan{}
	err := row.Scan(
		&loan.ID, &loan.MemberID, &loan.BookID, &loan.LoanDate, &loan.DueDate,
		&loan.ReturnDate, &loan.Status, &loan.RenewalsCount, &loan.MaxRenewals,
		&loan.IsReturned, &loan.TotalFines, &loan.FinesPaid, &loan.LateFeePerDay,
		&loan.ProcessedBy, &loan.CreatedAt, &loan.UpdatedAt, &loan.Version,
	)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func scanFine(row scanner) (*circulation.Fine, error) {
	fine := &circulation.Fine{}
	err := row.Scan(
		&fine.ID, &fine.LoanID, &fine.MemberID, &fine.Amount, &fine.AmountPaid,
		&fine.Status, &fine.Reason, &fine.CreatedAt, &fine.UpdatedAt, &fine.Version,
	)
	if err != nil {
		return nil, err
	}
	return fine, nil
}

func scanPayment(row scanner) (*circulation.Payment, error) {
	payment := &circulation.Payment{}
	err := row.Scan(
		&payment.ID, &payment.MemberID, &payment.FineID, &payment.Amount,
		&payment.Method, &payment.Status, &payment.Reference, &payment.ProcessedAt,
		&payment.CreatedAt, &payment.Version,
	)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// GetLoan retrieves a loan without locking it.
func (s *Store) GetLoan(ctx context.Context, id uuid.UUID) (*circulation.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	loan, err := scanLoan(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("query loan: %w", err)
	}
	return loan, nil
}

// GetFine retrieves a fine without locking it.
func (s *Store) GetFine(ctx context.Context, id uuid.UUID) (*circulation.Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines WHERE id = $1`
	fine, err := scanFine(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fine %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("query fine: %w", err)
	}
	return fine, nil
}

// GetPayment retrieves a payment without locking it.
func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*circulation.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := scanPayment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return payment, nil
}

// ListFinesByMember returns all fines owned by the member, newest first.
func (s *Store) ListFinesByMember(ctx context.Context, memberID uuid.UUID) ([]*circulation.Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines WHERE member_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("query fines: %w", err)
	}
	defer rows.Close()

	var fines []*circulation.Fine
	for rows.Next() {
		fine, err := scanFine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		fines = append(fines, fine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fines: %w", err)
	}
	return fines, nil
}

// ListLoansByMember returns all loans taken out by the member, newest first.
func (s *Store) ListLoansByMember(ctx context.Context, memberID uuid.UUID) ([]*circulation.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE member_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	var loans []*circulation.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return loans, nil
}

// tx implements circulation.Tx over one *sql.Tx.
type tx struct {
	tx *sql.Tx
}

var _ circulation.Tx = (*tx)(nil)

func (t *tx) GetMemberForUpdate(ctx context.Context, id uuid.UUID) (*membership.Member, error) {
	query := `
		SELECT id, email, name, status, max_books_allowed, current_books_count,
			total_books_loaned, total_fines_owed, total_fines_paid, can_renew, max_renewals,
			membership_end_date, created_at, updated_at, version
		FROM members
		WHERE id = $1
		FOR UPDATE
	`
	member := &membership.Member{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&member.ID, &member.Email, &member.Name, &member.Status, &member.MaxBooksAllowed,
		&member.CurrentBooksCount, &member.TotalBooksLoaned, &member.TotalFinesOwed,
		&member.TotalFinesPaid, &member.CanRenew, &member.MaxRenewals, &member.MembershipEndDate,
		&member.CreatedAt, &member.UpdatedAt, &member.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("lock member: %w", err)
	}
	return member, nil
}

func (t *tx) GetBookForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	query := `
		SELECT id, isbn, title, author, status, is_loanable, is_reference,
			loan_period_days, max_renewals, replacement_cost, category_id, created_at, updated_at, version
		FROM books
		WHERE id = $1
		FOR UPDATE
	`
	book := &catalog.Book{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&book.ID, &book.ISBN, &book.Title, &book.Author, &book.Status,
		&book.IsLoanable, &book.IsReference, &book.LoanPeriodDays, &book.MaxRenewals,
		&book.ReplacementCost, &book.CategoryID, &book.CreatedAt, &book.UpdatedAt, &book.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	return book, nil
}

func (t *tx) GetCategory(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	query := `
		SELECT id, name, default_loan_period_days, default_max_renewals,
			late_fee_per_day, is_loanable, is_reservable, created_at, version
		FROM categories
		WHERE id = $1
	`
	category := &catalog.Category{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&category.ID, &category.Name, &category.DefaultLoanPeriodDays,
		&category.DefaultMaxRenewals, &category.LateFeePerDay, &category.IsLoanable,
		&category.IsReservable, &category.CreatedAt, &category.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("query category: %w", err)
	}
	return category, nil
}

func (t *tx) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*circulation.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	loan, err := scanLoan(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("loan %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("lock loan: %w", err)
	}
	return loan, nil
}

func (t *tx) GetFineForUpdate(ctx context.Context, id uuid.UUID) (*circulation.Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines WHERE id = $1 FOR UPDATE`
	fine, err := scanFine(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fine %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("lock fine: %w", err)
	}
	return fine, nil
}

func (t *tx) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*circulation.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	payment, err := scanPayment(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	return payment, nil
}

func (t *tx) GetOpenLoanByBook(ctx context.Context, bookID uuid.UUID) (*circulation.Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM loans
		WHERE book_id = $1
		AND NOT is_returned
		AND status NOT IN ('cancelled', 'lost')
		LIMIT 1
		FOR UPDATE
	`
	loan, err := scanLoan(t.tx.QueryRowContext(ctx, query, bookID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no open loan for book %s: %w", bookID, circulation.ErrNotFound)
		}
		return nil, fmt.Errorf("query open loan: %w", err)
	}
	return loan, nil
}

func (t *tx) InsertLoan(ctx context.Context, loan *circulation.Loan) error {
	query := `
		INSERT INTO loans (id, member_id, book_id, loan_date, due_date, return_date, status,
			renewals_count, max_renewals, is_returned, total_fines, fines_paid, late_fee_per_day,
			processed_by, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := t.tx.ExecContext(ctx, query,
		loan.ID, loan.MemberID, loan.BookID, loan.LoanDate, loan.DueDate, loan.ReturnDate,
		loan.Status, loan.RenewalsCount, loan.MaxRenewals, loan.IsReturned, loan.TotalFines,
		loan.FinesPaid, loan.LateFeePerDay, loan.ProcessedBy, loan.CreatedAt, loan.UpdatedAt,
		loan.Version,
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (t *tx) UpdateLoan(ctx context.Context, loan *circulation.Loan) error {
	query := `
		UPDATE loans
		SET due_date = $1, return_date = $2, status = $3, renewals_count = $4,
			is_returned = $5, total_fines = $6, fines_paid = $7, processed_by = $8,
			updated_at = $9, version = version + 1
		WHERE id = $10 AND version = $11
	`
	result, err := t.tx.ExecContext(ctx, query,
		loan.DueDate, loan.ReturnDate, loan.Status, loan.RenewalsCount, loan.IsReturned,
		loan.TotalFines, loan.FinesPaid, loan.ProcessedBy, loan.UpdatedAt,
		loan.ID, loan.Version,
	)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if err := oneRow(result, "loan", loan.ID); err != nil {
		return err
	}
	loan.Version++
	return nil
}

func (t *tx) InsertRenewal(ctx context.Context, renewal *circulation.Renewal) error {
	query := `
		INSERT INTO renewals (id, loan_id, renewed_at, previous_due_date, new_due_date, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.tx.ExecContext(ctx, query,
		renewal.ID, renewal.LoanID, renewal.RenewedAt, renewal.PreviousDueDate,
		renewal.NewDueDate, renewal.ProcessedBy,
	)
	if err != nil {
		return fmt.Errorf("insert renewal: %w", err)
	}
	return nil
}

func (t *tx) InsertFine(ctx context.Context, fine *circulation.Fine) error {
	query := `
		INSERT INTO fines (id, loan_id, member_id, amount, amount_paid, status, reason,
			created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.ExecContext(ctx, query,
		fine.ID, fine.LoanID, fine.MemberID, fine.Amount, fine.AmountPaid,
		fine.Status, fine.Reason, fine.CreatedAt, fine.UpdatedAt, fine.Version,
	)
	if err != nil {
		return fmt.Errorf("insert fine: %w", err)
	}
	return nil
}

func (t *tx) UpdateFine(ctx context.Context, fine *circulation.Fine) error {
	query := `
		UPDATE fines
		SET amount = $1, amount_paid = $2, status = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	result, err := t.tx.ExecContext(ctx, query,
		fine.Amount, fine.AmountPaid, fine.Status, fine.UpdatedAt, fine.ID, fine.Version,
	)
	if err != nil {
		return fmt.Errorf("update fine: %w", err)
	}
	if err := oneRow(result, "fine", fine.ID); err != nil {
		return err
	}
	fine.Version++
	return nil
}

func (t *tx) InsertPayment(ctx context.Context, payment *circulation.Payment) error {
	query := `
		INSERT INTO payments (id, member_id, fine_id, amount, method, status, reference,
			processed_at, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.ExecContext(ctx, query,
		payment.ID, payment.MemberID, payment.FineID, payment.Amount, payment.Method,
		payment.Status, payment.Reference, payment.ProcessedAt, payment.CreatedAt,
		payment.Version,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *tx) UpdatePayment(ctx context.Context, payment *circulation.Payment) error {
	query := `
		UPDATE payments
		SET status = $1, reference = $2, version = version + 1
		WHERE id = $3 AND version = $4
	`
	result, err := t.tx.ExecContext(ctx, query,
		payment.Status, payment.Reference, payment.ID, payment.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if err := oneRow(result, "payment", payment.ID); err != nil {
		return err
	}
	payment.Version++
	return nil
}

func (t *tx) UpdateMember(ctx context.Context, member *membership.Member) error {
	query := `
		UPDATE members
		SET status = $1, current_books_count = $2, total_books_loaned = $3,
			total_fines_owed = $4, total_fines_paid = $5, updated_at = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
	`
	result, err := t.tx.ExecContext(ctx, query,
		member.Status, member.CurrentBooksCount, member.TotalBooksLoaned,
		member.TotalFinesOwed, member.TotalFinesPaid, member.UpdatedAt,
		member.ID, member.Version,
	)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if err := oneRow(result, "member", member.ID); err != nil {
		return err
	}
	member.Version++
	return nil
}

func (t *tx) UpdateBook(ctx context.Context, book *catalog.Book) error {
	query := `
		UPDATE books
		SET status = $1, updated_at = $2, version = version + 1
		WHERE id = $3 AND version = $4
	`
	result, err := t.tx.ExecContext(ctx, query,
		book.Status, book.UpdatedAt, book.ID, book.Version,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if err := oneRow(result, "book", book.ID); err != nil {
		return err
	}
	book.Version++
	return nil
}

// oneRow turns a zero-row update into a version conflict. The row was
// locked earlier in the transaction, so the only way the version check
// can miss is a stale in-memory copy.
func oneRow(result sql.Result, kind string, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s version mismatch: %w", kind, id, circulation.ErrConflict)
	}
	return nil
}
