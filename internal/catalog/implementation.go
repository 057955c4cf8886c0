// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrBookNotFound is returned when a book id does not exist.
var ErrBookNotFound = errors.New("book not found")

// ErrCategoryNotFound is returned when a category id does not exist.
var ErrCategoryNotFound = errors.New("category not found")

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// AddBook creates a new book in the catalog.
func (s *service) AddBook(ctx context.Context, req NewBook) (*Book, error) {
	if req.CategoryID.Valid {
		if _, err := s.GetCategory(ctx, req.CategoryID.UUID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	book := &Book{
		ID:              uuid.New(),
		ISBN:            req.ISBN,
		Title:           req.Title,
		Author:          req.Author,
		Status:          BookAvailable,
		IsLoanable:      req.IsLoanable,
		IsReference:     req.IsReference,
		LoanPeriodDays:  req.LoanPeriodDays,
		MaxRenewals:     req.MaxRenewals,
		ReplacementCost: req.ReplacementCost,
		CategoryID:      req.CategoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	query := `
		INSERT INTO books (id, isbn, title, author, status, is_loanable, is_reference,
			loan_period_days, max_renewals, replacement_cost, category_id, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		book.ID, book.ISBN, book.Title, book.Author, book.Status, book.IsLoanable, book.IsReference,
		book.LoanPeriodDays, book.MaxRenewals, book.ReplacementCost, book.CategoryID,
		book.CreatedAt, book.UpdatedAt, book.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := `
		SELECT id, isbn, title, author, status, is_loanable, is_reference,
			loan_period_days, max_renewals, replacement_cost, category_id, created_at, updated_at, version
		FROM books
		WHERE id = $1
	`
	book := &Book{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&book.ID, &book.ISBN, &book.Title, &book.Author, &book.Status,
		&book.IsLoanable, &book.IsReference, &book.LoanPeriodDays, &book.MaxRenewals,
		&book.ReplacementCost, &book.CategoryID, &book.CreatedAt, &book.UpdatedAt, &book.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", id, ErrBookNotFound)
		}
		return nil, fmt.Errorf("query book: %w", err)
	}
	return book, nil
}

// AddCategory creates a new category.
func (s *service) AddCategory(ctx context.Context, req NewCategory) (*Category, error) {
	category := &Category{
		ID:                    uuid.New(),
		Name:                  req.Name,
		DefaultLoanPeriodDays: req.DefaultLoanPeriodDays,
		DefaultMaxRenewals:    req.DefaultMaxRenewals,
		LateFeePerDay:         req.LateFeePerDay,
		IsLoanable:            req.IsLoanable,
		IsReservable:          req.IsReservable,
		CreatedAt:             time.Now().UTC(),
		Version:               1,
	}

	query := `
		INSERT INTO categories (id, name, default_loan_period_days, default_max_renewals,
			late_fee_per_day, is_loanable, is_reservable, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		category.ID, category.Name, category.DefaultLoanPeriodDays, category.DefaultMaxRenewals,
		category.LateFeePerDay, category.IsLoanable, category.IsReservable, category.CreatedAt, category.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}

	return category, nil
}

// GetCategory retrieves a category by its ID.
func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	query := `
		SELECT id, name, default_loan_period_days, default_max_renewals,
			late_fee_per_day, is_loanable, is_reservable, created_at, version
		FROM categories
		WHERE id = $1
	`
	category := &Category{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID, &category.Name, &category.DefaultLoanPeriodDays, &category.DefaultMaxRenewals,
		&category.LateFeePerDay, &category.IsLoanable, &category.IsReservable,
		&category.CreatedAt, &category.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %s: %w", id, ErrCategoryNotFound)
		}
		return nil, fmt.Errorf("query category: %w", err)
	}
	return category, nil
}

// RetireBook removes a book from circulation. Books with an open loan
// keep their borrowed status until returned; retiring is only valid for
// available books.
func (s *service) RetireBook(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET status = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND status = $3
	`, BookRetired, id, BookAvailable)
	if err != nil {
		return fmt.Errorf("retire book: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("retire book: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetBook(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("book %s has an open loan or is already retired", id)
	}
	return nil
}
