// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewBook carries the caller-supplied fields for adding a book.
type NewBook struct {
	ISBN            string          `json:"isbn"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	IsLoanable      bool            `json:"is_loanable"`
	IsReference     bool            `json:"is_reference"`
	LoanPeriodDays  int             `json:"loan_period_days"`
	MaxRenewals     int             `json:"max_renewals"`
	ReplacementCost decimal.Decimal `json:"replacement_cost"`
	CategoryID      uuid.NullUUID   `json:"category_id"`
}

// NewCategory carries the caller-supplied fields for adding a category.
type NewCategory struct {
	Name                  string          `json:"name"`
	DefaultLoanPeriodDays int             `json:"default_loan_period_days"`
	DefaultMaxRenewals    int             `json:"default_max_renewals"`
	LateFeePerDay         decimal.Decimal `json:"late_fee_per_day"`
	IsLoanable            bool            `json:"is_loanable"`
	IsReservable          bool            `json:"is_reservable"`
}

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, req NewBook) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	AddCategory(ctx context.Context, req NewCategory) (*Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	RetireBook(ctx context.Context, id uuid.UUID) error
}
