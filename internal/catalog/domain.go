// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookStatus tracks a book's availability in the catalog.
type BookStatus string

const (
	BookAvailable   BookStatus = "available"
	BookBorrowed    BookStatus = "borrowed"
	BookReserved    BookStatus = "reserved"
	BookMaintenance BookStatus = "maintenance"
	BookLost        BookStatus = "lost"
	BookDamaged     BookStatus = "damaged"
	BookRetired     BookStatus = "retired"
)

// Book represents a single lendable copy in the catalog.
// LoanPeriodDays and MaxRenewals override the category defaults when
// non-zero; zero means inherit.
type Book struct {
	ID              uuid.UUID       `json:"id"`
	ISBN            string          `json:"isbn"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	Status          BookStatus      `json:"status"`
	IsLoanable      bool            `json:"is_loanable"`
	IsReference     bool            `json:"is_reference"`
	LoanPeriodDays  int             `json:"loan_period_days,omitempty"`
	MaxRenewals     int             `json:"max_renewals,omitempty"`
	ReplacementCost decimal.Decimal `json:"replacement_cost"`
	CategoryID      uuid.NullUUID   `json:"category_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// Category groups books and holds the default lending policy for them.
type Category struct {
	ID                    uuid.UUID       `json:"id"`
	Name                  string          `json:"name"`
	DefaultLoanPeriodDays int             `json:"default_loan_period_days"`
	DefaultMaxRenewals    int             `json:"default_max_renewals"`
	LateFeePerDay         decimal.Decimal `json:"late_fee_per_day"`
	IsLoanable            bool            `json:"is_loanable"`
	IsReservable          bool            `json:"is_reservable"`
	CreatedAt             time.Time       `json:"created_at"`
	Version               int             `json:"version"`
}

// System-wide lending defaults, used when neither the book nor its
// category specifies a value.
const (
	DefaultLoanPeriodDays = 14
	DefaultMaxRenewals    = 2
)

// DefaultLateFeePerDay is the fallback overdue fee for uncategorized books.
var DefaultLateFeePerDay = decimal.NewFromInt(1)

// LendingPolicy is the fully resolved set of policy values that governs
// a single loan. It is computed once at loan creation and passed around
// as plain data instead of being read through the object graph.
type LendingPolicy struct {
	LoanPeriodDays int
	MaxRenewals    int
	LateFeePerDay  decimal.Decimal
}

// ResolvePolicy merges book overrides, category defaults and system
// defaults into a concrete policy. category may be nil for
// uncategorized books.
func ResolvePolicy(book *Book, category *Category) LendingPolicy {
	policy := LendingPolicy{
		LoanPeriodDays: DefaultLoanPeriodDays,
		MaxRenewals:    DefaultMaxRenewals,
		LateFeePerDay:  DefaultLateFeePerDay,
	}

	if category != nil {
		if category.DefaultLoanPeriodDays > 0 {
			policy.LoanPeriodDays = category.DefaultLoanPeriodDays
		}
		if category.DefaultMaxRenewals > 0 {
			policy.MaxRenewals = category.DefaultMaxRenewals
		}
		if category.LateFeePerDay.IsPositive() {
			policy.LateFeePerDay = category.LateFeePerDay
		}
	}

	if book != nil {
		if book.LoanPeriodDays > 0 {
			policy.LoanPeriodDays = book.LoanPeriodDays
		}
		if book.MaxRenewals > 0 {
			policy.MaxRenewals = book.MaxRenewals
		}
	}

	return policy
}

// Borrowable reports whether the book itself allows a new loan.
// Category-level loanability is checked by the caller because the
// category is optional.
func (b *Book) Borrowable() bool {
	return b.Status == BookAvailable && b.IsLoanable && !b.IsReference
}
