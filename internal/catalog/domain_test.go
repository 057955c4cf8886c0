// internal/catalog/domain_test.go
package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestResolvePolicyDefaults(t *testing.T) {
	policy := ResolvePolicy(&Book{}, nil)

	assert.Equal(t, DefaultLoanPeriodDays, policy.LoanPeriodDays)
	assert.Equal(t, DefaultMaxRenewals, policy.MaxRenewals)
	assert.True(t, policy.LateFeePerDay.Equal(DefaultLateFeePerDay))
}

func TestResolvePolicyCategoryOverrides(t *testing.T) {
	category := &Category{
		DefaultLoanPeriodDays: 7,
		DefaultMaxRenewals:    1,
		LateFeePerDay:         decimal.RequireFromString("0.50"),
	}

	policy := ResolvePolicy(&Book{}, category)

	assert.Equal(t, 7, policy.LoanPeriodDays)
	assert.Equal(t, 1, policy.MaxRenewals)
	assert.True(t, policy.LateFeePerDay.Equal(decimal.RequireFromString("0.50")))
}

func TestResolvePolicyBookWinsOverCategory(t *testing.T) {
	category := &Category{
		DefaultLoanPeriodDays: 7,
		DefaultMaxRenewals:    1,
		LateFeePerDay:         decimal.RequireFromString("0.50"),
	}
	book := &Book{LoanPeriodDays: 21, MaxRenewals: 3}

	policy := ResolvePolicy(book, category)

	assert.Equal(t, 21, policy.LoanPeriodDays)
	assert.Equal(t, 3, policy.MaxRenewals)
	// The fee always comes from the category or system default.
	assert.True(t, policy.LateFeePerDay.Equal(decimal.RequireFromString("0.50")))
}

func TestResolvePolicyZeroMeansInherit(t *testing.T) {
	category := &Category{DefaultLoanPeriodDays: 7}
	policy := ResolvePolicy(&Book{}, category)

	assert.Equal(t, 7, policy.LoanPeriodDays)
	assert.Equal(t, DefaultMaxRenewals, policy.MaxRenewals)
	assert.True(t, policy.LateFeePerDay.Equal(DefaultLateFeePerDay))
}

func TestBookBorrowable(t *testing.T) {
	tests := []struct {
		name string
		book Book
		want bool
	}{
		{"available and loanable", Book{Status: BookAvailable, IsLoanable: true}, true},
		{"borrowed", Book{Status: BookBorrowed, IsLoanable: true}, false},
		{"retired", Book{Status: BookRetired, IsLoanable: true}, false},
		{"not loanable", Book{Status: BookAvailable, IsLoanable: false}, false},
		{"reference only", Book{Status: BookAvailable, IsLoanable: true, IsReference: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.book.Borrowable())
		})
	}
}
