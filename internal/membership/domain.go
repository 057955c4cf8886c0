// internal/membership/domain.go
package membership

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberStatus tracks a member's standing. Members are never hard
// deleted; only status transitions retire them.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberInactive  MemberStatus = "inactive"
	MemberSuspended MemberStatus = "suspended"
	MemberExpired   MemberStatus = "expired"
	MemberBlocked   MemberStatus = "blocked"
)

// FineCeiling is the hard limit on outstanding fines above which a
// member may not borrow.
var FineCeiling = decimal.NewFromInt(50)

// ErrNotEligible is the root cause of every borrowing-eligibility
// rejection; callers match it with errors.Is.
var ErrNotEligible = errors.New("member not eligible")

// Member represents a library member.
type Member struct {
	ID                uuid.UUID       `json:"id"`
	Email             string          `json:"email"`
	Name              string          `json:"name"`
	Status            MemberStatus    `json:"status"`
	MaxBooksAllowed   int             `json:"max_books_allowed"`
	CurrentBooksCount int             `json:"current_books_count"`
	TotalBooksLoaned  int             `json:"total_books_loaned"`
	TotalFinesOwed    decimal.Decimal `json:"total_fines_owed"`
	TotalFinesPaid    decimal.Decimal `json:"total_fines_paid"`
	CanRenew          bool            `json:"can_renew"`
	MaxRenewals       int             `json:"max_renewals"`
	MembershipEndDate time.Time       `json:"membership_end_date"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// Credential represents a member's login credentials.
type Credential struct {
	MemberID     uuid.UUID `json:"member_id"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}

// CanBorrow reports whether the member may take out a new loan at the
// given instant. Eligibility reflects settled fine records only; fines
// still accruing on open overdue loans do not count against the
// ceiling until the book comes back.
func (m *Member) CanBorrow(now time.Time) error {
	if m.Status != MemberActive {
		return fmt.Errorf("status is %s: %w", m.Status, ErrNotEligible)
	}
	if m.CurrentBooksCount >= m.MaxBooksAllowed {
		return fmt.Errorf("loan limit reached (%d of %d): %w", m.CurrentBooksCount, m.MaxBooksAllowed, ErrNotEligible)
	}
	if !m.MembershipEndDate.After(now) {
		return fmt.Errorf("membership expired on %s: %w", m.MembershipEndDate.Format("2006-01-02"), ErrNotEligible)
	}
	if m.TotalFinesOwed.GreaterThanOrEqual(FineCeiling) {
		return fmt.Errorf("outstanding fines %s at or above ceiling %s: %w", m.TotalFinesOwed, FineCeiling, ErrNotEligible)
	}
	return nil
}
