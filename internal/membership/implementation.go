// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrMemberNotFound is returned when a member id or email does not exist.
var ErrMemberNotFound = errors.New("member not found")

// ErrRateLimited is returned when registration or login attempts exceed
// the allowed rate.
var ErrRateLimited = errors.New("rate limit exceeded")

// Defaults granted to newly registered members.
const (
	defaultMaxBooksAllowed = 5
	defaultMaxRenewals     = 2
	membershipTermYears    = 1
)

// service implements the Service interface.
type service struct {
	db          *sql.DB
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(db *sql.DB) Service {
	return &service{
		db:          db,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 requests per minute
	}
}

// RegisterMember creates a new member with default borrowing limits.
func (s *service) RegisterMember(ctx context.Context, email, name, password string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	member := &Member{
		ID:                uuid.New(),
		Email:             email,
		Name:              name,
		Status:            MemberActive,
		MaxBooksAllowed:   defaultMaxBooksAllowed,
		TotalFinesOwed:    decimal.Zero,
		TotalFinesPaid:    decimal.Zero,
		CanRenew:          true,
		MaxRenewals:       defaultMaxRenewals,
		MembershipEndDate: now.AddDate(membershipTermYears, 0, 0),
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}
	credential := &Credential{
		MemberID:     member.ID,
		PasswordHash: passwordHash,
		Salt:         salt,
	}

	if err := s.insertMember(ctx, member, credential); err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}

	return member, nil
}

func (s *service) insertMember(ctx context.Context, member *Member, credential *Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	memberQuery := `
		INSERT INTO members (id, email, name, status, max_books_allowed, current_books_count,
			total_books_loaned, total_fines_owed, total_fines_paid, can_renew, max_renewals,
			membership_end_date, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, memberQuery,
		member.ID, member.Email, member.Name, member.Status, member.MaxBooksAllowed,
		member.CurrentBooksCount, member.TotalBooksLoaned, member.TotalFinesOwed,
		member.TotalFinesPaid, member.CanRenew, member.MaxRenewals, member.MembershipEndDate,
		member.CreatedAt, member.UpdatedAt, member.Version,
	)
	if err != nil {
		return err
	}

	credQuery := `
		INSERT INTO credentials (member_id, password_hash, salt)
		VALUES ($1, $2, $3)
	`
	_, err = tx.ExecContext(ctx, credQuery, credential.MemberID, credential.PasswordHash, credential.Salt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Authenticate verifies a member's credentials and returns the member if successful.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	member, err := s.getMemberByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	credential, err := s.getCredentialByMemberID(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, errors.New("authentication failed: invalid credentials")
	}

	return member, nil
}

const memberColumns = `id, email, name, status, max_books_allowed, current_books_count,
	total_books_loaned, total_fines_owed, total_fines_paid, can_renew, max_renewals,
	membership_end_date, created_at, updated_at, version`

func scanMember(row *sql.Row) (*Member, error) {
	member := &Member{}
	err := row.Scan(
		&member.ID, &member.Email, &member.Name, &member.Status, &member.MaxBooksAllowed,
		&member.CurrentBooksCount, &member.TotalBooksLoaned, &member.TotalFinesOwed,
		&member.TotalFinesPaid, &member.CanRenew, &member.MaxRenewals, &member.MembershipEndDate,
		&member.CreatedAt, &member.UpdatedAt, &member.Version,
	)
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (s *service) getMemberByEmail(ctx context.Context, email string) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE email = $1`
	member, err := scanMember(s.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	return member, err
}

func (s *service) getCredentialByMemberID(ctx context.Context, memberID uuid.UUID) (*Credential, error) {
	query := `
		SELECT member_id, password_hash, salt
		FROM credentials
		WHERE member_id = $1
	`
	credential := &Credential{}
	err := s.db.QueryRowContext(ctx, query, memberID).Scan(
		&credential.MemberID,
		&credential.PasswordHash,
		&credential.Salt,
	)
	if err != nil {
		return nil, err
	}
	return credential, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	member, err := scanMember(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", id, ErrMemberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return member, nil
}

// SuspendMember blocks the member from borrowing until reinstated.
func (s *service) SuspendMember(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, MemberSuspended, MemberActive)
}

// ReinstateMember restores a suspended member to active standing.
func (s *service) ReinstateMember(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, MemberActive, MemberSuspended)
}

func (s *service) setStatus(ctx context.Context, id uuid.UUID, to, from MemberStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET status = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update member status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member status: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetMember(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("member %s is not %s", id, from)
	}
	return nil
}
