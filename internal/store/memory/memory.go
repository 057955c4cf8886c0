// Package memory implements the circulation store over in-process maps
// for development and testing. Transactions are serialized behind a
// single mutex and applied to a staged copy of the data that is swapped
// in only on commit, so a failed transaction leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lendcore/internal/catalog"
	"lendcore/internal/circulation"
	"lendcore/internal/membership"
)

// Store implements circulation.Store in memory.
type Store struct {
	mu         sync.Mutex
	members    map[uuid.UUID]membership.Member
	books      map[uuid.UUID]catalog.Book
	categories map[uuid.UUID]catalog.Category
	loans      map[uuid.UUID]circulation.Loan
	fines      map[uuid.UUID]circulation.Fine
	payments   map[uuid.UUID]circulation.Payment
	renewals   []circulation.Renewal
}

// Ensure the interface is met.
var _ circulation.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		members:    make(map[uuid.UUID]membership.Member),
		books:      make(map[uuid.UUID]catalog.Book),
		categories: make(map[uuid.UUID]catalog.Category),
		loans:      make(map[uuid.UUID]circulation.Loan),
		fines:      make(map[uuid.UUID]circulation.Fine),
		payments:   make(map[uuid.UUID]circulation.Payment),
	}
}

// PutMember seeds or replaces a member record.
func (s *Store) PutMember(m *membership.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = cloneMember(*m)
}

// PutBook seeds or replaces a book record.
func (s *Store) PutBook(b *catalog.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.ID] = *b
}

// PutCategory seeds or replaces a category record.
func (s *Store) PutCategory(c *catalog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = *c
}

// Member returns a copy of the stored member, for test assertions.
func (s *Store) Member(id uuid.UUID) (*membership.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, false
	}
	copied := cloneMember(m)
	return &copied, true
}

// Book returns a copy of the stored book, for test assertions.
func (s *Store) Book(id uuid.UUID) (*catalog.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, false
	}
	copied := b
	return &copied, true
}

// RenewalsForLoan returns the renewal history of a loan.
func (s *Store) RenewalsForLoan(loanID uuid.UUID) []circulation.Renewal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []circulation.Renewal
	for _, r := range s.renewals {
		if r.LoanID == loanID {
			out = append(out, r)
		}
	}
	return out
}

// WithinTx runs fn against a staged copy of every table and swaps the
// copies in only if fn succeeds. The store mutex is held throughout,
// which trivially gives each transaction an exclusive scope.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx circulation.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &tx{
		members:    cloneMemberMap(s.members),
		books:      cloneMap(s.books),
		categories: cloneMap(s.categories),
		loans:      cloneLoanMap(s.loans),
		fines:      cloneMap(s.fines),
		payments:   cloneMap(s.payments),
		renewals:   append([]circulation.Renewal(nil), s.renewals...),
	}

	if err := fn(ctx, staged); err != nil {
		return err
	}

	s.members = staged.members
	s.books = staged.books
	s.categories = staged.categories
	s.loans = staged.loans
	s.fines = staged.fines
	s.payments = staged.payments
	s.renewals = staged.renewals
	return nil
}

// GetLoan returns a copy of the loan.
func (s *Store) GetLoan(ctx context.Context, id uuid.UUID) (*circulation.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, circulation.ErrNotFound)
	}
	copied := cloneLoan(loan)
	return &copied, nil
}

// GetFine returns a copy of the fine.
func (s *Store) GetFine(ctx context.Context, id uuid.UUID) (*circulation.Fine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fine, ok := s.fines[id]
	if !ok {
		return nil, fmt.Errorf("fine %s: %w", id, circulation.ErrNotFound)
	}
	copied := fine
	return &copied, nil
}

// GetPayment returns a copy of the payment.
func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*circulation.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, circulation.ErrNotFound)
	}
	copied := payment
	return &copied, nil
}

// ListFinesByMember returns copies of all fines owned by the member.
func (s *Store) ListFinesByMember(ctx context.Context, memberID uuid.UUID) ([]*circulation.Fine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*circulation.Fine
	for _, fine := range s.fines {
		if fine.MemberID == memberID {
			copied := fine
			out = append(out, &copied)
		}
	}
	return out, nil
}

// ListLoansByMember returns copies of all loans taken out by the member.
func (s *Store) ListLoansByMember(ctx context.Context, memberID uuid.UUID) ([]*circulation.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*circulation.Loan
	for _, loan := range s.loans {
		if loan.MemberID == memberID {
			copied := cloneLoan(loan)
			out = append(out, &copied)
		}
	}
	return out, nil
}

// tx is the staged view the coordinator writes against.
type tx struct {
	members    map[uuid.UUID]membership.Member
	books      map[uuid.UUID]catalog.Book
	categories map[uuid.UUID]catalog.Category
	loans      map[uuid.UUID]circulation.Loan
	fines      map[uuid.UUID]circulation.Fine
	payments   map[uuid.UUID]circulation.Payment
	renewals   []circulation.Renewal
}

var _ circulation.Tx = (*tx)(nil)

func (t *tx) GetMemberForUpdate(ctx context.Context, id uuid.UUID) (*membership.Member, error) {
	member, ok := t.members[id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, circulation.ErrNotFound)
	}
	copied := cloneMember(member)
	return &copied, nil
}

func (t *tx) GetBookForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	book, ok := t.books[id]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", id, circulation.ErrNotFound)
	}
	copied := book
	return &copied, nil
}

func (t *tx) GetCategory(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	category, ok := t.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, circulation.ErrNotFound)
	}
	copied := category
	return &copied, nil
}

func (t *tx) GetLoanForUpdate(ctx context.Context, id uuid.UUID) (*circulation.Loan, error) {
	loan, ok := t.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, circulation.ErrNotFound)
	}
	copied := cloneLoan(loan)
	return &copied, nil
}

func (t *tx) GetFineForUpdate(ctx context.Context, id uuid.UUID) (*circulation.Fine, error) {
	fine, ok := t.fines[id]
	if !ok {
		return nil, fmt.Errorf("fine %s: %w", id, circulation.ErrNotFound)
	}
	copied := fine
	return &copied, nil
}

func (t *tx) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*circulation.Payment, error) {
	payment, ok := t.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, circulation.ErrNotFound)
	}
	copied := payment
	return &copied, nil
}

func (t *tx) GetOpenLoanByBook(ctx context.Context, bookID uuid.UUID) (*circulation.Loan, error) {
	for _, loan := range t.loans {
		if loan.BookID == bookID && loan.Open() {
			copied := cloneLoan(loan)
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no open loan for book %s: %w", bookID, circulation.ErrNotFound)
}

func (t *tx) InsertLoan(ctx context.Context, loan *circulation.Loan) error {
	if _, exists := t.loans[loan.ID]; exists {
		return fmt.Errorf("loan %s already exists: %w", loan.ID, circulation.ErrConflict)
	}
	t.loans[loan.ID] = cloneLoan(*loan)
	return nil
}

func (t *tx) UpdateLoan(ctx context.Context, loan *circulation.Loan) error {
	stored, ok := t.loans[loan.ID]
	if !ok {
		return fmt.Errorf("loan %s: %w", loan.ID, circulation.ErrNotFound)
	}
	if stored.Version != loan.Version {
		return fmt.Errorf("loan %s version %d != %d: %w", loan.ID, loan.Version, stored.Version, circulation.ErrConflict)
	}
	loan.Version++
	t.loans[loan.ID] = cloneLoan(*loan)
	return nil
}

func (t *tx) InsertRenewal(ctx context.Context, renewal *circulation.Renewal) error {
	t.renewals = append(t.renewals, *renewal)
	return nil
}

func (t *tx) InsertFine(ctx context.Context, fine *circulation.Fine) error {
	if _, exists := t.fines[fine.ID]; exists {
		return fmt.Errorf("fine %s already exists: %w", fine.ID, circulation.ErrConflict)
	}
	t.fines[fine.ID] = *fine
	return nil
}

func (t *tx) UpdateFine(ctx context.Context, fine *circulation.Fine) error {
	stored, ok := t.fines[fine.ID]
	if !ok {
		return fmt.Errorf("fine %s: %w", fine.ID, circulation.ErrNotFound)
	}
	if stored.Version != fine.Version {
		return fmt.Errorf("fine %s version %d != %d: %w", fine.ID, fine.Version, stored.Version, circulation.ErrConflict)
	}
	fine.Version++
	t.fines[fine.ID] = *fine
	return nil
}

func (t *tx) InsertPayment(ctx context.Context, payment *circulation.Payment) error {
	if _, exists := t.payments[payment.ID]; exists {
		return fmt.Errorf("payment %s already exists: %w", payment.ID, circulation.ErrConflict)
	}
	t.payments[payment.ID] = *payment
	return nil
}

func (t *tx) UpdatePayment(ctx context.Context, payment *circulation.Payment) error {
	stored, ok := t.payments[payment.ID]
	if !ok {
		return fmt.Errorf("payment %s: %w", payment.ID, circulation.ErrNotFound)
	}
	if stored.Version != payment.Version {
		return fmt.Errorf("payment %s version %d != %d: %w", payment.ID, payment.Version, stored.Version, circulation.ErrConflict)
	}
	payment.Version++
	t.payments[payment.ID] = *payment
	return nil
}

func (t *tx) UpdateMember(ctx context.Context, member *membership.Member) error {
	stored, ok := t.members[member.ID]
	if !ok {
		return fmt.Errorf("member %s: %w", member.ID, circulation.ErrNotFound)
	}
	if stored.Version != member.Version {
		return fmt.Errorf("member %s version %d != %d: %w", member.ID, member.Version, stored.Version, circulation.ErrConflict)
	}
	member.Version++
	t.members[member.ID] = cloneMember(*member)
	return nil
}

func (t *tx) UpdateBook(ctx context.Context, book *catalog.Book) error {
	stored, ok := t.books[book.ID]
	if !ok {
		return fmt.Errorf("book %s: %w", book.ID, circulation.ErrNotFound)
	}
	if stored.Version != book.Version {
		return fmt.Errorf("book %s version %d != %d: %w", book.ID, book.Version, stored.Version, circulation.ErrConflict)
	}
	book.Version++
	t.books[book.ID] = *book
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneMemberMap(in map[uuid.UUID]membership.Member) map[uuid.UUID]membership.Member {
	out := make(map[uuid.UUID]membership.Member, len(in))
	for k, v := range in {
		out[k] = cloneMember(v)
	}
	return out
}

func cloneLoanMap(in map[uuid.UUID]circulation.Loan) map[uuid.UUID]circulation.Loan {
	out := make(map[uuid.UUID]circulation.Loan, len(in))
	for k, v := range in {
		out[k] = cloneLoan(v)
	}
	return out
}

func cloneMember(m membership.Member) membership.Member {
	return m
}

func cloneLoan(l circulation.Loan) circulation.Loan {
	if l.ReturnDate != nil {
		returned := *l.ReturnDate
		l.ReturnDate = &returned
	}
	return l
}
