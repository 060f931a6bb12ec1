// Package borrowingtest provides an in-memory borrowing repository for tests.
package borrowingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/borrowing"
	"bookrental/internal/catalog/catalogtest"
)

// Repository is a borrowing.Repository kept in a map. Books are resolved
// through the catalog fake; emails through SetEmail.
type Repository struct {
	mu         sync.Mutex
	borrowings map[uuid.UUID]borrowing.Borrowing
	emails     map[uuid.UUID]string
	books      *catalogtest.Repository
	locked     []uuid.UUID
}

func NewRepository(books *catalogtest.Repository) *Repository {
	return &Repository{
		borrowings: map[uuid.UUID]borrowing.Borrowing{},
		emails:     map[uuid.UUID]string{},
		books:      books,
	}
}

// SetEmail registers the email shown for a user.
func (r *Repository) SetEmail(userID uuid.UUID, email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails[userID] = email
}

// Len returns the number of stored borrowings.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.borrowings)
}

func (r *Repository) Snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uuid.UUID]borrowing.Borrowing, len(r.borrowings))
	for k, v := range r.borrowings {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.borrowings = saved
	}
}

func (r *Repository) Insert(_ context.Context, b *borrowing.Borrowing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !b.ExpectedReturnDate.After(b.BorrowDate) {
		return apperr.Conflict("constraint expected_return_after_borrow violated", nil)
	}
	r.borrowings[b.ID] = *b
	return nil
}

func (r *Repository) details(ctx context.Context, b borrowing.Borrowing) (*borrowing.Details, error) {
	book, err := r.books.Get(ctx, b.BookID)
	if err != nil {
		return nil, err
	}
	return &borrowing.Details{Borrowing: b, Book: book, UserEmail: r.emails[b.UserID]}, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*borrowing.Details, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.borrowings[id]
	if !ok {
		return nil, apperr.NotFound("Borrowing with ID %s not found.", id)
	}
	return r.details(ctx, b)
}

func (r *Repository) GetForUpdate(_ context.Context, id uuid.UUID) (*borrowing.Borrowing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.borrowings[id]
	if !ok {
		return nil, apperr.NotFound("Borrowing with ID %s not found.", id)
	}
	return &b, nil
}

// LockBorrower records the lock; the fake has no concurrency to guard.
func (r *Repository) LockBorrower(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, userID)
	return nil
}

// Locked lists the users locked so far, in order.
func (r *Repository) Locked() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.locked...)
}

func (r *Repository) SetActualReturnDate(_ context.Context, id uuid.UUID, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.borrowings[id]
	if !ok {
		return apperr.NotFound("Borrowing with ID %s not found.", id)
	}
	if b.ActualReturnDate != nil {
		return apperr.Conflict("borrowing is already returned", nil)
	}
	if date.Before(b.BorrowDate) {
		return apperr.Conflict("constraint actual_return_not_before_borrow violated", nil)
	}
	b.ActualReturnDate = &date
	r.borrowings[id] = b
	return nil
}

func (r *Repository) List(ctx context.Context, f borrowing.Filter) ([]*borrowing.Details, error) {
	return r.collect(ctx, func(b borrowing.Borrowing) bool {
		if f.IsActive != nil && b.Active() != *f.IsActive {
			return false
		}
		if f.UserID != nil && b.UserID != *f.UserID {
			return false
		}
		return true
	})
}

func (r *Repository) ListDueBy(ctx context.Context, cutoff time.Time) ([]*borrowing.Details, error) {
	return r.collect(ctx, func(b borrowing.Borrowing) bool {
		return b.Active() && !b.ExpectedReturnDate.After(cutoff)
	})
}

func (r *Repository) collect(ctx context.Context, keep func(borrowing.Borrowing) bool) ([]*borrowing.Details, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := []*borrowing.Details{}
	for _, b := range r.borrowings {
		if !keep(b) {
			continue
		}
		d, err := r.details(ctx, b)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.BorrowDate.Equal(b.BorrowDate) {
			return a.BorrowDate.After(b.BorrowDate)
		}
		if !a.ExpectedReturnDate.Equal(b.ExpectedReturnDate) {
			return a.ExpectedReturnDate.After(b.ExpectedReturnDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return list, nil
}

// Notifier collects chat messages.
type Notifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *Notifier) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

// Messages returns the messages sent so far.
func (n *Notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
