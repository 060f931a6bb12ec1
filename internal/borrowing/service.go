// internal/borrowing/service.go
package borrowing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookrental/internal/auth"
	"bookrental/internal/journal"
)

// Service defines the interface for the borrowing service.
type Service interface {
	CreateBorrowing(ctx context.Context, p auth.Principal, in CreateInput) (*Details, error)
	ReturnBorrowing(ctx context.Context, p auth.Principal, id uuid.UUID) (*ReturnResult, error)
	ListBorrowings(ctx context.Context, p auth.Principal, f Filter) ([]*Details, error)
	GetBorrowing(ctx context.Context, p auth.Principal, id uuid.UUID) (*Details, error)
	History(ctx context.Context, p auth.Principal, id uuid.UUID) ([]journal.Event, error)

	// ListOverdue returns open borrowings due tomorrow or earlier.
	ListOverdue(ctx context.Context) ([]*Details, error)
}

// Repository persists borrowings. Details returned by the repository carry
// the book and user email but no payments.
type Repository interface {
	Insert(ctx context.Context, b *Borrowing) error
	Get(ctx context.Context, id uuid.UUID) (*Details, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Borrowing, error)
	// LockBorrower holds the user's row until the transaction ends.
	LockBorrower(ctx context.Context, userID uuid.UUID) error
	SetActualReturnDate(ctx context.Context, id uuid.UUID, date time.Time) error
	List(ctx context.Context, f Filter) ([]*Details, error)
	ListDueBy(ctx context.Context, cutoff time.Time) ([]*Details, error)
}

// Journal records and loads ledger events. *journal.Journal satisfies it.
type Journal interface {
	Record(ctx context.Context, aggregateID uuid.UUID, aggregateType, eventType string, data any) error
	Load(ctx context.Context, aggregateID uuid.UUID) ([]journal.Event, error)
}

// Notifier delivers a chat message. Delivery failures are the notifier's
// concern.
type Notifier interface {
	Notify(ctx context.Context, text string)
}
