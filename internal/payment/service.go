// internal/payment/service.go
package payment

import (
	"context"

	"github.com/google/uuid"

	"bookrental/internal/auth"
)

// Service defines the interface for the payment service.
type Service interface {
	// Issue opens a checkout session for amount minor units and stores a
	// pending payment. It joins the caller's transaction.
	Issue(ctx context.Context, borrowingID, userID uuid.UUID, typ Type, amount int64) (*Payment, error)
	HasUnpaid(ctx context.Context, userID uuid.UUID) (bool, error)
	ForBorrowings(ctx context.Context, borrowingIDs []uuid.UUID) (map[uuid.UUID][]*Payment, error)

	List(ctx context.Context, p auth.Principal) ([]*Payment, error)
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Payment, error)
	MarkPaid(ctx context.Context, sessionID string) (*Payment, error)
	Cancel(ctx context.Context, sessionID string) (string, error)
	Renew(ctx context.Context, p auth.Principal, id uuid.UUID) (*Payment, error)
	CheckExpired(ctx context.Context) (ExpiryReport, error)
}

// ExpiryReport summarises one CheckExpired run.
type ExpiryReport struct {
	Checked int
	Expired int
	Failed  int
}

// Repository persists payments.
type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetBySession(ctx context.Context, sessionID string) (*Payment, error)
	List(ctx context.Context, f Filter) ([]*Payment, error)
	Update(ctx context.Context, p *Payment) error
}

// Recorder appends ledger events. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, aggregateID uuid.UUID, aggregateType, eventType string, data any) error
}
