// internal/borrowing/domain.go
package borrowing

import (
	"time"

	"github.com/google/uuid"

	"bookrental/internal/catalog"
	"bookrental/internal/payment"
)

// DateLayout is the wire and message format of calendar dates.
const DateLayout = "2006-01-02"

const aggregateType = "borrowing"

// Journal event types.
const (
	EventBorrowingCreated  = "BorrowingCreated"
	EventBorrowingReturned = "BorrowingReturned"
)

// Borrowing is one loan of a book copy to a user. Dates are UTC calendar
// dates.
type Borrowing struct {
	ID                 uuid.UUID  `db:"id"`
	BorrowDate         time.Time  `db:"borrow_date"`
	ExpectedReturnDate time.Time  `db:"expected_return_date"`
	ActualReturnDate   *time.Time `db:"actual_return_date"`
	BookID             uuid.UUID  `db:"book_id"`
	UserID             uuid.UUID  `db:"user_id"`
	CreatedAt          time.Time  `db:"created_at"`
}

// Active reports whether the book has not been returned yet.
func (b *Borrowing) Active() bool {
	return b.ActualReturnDate == nil
}

// Details is a borrowing with the book, the borrower's email and the
// payments opened for it.
type Details struct {
	Borrowing
	Book      *catalog.Book
	UserEmail string
	Payments  []*payment.Payment
}

// Filter narrows a borrowing listing. Nil fields do not constrain.
type Filter struct {
	IsActive *bool
	UserID   *uuid.UUID
}

// CreateInput is a borrow request.
type CreateInput struct {
	BookID             uuid.UUID
	ExpectedReturnDate time.Time
}

// ReturnResult describes a completed return. Fine is set when the book came
// back late.
type ReturnResult struct {
	Borrowing *Details
	Fine      *payment.Payment
	Message   string
}
