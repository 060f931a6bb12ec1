// internal/borrowing/implementation.go
package borrowing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"bookrental/internal/apperr"
	"bookrental/internal/auth"
	"bookrental/internal/catalog"
	"bookrental/internal/journal"
	"bookrental/internal/payment"
	"bookrental/internal/store"
	"bookrental/internal/telemetry"
)

var errNotFound = apperr.NotFound("No borrowing matches the given query.")

// service implements the Service interface.
type service struct {
	tx       store.Transactor
	repo     Repository
	books    catalog.Service
	payments payment.Service
	journal  Journal
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	meters   metric.MeterProvider

	created  metric.Int64Counter
	returned metric.Int64Counter
}

// Option customises the service.
type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithMeterProvider records counters on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.meters = mp }
}

// NewService creates a new borrowing service instance.
func NewService(
	tx store.Transactor,
	repo Repository,
	books catalog.Service,
	payments payment.Service,
	journal Journal,
	notifier Notifier,
	logger *slog.Logger,
	opts ...Option,
) Service {
	s := &service{
		tx:       tx,
		repo:     repo,
		books:    books,
		payments: payments,
		journal:  journal,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("bookrental/borrowing"),
		now:      time.Now,
		meters:   otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := s.meters.Meter("bookrental/borrowing")
	s.created = telemetry.Counter(meter, "bookrental.borrowings.created", "Borrowings created")
	s.returned = telemetry.Counter(meter, "bookrental.borrowings.returned", "Borrowings returned")
	return s
}

func (s *service) today() time.Time {
	return DateOf(s.now())
}

// CreateBorrowing lends one copy of a book to the caller and opens the
// rental payment. The chat is notified once everything is committed.
func (s *service) CreateBorrowing(ctx context.Context, p auth.Principal, in CreateInput) (*Details, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.create", trace.WithAttributes(
		attribute.String("user.id", p.UserID.String()),
		attribute.String("book.id", in.BookID.String()),
	))
	defer span.End()

	today := s.today()
	if in.BookID == uuid.Nil {
		return nil, apperr.Validation("book", "This field is required.")
	}
	if in.ExpectedReturnDate.IsZero() {
		return nil, apperr.Validation("expected_return_date", "This field is required.")
	}
	expected := DateOf(in.ExpectedReturnDate)
	if !expected.After(today) {
		return nil, apperr.Validation("expected_return_date", "Expected return date must be after borrow date.")
	}

	var details *Details
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		// Locks are taken book first, then borrower.
		book, err := s.books.Reserve(ctx, in.BookID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validationf("book", "Invalid pk \"%s\" - object does not exist.", in.BookID)
			}
			return err
		}

		// Held until commit; one user's borrows run one at a time.
		if err := s.repo.LockBorrower(ctx, p.UserID); err != nil {
			return err
		}
		unpaid, err := s.payments.HasUnpaid(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("check unpaid payments: %w", err)
		}
		if unpaid {
			return apperr.Domain("You have at least one unpaid payment. You can't borrow new book.")
		}

		b := &Borrowing{
			ID:                 uuid.New(),
			BorrowDate:         today,
			ExpectedReturnDate: expected,
			BookID:             book.ID,
			UserID:             p.UserID,
			CreatedAt:          s.now().UTC(),
		}
		if err := s.repo.Insert(ctx, b); err != nil {
			return err
		}

		amount, err := CalculateAmount(expected, today, book.DailyFee)
		if err != nil {
			return err
		}
		pay, err := s.payments.Issue(ctx, b.ID, p.UserID, payment.TypePayment, amount)
		if err != nil {
			return err
		}

		if err := s.journal.Record(ctx, b.ID, aggregateType, EventBorrowingCreated, map[string]any{
			"book_id":              b.BookID,
			"user_id":              b.UserID,
			"borrow_date":          b.BorrowDate.Format(DateLayout),
			"expected_return_date": b.ExpectedReturnDate.Format(DateLayout),
			"payment_id":           pay.ID,
		}); err != nil {
			return err
		}

		details = &Details{Borrowing: *b, Book: book, UserEmail: p.Email, Payments: []*payment.Payment{pay}}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.created.Add(ctx, 1)
	s.logger.InfoContext(ctx, "book borrowed", "borrowing_id", details.ID, "book_id", details.BookID, "user_id", p.UserID)
	s.notifier.Notify(ctx, fmt.Sprintf(
		"Book '%s' has borrowed by user %s.\nExpected return date: %s.\nYour link for payment: %s",
		details.Book.Title, p.Email, details.ExpectedReturnDate.Format(DateLayout), details.Payments[0].SessionURL,
	))
	return details, nil
}

// ReturnBorrowing closes a borrowing, puts the copy back and opens a fine
// when the book is late. A second return changes nothing.
func (s *service) ReturnBorrowing(ctx context.Context, p auth.Principal, id uuid.UUID) (*ReturnResult, error) {
	ctx, span := s.tracer.Start(ctx, "borrowing.return", trace.WithAttributes(attribute.String("borrowing.id", id.String())))
	defer span.End()

	today := s.today()
	var result *ReturnResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return errNotFound
			}
			return err
		}
		if !p.CanAccess(locked.UserID) {
			return errNotFound
		}

		details, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if !locked.Active() {
			return apperr.Domain("User %s already have returned book %s on %s",
				details.UserEmail, details.Book.Title, locked.ActualReturnDate.Format(DateLayout))
		}

		if err := s.repo.SetActualReturnDate(ctx, id, today); err != nil {
			return err
		}
		book, err := s.books.Release(ctx, locked.BookID)
		if err != nil {
			return err
		}
		details.ActualReturnDate = &today
		details.Book = book

		if err := s.journal.Record(ctx, id, aggregateType, EventBorrowingReturned, map[string]string{
			"actual_return_date": today.Format(DateLayout),
		}); err != nil {
			return err
		}

		result = &ReturnResult{Borrowing: details}
		if !today.After(locked.ExpectedReturnDate) {
			result.Message = fmt.Sprintf("User %s have returned book %s successfully.", details.UserEmail, book.Title)
			return nil
		}

		amount, err := CalculateAmount(today, locked.ExpectedReturnDate, FineRate(book.DailyFee))
		if err != nil {
			return err
		}
		// Fines are capped at what a single payment can carry.
		if amount > payment.MaxMinorUnits {
			s.logger.WarnContext(ctx, "fine capped", "borrowing_id", id, "amount", amount, "cap", payment.MaxMinorUnits)
			amount = payment.MaxMinorUnits
		}
		fine, err := s.payments.Issue(ctx, id, locked.UserID, payment.TypeFine, amount)
		if err != nil {
			return err
		}
		result.Fine = fine
		result.Message = fmt.Sprintf("User %s have returned book %s late. Fine: %s.", details.UserEmail, book.Title, fine.Money.StringFixed(2))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.returned.Add(ctx, 1)
	s.logger.InfoContext(ctx, "book returned", "borrowing_id", id, "fined", result.Fine != nil)
	return result, nil
}

// ListBorrowings applies the filter; callers who are not staff only ever see
// their own borrowings.
func (s *service) ListBorrowings(ctx context.Context, p auth.Principal, f Filter) ([]*Details, error) {
	if !p.IsStaff {
		if f.UserID != nil && *f.UserID != p.UserID {
			return []*Details{}, nil
		}
		f.UserID = &p.UserID
	}

	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.attachPayments(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *service) GetBorrowing(ctx context.Context, p auth.Principal, id uuid.UUID) (*Details, error) {
	details, err := s.repo.Get(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	if !p.CanAccess(details.UserID) {
		return nil, errNotFound
	}
	if err := s.attachPayments(ctx, []*Details{details}); err != nil {
		return nil, err
	}
	return details, nil
}

// History returns the journal of a borrowing and its payments, oldest
// first.
func (s *service) History(ctx context.Context, p auth.Principal, id uuid.UUID) ([]journal.Event, error) {
	if !p.IsStaff {
		return nil, apperr.Forbidden("You do not have permission to perform this action.")
	}
	details, err := s.GetBorrowing(ctx, p, id)
	if err != nil {
		return nil, err
	}

	events, err := s.journal.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, pay := range details.Payments {
		paymentEvents, err := s.journal.Load(ctx, pay.ID)
		if err != nil {
			return nil, err
		}
		events = append(events, paymentEvents...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (s *service) ListOverdue(ctx context.Context) ([]*Details, error) {
	return s.repo.ListDueBy(ctx, s.today().AddDate(0, 0, 1))
}

func (s *service) attachPayments(ctx context.Context, list []*Details) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	for i, d := range list {
		ids[i] = d.ID
	}
	grouped, err := s.payments.ForBorrowings(ctx, ids)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	for _, d := range list {
		d.Payments = grouped[d.ID]
		if d.Payments == nil {
			d.Payments = []*payment.Payment{}
		}
	}
	return nil
}
