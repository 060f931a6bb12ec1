// internal/payment/implementation.go
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"bookrental/internal/apperr"
	"bookrental/internal/auth"
	"bookrental/internal/store"
	"bookrental/internal/telemetry"
)

const cancelMessage = "Payment can be paid a bit later. The session is available for 24 hours."

// service implements the Service interface.
type service struct {
	tx       store.Transactor
	repo     Repository
	provider SessionProvider
	journal  Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	finesIssued  metric.Int64Counter
	paymentsPaid metric.Int64Counter
}

// NewService creates a new payment service instance.
func NewService(tx store.Transactor, repo Repository, provider SessionProvider, journal Recorder, logger *slog.Logger) Service {
	meter := otel.Meter("bookrental/payment")
	return &service{
		tx:           tx,
		repo:         repo,
		provider:     provider,
		journal:      journal,
		logger:       logger,
		tracer:       otel.Tracer("bookrental/payment"),
		now:          time.Now,
		finesIssued:  telemetry.Counter(meter, "bookrental.fines.issued", "Overdue fines issued"),
		paymentsPaid: telemetry.Counter(meter, "bookrental.payments.paid", "Payments marked paid"),
	}
}

// Issue opens a checkout session and stores the pending payment.
func (s *service) Issue(ctx context.Context, borrowingID, userID uuid.UUID, typ Type, amount int64) (*Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.issue", trace.WithAttributes(
		attribute.String("borrowing.id", borrowingID.String()),
		attribute.String("payment.type", string(typ)),
		attribute.Int64("payment.amount", amount),
	))
	defer span.End()

	money := MoneyFromMinor(amount)
	if err := validateMoney(money); err != nil {
		return nil, err
	}

	var p *Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		session, err := s.provider.CreateSession(ctx, SessionRequest{Amount: amount, Name: sessionName(typ)})
		if err != nil {
			return fmt.Errorf("create checkout session: %w", err)
		}

		now := s.now().UTC()
		p = &Payment{
			ID:          uuid.New(),
			Status:      StatusPending,
			Type:        typ,
			BorrowingID: borrowingID,
			UserID:      userID,
			SessionURL:  session.URL,
			SessionID:   session.ID,
			Money:       money,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, p); err != nil {
			return err
		}
		return s.journal.Record(ctx, p.ID, aggregateType, EventPaymentCreated, p)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if typ == TypeFine {
		s.finesIssued.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "payment issued", "payment_id", p.ID, "borrowing_id", borrowingID, "type", typ, "money", p.Money.String())
	return p, nil
}

// HasUnpaid reports whether the user has a pending or expired payment.
func (s *service) HasUnpaid(ctx context.Context, userID uuid.UUID) (bool, error) {
	payments, err := s.repo.List(ctx, Filter{UserID: &userID, Statuses: []Status{StatusPending, StatusExpired}})
	if err != nil {
		return false, err
	}
	return len(payments) > 0, nil
}

// ForBorrowings groups the payments of the given borrowings.
func (s *service) ForBorrowings(ctx context.Context, borrowingIDs []uuid.UUID) (map[uuid.UUID][]*Payment, error) {
	grouped := make(map[uuid.UUID][]*Payment, len(borrowingIDs))
	if len(borrowingIDs) == 0 {
		return grouped, nil
	}
	payments, err := s.repo.List(ctx, Filter{BorrowingIDs: borrowingIDs})
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		grouped[p.BorrowingID] = append(grouped[p.BorrowingID], p)
	}
	return grouped, nil
}

// List returns every payment for staff and the caller's own otherwise.
func (s *service) List(ctx context.Context, p auth.Principal) ([]*Payment, error) {
	var f Filter
	if !p.IsStaff {
		f.UserID = &p.UserID
	}
	return s.repo.List(ctx, f)
}

func (s *service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Payment, error) {
	payment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(payment.UserID) {
		return nil, apperr.NotFound("Payment with ID %s not found.", id)
	}
	return payment, nil
}

// MarkPaid handles the provider's success redirect. Repeated calls for a
// paid session return the payment unchanged.
func (s *service) MarkPaid(ctx context.Context, sessionID string) (*Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment.mark_paid", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	current, err := s.repo.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusPaid {
		return current, nil
	}

	state, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if !state.Paid {
		return nil, apperr.Domain("Payment for session %s is not completed yet.", sessionID)
	}

	var (
		paid         *Payment
		transitioned bool
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, current.ID)
		if err != nil {
			return err
		}
		paid = p
		switch p.Status {
		case StatusPaid:
			return nil
		case StatusExpired:
			return apperr.Domain("Payment session has expired. Renew the payment to pay it.")
		}

		p.Status = StatusPaid
		p.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		transitioned = true
		return s.journal.Record(ctx, p.ID, aggregateType, EventPaymentPaid, map[string]string{"session_id": sessionID})
	})
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return paid, nil
	}

	s.paymentsPaid.Add(ctx, 1)

	s.logger.InfoContext(ctx, "payment paid", "payment_id", paid.ID, "session_id", sessionID)
	return paid, nil
}

// Cancel handles the provider's cancel redirect. Nothing changes; the
// session stays payable until it expires.
func (s *service) Cancel(ctx context.Context, sessionID string) (string, error) {
	if _, err := s.repo.GetBySession(ctx, sessionID); err != nil {
		return "", err
	}
	return cancelMessage, nil
}

// Renew opens a fresh session for an expired payment.
func (s *service) Renew(ctx context.Context, principal auth.Principal, id uuid.UUID) (*Payment, error) {
	if _, err := s.Get(ctx, principal, id); err != nil {
		return nil, err
	}

	var renewed *Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusExpired {
			return apperr.Domain("Only expired payments can be renewed. This payment is %s.", p.Status)
		}

		session, err := s.provider.CreateSession(ctx, SessionRequest{Amount: MinorUnits(p.Money), Name: sessionName(p.Type)})
		if err != nil {
			return fmt.Errorf("create checkout session: %w", err)
		}

		previous := p.SessionID
		p.SessionID = session.ID
		p.SessionURL = session.URL
		p.Status = StatusPending
		p.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		renewed = p
		return s.journal.Record(ctx, p.ID, aggregateType, EventPaymentRenewed, map[string]string{
			"previous_session_id": previous,
			"session_id":          session.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment renewed", "payment_id", renewed.ID, "session_id", renewed.SessionID)
	return renewed, nil
}

// CheckExpired marks pending payments whose session expired. A failure on
// one payment is logged and the sweep moves on.
func (s *service) CheckExpired(ctx context.Context) (ExpiryReport, error) {
	ctx, span := s.tracer.Start(ctx, "payment.check_expired")
	defer span.End()

	var report ExpiryReport
	pending, err := s.repo.List(ctx, Filter{Statuses: []Status{StatusPending}})
	if err != nil {
		return report, err
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		expired, err := s.expireIfDue(ctx, p)
		if err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "expiry check failed", "payment_id", p.ID, "session_id", p.SessionID, "error", err)
			continue
		}
		if expired {
			report.Expired++
		}
	}

	span.SetAttributes(
		attribute.Int("payments.checked", report.Checked),
		attribute.Int("payments.expired", report.Expired),
	)
	s.logger.InfoContext(ctx, "expiry check finished", "checked", report.Checked, "expired", report.Expired, "failed", report.Failed)
	return report, nil
}

func (s *service) expireIfDue(ctx context.Context, p *Payment) (bool, error) {
	state, err := s.provider.RetrieveSession(ctx, p.SessionID)
	if err != nil {
		return false, err
	}
	if state.Status != SessionExpired {
		return false, nil
	}

	expired := false
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if locked.Status != StatusPending || locked.SessionID != p.SessionID {
			return nil
		}
		locked.Status = StatusExpired
		locked.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, locked); err != nil {
			return err
		}
		expired = true
		return s.journal.Record(ctx, locked.ID, aggregateType, EventPaymentExpired, map[string]string{"session_id": locked.SessionID})
	})
	return expired, err
}
