package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrental/internal/apperr"
	"bookrental/internal/auth"
	"bookrental/internal/journal/journaltest"
	"bookrental/internal/payment"
	"bookrental/internal/payment/paymenttest"
	"bookrental/internal/store/storetest"
)

type fixture struct {
	svc      payment.Service
	repo     *paymenttest.Repository
	provider *paymenttest.Provider
	journal  *journaltest.Recorder
	tx       *storetest.Transactor
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture() *fixture {
	f := &fixture{
		repo:     paymenttest.NewRepository(),
		provider: paymenttest.NewProvider(),
		journal:  journaltest.NewRecorder(),
	}
	f.tx = storetest.NewTransactor(f.repo, f.journal)
	f.svc = payment.NewService(f.tx, f.repo, f.provider, f.journal, quiet())
	return f
}

func (f *fixture) issue(t *testing.T, userID uuid.UUID, amount int64) *payment.Payment {
	t.Helper()
	p, err := f.svc.Issue(context.Background(), uuid.New(), userID, payment.TypePayment, amount)
	require.NoError(t, err)
	return p
}

func TestIssueCreatesPendingPayment(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	borrowingID := uuid.New()

	p, err := f.svc.Issue(context.Background(), borrowingID, userID, payment.TypePayment, 360)
	require.NoError(t, err)

	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Equal(t, payment.TypePayment, p.Type)
	assert.Equal(t, borrowingID, p.BorrowingID)
	assert.True(t, decimal.RequireFromString("3.60").Equal(p.Money), p.Money.String())
	assert.NotEmpty(t, p.SessionID)
	assert.Contains(t, p.SessionURL, p.SessionID)

	require.Len(t, f.provider.Requests, 1)
	assert.Equal(t, int64(360), f.provider.Requests[0].Amount)
	assert.Equal(t, "Payment for the book borrowing", f.provider.Requests[0].Name)
	assert.Equal(t, []string{payment.EventPaymentCreated}, f.journal.EventTypes())
}

func TestIssueFineUsesFineLineItem(t *testing.T) {
	f := newFixture()

	p, err := f.svc.Issue(context.Background(), uuid.New(), uuid.New(), payment.TypeFine, 400)
	require.NoError(t, err)

	assert.Equal(t, payment.TypeFine, p.Type)
	assert.Equal(t, "Fine for the overdue book borrowing", f.provider.Requests[0].Name)
}

func TestIssueProviderFailureStoresNothing(t *testing.T) {
	f := newFixture()
	f.provider.CreateErr = &payment.ProviderError{Kind: payment.ErrCardDeclined, Err: errors.New("declined")}

	_, err := f.svc.Issue(context.Background(), uuid.New(), uuid.New(), payment.TypePayment, 360)

	var providerErr *payment.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, payment.ErrCardDeclined, providerErr.Kind)
	assert.Equal(t, 0, f.repo.Len())
	assert.Empty(t, f.journal.EventTypes())
	assert.Equal(t, 1, f.tx.Rollbacks)
}

func TestIssueJournalFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.journal.Err = errors.New("journal unavailable")

	_, err := f.svc.Issue(context.Background(), uuid.New(), uuid.New(), payment.TypePayment, 360)

	require.Error(t, err)
	assert.Equal(t, 0, f.repo.Len())
}

func TestIssueRejectsOutOfRangeMoney(t *testing.T) {
	f := newFixture()

	for _, amount := range []int64{0, -5, 100_000_000} {
		_, err := f.svc.Issue(context.Background(), uuid.New(), uuid.New(), payment.TypePayment, amount)

		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr, "amount %d", amount)
		assert.Equal(t, "money", appErr.Field)
	}
	assert.Empty(t, f.provider.Requests)
}

func TestHasUnpaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	unpaid, err := f.svc.HasUnpaid(ctx, userID)
	require.NoError(t, err)
	assert.False(t, unpaid)

	p := f.issue(t, userID, 100)
	unpaid, err = f.svc.HasUnpaid(ctx, userID)
	require.NoError(t, err)
	assert.True(t, unpaid)

	unpaid, err = f.svc.HasUnpaid(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, unpaid, "payments of other users do not count")

	f.provider.Complete(p.SessionID)
	_, err = f.svc.MarkPaid(ctx, p.SessionID)
	require.NoError(t, err)
	unpaid, err = f.svc.HasUnpaid(ctx, userID)
	require.NoError(t, err)
	assert.False(t, unpaid)

	expired := f.issue(t, userID, 100)
	f.provider.Expire(expired.SessionID)
	_, err = f.svc.CheckExpired(ctx)
	require.NoError(t, err)
	unpaid, err = f.svc.HasUnpaid(ctx, userID)
	require.NoError(t, err)
	assert.True(t, unpaid, "expired payments still block borrowing")
}

func TestMarkPaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.issue(t, uuid.New(), 360)

	_, err := f.svc.MarkPaid(ctx, p.SessionID)
	assert.True(t, apperr.Is(err, apperr.KindDomain), "unpaid session")

	f.provider.Complete(p.SessionID)
	paid, err := f.svc.MarkPaid(ctx, p.SessionID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, paid.Status)

	again, err := f.svc.MarkPaid(ctx, p.SessionID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, again.Status)
	assert.Equal(t, []string{payment.EventPaymentCreated, payment.EventPaymentPaid}, f.journal.EventTypes())

	_, err = f.svc.MarkPaid(ctx, "cs_unknown")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCancelKeepsPaymentPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.issue(t, uuid.New(), 360)

	msg, err := f.svc.Cancel(ctx, p.SessionID)
	require.NoError(t, err)
	assert.Contains(t, msg, "24 hours")

	stored, err := f.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, stored.Status)

	_, err = f.svc.Cancel(ctx, "cs_unknown")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCheckExpiredContinuesPastFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	open := f.issue(t, userID, 100)
	expired := f.issue(t, userID, 200)
	broken := f.issue(t, userID, 300)
	f.provider.Expire(expired.SessionID)
	f.provider.RetrieveErr[broken.SessionID] = &payment.ProviderError{Kind: payment.ErrNetwork}

	report, err := f.svc.CheckExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, payment.ExpiryReport{Checked: 3, Expired: 1, Failed: 1}, report)

	statuses := map[uuid.UUID]payment.Status{}
	for _, p := range []*payment.Payment{open, expired, broken} {
		stored, err := f.repo.Get(ctx, p.ID)
		require.NoError(t, err)
		statuses[p.ID] = stored.Status
	}
	assert.Equal(t, payment.StatusPending, statuses[open.ID])
	assert.Equal(t, payment.StatusExpired, statuses[expired.ID])
	assert.Equal(t, payment.StatusPending, statuses[broken.ID])

	report, err = f.svc.CheckExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked, "expired payments are no longer checked")
}

func TestRenew(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := auth.Principal{UserID: uuid.New(), Email: "owner@test.com"}
	p := f.issue(t, owner.UserID, 250)

	_, err := f.svc.Renew(ctx, owner, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindDomain), "pending payments cannot be renewed")

	f.provider.Expire(p.SessionID)
	_, err = f.svc.CheckExpired(ctx)
	require.NoError(t, err)

	stranger := auth.Principal{UserID: uuid.New(), Email: "other@test.com"}
	_, err = f.svc.Renew(ctx, stranger, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	renewed, err := f.svc.Renew(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, renewed.Status)
	assert.NotEqual(t, p.SessionID, renewed.SessionID)
	assert.True(t, p.Money.Equal(renewed.Money))
	assert.Equal(t, int64(250), f.provider.Requests[len(f.provider.Requests)-1].Amount)

	paid, err := f.svc.MarkPaid(ctx, renewed.SessionID)
	assert.Nil(t, paid)
	assert.True(t, apperr.Is(err, apperr.KindDomain))
	f.provider.Complete(renewed.SessionID)
	paid, err = f.svc.MarkPaid(ctx, renewed.SessionID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, paid.Status)
}

func TestRenewProviderFailureKeepsExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	staff := auth.Principal{UserID: uuid.New(), IsStaff: true}
	p := f.issue(t, uuid.New(), 250)
	f.provider.Expire(p.SessionID)
	_, err := f.svc.CheckExpired(ctx)
	require.NoError(t, err)

	f.provider.CreateErr = &payment.ProviderError{Kind: payment.ErrAuthFailure}
	_, err = f.svc.Renew(ctx, staff, p.ID)
	require.Error(t, err)

	stored, err := f.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusExpired, stored.Status)
	assert.Equal(t, p.SessionID, stored.SessionID)
}

func TestListAndGetScoping(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := auth.Principal{UserID: uuid.New(), Email: "alice@test.com"}
	bob := auth.Principal{UserID: uuid.New(), Email: "bob@test.com"}
	staff := auth.Principal{UserID: uuid.New(), IsStaff: true}

	a := f.issue(t, alice.UserID, 500)
	f.issue(t, bob.UserID, 100)

	own, err := f.svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, a.ID, own[0].ID)

	all, err := f.svc.List(ctx, staff)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Money.LessThan(all[1].Money), "ordered by money")

	_, err = f.svc.Get(ctx, bob, a.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	got, err := f.svc.Get(ctx, staff, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestForBorrowings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	borrowingID := uuid.New()
	_, err := f.svc.Issue(ctx, borrowingID, uuid.New(), payment.TypePayment, 100)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, borrowingID, uuid.New(), payment.TypeFine, 200)
	require.NoError(t, err)
	f.issue(t, uuid.New(), 300)

	grouped, err := f.svc.ForBorrowings(ctx, []uuid.UUID{borrowingID})
	require.NoError(t, err)
	assert.Len(t, grouped, 1)
	assert.Len(t, grouped[borrowingID], 2)

	empty, err := f.svc.ForBorrowings(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
