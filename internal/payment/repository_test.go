package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrental/internal/apperr"
	"bookrental/internal/payment"
	"bookrental/internal/store"
	"bookrental/internal/store/storetest"
)

func seedBorrowing(t *testing.T, s *store.Store) (borrowingID, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	userID, bookID, borrowingID := uuid.New(), uuid.New(), uuid.New()
	conn := s.Conn(ctx)

	_, err := conn.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, salt) VALUES ($1, $2, 'h', 's')`, userID, userID.String()+"@test.com")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO books (id, title, author, cover, inventory, daily_fee) VALUES ($1, 'T', 'A', 'HARD', 1, 1.00)`, bookID)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO borrowings (id, borrow_date, expected_return_date, book_id, user_id) VALUES ($1, CURRENT_DATE, CURRENT_DATE + 3, $2, $3)`, borrowingID, bookID, userID)
	require.NoError(t, err)
	return borrowingID, userID
}

func TestPostgresRepository(t *testing.T) {
	s := storetest.Open(t)
	repo := payment.NewPostgresRepository(s)
	ctx := context.Background()
	borrowingID, userID := seedBorrowing(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	cheap := &payment.Payment{
		ID: uuid.New(), Status: payment.StatusPending, Type: payment.TypePayment, BorrowingID: borrowingID,
		SessionURL: "https://checkout.test/1", SessionID: "cs_1", Money: decimal.RequireFromString("1.50"),
		CreatedAt: now, UpdatedAt: now,
	}
	fine := &payment.Payment{
		ID: uuid.New(), Status: payment.StatusPending, Type: payment.TypeFine, BorrowingID: borrowingID,
		SessionURL: "https://checkout.test/2", SessionID: "cs_2", Money: decimal.RequireFromString("4.00"),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.Insert(ctx, fine))
	require.NoError(t, repo.Insert(ctx, cheap))

	dup := *cheap
	dup.ID = uuid.New()
	assert.True(t, apperr.Is(repo.Insert(ctx, &dup), apperr.KindConflict), "session ids are unique")

	got, err := repo.Get(ctx, cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, cheap.Money.Equal(got.Money))

	bySession, err := repo.GetBySession(ctx, "cs_2")
	require.NoError(t, err)
	assert.Equal(t, fine.ID, bySession.ID)

	list, err := repo.List(ctx, payment.Filter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, cheap.ID, list[0].ID)

	got.Status = payment.StatusExpired
	require.NoError(t, repo.Update(ctx, got))

	pending, err := repo.List(ctx, payment.Filter{Statuses: []payment.Status{payment.StatusPending}, BorrowingIDs: []uuid.UUID{borrowingID}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fine.ID, pending[0].ID)

	err = s.WithTx(ctx, func(ctx context.Context) error {
		locked, err := repo.GetForUpdate(ctx, fine.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, payment.TypeFine, locked.Type)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.Get(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
