package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrental/internal/store/storetest"
)

type borrowingReturned struct {
	BorrowingID uuid.UUID `json:"borrowing_id"`
	ReturnDate  string    `json:"return_date"`
}

func TestRecordAssignsIncreasingVersions(t *testing.T) {
	s := storetest.Open(t)
	j := New(s)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, j.Record(ctx, id, "borrowing", "BorrowingCreated", map[string]string{"book": "Dune"}))
	require.NoError(t, j.Record(ctx, id, "borrowing", "BorrowingReturned", borrowingReturned{BorrowingID: id, ReturnDate: "2026-10-14"}))

	events, err := j.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, "BorrowingCreated", events[0].EventType)
	assert.Equal(t, 2, events[1].Version)
	assert.JSONEq(t, `{"borrowing_id":"`+id.String()+`","return_date":"2026-10-14"}`, string(events[1].EventData))
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	s := storetest.Open(t)
	j := New(s)
	ctx := context.Background()
	id := uuid.New()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		if err := j.Record(ctx, id, "payment", "PaymentCreated", nil); err != nil {
			return err
		}
		return errors.New("session creation failed")
	})
	require.Error(t, err)

	events, err := j.Load(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, events)
}
