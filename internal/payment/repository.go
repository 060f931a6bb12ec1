// internal/payment/repository.go
package payment

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/store"
)

const dialectPostgres = "postgres"

type postgresRepository struct {
	store *store.Store
}

// NewPostgresRepository returns a Repository backed by the payments table.
// The owning user is resolved through the borrowing.
func NewPostgresRepository(s *store.Store) Repository {
	return &postgresRepository{store: s}
}

func (r *postgresRepository) baseQuery() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(goqu.T("payments").As("p")).
		Join(goqu.T("borrowings").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("p.borrowing_id")))).
		Select(
			goqu.I("p.id"), goqu.I("p.status"), goqu.I("p.type"), goqu.I("p.borrowing_id"),
			goqu.I("b.user_id"), goqu.I("p.session_url"), goqu.I("p.session_id"), goqu.I("p.money"),
			goqu.I("p.created_at"), goqu.I("p.updated_at"),
		).
		Prepared(true)
}

func (r *postgresRepository) getOne(ctx context.Context, query *goqu.SelectDataset, notFound error) (*Payment, error) {
	sqlQuery, args, err := query.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build payment query: %w", err)
	}

	p := &Payment{}
	if err := r.store.Conn(ctx).GetContext(ctx, p, sqlQuery, args...); err != nil {
		if store.IsNoRows(err) {
			return nil, notFound
		}
		return nil, store.MapError("get payment", err)
	}
	return p, nil
}

func (r *postgresRepository) Insert(ctx context.Context, p *Payment) error {
	_, err := r.store.Conn(ctx).ExecContext(ctx, `
		INSERT INTO payments (id, status, type, borrowing_id, session_url, session_id, money, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Status, p.Type, p.BorrowingID, p.SessionURL, p.SessionID, p.Money, p.CreatedAt, p.UpdatedAt)
	return store.MapError("insert payment", err)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.getOne(ctx,
		r.baseQuery().Where(goqu.I("p.id").Eq(id.String())),
		apperr.NotFound("Payment with ID %s not found.", id),
	)
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.getOne(ctx,
		r.baseQuery().Where(goqu.I("p.id").Eq(id.String())).ForUpdate(exp.Wait, goqu.T("p")),
		apperr.NotFound("Payment with ID %s not found.", id),
	)
}

func (r *postgresRepository) GetBySession(ctx context.Context, sessionID string) (*Payment, error) {
	return r.getOne(ctx,
		r.baseQuery().Where(goqu.I("p.session_id").Eq(sessionID)),
		apperr.NotFound("Payment with session %s not found.", sessionID),
	)
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]*Payment, error) {
	query := r.baseQuery().Order(goqu.I("p.money").Asc(), goqu.I("p.created_at").Asc())

	var conditions []exp.Expression
	if f.UserID != nil {
		conditions = append(conditions, goqu.I("b.user_id").Eq(f.UserID.String()))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, goqu.I("p.status").In(statuses))
	}
	if len(f.BorrowingIDs) > 0 {
		ids := make([]string, len(f.BorrowingIDs))
		for i, id := range f.BorrowingIDs {
			ids[i] = id.String()
		}
		conditions = append(conditions, goqu.I("p.borrowing_id").In(ids))
	}
	if len(conditions) > 0 {
		query = query.Where(goqu.And(conditions...))
	}

	sqlQuery, args, err := query.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build payment query: %w", err)
	}

	payments := []*Payment{}
	if err := r.store.Conn(ctx).SelectContext(ctx, &payments, sqlQuery, args...); err != nil {
		return nil, store.MapError("list payments", err)
	}
	return payments, nil
}

func (r *postgresRepository) Update(ctx context.Context, p *Payment) error {
	res, err := r.store.Conn(ctx).ExecContext(ctx, `
		UPDATE payments
		SET status = $2, session_url = $3, session_id = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Status, p.SessionURL, p.SessionID, p.UpdatedAt)
	if err != nil {
		return store.MapError("update payment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Payment with ID %s not found.", p.ID)
	}
	return nil
}
