// internal/borrowing/repository.go
package borrowing

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookrental/internal/apperr"
	"bookrental/internal/catalog"
	"bookrental/internal/store"
)

const dialectPostgres = "postgres"

type postgresRepository struct {
	store *store.Store
}

// NewPostgresRepository returns a Repository backed by the borrowings table.
func NewPostgresRepository(s *store.Store) Repository {
	return &postgresRepository{store: s}
}

// detailsRow is one borrowing joined with its book and borrower.
type detailsRow struct {
	Borrowing
	UserEmail     string          `db:"user_email"`
	BookTitle     string          `db:"book_title"`
	BookAuthor    string          `db:"book_author"`
	BookCover     catalog.Cover   `db:"book_cover"`
	BookInventory int             `db:"book_inventory"`
	BookDailyFee  decimal.Decimal `db:"book_daily_fee"`
}

func (r detailsRow) details() *Details {
	b := r.Borrowing
	normalizeDates(&b)
	return &Details{
		Borrowing: b,
		UserEmail: r.UserEmail,
		Book: &catalog.Book{
			ID:        r.BookID,
			Title:     r.BookTitle,
			Author:    r.BookAuthor,
			Cover:     r.BookCover,
			Inventory: r.BookInventory,
			DailyFee:  r.BookDailyFee,
		},
	}
}

// normalizeDates pins scanned DATE values to UTC midnight.
func normalizeDates(b *Borrowing) {
	b.BorrowDate = DateOf(b.BorrowDate)
	b.ExpectedReturnDate = DateOf(b.ExpectedReturnDate)
	if b.ActualReturnDate != nil {
		d := DateOf(*b.ActualReturnDate)
		b.ActualReturnDate = &d
	}
}

func (r *postgresRepository) detailsQuery() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(goqu.T("borrowings").As("br")).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.I("bk.id").Eq(goqu.I("br.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("br.user_id")))).
		Select(
			goqu.I("br.id"), goqu.I("br.borrow_date"), goqu.I("br.expected_return_date"),
			goqu.I("br.actual_return_date"), goqu.I("br.book_id"), goqu.I("br.user_id"), goqu.I("br.created_at"),
			goqu.I("u.email").As("user_email"),
			goqu.I("bk.title").As("book_title"),
			goqu.I("bk.author").As("book_author"),
			goqu.I("bk.cover").As("book_cover"),
			goqu.I("bk.inventory").As("book_inventory"),
			goqu.I("bk.daily_fee").As("book_daily_fee"),
		).
		Order(
			goqu.I("br.borrow_date").Desc(),
			goqu.I("br.expected_return_date").Desc(),
			goqu.I("br.actual_return_date").Desc().NullsFirst(),
			goqu.I("br.created_at").Desc(),
		).
		Prepared(true)
}

func (r *postgresRepository) selectDetails(ctx context.Context, query *goqu.SelectDataset) ([]*Details, error) {
	sqlQuery, args, err := query.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrowing query: %w", err)
	}

	rows := []detailsRow{}
	if err := r.store.Conn(ctx).SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, store.MapError("list borrowings", err)
	}

	list := make([]*Details, len(rows))
	for i, row := range rows {
		list[i] = row.details()
	}
	return list, nil
}

func (r *postgresRepository) Insert(ctx context.Context, b *Borrowing) error {
	_, err := r.store.Conn(ctx).ExecContext(ctx, `
		INSERT INTO borrowings (id, borrow_date, expected_return_date, book_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.BorrowDate.Format(DateLayout), b.ExpectedReturnDate.Format(DateLayout), b.BookID, b.UserID, b.CreatedAt)
	return store.MapError("insert borrowing", err)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Details, error) {
	list, err := r.selectDetails(ctx, r.detailsQuery().Where(goqu.I("br.id").Eq(id.String())))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("Borrowing with ID %s not found.", id)
	}
	return list[0], nil
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Borrowing, error) {
	b := &Borrowing{}
	err := r.store.Conn(ctx).GetContext(ctx, b, `
		SELECT id, borrow_date, expected_return_date, actual_return_date, book_id, user_id, created_at
		FROM borrowings
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, apperr.NotFound("Borrowing with ID %s not found.", id)
		}
		return nil, store.MapError("get borrowing", err)
	}
	normalizeDates(b)
	return b, nil
}

func (r *postgresRepository) LockBorrower(ctx context.Context, userID uuid.UUID) error {
	var id uuid.UUID
	err := r.store.Conn(ctx).GetContext(ctx, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if store.IsNoRows(err) {
			return apperr.NotFound("User with ID %s not found.", userID)
		}
		return store.MapError("lock borrower", err)
	}
	return nil
}

func (r *postgresRepository) SetActualReturnDate(ctx context.Context, id uuid.UUID, date time.Time) error {
	res, err := r.store.Conn(ctx).ExecContext(ctx, `
		UPDATE borrowings
		SET actual_return_date = $2
		WHERE id = $1 AND actual_return_date IS NULL
	`, id, date.Format(DateLayout))
	if err != nil {
		return store.MapError("set actual return date", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set actual return date: %w", err)
	}
	if n == 0 {
		return apperr.Conflict("borrowing is already returned", nil)
	}
	return nil
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]*Details, error) {
	var conditions []exp.Expression
	if f.IsActive != nil {
		if *f.IsActive {
			conditions = append(conditions, goqu.I("br.actual_return_date").IsNull())
		} else {
			conditions = append(conditions, goqu.I("br.actual_return_date").IsNotNull())
		}
	}
	if f.UserID != nil {
		conditions = append(conditions, goqu.I("br.user_id").Eq(f.UserID.String()))
	}

	query := r.detailsQuery()
	if len(conditions) > 0 {
		query = query.Where(goqu.And(conditions...))
	}
	return r.selectDetails(ctx, query)
}

func (r *postgresRepository) ListDueBy(ctx context.Context, cutoff time.Time) ([]*Details, error) {
	return r.selectDetails(ctx, r.detailsQuery().Where(
		goqu.I("br.actual_return_date").IsNull(),
		goqu.I("br.expected_return_date").Lte(cutoff.Format(DateLayout)),
	))
}
