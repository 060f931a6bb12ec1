// internal/catalog/repository.go
package catalog

import (
	"context"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/store"
)

const bookColumns = `id, title, author, cover, inventory, daily_fee, created_at, updated_at`

type postgresRepository struct {
	store *store.Store
}

// NewPostgresRepository returns a Repository backed by the books table.
func NewPostgresRepository(s *store.Store) Repository {
	return &postgresRepository{store: s}
}

func (r *postgresRepository) List(ctx context.Context) ([]*Book, error) {
	books := []*Book{}
	err := r.store.Conn(ctx).SelectContext(ctx, &books, `
		SELECT `+bookColumns+`
		FROM books
		ORDER BY author, title
	`)
	if err != nil {
		return nil, store.MapError("list books", err)
	}
	return books, nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	return r.get(ctx, id, "")
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Book, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *postgresRepository) get(ctx context.Context, id uuid.UUID, lock string) (*Book, error) {
	book := &Book{}
	err := r.store.Conn(ctx).GetContext(ctx, book, `
		SELECT `+bookColumns+`
		FROM books
		WHERE id = $1`+lock, id)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, apperr.NotFound("Book with ID %s not found.", id)
		}
		return nil, store.MapError("get book", err)
	}
	return book, nil
}

func (r *postgresRepository) Insert(ctx context.Context, book *Book) error {
	_, err := r.store.Conn(ctx).ExecContext(ctx, `
		INSERT INTO books (id, title, author, cover, inventory, daily_fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, book.ID, book.Title, book.Author, book.Cover, book.Inventory, book.DailyFee, book.CreatedAt, book.UpdatedAt)
	return store.MapError("insert book", err)
}

func (r *postgresRepository) Update(ctx context.Context, book *Book) error {
	res, err := r.store.Conn(ctx).ExecContext(ctx, `
		UPDATE books
		SET title = $1, author = $2, cover = $3, inventory = $4, daily_fee = $5, updated_at = $6
		WHERE id = $7
	`, book.Title, book.Author, book.Cover, book.Inventory, book.DailyFee, book.UpdatedAt, book.ID)
	if err != nil {
		return store.MapError("update book", err)
	}
	return requireRow(res.RowsAffected, book.ID)
}

func (r *postgresRepository) SetInventory(ctx context.Context, id uuid.UUID, inventory int) error {
	res, err := r.store.Conn(ctx).ExecContext(ctx, `
		UPDATE books
		SET inventory = $1, updated_at = NOW()
		WHERE id = $2
	`, inventory, id)
	if err != nil {
		return store.MapError("set inventory", err)
	}
	return requireRow(res.RowsAffected, id)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.store.Conn(ctx).ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return store.MapError("delete book", err)
	}
	return requireRow(res.RowsAffected, id)
}

func requireRow(rowsAffected func() (int64, error), id uuid.UUID) error {
	n, err := rowsAffected()
	if err != nil {
		return store.MapError("rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound("Book with ID %s not found.", id)
	}
	return nil
}
