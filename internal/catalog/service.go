// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	ListBooks(ctx context.Context) ([]*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	CreateBook(ctx context.Context, in BookInput) (*Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, in BookInput) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	// Reserve takes one copy out of inventory and Release puts one back. Both
	// lock the book row and join the caller's transaction when there is one.
	Reserve(ctx context.Context, id uuid.UUID) (*Book, error)
	Release(ctx context.Context, id uuid.UUID) (*Book, error)
}

// Repository persists books.
type Repository interface {
	List(ctx context.Context) ([]*Book, error)
	Get(ctx context.Context, id uuid.UUID) (*Book, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Book, error)
	Insert(ctx context.Context, book *Book) error
	Update(ctx context.Context, book *Book) error
	SetInventory(ctx context.Context, id uuid.UUID, inventory int) error
	Delete(ctx context.Context, id uuid.UUID) error
}
