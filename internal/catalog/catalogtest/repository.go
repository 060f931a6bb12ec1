// Package catalogtest provides an in-memory catalog repository for tests.
package catalogtest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/catalog"
)

// Repository is a catalog.Repository kept in a map.
type Repository struct {
	mu    sync.Mutex
	books map[uuid.UUID]catalog.Book

	// Referenced marks books that cannot be deleted.
	Referenced map[uuid.UUID]bool
}

func NewRepository(books ...*catalog.Book) *Repository {
	r := &Repository{books: map[uuid.UUID]catalog.Book{}, Referenced: map[uuid.UUID]bool{}}
	for _, b := range books {
		r.books[b.ID] = *b
	}
	return r
}

func (r *Repository) Snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uuid.UUID]catalog.Book, len(r.books))
	for k, v := range r.books {
		saved[k] = v
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.books = saved
	}
}

// Inventory returns the stored inventory of a book.
func (r *Repository) Inventory(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.books[id].Inventory
}

func (r *Repository) List(_ context.Context) ([]*catalog.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	books := make([]*catalog.Book, 0, len(r.books))
	for _, b := range r.books {
		b := b
		books = append(books, &b)
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Author != books[j].Author {
			return books[i].Author < books[j].Author
		}
		return books[i].Title < books[j].Title
	})
	return books, nil
}

func (r *Repository) Get(_ context.Context, id uuid.UUID) (*catalog.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, apperr.NotFound("Book with ID %s not found.", id)
	}
	return &b, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	return r.Get(ctx, id)
}

func (r *Repository) Insert(_ context.Context, book *catalog.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[book.ID]; ok {
		return apperr.Conflict("resource already exists", nil)
	}
	r.books[book.ID] = *book
	return nil
}

func (r *Repository) Update(_ context.Context, book *catalog.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[book.ID]; !ok {
		return apperr.NotFound("Book with ID %s not found.", book.ID)
	}
	r.books[book.ID] = *book
	return nil
}

func (r *Repository) SetInventory(_ context.Context, id uuid.UUID, inventory int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return apperr.NotFound("Book with ID %s not found.", id)
	}
	if inventory < 0 {
		return apperr.Conflict("constraint books_inventory_check violated", nil)
	}
	b.Inventory = inventory
	r.books[id] = b
	return nil
}

func (r *Repository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return apperr.NotFound("Book with ID %s not found.", id)
	}
	if r.Referenced[id] {
		return apperr.Conflict("resource is referenced by other records", nil)
	}
	delete(r.books, id)
	return nil
}
