// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookrental/internal/apperr"
	"bookrental/internal/store"
)

// service implements the Service interface.
type service struct {
	tx     store.Transactor
	repo   Repository
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new catalog service instance.
func NewService(tx store.Transactor, repo Repository, logger *slog.Logger) Service {
	return &service{
		tx:     tx,
		repo:   repo,
		logger: logger,
		tracer: otel.Tracer("bookrental/catalog"),
		now:    time.Now,
	}
}

func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	return s.repo.List(ctx)
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.repo.Get(ctx, id)
}

// CreateBook validates and stores a new book.
func (s *service) CreateBook(ctx context.Context, in BookInput) (*Book, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	book := &Book{
		ID:        uuid.New(),
		Title:     in.Title,
		Author:    in.Author,
		Cover:     in.Cover,
		Inventory: in.Inventory,
		DailyFee:  in.DailyFee,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, book); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "book created", "book_id", book.ID, "title", book.Title)
	return book, nil
}

// UpdateBook replaces the writable fields of a book.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, in BookInput) (*Book, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var book *Book
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		book, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		book.Title = in.Title
		book.Author = in.Author
		book.Cover = in.Cover
		book.Inventory = in.Inventory
		book.DailyFee = in.DailyFee
		book.UpdatedAt = s.now().UTC()
		return s.repo.Update(ctx, book)
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// DeleteBook removes a book. Books that were ever borrowed cannot be removed.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return apperr.Conflict("Book has borrowings and cannot be deleted.", err)
		}
		return err
	}
	s.logger.InfoContext(ctx, "book deleted", "book_id", id)
	return nil
}

// Reserve decrements inventory. The row lock held until the surrounding
// transaction ends keeps two borrowers from taking the last copy.
func (s *service) Reserve(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.adjustInventory(ctx, id, -1)
}

// Release increments inventory.
func (s *service) Release(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.adjustInventory(ctx, id, 1)
}

func (s *service) adjustInventory(ctx context.Context, id uuid.UUID, delta int) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.adjust_inventory",
		trace.WithAttributes(
			attribute.String("book.id", id.String()),
			attribute.Int("inventory.delta", delta),
		),
	)
	defer span.End()

	var book *Book
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		book, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if book.Inventory+delta < 0 {
			return apperr.Validation("book", "This book is not available for borrowing as inventory is 0.")
		}
		if err := s.repo.SetInventory(ctx, id, book.Inventory+delta); err != nil {
			return fmt.Errorf("set inventory: %w", err)
		}
		book.Inventory += delta
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("inventory.after", book.Inventory))
	return book, nil
}
