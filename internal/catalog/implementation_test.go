package catalog_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrental/internal/apperr"
	"bookrental/internal/catalog"
	"bookrental/internal/catalog/catalogtest"
	"bookrental/internal/store/storetest"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(books ...*catalog.Book) (catalog.Service, *catalogtest.Repository) {
	repo := catalogtest.NewRepository(books...)
	tx := storetest.NewTransactor(repo)
	return catalog.NewService(tx, repo, quiet()), repo
}

func sampleBook(inventory int) *catalog.Book {
	return &catalog.Book{
		ID:        uuid.New(),
		Title:     "Test Title",
		Author:    "Test Author",
		Cover:     catalog.CoverHard,
		Inventory: inventory,
		DailyFee:  decimal.RequireFromString("0.10"),
	}
}

func TestCreateBookValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	valid := catalog.BookInput{Title: "Dune", Author: "Frank Herbert", Cover: "soft", Inventory: 3, DailyFee: decimal.RequireFromString("1.20")}

	book, err := svc.CreateBook(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, catalog.CoverSoft, book.Cover)
	assert.NotEqual(t, uuid.Nil, book.ID)

	tests := []struct {
		name  string
		mod   func(in *catalog.BookInput)
		field string
	}{
		{name: "blank title", mod: func(in *catalog.BookInput) { in.Title = "  " }, field: "title"},
		{name: "blank author", mod: func(in *catalog.BookInput) { in.Author = "" }, field: "author"},
		{name: "unknown cover", mod: func(in *catalog.BookInput) { in.Cover = "leather" }, field: "cover"},
		{name: "negative inventory", mod: func(in *catalog.BookInput) { in.Inventory = -1 }, field: "inventory"},
		{name: "zero fee", mod: func(in *catalog.BookInput) { in.DailyFee = decimal.Zero }, field: "daily_fee"},
		{name: "fee too large", mod: func(in *catalog.BookInput) { in.DailyFee = decimal.NewFromInt(1000) }, field: "daily_fee"},
		{name: "fee precision", mod: func(in *catalog.BookInput) { in.DailyFee = decimal.RequireFromString("1.234") }, field: "daily_fee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mod(&in)
			_, err := svc.CreateBook(ctx, in)

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestCreateBookReportsEveryInvalidField(t *testing.T) {
	svc, repo := newService()
	in := catalog.BookInput{Title: "", Author: " ", Cover: "leather", Inventory: -2, DailyFee: decimal.RequireFromString("0.005")}

	_, err := svc.CreateBook(context.Background(), in)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, map[string][]string{
		"author":    {"This field may not be blank."},
		"cover":     {`"LEATHER" is not a valid choice.`},
		"daily_fee": {"0.005 must be in range [0.01, 999.99]"},
		"inventory": {"Ensure this value is greater than or equal to 0."},
		"title":     {"This field may not be blank."},
	}, appErr.Fields)

	books, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestListBooksOrderedByAuthorAndTitle(t *testing.T) {
	a := sampleBook(1)
	a.Author, a.Title = "Le Guin", "The Dispossessed"
	b := sampleBook(1)
	b.Author, b.Title = "Herbert", "Dune"
	c := sampleBook(1)
	c.Author, c.Title = "Le Guin", "A Wizard of Earthsea"
	svc, _ := newService(a, b, c)

	books, err := svc.ListBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, []string{"Dune", "A Wizard of Earthsea", "The Dispossessed"},
		[]string{books[0].Title, books[1].Title, books[2].Title})
}

func TestReserveAndRelease(t *testing.T) {
	book := sampleBook(1)
	svc, repo := newService(book)
	ctx := context.Background()

	reserved, err := svc.Reserve(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reserved.Inventory)
	assert.Equal(t, 0, repo.Inventory(book.ID))

	_, err = svc.Reserve(ctx, book.ID)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "book", appErr.Field)
	assert.Equal(t, "This book is not available for borrowing as inventory is 0.", appErr.Message)
	assert.Equal(t, 0, repo.Inventory(book.ID))

	released, err := svc.Release(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, released.Inventory)
}

func TestReserveUnknownBook(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Reserve(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateAndDeleteBook(t *testing.T) {
	book := sampleBook(2)
	borrowed := sampleBook(1)
	svc, repo := newService(book, borrowed)
	repo.Referenced[borrowed.ID] = true
	ctx := context.Background()

	updated, err := svc.UpdateBook(ctx, book.ID, catalog.BookInput{Title: "New", Author: "Author", Cover: catalog.CoverSoft, Inventory: 5, DailyFee: decimal.NewFromInt(2)})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, 5, repo.Inventory(book.ID))

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	_, err = svc.GetBook(ctx, book.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.DeleteBook(ctx, borrowed.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
