// internal/catalog/domain.go
package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookrental/internal/apperr"
)

// Cover is the binding of a book.
type Cover string

const (
	CoverHard Cover = "HARD"
	CoverSoft Cover = "SOFT"
)

var maxDailyFee = decimal.NewFromInt(1000)

// Book is a catalog entry. Inventory counts the copies available to borrow.
type Book struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Title     string          `json:"title" db:"title"`
	Author    string          `json:"author" db:"author"`
	Cover     Cover           `json:"cover" db:"cover"`
	Inventory int             `json:"inventory" db:"inventory"`
	DailyFee  decimal.Decimal `json:"daily_fee" db:"daily_fee"`
	CreatedAt time.Time       `json:"-" db:"created_at"`
	UpdatedAt time.Time       `json:"-" db:"updated_at"`
}

// BookInput is the writable part of a book.
type BookInput struct {
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Cover     Cover           `json:"cover"`
	Inventory int             `json:"inventory"`
	DailyFee  decimal.Decimal `json:"daily_fee"`
}

// Normalize trims text fields and upper-cases the cover. An empty cover
// defaults to hard.
func (in BookInput) Normalize() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Cover = Cover(strings.ToUpper(strings.TrimSpace(string(in.Cover))))
	if in.Cover == "" {
		in.Cover = CoverHard
	}
	return in
}

// Validate checks a normalized input.
func (in BookInput) Validate() error {
	errs := apperr.Fields{}
	if in.Title == "" {
		errs.Add("title", "This field may not be blank.")
	}
	if in.Author == "" {
		errs.Add("author", "This field may not be blank.")
	}
	if in.Cover != CoverHard && in.Cover != CoverSoft {
		errs.Addf("cover", "%q is not a valid choice.", string(in.Cover))
	}
	if in.Inventory < 0 {
		errs.Add("inventory", "Ensure this value is greater than or equal to 0.")
	}
	switch {
	case !in.DailyFee.IsPositive() || in.DailyFee.GreaterThanOrEqual(maxDailyFee):
		errs.Addf("daily_fee", "%s must be in range [0.01, 999.99]", in.DailyFee.String())
	case !in.DailyFee.Equal(in.DailyFee.Truncate(2)):
		errs.Add("daily_fee", "Ensure that there are no more than 2 decimal places.")
	}
	return errs.Err()
}
