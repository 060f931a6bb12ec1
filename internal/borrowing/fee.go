// internal/borrowing/fee.go
package borrowing

import (
	"time"

	"github.com/shopspring/decimal"

	"bookrental/internal/apperr"
)

// FineMultiplier scales the daily fee for every overdue day.
const FineMultiplier = 2

const day = 24 * time.Hour

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween is the number of calendar days from earlier to later.
func DaysBetween(later, earlier time.Time) int64 {
	return int64(DateOf(later).Sub(DateOf(earlier)) / day)
}

// CalculateAmount returns the charge in minor units for the days between
// earlier and later at rate per day, rounded half to even.
func CalculateAmount(later, earlier time.Time, rate decimal.Decimal) (int64, error) {
	if later.IsZero() || earlier.IsZero() {
		return 0, apperr.Validation("date", "Both dates must be set.")
	}
	if rate.IsNegative() {
		return 0, apperr.Validation("rate", "Rate must be positive.")
	}

	days := DaysBetween(later, earlier)
	if days < 0 {
		return 0, apperr.Validation("date", "The last day must be later than the first day.")
	}

	amount := decimal.NewFromInt(days).Mul(rate).Shift(2).RoundBank(0)
	return amount.IntPart(), nil
}

// FineRate is the daily rate charged for overdue days.
func FineRate(dailyFee decimal.Decimal) decimal.Decimal {
	return dailyFee.Mul(decimal.NewFromInt(FineMultiplier))
}
