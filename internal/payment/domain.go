// internal/payment/domain.go
package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookrental/internal/apperr"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusExpired Status = "EXPIRED"
)

// Type distinguishes rental payments from overdue fines.
type Type string

const (
	TypePayment Type = "PAYMENT"
	TypeFine    Type = "FINE"
)

const aggregateType = "payment"

// Journal event types.
const (
	EventPaymentCreated = "PaymentCreated"
	EventPaymentPaid    = "PaymentPaid"
	EventPaymentExpired = "PaymentExpired"
	EventPaymentRenewed = "PaymentRenewed"
)

// MaxMinorUnits is the largest amount, in cents, a single payment can carry.
const MaxMinorUnits int64 = 99_999_999

var maxMoney = decimal.NewFromInt(1_000_000)

// Payment is a checkout session opened for a borrowing.
type Payment struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Status      Status          `json:"status" db:"status"`
	Type        Type            `json:"type" db:"type"`
	BorrowingID uuid.UUID       `json:"borrowing_id" db:"borrowing_id"`
	UserID      uuid.UUID       `json:"-" db:"user_id"`
	SessionURL  string          `json:"session_url" db:"session_url"`
	SessionID   string          `json:"session_id" db:"session_id"`
	Money       decimal.Decimal `json:"money" db:"money"`
	CreatedAt   time.Time       `json:"-" db:"created_at"`
	UpdatedAt   time.Time       `json:"-" db:"updated_at"`
}

// Filter narrows a payment listing. Zero fields do not constrain.
type Filter struct {
	UserID       *uuid.UUID
	Statuses     []Status
	BorrowingIDs []uuid.UUID
}

// MoneyFromMinor converts an amount in minor units to money.
func MoneyFromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// MinorUnits converts money back to minor units.
func MinorUnits(money decimal.Decimal) int64 {
	return money.Shift(2).Round(0).IntPart()
}

func validateMoney(money decimal.Decimal) error {
	if !money.IsPositive() || money.GreaterThanOrEqual(maxMoney) {
		return apperr.Validationf("money", "%s must be in range [0.01, 999999.99]", money.String())
	}
	return nil
}

// sessionName is the line item shown on the checkout page.
func sessionName(t Type) string {
	if t == TypeFine {
		return "Fine for the overdue book borrowing"
	}
	return "Payment for the book borrowing"
}
