// internal/membership/domain.go
package membership

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
)

const minPasswordLen = 8

// User is an account that can borrow books. Staff users administer the
// catalog and see every borrowing and payment.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	IsStaff   bool      `json:"is_staff" db:"is_staff"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Credential holds a user's password hash.
type Credential struct {
	UserID       uuid.UUID `db:"id"`
	PasswordHash string    `db:"password_hash"`
	Salt         string    `db:"salt"`
}

// Token is an issued access token.
type Token struct {
	Access    string    `json:"access"`
	ExpiresAt time.Time `json:"expires_at"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(email, password string) error {
	errs := apperr.Fields{}
	if email == "" {
		errs.Add("email", "This field may not be blank.")
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs.Add("email", "Enter a valid email address.")
	}
	if len(password) < minPasswordLen {
		errs.Addf("password", "Ensure this field has at least %d characters.", minPasswordLen)
	}
	return errs.Err()
}
