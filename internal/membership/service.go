// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, email, password string) (*User, error)
	CreateStaff(ctx context.Context, email, password string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*Token, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// Repository persists users and their credentials.
type Repository interface {
	Insert(ctx context.Context, user *User, cred *Credential) error
	GetByEmail(ctx context.Context, email string) (*User, *Credential, error)
	Get(ctx context.Context, id uuid.UUID) (*User, error)
}
