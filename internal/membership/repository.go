// internal/membership/repository.go
package membership

import (
	"context"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/store"
)

type postgresRepository struct {
	store *store.Store
}

// NewPostgresRepository returns a Repository backed by the users table.
func NewPostgresRepository(s *store.Store) Repository {
	return &postgresRepository{store: s}
}

func (r *postgresRepository) Insert(ctx context.Context, user *User, cred *Credential) error {
	_, err := r.store.Conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, salt, is_staff, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, cred.PasswordHash, cred.Salt, user.IsStaff, user.CreatedAt)
	return store.MapError("insert user", err)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, *Credential, error) {
	var row struct {
		User
		PasswordHash string `db:"password_hash"`
		Salt         string `db:"salt"`
	}
	err := r.store.Conn(ctx).GetContext(ctx, &row, `
		SELECT id, email, is_staff, created_at, password_hash, salt
		FROM users
		WHERE email = $1
	`, email)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, nil, apperr.NotFound("user %s not found", email)
		}
		return nil, nil, store.MapError("get user by email", err)
	}

	user := row.User
	return &user, &Credential{UserID: user.ID, PasswordHash: row.PasswordHash, Salt: row.Salt}, nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	user := &User{}
	err := r.store.Conn(ctx).GetContext(ctx, user, `
		SELECT id, email, is_staff, created_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		if store.IsNoRows(err) {
			return nil, apperr.NotFound("User with ID %s not found.", id)
		}
		return nil, store.MapError("get user", err)
	}
	return user, nil
}
