// Package membershiptest provides an in-memory user repository for tests.
package membershiptest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/membership"
)

type entry struct {
	user membership.User
	cred membership.Credential
}

// Repository is a membership.Repository kept in a map.
type Repository struct {
	mu    sync.Mutex
	users map[uuid.UUID]entry
}

func NewRepository() *Repository {
	return &Repository{users: map[uuid.UUID]entry{}}
}

func (r *Repository) Insert(_ context.Context, user *membership.User, cred *membership.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if e.user.Email == user.Email {
			return apperr.Conflict("resource already exists", nil)
		}
	}
	r.users[user.ID] = entry{user: *user, cred: *cred}
	return nil
}

func (r *Repository) GetByEmail(_ context.Context, email string) (*membership.User, *membership.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.users {
		if e.user.Email == email {
			u, c := e.user, e.cred
			return &u, &c, nil
		}
	}
	return nil, nil, apperr.NotFound("user %s not found", email)
}

func (r *Repository) Get(_ context.Context, id uuid.UUID) (*membership.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("User with ID %s not found.", id)
	}
	u := e.user
	return &u, nil
}
