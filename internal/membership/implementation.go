// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bookrental/internal/apperr"
	"bookrental/internal/auth"
)

var (
	errInvalidCredentials = apperr.Unauthorized("No active account found with the given credentials.")
	errThrottled          = apperr.Throttled("Request was throttled. Try again later.")
)

// service implements the Service interface.
type service struct {
	repo        Repository
	tokens      *auth.Tokens
	logger      *slog.Logger
	rateLimiter *rate.Limiter
	now         func() time.Time
}

// NewService creates a new membership service instance. limiter bounds
// registrations and logins; nil uses 5 per minute with a burst of 5.
func NewService(repo Repository, tokens *auth.Tokens, logger *slog.Logger, limiter *rate.Limiter) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Minute/5), 5)
	}
	return &service{
		repo:        repo,
		tokens:      tokens,
		logger:      logger,
		rateLimiter: limiter,
		now:         time.Now,
	}
}

// Register creates a regular user.
func (s *service) Register(ctx context.Context, email, password string) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, errThrottled
	}
	return s.create(ctx, email, password, false)
}

// CreateStaff creates a staff user. It is not exposed over HTTP.
func (s *service) CreateStaff(ctx context.Context, email, password string) (*User, error) {
	return s.create(ctx, email, password, true)
}

func (s *service) create(ctx context.Context, email, password string, isStaff bool) (*User, error) {
	email = normalizeEmail(email)
	if err := validateRegistration(email, password); err != nil {
		return nil, err
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:        uuid.New(),
		Email:     email,
		IsStaff:   isStaff,
		CreatedAt: s.now().UTC(),
	}
	cred := &Credential{UserID: user.ID, PasswordHash: passwordHash, Salt: salt}

	if err := s.repo.Insert(ctx, user, cred); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.Validation("email", "user with this email already exists.")
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "is_staff", isStaff)
	return user, nil
}

// Authenticate verifies the credentials and issues an access token.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Token, error) {
	if !s.rateLimiter.Allow() {
		return nil, errThrottled
	}

	user, cred, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	ok, err := verifyPassword(password, cred.Salt, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, errInvalidCredentials
	}

	access, expiresAt, err := s.tokens.Issue(auth.Principal{UserID: user.ID, Email: user.Email, IsStaff: user.IsStaff})
	if err != nil {
		return nil, err
	}
	return &Token{Access: access, ExpiresAt: expiresAt}, nil
}

// GetUser retrieves a user by ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.Get(ctx, id)
}
