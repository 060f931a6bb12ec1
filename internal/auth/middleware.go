// Package auth carries the authenticated principal through request contexts
// and guards routes by role.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/httpx"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID  uuid.UUID
	Email   string
	IsStaff bool
}

// CanAccess reports whether p may see a resource owned by ownerID.
func (p Principal) CanAccess(ownerID uuid.UUID) bool {
	return p.IsStaff || p.UserID == ownerID
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by Authenticate.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Authenticate parses a bearer token when one is present. Requests without
// a token pass through anonymously; an invalid token is rejected.
func Authenticate(tokens *Tokens, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				httpx.WriteError(w, r, logger, apperr.Unauthorized("Authorization header must be 'Bearer <token>'."))
				return
			}

			p, err := tokens.Parse(token)
			if err != nil {
				logger.DebugContext(r.Context(), "rejected token", "error", err)
				httpx.WriteError(w, r, logger, apperr.Unauthorized("Given token not valid."))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireUser rejects anonymous requests.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				httpx.WriteError(w, r, logger, apperr.Unauthorized("Authentication credentials were not provided."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff rejects anonymous and non-staff requests.
func RequireStaff(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				httpx.WriteError(w, r, logger, apperr.Unauthorized("Authentication credentials were not provided."))
				return
			}
			if !p.IsStaff {
				httpx.WriteError(w, r, logger, apperr.Forbidden("You do not have permission to perform this action."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MustPrincipal is used by handlers mounted behind RequireUser.
func MustPrincipal(r *http.Request) Principal {
	p, ok := FromContext(r.Context())
	if !ok {
		panic("auth: handler mounted without RequireUser")
	}
	return p
}
