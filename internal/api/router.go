// Package api assembles the HTTP surface.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bookrental/internal/auth"
	"bookrental/internal/borrowing"
	"bookrental/internal/catalog"
	"bookrental/internal/httpx"
	"bookrental/internal/membership"
	"bookrental/internal/payment"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers are the per-resource routers mounted under /api.
type Handlers struct {
	Users      *membership.Handler
	Books      *catalog.Handler
	Borrowings *borrowing.Handler
	Payments   *payment.Handler
}

// NewRouter returns the root handler.
func NewRouter(h Handlers, tokens *auth.Tokens, db Pinger, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.NotFound(httpx.NotFound)
	r.MethodNotAllowed(httpx.MethodNotAllowed)

	r.Get("/healthz", healthz(db, logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(tokens, logger))
		r.Mount("/users", h.Users.Routes())
		r.Mount("/books", h.Books.Routes())
		r.Mount("/borrowings", h.Borrowings.Routes())
		r.Mount("/payments", h.Payments.Routes())
	})
	return r
}

func healthz(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "health check failed", "error", err)
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
