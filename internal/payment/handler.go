// internal/payment/handler.go
package payment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bookrental/internal/apperr"
	"bookrental/internal/auth"
	"bookrental/internal/httpx"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the payment endpoints. The success and cancel redirects
// come from the provider and carry no credentials.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/success", h.handleSuccess)
	r.Get("/cancel", h.handleCancel)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(h.logger))
		r.Get("/", h.handleListPayments)
		r.Get("/{id}", h.handleGetPayment)
		r.Post("/{id}/renew", h.handleRenewPayment)
	})
	return r
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.List(r.Context(), auth.MustPrincipal(r))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentID(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	p, err := h.service.Get(r.Context(), auth.MustPrincipal(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleRenewPayment(w http.ResponseWriter, r *http.Request) {
	id, err := paymentID(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	p, err := h.service.Renew(r.Context(), auth.MustPrincipal(r), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionParam(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	p, err := h.service.MarkPaid(r.Context(), sessionID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"detail":  "Payment was successful.",
		"payment": p,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionParam(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	msg, err := h.service.Cancel(r.Context(), sessionID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.Detail(w, http.StatusOK, msg)
}

func paymentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("No payment matches the given query.")
	}
	return id, nil
}

func sessionParam(r *http.Request) (string, error) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		return "", apperr.Validation("session_id", "This query parameter is required.")
	}
	return sessionID, nil
}
