// Package httpx holds the JSON request/response helpers shared by the HTTP
// handlers.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"bookrental/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

// StatusError is implemented by errors that know their own HTTP status and
// client message, such as payment provider failures.
type StatusError interface {
	error
	HTTPStatus() int
	PublicMessage() string
}

// Decode reads a JSON body into dst. Unknown fields are rejected.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("body", "request body must not be empty")
		}
		return apperr.Validationf("body", "invalid JSON: %v", err)
	}
	return nil
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encode response", "error", err)
	}
}

// Detail writes {"detail": msg}.
func Detail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// WriteError translates err into an API error response. Errors that are not
// classified are logged and reported as 500 without their cause.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindValidation:
			if len(appErr.Fields) > 0 {
				WriteJSON(w, http.StatusBadRequest, appErr.Fields)
				return
			}
			WriteJSON(w, http.StatusBadRequest, map[string][]string{appErr.Field: {appErr.Message}})
		case apperr.KindUnauthorized:
			Detail(w, http.StatusUnauthorized, appErr.Message)
		case apperr.KindForbidden:
			Detail(w, http.StatusForbidden, appErr.Message)
		case apperr.KindNotFound:
			Detail(w, http.StatusNotFound, appErr.Message)
		case apperr.KindConflict:
			Detail(w, http.StatusConflict, appErr.Message)
		case apperr.KindDomain:
			Detail(w, http.StatusBadRequest, appErr.Message)
		case apperr.KindThrottled:
			Detail(w, http.StatusTooManyRequests, appErr.Message)
		default:
			internal(w, r, logger, err)
		}
		return
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		if statusErr.HTTPStatus() >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "upstream failure", "path", r.URL.Path, "error", err)
		}
		Detail(w, statusErr.HTTPStatus(), statusErr.PublicMessage())
		return
	}

	internal(w, r, logger, err)
}

func internal(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	Detail(w, http.StatusInternalServerError, "internal server error")
}

// MethodNotAllowed is used as the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Detail(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
}

// NotFound is used as the router's 404 handler.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	Detail(w, http.StatusNotFound, "not found")
}
