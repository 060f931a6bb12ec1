package httpx

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrental/internal/apperr"
)

type upstreamErr struct{ status int }

func (e upstreamErr) Error() string         { return "upstream" }
func (e upstreamErr) HTTPStatus() int       { return e.status }
func (e upstreamErr) PublicMessage() string { return "provider unavailable" }

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "validation",
			err:    fmt.Errorf("wrap: %w", apperr.Validation("book", "This book is not available for borrowing as inventory is 0.")),
			status: http.StatusBadRequest,
			body:   `{"book":["This book is not available for borrowing as inventory is 0."]}`,
		},
		{
			name: "several fields",
			err: func() error {
				f := apperr.Fields{}
				f.Add("book", "This field is required.")
				f.Add("expected_return_date", "This field is required.")
				return f.Err()
			}(),
			status: http.StatusBadRequest,
			body:   `{"book":["This field is required."],"expected_return_date":["This field is required."]}`,
		},
		{name: "not found", err: apperr.NotFound("borrowing %d not found", 7), status: http.StatusNotFound, body: `{"detail":"borrowing 7 not found"}`},
		{name: "domain", err: apperr.Domain("already returned"), status: http.StatusBadRequest, body: `{"detail":"already returned"}`},
		{name: "throttled", err: apperr.Throttled("slow down"), status: http.StatusTooManyRequests, body: `{"detail":"slow down"}`},
		{name: "unauthorized", err: apperr.Unauthorized("missing token"), status: http.StatusUnauthorized, body: `{"detail":"missing token"}`},
		{name: "forbidden", err: apperr.Forbidden("staff only"), status: http.StatusForbidden, body: `{"detail":"staff only"}`},
		{name: "conflict", err: apperr.Conflict("taken", nil), status: http.StatusConflict, body: `{"detail":"taken"}`},
		{name: "status error", err: fmt.Errorf("create session: %w", upstreamErr{status: http.StatusServiceUnavailable}), status: http.StatusServiceUnavailable, body: `{"detail":"provider unavailable"}`},
		{name: "internal", err: errors.New("db down"), status: http.StatusInternalServerError, body: `{"detail":"internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/borrowings", nil)

			WriteError(rec, req, logger, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestDecode(t *testing.T) {
	var dst struct {
		Book string `json:"book"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"book":"abc"}`))
	require.NoError(t, Decode(req, &dst))
	assert.Equal(t, "abc", dst.Book)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	assert.True(t, apperr.Is(Decode(req, &dst), apperr.KindValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.True(t, apperr.Is(Decode(req, &dst), apperr.KindValidation))
}
