package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	p := Principal{UserID: uuid.New(), Email: "reader@example.com", IsStaff: true}

	signed, expiresAt, err := tokens.Issue(p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	got, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	signed, _, err := tokens.Issue(Principal{UserID: uuid.New(), Email: "a@example.com"})
	require.NoError(t, err)

	later := NewTokens("secret", time.Minute)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Parse(signed)
	assert.Error(t, err)

	_, err = NewTokens("other", time.Minute).Parse(signed)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	reader, _, err := tokens.Issue(Principal{UserID: uuid.New(), Email: "reader@example.com"})
	require.NoError(t, err)
	staff, _, err := tokens.Issue(Principal{UserID: uuid.New(), Email: "staff@example.com", IsStaff: true})
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	logger := quietLogger()
	userOnly := Authenticate(tokens, logger)(RequireUser(logger)(ok))
	staffOnly := Authenticate(tokens, logger)(RequireStaff(logger)(ok))

	tests := []struct {
		name    string
		handler http.Handler
		header  string
		status  int
	}{
		{name: "anonymous user route", handler: userOnly, status: http.StatusUnauthorized},
		{name: "malformed header", handler: userOnly, header: "Token abc", status: http.StatusUnauthorized},
		{name: "invalid token", handler: userOnly, header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "reader user route", handler: userOnly, header: "Bearer " + reader, status: http.StatusNoContent},
		{name: "reader staff route", handler: staffOnly, header: "Bearer " + reader, status: http.StatusForbidden},
		{name: "staff staff route", handler: staffOnly, header: "Bearer " + staff, status: http.StatusNoContent},
		{name: "anonymous staff route", handler: staffOnly, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCanAccess(t *testing.T) {
	owner := uuid.New()
	assert.True(t, Principal{UserID: owner}.CanAccess(owner))
	assert.False(t, Principal{UserID: uuid.New()}.CanAccess(owner))
	assert.True(t, Principal{UserID: uuid.New(), IsStaff: true}.CanAccess(owner))
}
