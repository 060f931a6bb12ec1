package clients_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrental/internal/clients"
	"bookrental/internal/config"
	"bookrental/internal/payment"
)

var stripeConfig = config.StripeConfig{
	SecretKey:  "sk_test_123",
	Currency:   "usd",
	SuccessURL: "http://localhost/api/payments/success?session_id={CHECKOUT_SESSION_ID}",
	CancelURL:  "http://localhost/api/payments/cancel?session_id={CHECKOUT_SESSION_ID}",
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStripe(t *testing.T, handler http.HandlerFunc) (*clients.StripeClient, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return clients.NewStripeClient(stripeConfig, quiet(), clients.WithStripeBackend(srv.URL, srv.Client())), &hits
}

func TestStripeCreateSession(t *testing.T) {
	var form url.Values
	c, _ := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","status":"open","payment_status":"unpaid"}`))
	})

	session, err := c.CreateSession(context.Background(), payment.SessionRequest{Amount: 360, Name: "Payment for the book borrowing"})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)

	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, stripeConfig.SuccessURL, form.Get("success_url"))
	assert.Equal(t, stripeConfig.CancelURL, form.Get("cancel_url"))
	assert.Equal(t, "360", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Payment for the book borrowing", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "1", form.Get("line_items[0][quantity]"))
}

func TestStripeRetrieveSession(t *testing.T) {
	tests := []struct {
		name string
		body string
		want payment.SessionState
	}{
		{
			name: "paid",
			body: `{"id":"cs_1","object":"checkout.session","status":"complete","payment_status":"paid"}`,
			want: payment.SessionState{ID: "cs_1", Status: payment.SessionComplete, Paid: true},
		},
		{
			name: "open",
			body: `{"id":"cs_1","object":"checkout.session","status":"open","payment_status":"unpaid"}`,
			want: payment.SessionState{ID: "cs_1", Status: payment.SessionOpen},
		},
		{
			name: "expired",
			body: `{"id":"cs_1","object":"checkout.session","status":"expired","payment_status":"unpaid"}`,
			want: payment.SessionState{ID: "cs_1", Status: payment.SessionExpired},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
				w.Write([]byte(tt.body))
			})
			got, err := c.RetrieveSession(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripeErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   payment.ErrorKind
	}{
		{name: "card", status: http.StatusPaymentRequired, body: `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`, want: payment.ErrCardDeclined},
		{name: "invalid", status: http.StatusBadRequest, body: `{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`, want: payment.ErrInvalidRequest},
		{name: "auth", status: http.StatusUnauthorized, body: `{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`, want: payment.ErrAuthFailure},
		{name: "api", status: http.StatusInternalServerError, body: `{"error":{"type":"api_error","message":"Something went wrong"}}`, want: payment.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.CreateSession(context.Background(), payment.SessionRequest{Amount: 100, Name: "x"})
			var perr *payment.ProviderError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.want, perr.Kind)
		})
	}
}

func TestStripeNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := clients.NewStripeClient(stripeConfig, quiet(), clients.WithStripeBackend(srv.URL, http.DefaultClient))

	_, err := c.RetrieveSession(context.Background(), "cs_1")
	var perr *payment.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, payment.ErrNetwork, perr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, perr.HTTPStatus())
}

func TestStripeBreakerOpensOnServerErrors(t *testing.T) {
	c, hits := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"api_error","message":"down"}}`))
	})

	for i := 0; i < 5; i++ {
		_, err := c.RetrieveSession(context.Background(), "cs_1")
		require.Error(t, err)
	}
	_, err := c.RetrieveSession(context.Background(), "cs_1")
	var perr *payment.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, payment.ErrNetwork, perr.Kind, "open breaker short-circuits")
	assert.Equal(t, int32(5), atomic.LoadInt32(hits))
}

func TestStripeBreakerIgnoresDeclinedCards(t *testing.T) {
	c, hits := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"declined"}}`))
	})

	for i := 0; i < 8; i++ {
		_, err := c.CreateSession(context.Background(), payment.SessionRequest{Amount: 100, Name: "x"})
		var perr *payment.ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, payment.ErrCardDeclined, perr.Kind)
	}
	assert.Equal(t, int32(8), atomic.LoadInt32(hits))
}
