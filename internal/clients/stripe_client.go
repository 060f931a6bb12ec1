// internal/clients/stripe_client.go
package clients

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"bookrental/internal/config"
	"bookrental/internal/payment"
)

// StripeClient opens Stripe checkout sessions. It implements
// payment.SessionProvider.
type StripeClient struct {
	api     *client.API
	cfg     config.StripeConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// StripeOption customises the client.
type StripeOption func(*stripeOptions)

type stripeOptions struct {
	backendURL string
	httpClient *http.Client
}

// WithStripeBackend points the client at another API host.
func WithStripeBackend(url string, httpClient *http.Client) StripeOption {
	return func(o *stripeOptions) {
		o.backendURL = url
		o.httpClient = httpClient
	}
}

// NewStripeClient builds a client with its own API key; the package level
// stripe.Key is never touched.
func NewStripeClient(cfg config.StripeConfig, logger *slog.Logger, opts ...StripeOption) *StripeClient {
	var o stripeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var backends *stripe.Backends
	if o.backendURL != "" {
		backendConfig := &stripe.BackendConfig{
			URL:               stripe.String(o.backendURL),
			HTTPClient:        o.httpClient,
			MaxNetworkRetries: stripe.Int64(0),
			LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
		}
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &StripeClient{
		api:     api,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker(BreakerSettings("stripe", logger, callerFault)),
		logger:  logger,
	}
}

func (c *StripeClient) CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.cfg.Currency),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Name),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return payment.Session{}, c.fail(ctx, "create session", err)
	}

	session := result.(*stripe.CheckoutSession)
	return payment.Session{ID: session.ID, URL: session.URL}, nil
}

func (c *StripeClient) RetrieveSession(ctx context.Context, id string) (payment.SessionState, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.CheckoutSessions.Get(id, params)
	})
	if err != nil {
		return payment.SessionState{}, c.fail(ctx, "retrieve session", err)
	}

	session := result.(*stripe.CheckoutSession)
	return payment.SessionState{
		ID:     session.ID,
		Status: payment.SessionStatus(session.Status),
		Paid:   session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}, nil
}

func (c *StripeClient) fail(ctx context.Context, op string, err error) error {
	classified := classify(err)
	c.logger.WarnContext(ctx, "stripe call failed", "op", op, "kind", classified.Kind.String(), "error", err)
	return classified
}

// classify maps a stripe-go failure onto a provider error kind.
func classify(err error) *payment.ProviderError {
	var stripeErr *stripe.Error
	switch {
	case errors.As(err, &stripeErr):
		switch {
		case stripeErr.Type == stripe.ErrorTypeCard:
			return &payment.ProviderError{Kind: payment.ErrCardDeclined, Err: err}
		case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
			return &payment.ProviderError{Kind: payment.ErrAuthFailure, Err: err}
		case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
			return &payment.ProviderError{Kind: payment.ErrInvalidRequest, Err: err}
		default:
			return &payment.ProviderError{Kind: payment.ErrUnknown, Err: err}
		}
	default:
		// Transport failures and an open breaker.
		return &payment.ProviderError{Kind: payment.ErrNetwork, Err: err}
	}
}

// callerFault keeps declined cards and bad requests from tripping the
// breaker.
func callerFault(err error) bool {
	if err == nil {
		return true
	}
	switch classify(err).Kind {
	case payment.ErrCardDeclined, payment.ErrInvalidRequest:
		return true
	default:
		return false
	}
}
