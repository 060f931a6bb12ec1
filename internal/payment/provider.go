// internal/payment/provider.go
package payment

import (
	"context"
	"fmt"
	"net/http"
)

// SessionRequest describes a checkout session for a single line item.
type SessionRequest struct {
	Amount int64
	Name   string
}

// Session is a newly created checkout session.
type Session struct {
	ID  string
	URL string
}

// SessionStatus mirrors the provider's session status.
type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

// SessionState is the provider's current view of a session.
type SessionState struct {
	ID     string
	Status SessionStatus
	Paid   bool
}

// SessionProvider opens and inspects checkout sessions. Failures are
// returned as *ProviderError.
type SessionProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	RetrieveSession(ctx context.Context, id string) (SessionState, error)
}

// ErrorKind classifies a provider failure.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrCardDeclined
	ErrInvalidRequest
	ErrAuthFailure
	ErrNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case ErrCardDeclined:
		return "card_declined"
	case ErrInvalidRequest:
		return "invalid_request"
	case ErrAuthFailure:
		return "auth_failure"
	case ErrNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// ProviderError is a classified failure from the payment provider.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payment provider: %s", e.Kind)
	}
	return fmt.Sprintf("payment provider: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind onto a response status.
func (e *ProviderError) HTTPStatus() int {
	switch e.Kind {
	case ErrCardDeclined, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// PublicMessage is the detail returned to API clients.
func (e *ProviderError) PublicMessage() string {
	switch e.Kind {
	case ErrCardDeclined:
		return "Your card was declined. Please check the card details."
	case ErrInvalidRequest:
		return "Invalid parameters were supplied to the payment provider."
	case ErrAuthFailure:
		return "Authentication with the payment provider failed."
	case ErrNetwork:
		return "Network error: Unable to connect to the payment provider."
	default:
		return "An error occurred while processing the payment. Please try again."
	}
}
