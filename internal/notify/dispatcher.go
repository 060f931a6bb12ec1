// Package notify delivers chat notifications and runs the overdue sweep.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"bookrental/internal/clients"
	"bookrental/internal/telemetry"
)

// ErrDisabled is returned by Send when no chat is configured.
var ErrDisabled = errors.New("notifications disabled: no chat configured")

// Sender posts a message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Dispatcher sends every message to one configured chat.
type Dispatcher struct {
	sender  Sender
	chatID  int64
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	failed  metric.Int64Counter
}

func NewDispatcher(sender Sender, chatID int64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		chatID:  chatID,
		breaker: gobreaker.NewCircuitBreaker(clients.BreakerSettings("telegram", logger, nil)),
		logger:  logger,
		failed:  telemetry.Counter(otel.Meter("bookrental/notify"), "bookrental.notifications.failed", "Chat messages that could not be delivered"),
	}
}

// Send delivers text and reports the outcome.
func (d *Dispatcher) Send(ctx context.Context, text string) error {
	if d.chatID == 0 {
		return ErrDisabled
	}
	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.sender.SendMessage(ctx, d.chatID, text)
	})
	if err != nil {
		d.failed.Add(ctx, 1)
	}
	return err
}

// Notify delivers text. Failures are logged and otherwise ignored.
func (d *Dispatcher) Notify(ctx context.Context, text string) {
	err := d.Send(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, ErrDisabled):
		d.logger.DebugContext(ctx, "notification skipped", "reason", err)
	default:
		d.logger.WarnContext(ctx, "notification failed", "error", err)
	}
}
