package notify

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookrental/internal/borrowing"
)

const noOverdueMessage = "No borrowings overdue today!"

// OverdueLister returns the open borrowings due by tomorrow.
type OverdueLister interface {
	ListOverdue(ctx context.Context) ([]*borrowing.Details, error)
}

// Messenger delivers one message and reports the outcome.
type Messenger interface {
	Send(ctx context.Context, text string) error
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Overdue int
	Sent    int
	Failed  int
}

// OverdueSweep reminds the chat about borrowings that are due.
type OverdueSweep struct {
	borrowings OverdueLister
	messenger  Messenger
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewOverdueSweep(borrowings OverdueLister, messenger Messenger, logger *slog.Logger) *OverdueSweep {
	return &OverdueSweep{
		borrowings: borrowings,
		messenger:  messenger,
		logger:     logger,
		tracer:     otel.Tracer("bookrental/notify"),
	}
}

// Run sends one reminder per overdue borrowing, or a single all-clear
// message. A failed message is logged and the sweep moves on.
func (s *OverdueSweep) Run(ctx context.Context) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "notify.overdue_sweep")
	defer span.End()

	var report SweepReport
	overdue, err := s.borrowings.ListOverdue(ctx)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("list overdue borrowings: %w", err)
	}
	report.Overdue = len(overdue)

	messages := make([]string, 0, len(overdue))
	for _, d := range overdue {
		messages = append(messages, reminder(d))
	}
	if len(messages) == 0 {
		messages = append(messages, noOverdueMessage)
	}

	for _, text := range messages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.messenger.Send(ctx, text); err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "overdue reminder failed", "error", err)
			continue
		}
		report.Sent++
	}

	span.SetAttributes(attribute.Int("borrowings.overdue", report.Overdue))
	s.logger.InfoContext(ctx, "overdue sweep finished", "overdue", report.Overdue, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func reminder(d *borrowing.Details) string {
	return fmt.Sprintf("Dear %s your day for return book '%s' is %s.\nPlease make it ontime!",
		d.UserEmail, d.Book.Title, d.ExpectedReturnDate.Format(borrowing.DateLayout))
}
