// Package journal keeps an append-only audit trail of ledger events. Events
// are written through the caller's transaction so they commit or roll back
// together with the state change they describe.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookrental/internal/store"
)

var ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")

// Event is one recorded ledger event.
type Event struct {
	ID            int64           `json:"id" db:"id"`
	AggregateID   uuid.UUID       `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string          `json:"aggregate_type" db:"aggregate_type"`
	EventType     string          `json:"event_type" db:"event_type"`
	EventData     json.RawMessage `json:"event_data" db:"event_data"`
	Version       int             `json:"version" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Journal appends and loads events.
type Journal struct {
	store  *store.Store
	tracer trace.Tracer
	now    func() time.Time
}

func New(s *store.Store) *Journal {
	return &Journal{
		store:  s,
		tracer: otel.Tracer("bookrental/journal"),
		now:    time.Now,
	}
}

// Record appends one event for the aggregate at the next version. Two
// concurrent writers racing for the same version are rejected by the unique
// (aggregate_id, version) constraint.
func (j *Journal) Record(ctx context.Context, aggregateID uuid.UUID, aggregateType, eventType string, data any) error {
	ctx, span := j.tracer.Start(ctx, "journal.record",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	conn := j.store.Conn(ctx)

	var currentVersion int
	if err := conn.GetContext(ctx, &currentVersion, `
		SELECT COALESCE(MAX(version), 0)
		FROM journal_events
		WHERE aggregate_id = $1
	`, aggregateID); err != nil {
		return fmt.Errorf("query current version: %w", err)
	}

	var eventID int64
	err = conn.QueryRowxContext(ctx, `
		INSERT INTO journal_events (aggregate_id, aggregate_type, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, aggregateID, aggregateType, eventType, payload, currentVersion+1, j.now().UTC()).Scan(&eventID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrConcurrencyConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}

	span.AddEvent("event.appended", trace.WithAttributes(
		attribute.Int64("event.id", eventID),
		attribute.Int("event.version", currentVersion+1),
	))
	return nil
}

// Load returns the events of one aggregate in version order.
func (j *Journal) Load(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID.String())),
	)
	defer span.End()

	events := []Event{}
	if err := j.store.Conn(ctx).SelectContext(ctx, &events, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, version, created_at
		FROM journal_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}
