// Package journaltest provides an in-memory event recorder for tests.
package journaltest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookrental/internal/journal"
)

// Entry is one recorded event.
type Entry struct {
	AggregateID   uuid.UUID
	AggregateType string
	EventType     string
	Data          any
}

// Recorder keeps events in memory. Err, when set, is returned by Record.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry

	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(_ context.Context, aggregateID uuid.UUID, aggregateType, eventType string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.entries = append(r.entries, Entry{AggregateID: aggregateID, AggregateType: aggregateType, EventType: eventType, Data: data})
	return nil
}

func (r *Recorder) Snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := append([]Entry(nil), r.entries...)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.entries = saved
	}
}

// Load returns the events of one aggregate in the order they were recorded.
func (r *Recorder) Load(_ context.Context, aggregateID uuid.UUID) ([]journal.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := []journal.Event{}
	for i, e := range r.entries {
		if e.AggregateID != aggregateID {
			continue
		}
		data, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		events = append(events, journal.Event{
			ID:            int64(i + 1),
			AggregateID:   e.AggregateID,
			AggregateType: e.AggregateType,
			EventType:     e.EventType,
			EventData:     data,
			Version:       len(events) + 1,
			CreatedAt:     time.Unix(int64(i), 0).UTC(),
		})
	}
	return events, nil
}

// EventTypes returns the recorded event types in order.
func (r *Recorder) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.entries))
	for i, e := range r.entries {
		types[i] = e.EventType
	}
	return types
}
