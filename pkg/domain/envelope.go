package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventMetadata carries tracing and attribution for a persisted event.
type EventMetadata struct {
	EventID       string    `json:"event_id"`
	Timestamp     time.Time `json:"timestamp"`
	EventType     EventType `json:"event_type"`
	AggregateID   string    `json:"aggregate_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
}

// NewEventMetadata returns metadata with a fresh id for an event of type t.
func NewEventMetadata(t EventType) EventMetadata {
	return EventMetadata{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: t,
	}
}

func (m EventMetadata) WithAggregateID(id string) EventMetadata {
	m.AggregateID = id
	return m
}

func (m EventMetadata) WithCorrelationID(id string) EventMetadata {
	m.CorrelationID = id
	return m
}

func (m EventMetadata) WithCausationID(id string) EventMetadata {
	m.CausationID = id
	return m
}

func (m EventMetadata) WithUserID(id string) EventMetadata {
	m.UserID = id
	return m
}

func (m EventMetadata) WithSessionID(id string) EventMetadata {
	m.SessionID = id
	return m
}

// AggregateEvent is the storage envelope of an Event.
// Sequence is the zero-based position of the event in its aggregate's log.
type AggregateEvent struct {
	AggregateID string        `json:"aggregate_id"`
	Sequence    uint64        `json:"sequence_nr"`
	Event       Event         `json:"data"`
	Metadata    EventMetadata `json:"metadata"`
}

// NewAggregateEvent wraps ev for aggregateID at position seq.
// The metadata reuses the event's own id and timestamp.
func NewAggregateEvent(aggregateID string, seq uint64, ev Event) AggregateEvent {
	md := EventMetadata{
		EventID:     ev.ID,
		Timestamp:   ev.Timestamp,
		EventType:   ev.Type(),
		AggregateID: aggregateID,
		SessionID:   aggregateID,
	}
	return AggregateEvent{
		AggregateID: aggregateID,
		Sequence:    seq,
		Event:       ev,
		Metadata:    md,
	}
}

// Events unwraps a slice of envelopes.
func Events(envelopes []AggregateEvent) []Event {
	out := make([]Event, len(envelopes))
	for i, env := range envelopes {
		out[i] = env.Event
	}
	return out
}

// Languages supported by the settings commands.
var supportedLanguages = []string{"en", "es"}

// AvailableLanguages returns the supported language codes.
func AvailableLanguages() []string {
	return append([]string(nil), supportedLanguages...)
}

// Journal backends selectable through configuration.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// StorageBackends lists the selectable journal backends.
func StorageBackends() []string {
	return []string{BackendMemory, BackendBadger, BackendRedis, BackendFile, BackendSQLite}
}
