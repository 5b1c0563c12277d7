package ports

import (
	"context"
	"time"

	"github.com/aretw0/wflow/pkg/domain"
)

// Journal is the append-only event log of a persistence id (a session id).
//
// Sequence arguments are positions in the currently retained log:
// HighestSequenceNr is the number of retained events, ReplayEvents(from) skips
// the first from of them and DeleteEvents(to) drops the first to of them.
// AggregateEvent.Sequence is assigned at persist time and only grows.
type Journal interface {
	// PersistEvents appends events in order. An empty slice is a no-op.
	PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) error

	// ReplayEvents returns the retained events starting at position fromSequence.
	// An unknown persistence id yields an empty slice and no error.
	ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error)

	// HighestSequenceNr returns the number of retained events (0 if unknown).
	HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error)

	// DeleteEvents drops the retained prefix [0, toSequence).
	DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error

	// PersistenceIDs lists every id with retained events.
	PersistenceIDs(ctx context.Context) ([]string, error)
}

// EventStore is the system-wide query surface over the journal.
type EventStore interface {
	// StoreEvents appends events for an aggregate and invalidates its cached state.
	StoreEvents(ctx context.Context, aggregateID string, events []domain.Event) error

	// GetEvents returns every retained event of an aggregate.
	GetEvents(ctx context.Context, aggregateID string) ([]domain.AggregateEvent, error)

	// GetCurrentState returns the cached state or rebuilds it from Initial.
	// An event that cannot be applied to its predecessor is a hard error.
	GetCurrentState(ctx context.Context, aggregateID string) (domain.State, error)

	// ListAggregates lists every known aggregate id.
	ListAggregates(ctx context.Context) ([]string, error)

	// Invalidate drops the cached state of an aggregate.
	Invalidate(aggregateID string)
}

// EventIndex is implemented by journals that index events across persistence ids.
type EventIndex interface {
	// EventsByType returns every retained event of type t.
	EventsByType(ctx context.Context, t domain.EventType) ([]domain.AggregateEvent, error)
	// EventsBetween returns the retained events with a timestamp in [from, to).
	EventsBetween(ctx context.Context, from, to time.Time) ([]domain.AggregateEvent, error)
}

// EventQuery selects events across aggregates. Zero fields match everything;
// Until is exclusive.
type EventQuery struct {
	Type  domain.EventType
	Since time.Time
	Until time.Time
}

// Matches reports whether env satisfies the query.
func (q EventQuery) Matches(env domain.AggregateEvent) bool {
	if q.Type != "" && env.Event.Type() != q.Type {
		return false
	}
	ts := env.Event.Timestamp
	if !q.Since.IsZero() && ts.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !ts.Before(q.Until) {
		return false
	}
	return true
}

// EventQuerier answers EventQuery across aggregates.
type EventQuerier interface {
	QueryEvents(ctx context.Context, q EventQuery) ([]domain.AggregateEvent, error)
}
