// Package eventstore provides the system-wide EventStore on top of a Journal.
//
// The Store wraps the same journal handle the command processors write to, and is
// itself a ports.Journal: processors persist through it so that every append and
// delete invalidates the cached state of the affected aggregate.
package eventstore

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/ports"
)

// Store implements ports.EventStore and ports.Journal.
type Store struct {
	journal ports.Journal
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]domain.State
	gens  map[string]uint64 // bumped on every invalidation
}

var (
	_ ports.EventStore   = (*Store)(nil)
	_ ports.Journal      = (*Store)(nil)
	_ ports.EventQuerier = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store over journal.
func New(journal ports.Journal, opts ...Option) *Store {
	s := &Store{
		journal: journal,
		logger:  logging.NewNop(),
		cache:   make(map[string]domain.State),
		gens:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "event-store")
	return s
}

// Journal returns the wrapped journal.
func (s *Store) Journal() ports.Journal {
	return s.journal
}

// StoreEvents appends events for aggregateID.
func (s *Store) StoreEvents(ctx context.Context, aggregateID string, events []domain.Event) error {
	return s.PersistEvents(ctx, aggregateID, events)
}

// GetEvents returns every retained event of aggregateID.
func (s *Store) GetEvents(ctx context.Context, aggregateID string) ([]domain.AggregateEvent, error) {
	return s.journal.ReplayEvents(ctx, aggregateID, 0)
}

// GetCurrentState returns the cached state of aggregateID, rebuilding it on a miss.
func (s *Store) GetCurrentState(ctx context.Context, aggregateID string) (domain.State, error) {
	s.mu.RLock()
	cached, ok := s.cache[aggregateID]
	gen := s.gens[aggregateID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	state, err := s.Rebuild(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// A write that raced the rebuild makes the result stale; don't cache it.
	if s.gens[aggregateID] == gen {
		s.cache[aggregateID] = state
	}
	s.mu.Unlock()
	return state, nil
}

// Rebuild folds every retained event of aggregateID from Initial, bypassing the cache.
func (s *Store) Rebuild(ctx context.Context, aggregateID string) (domain.State, error) {
	envelopes, err := s.journal.ReplayEvents(ctx, aggregateID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to replay aggregate %s: %w", aggregateID, err)
	}

	state, idx, ok := domain.Fold(domain.InitialState(), domain.Events(envelopes))
	if !ok {
		bad := envelopes[idx]
		s.logger.Error("Event log cannot be folded",
			"aggregate_id", aggregateID,
			"sequence_nr", bad.Sequence,
			"event_type", bad.Event.Type(),
			"phase", state.Phase(),
		)
		return nil, &domain.Error{
			Kind:      domain.KindEvent,
			Op:        "rebuild state",
			SessionID: aggregateID,
			Msg:       fmt.Sprintf("event %s at sequence %d does not apply to %s", bad.Event.Type(), bad.Sequence, state.Phase()),
			Err:       domain.ErrInvalidTransition,
		}
	}
	return state, nil
}

// ListAggregates lists every aggregate with retained events.
func (s *Store) ListAggregates(ctx context.Context) ([]string, error) {
	return s.journal.PersistenceIDs(ctx)
}

// Invalidate drops the cached state of aggregateID.
func (s *Store) Invalidate(aggregateID string) {
	s.mu.Lock()
	delete(s.cache, aggregateID)
	s.gens[aggregateID]++
	s.mu.Unlock()
}

// PersistEvents implements ports.Journal.
func (s *Store) PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	defer s.Invalidate(persistenceID)
	return s.journal.PersistEvents(ctx, persistenceID, events)
}

// ReplayEvents implements ports.Journal.
func (s *Store) ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error) {
	return s.journal.ReplayEvents(ctx, persistenceID, fromSequence)
}

// HighestSequenceNr implements ports.Journal.
func (s *Store) HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error) {
	return s.journal.HighestSequenceNr(ctx, persistenceID)
}

// DeleteEvents implements ports.Journal.
func (s *Store) DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error {
	defer s.Invalidate(persistenceID)
	return s.journal.DeleteEvents(ctx, persistenceID, toSequence)
}

// PersistenceIDs implements ports.Journal.
func (s *Store) PersistenceIDs(ctx context.Context) ([]string, error) {
	return s.journal.PersistenceIDs(ctx)
}

// QueryEvents returns the events of every aggregate matching q, oldest first.
// Journals implementing ports.EventIndex answer from their indexes; other
// journals are scanned aggregate by aggregate.
func (s *Store) QueryEvents(ctx context.Context, q ports.EventQuery) ([]domain.AggregateEvent, error) {
	var (
		candidates []domain.AggregateEvent
		err        error
	)
	index, indexed := s.journal.(ports.EventIndex)
	switch {
	case indexed && q.Type != "":
		candidates, err = index.EventsByType(ctx, q.Type)
	case indexed && (!q.Since.IsZero() || !q.Until.IsZero()):
		from, to := time.Unix(0, 0), time.Unix(0, math.MaxInt64)
		if !q.Since.IsZero() {
			from = q.Since
		}
		if !q.Until.IsZero() {
			to = q.Until
		}
		candidates, err = index.EventsBetween(ctx, from, to)
	default:
		candidates, err = s.scan(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	out := make([]domain.AggregateEvent, 0, len(candidates))
	for _, env := range candidates {
		if q.Matches(env) {
			out = append(out, env)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.AggregateEvent) int {
		return cmp.Or(
			a.Event.Timestamp.Compare(b.Event.Timestamp),
			strings.Compare(a.AggregateID, b.AggregateID),
			cmp.Compare(a.Sequence, b.Sequence),
		)
	})
	s.logger.Debug("Queried events", "type", q.Type, "indexed", indexed, "count", len(out))
	return out, nil
}

func (s *Store) scan(ctx context.Context) ([]domain.AggregateEvent, error) {
	ids, err := s.journal.PersistenceIDs(ctx)
	if err != nil {
		return nil, err
	}
	var all []domain.AggregateEvent
	for _, id := range ids {
		events, err := s.journal.ReplayEvents(ctx, id, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}

// ParseTimeBound parses an RFC 3339 timestamp or a duration counted back from
// now ("90m" is 90 minutes before now). An empty value is the zero time.
func ParseTimeBound(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.ValidationError("invalid time %q: use RFC 3339 or a duration such as 1h", value)
	}
	return t, nil
}
