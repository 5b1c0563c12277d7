package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/wflow/pkg/domain"
)

// Journal implements ports.Journal in memory.
// Safe for concurrent use.
type Journal struct {
	mu   sync.RWMutex
	logs map[string][]domain.AggregateEvent
	next map[string]uint64 // next sequence number per persistence id
}

// NewJournal creates a new in-memory journal.
func NewJournal() *Journal {
	return &Journal{
		logs: make(map[string][]domain.AggregateEvent),
		next: make(map[string]uint64),
	}
}

// PersistEvents appends events in order.
func (j *Journal) PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	seq := j.next[persistenceID]
	for _, ev := range events {
		j.logs[persistenceID] = append(j.logs[persistenceID], domain.NewAggregateEvent(persistenceID, seq, ev))
		seq++
	}
	j.next[persistenceID] = seq
	return nil
}

// ReplayEvents returns a copy of the retained events from position fromSequence.
func (j *Journal) ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	log := j.logs[persistenceID]
	if fromSequence >= uint64(len(log)) {
		return []domain.AggregateEvent{}, nil
	}
	// Copy on read so callers can't mutate the journal through the slice
	return slices.Clone(log[fromSequence:]), nil
}

// HighestSequenceNr returns the number of retained events.
func (j *Journal) HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return uint64(len(j.logs[persistenceID])), nil
}

// DeleteEvents drops the first toSequence retained events.
func (j *Journal) DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	log, ok := j.logs[persistenceID]
	if !ok {
		return nil
	}
	n := min(toSequence, uint64(len(log)))
	if n == uint64(len(log)) {
		delete(j.logs, persistenceID)
		return nil
	}
	j.logs[persistenceID] = slices.Clone(log[n:])
	return nil
}

// PersistenceIDs returns ids with retained events, sorted.
func (j *Journal) PersistenceIDs(ctx context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	ids := make([]string, 0, len(j.logs))
	for id := range j.logs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
