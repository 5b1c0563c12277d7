package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/adapters/memory"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/eventstore"
	"github.com/aretw0/wflow/pkg/ports"
)

func TestStore_EventStoreContract(t *testing.T) {
	ports.RunEventStoreContract(t, eventstore.New(memory.NewJournal()))
}

func TestStore_JournalContract(t *testing.T) {
	ports.RunJournalContract(t, eventstore.New(memory.NewJournal()))
}

// countingJournal counts replays to observe cache hits.
type countingJournal struct {
	ports.Journal
	replays int
}

func (c *countingJournal) ReplayEvents(ctx context.Context, id string, from uint64) ([]domain.AggregateEvent, error) {
	c.replays++
	return c.Journal.ReplayEvents(ctx, id, from)
}

func TestStore_CachesUntilWrite(t *testing.T) {
	ctx := context.Background()
	journal := &countingJournal{Journal: memory.NewJournal()}
	store := eventstore.New(journal)

	require.NoError(t, store.StoreEvents(ctx, "agg", []domain.Event{
		domain.NewEvent(domain.LanguageSetEvent{Language: "en"}),
	}))

	_, err := store.GetCurrentState(ctx, "agg")
	require.NoError(t, err)
	_, err = store.GetCurrentState(ctx, "agg")
	require.NoError(t, err)
	assert.Equal(t, 1, journal.replays, "second read must hit the cache")

	// A write through the shared journal handle invalidates.
	require.NoError(t, store.PersistEvents(ctx, "agg", []domain.Event{
		domain.NewEvent(domain.LanguageSetEvent{Language: "es"}),
	}))
	s, err := store.GetCurrentState(ctx, "agg")
	require.NoError(t, err)
	assert.Equal(t, 2, journal.replays)
	assert.Equal(t, "es", s.(domain.LanguageSet).Language)

	// So does a delete.
	require.NoError(t, store.DeleteEvents(ctx, "agg", 2))
	s, err = store.GetCurrentState(ctx, "agg")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseInitial, s.Phase())
}

func TestStore_QueryEventsScansJournal(t *testing.T) {
	ctx := context.Background()
	store := eventstore.New(memory.NewJournal())

	before := time.Now().Add(-time.Minute)
	require.NoError(t, store.StoreEvents(ctx, "a", []domain.Event{
		domain.NewEvent(domain.LanguageSetEvent{Language: "en"}),
		domain.NewEvent(domain.StorageBackendSetEvent{Backend: domain.BackendFile}),
	}))
	require.NoError(t, store.StoreEvents(ctx, "b", []domain.Event{
		domain.NewEvent(domain.LanguageSetEvent{Language: "es"}),
	}))

	all, err := store.QueryEvents(ctx, ports.EventQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Event.Timestamp.Before(all[i-1].Event.Timestamp), "oldest first")
	}

	langs, err := store.QueryEvents(ctx, ports.EventQuery{Type: domain.EventLanguageSet})
	require.NoError(t, err)
	assert.Len(t, langs, 2)

	recent, err := store.QueryEvents(ctx, ports.EventQuery{Since: before})
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	old, err := store.QueryEvents(ctx, ports.EventQuery{Until: before})
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestParseTimeBound(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	zero, err := eventstore.ParseTimeBound("", now)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	ago, err := eventstore.ParseTimeBound("90m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-90*time.Minute), ago)

	abs, err := eventstore.ParseTimeBound("2026-02-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), abs)

	_, err = eventstore.ParseTimeBound("last week", now)
	assert.True(t, domain.IsValidation(err))
}
