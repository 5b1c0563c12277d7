package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/domain"
)

func contractEvents(names ...string) []domain.Event {
	out := make([]domain.Event, len(names))
	for i, n := range names {
		out[i] = domain.NewEvent(domain.WorkflowDiscoveredEvent{
			Workflow: domain.Workflow{Name: n, Command: "echo " + n},
			FilePath: n + ".yaml",
		})
	}
	return out
}

func workflowNames(envelopes []domain.AggregateEvent) []string {
	names := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		if d, ok := env.Event.Data.(domain.WorkflowDiscoveredEvent); ok {
			names = append(names, d.Workflow.Name)
		}
	}
	return names
}

// RunJournalContract runs a suite of tests to verify that a Journal implementation
// adheres to the defined interface contract.
func RunJournalContract(t *testing.T, journal Journal) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Persist and Replay", func(t *testing.T) {
		id := prefix + "-replay"
		require.NoError(t, journal.PersistEvents(ctx, id, contractEvents("a", "b")))
		require.NoError(t, journal.PersistEvents(ctx, id, contractEvents("c")))

		got, err := journal.ReplayEvents(ctx, id, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, workflowNames(got))
		for i, env := range got {
			assert.Equal(t, id, env.AggregateID)
			assert.NotEmpty(t, env.Event.ID)
			if i > 0 {
				assert.Greater(t, env.Sequence, got[i-1].Sequence, "sequence numbers must grow")
			}
		}

		fromOne, err := journal.ReplayEvents(ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, workflowNames(fromOne))

		beyond, err := journal.ReplayEvents(ctx, id, 10)
		require.NoError(t, err)
		assert.Empty(t, beyond)

		highest, err := journal.HighestSequenceNr(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), highest)
	})

	t.Run("Payload Survives Storage", func(t *testing.T) {
		id := prefix + "-payload"
		ev := domain.NewEvent(domain.WorkflowArgumentsResolvedEvent{Arguments: map[string]string{"x": "1"}})
		require.NoError(t, journal.PersistEvents(ctx, id, []domain.Event{ev}))

		got, err := journal.ReplayEvents(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ev.ID, got[0].Event.ID)
		assert.Equal(t, domain.EventWorkflowArgumentsResolved, got[0].Event.Type())
		payload, ok := got[0].Event.Data.(domain.WorkflowArgumentsResolvedEvent)
		require.True(t, ok)
		assert.Equal(t, "1", payload.Arguments["x"])
	})

	t.Run("Unknown Persistence ID", func(t *testing.T) {
		id := prefix + "-missing"
		got, err := journal.ReplayEvents(ctx, id, 0)
		require.NoError(t, err)
		assert.Empty(t, got)

		highest, err := journal.HighestSequenceNr(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, highest)
	})

	t.Run("Empty Persist Is No-Op", func(t *testing.T) {
		id := prefix + "-empty"
		require.NoError(t, journal.PersistEvents(ctx, id, nil))

		ids, err := journal.PersistenceIDs(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, id)
	})

	t.Run("Delete Prefix", func(t *testing.T) {
		id := prefix + "-delete"
		require.NoError(t, journal.PersistEvents(ctx, id, contractEvents("a", "b", "c", "d")))

		require.NoError(t, journal.DeleteEvents(ctx, id, 2))
		got, err := journal.ReplayEvents(ctx, id, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d"}, workflowNames(got))

		// Appends after a delete keep growing sequence numbers.
		require.NoError(t, journal.PersistEvents(ctx, id, contractEvents("e")))
		got, err = journal.ReplayEvents(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Greater(t, got[2].Sequence, got[1].Sequence)

		lastSeq := got[2].Sequence

		// Deleting beyond the end clears the log.
		require.NoError(t, journal.DeleteEvents(ctx, id, 100))
		highest, err := journal.HighestSequenceNr(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, highest)

		// A cleared log still never reuses sequence numbers.
		require.NoError(t, journal.PersistEvents(ctx, id, contractEvents("f")))
		got, err = journal.ReplayEvents(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []string{"f"}, workflowNames(got))
		assert.Greater(t, got[0].Sequence, lastSeq)
	})

	t.Run("PersistenceIDs", func(t *testing.T) {
		id1 := prefix + "-list-1"
		id2 := prefix + "-list-2"
		require.NoError(t, journal.PersistEvents(ctx, id1, contractEvents("a")))
		require.NoError(t, journal.PersistEvents(ctx, id2, contractEvents("b")))

		ids, err := journal.PersistenceIDs(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Concurrent Sessions", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("%s-concurrent-%d", prefix, i)
				for j := 0; j < 5; j++ {
					assert.NoError(t, journal.PersistEvents(ctx, id, contractEvents(fmt.Sprintf("w%d", j))))
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < 4; i++ {
			id := fmt.Sprintf("%s-concurrent-%d", prefix, i)
			highest, err := journal.HighestSequenceNr(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, uint64(5), highest)
		}
	})
}

// RunEventStoreContract verifies an EventStore implementation.
func RunEventStoreContract(t *testing.T, store EventStore) {
	ctx := context.Background()
	prefix := "es-contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Unknown Aggregate Is Initial", func(t *testing.T) {
		s, err := store.GetCurrentState(ctx, prefix+"-fresh")
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseInitial, s.Phase())
	})

	t.Run("State Follows Stored Events", func(t *testing.T) {
		id := prefix + "-state"
		require.NoError(t, store.StoreEvents(ctx, id, contractEvents("a", "b")))

		s, err := store.GetCurrentState(ctx, id)
		require.NoError(t, err)
		discovered, ok := s.(domain.WorkflowsDiscovered)
		require.True(t, ok)
		assert.Len(t, discovered.Workflows, 2)

		// A later append must not be hidden by the cache.
		require.NoError(t, store.StoreEvents(ctx, id, contractEvents("c")))
		s, err = store.GetCurrentState(ctx, id)
		require.NoError(t, err)
		assert.Len(t, s.(domain.WorkflowsDiscovered).Workflows, 3)

		events, err := store.GetEvents(ctx, id)
		require.NoError(t, err)
		assert.Len(t, events, 3)

		ids, err := store.ListAggregates(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id)
	})

	t.Run("Corrupt Log Is A Hard Error", func(t *testing.T) {
		id := prefix + "-corrupt"
		require.NoError(t, store.StoreEvents(ctx, id, []domain.Event{
			domain.NewEvent(domain.WorkflowStartedEvent{ExecutionID: "x"}),
		}))

		_, err := store.GetCurrentState(ctx, id)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, domain.KindEvent, domain.KindOf(err))
	})
}
