package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/adapters/memory"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/ports"
)

func TestMemoryJournal_Contract(t *testing.T) {
	ports.RunJournalContract(t, memory.NewJournal())
}

func TestMemoryJournal_ReplayReturnsCopy(t *testing.T) {
	ctx := context.Background()
	j := memory.NewJournal()
	require.NoError(t, j.PersistEvents(ctx, "s1", []domain.Event{
		domain.NewEvent(domain.LanguageSetEvent{Language: "en"}),
	}))

	got, err := j.ReplayEvents(ctx, "s1", 0)
	require.NoError(t, err)
	got[0].AggregateID = "tampered"

	again, err := j.ReplayEvents(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, "s1", again[0].AggregateID)
}
