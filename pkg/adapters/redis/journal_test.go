package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/adapters/redis"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisJournal_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunJournalContract(t, redis.NewFromClient(client))
}

func TestRedisJournal_ContractWithLocker(t *testing.T) {
	_, client := newClient(t)
	journal := redis.NewFromClient(client, redis.WithLocker(redis.NewLocker(client, redis.DefaultPrefix)))
	ports.RunJournalContract(t, journal)
}

func TestNew_OwnsClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	journal, err := redis.New(context.Background(), &backend.Options{Addr: mr.Addr()}, redis.WithPrefix("owned:"))
	require.NoError(t, err)
	ports.RunJournalContract(t, journal)
	require.NoError(t, journal.Close())
}

func TestNew_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = redis.New(context.Background(), &backend.Options{Addr: addr, MaxRetries: -1})
	require.Error(t, err)
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
}

func TestRedisJournal_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	journal := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	sessionID := "session-ttl"

	// 1. Persist
	err := journal.PersistEvents(ctx, sessionID, []domain.Event{
		domain.NewEvent(domain.LanguageSetEvent{Language: "en"}),
	})
	require.NoError(t, err)

	// 2. Listed immediately
	ids, err := journal.PersistenceIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, sessionID)

	// 3. Fast forward key expiration
	mr.FastForward(2 * time.Second)

	events, err := journal.ReplayEvents(ctx, sessionID, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	// 4. The index is pruned lazily against wall-clock time.
	time.Sleep(2100 * time.Millisecond)

	ids, err = journal.PersistenceIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, sessionID)
}

func TestLocker_Exclusive(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "k", time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))

	unlock, err = locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.NoError(t, unlock(ctx))
}
