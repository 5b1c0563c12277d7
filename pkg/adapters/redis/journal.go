// Package redis implements ports.Journal on Redis.
//
// Each persistence id owns a list of encoded envelopes ("{prefix}journal:{id}")
// and a sequence counter ("{prefix}seq:{id}"). A sorted set ("{prefix}journals")
// indexes live ids by last write time so listing never needs SCAN.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/persistence/codec"
	"github.com/aretw0/wflow/pkg/ports"
	"github.com/aretw0/wflow/pkg/session"
)

// DefaultPrefix namespaces every key written by the journal.
const DefaultPrefix = "wflow:"

// Journal implements ports.Journal using Redis.
type Journal struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	codec  codec.Codec
	locker ports.DistributedLocker
	locks  *session.Locks
	logger *slog.Logger

	sharedLocker bool
}

// Option configures the Journal.
type Option func(*Journal)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(j *Journal) {
		j.prefix = prefix
	}
}

// WithTTL expires idle journals. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(j *Journal) {
		j.ttl = ttl
	}
}

// WithCodec sets the record codec.
func WithCodec(c codec.Codec) Option {
	return func(j *Journal) {
		j.codec = c
	}
}

// WithLocker serializes writers across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(j *Journal) {
		j.locker = locker
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// New connects with opts and returns a Journal that owns the client. Unless
// WithLocker is given, writers are serialized across processes with a Locker
// on the same client.
func New(ctx context.Context, opts *backend.Options, journalOpts ...Option) (*Journal, error) {
	client := backend.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.WrapError(domain.KindNetwork, "redis.connect", err)
	}
	journalOpts = append([]Option{func(j *Journal) { j.sharedLocker = true }}, journalOpts...)
	return NewFromClient(client, journalOpts...), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Journal {
	j := &Journal{
		client: client,
		prefix: DefaultPrefix,
		codec:  codec.JSON(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.locker == nil && j.sharedLocker {
		j.locker = NewLocker(client, j.prefix)
	}
	j.logger = j.logger.With("component", "redis-journal")
	lockOpts := []session.Option{session.WithLogger(j.logger)}
	if j.locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(j.locker))
	}
	j.locks = session.NewLocks(lockOpts...)
	return j
}

func (j *Journal) listKey(id string) string { return j.prefix + "journal:" + id }
func (j *Journal) seqKey(id string) string  { return j.prefix + "seq:" + id }
func (j *Journal) indexKey() string         { return j.prefix + "journals" }

// PersistEvents appends events, reserving their sequence numbers with INCRBY.
func (j *Journal) PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return j.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		last, err := j.client.IncrBy(ctx, j.seqKey(persistenceID), int64(len(events))).Result()
		if err != nil {
			return domain.WrapError(domain.KindNetwork, "redis.persist", err)
		}
		seq := uint64(last) - uint64(len(events))

		values := make([]any, 0, len(events))
		for _, ev := range events {
			data, err := j.codec.Encode(domain.NewAggregateEvent(persistenceID, seq, ev))
			if err != nil {
				return domain.WrapError(domain.KindSerialization, "redis.persist", err)
			}
			values = append(values, data)
			seq++
		}

		_, err = j.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.RPush(ctx, j.listKey(persistenceID), values...)
			pipe.ZAdd(ctx, j.indexKey(), backend.Z{
				Score:  float64(time.Now().Unix()),
				Member: persistenceID,
			})
			if j.ttl > 0 {
				pipe.Expire(ctx, j.listKey(persistenceID), j.ttl)
				pipe.Expire(ctx, j.seqKey(persistenceID), j.ttl)
			}
			return nil
		})
		if err != nil {
			return domain.WrapError(domain.KindNetwork, "redis.persist", err)
		}
		j.logger.Debug("Persisted events", "persistence_id", persistenceID, "count", len(events))
		return nil
	})
}

// ReplayEvents returns the retained events from position fromSequence.
func (j *Journal) ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error) {
	raw, err := j.client.LRange(ctx, j.listKey(persistenceID), int64(fromSequence), -1).Result()
	if err != nil {
		return nil, domain.WrapError(domain.KindNetwork, "redis.replay", err)
	}
	events := make([]domain.AggregateEvent, 0, len(raw))
	for _, item := range raw {
		var env domain.AggregateEvent
		if err := j.codec.Decode([]byte(item), &env); err != nil {
			return nil, domain.WrapError(domain.KindSerialization, "redis.replay", err)
		}
		events = append(events, env)
	}
	return events, nil
}

// HighestSequenceNr returns the number of retained events.
func (j *Journal) HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error) {
	n, err := j.client.LLen(ctx, j.listKey(persistenceID)).Result()
	if err != nil {
		return 0, domain.WrapError(domain.KindNetwork, "redis.highest", err)
	}
	return uint64(n), nil
}

// DeleteEvents drops the first toSequence retained events.
// An emptied journal leaves the index; its sequence counter stays.
func (j *Journal) DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error {
	if toSequence == 0 {
		return nil
	}
	return j.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		key := j.listKey(persistenceID)
		if err := j.client.LTrim(ctx, key, int64(toSequence), -1).Err(); err != nil {
			return domain.WrapError(domain.KindNetwork, "redis.delete", err)
		}
		n, err := j.client.LLen(ctx, key).Result()
		if err != nil {
			return domain.WrapError(domain.KindNetwork, "redis.delete", err)
		}
		if n == 0 {
			if err := j.client.ZRem(ctx, j.indexKey(), persistenceID).Err(); err != nil {
				return domain.WrapError(domain.KindNetwork, "redis.delete", err)
			}
		}
		return nil
	})
}

// PersistenceIDs lists live journals, pruning index entries older than the TTL.
func (j *Journal) PersistenceIDs(ctx context.Context) ([]string, error) {
	if j.ttl > 0 {
		cutoff := time.Now().Add(-j.ttl).Unix()
		if err := j.client.ZRemRangeByScore(ctx, j.indexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10)).Err(); err != nil {
			return nil, domain.WrapError(domain.KindNetwork, "redis.list", err)
		}
	}
	ids, err := j.client.ZRange(ctx, j.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, domain.WrapError(domain.KindNetwork, "redis.list", err)
	}
	return ids, nil
}

// Close closes the client.
func (j *Journal) Close() error {
	if err := j.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
