package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/persistence/codec"
	"github.com/aretw0/wflow/pkg/session"
)

const (
	journalPrefix    = "journal:"
	journalSeqPrefix = "journal-seq:"
)

// Journal implements ports.Journal with one serialized list per persistence id.
type Journal struct {
	db     *badger.DB
	codec  codec.Codec
	locks  *session.Locks
	logger *slog.Logger
}

// Option configures the badger journals.
type Option func(*options)

type options struct {
	codec  codec.Codec
	logger *slog.Logger
}

// WithCodec sets the record codec (e.g. with encryption middleware).
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{codec: codec.JSON(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewJournal creates a list-layout journal over db. The caller owns db.
func NewJournal(db *badger.DB, opts ...Option) *Journal {
	o := buildOptions(opts)
	return &Journal{
		db:     db,
		codec:  o.codec,
		locks:  session.NewLocks(),
		logger: o.logger.With("component", "badger-journal"),
	}
}

func journalKey(persistenceID string) []byte {
	return []byte(journalPrefix + persistenceID)
}

// nextSequence reads the counter of persistenceID. Lists written before the
// counter existed continue from their last envelope.
func (j *Journal) nextSequence(txn *badger.Txn, persistenceID string, log []domain.AggregateEvent) (uint64, error) {
	item, err := txn.Get([]byte(journalSeqPrefix + persistenceID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		if n := len(log); n > 0 {
			return log[n-1].Sequence + 1, nil
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence counter for %s", persistenceID)
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func (j *Journal) read(txn *badger.Txn, persistenceID string) ([]domain.AggregateEvent, error) {
	item, err := txn.Get(journalKey(persistenceID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var log []domain.AggregateEvent
	err = item.Value(func(val []byte) error {
		return j.codec.Decode(val, &log)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode journal %s: %w", persistenceID, err)
	}
	return log, nil
}

func (j *Journal) write(txn *badger.Txn, persistenceID string, log []domain.AggregateEvent) error {
	if len(log) == 0 {
		return txn.Delete(journalKey(persistenceID))
	}
	data, err := j.codec.Encode(log)
	if err != nil {
		return fmt.Errorf("failed to encode journal %s: %w", persistenceID, err)
	}
	return txn.Set(journalKey(persistenceID), data)
}

// PersistEvents appends events to the stored list.
func (j *Journal) PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return j.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		err := j.db.Update(func(txn *badger.Txn) error {
			log, err := j.read(txn, persistenceID)
			if err != nil {
				return err
			}
			seq, err := j.nextSequence(txn, persistenceID, log)
			if err != nil {
				return err
			}
			for _, ev := range events {
				log = append(log, domain.NewAggregateEvent(persistenceID, seq, ev))
				seq++
			}
			if err := j.write(txn, persistenceID, log); err != nil {
				return err
			}
			counter := make([]byte, 8)
			binary.BigEndian.PutUint64(counter, seq)
			return txn.Set([]byte(journalSeqPrefix+persistenceID), counter)
		})
		if err != nil {
			return fmt.Errorf("failed to persist events for %s: %w", persistenceID, err)
		}
		j.logger.Debug("Persisted events", "persistence_id", persistenceID, "count", len(events))
		return nil
	})
}

// ReplayEvents returns the retained events from position fromSequence.
func (j *Journal) ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error) {
	var log []domain.AggregateEvent
	err := j.db.View(func(txn *badger.Txn) error {
		var err error
		log, err = j.read(txn, persistenceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if fromSequence >= uint64(len(log)) {
		return []domain.AggregateEvent{}, nil
	}
	return log[fromSequence:], nil
}

// HighestSequenceNr returns the number of retained events.
func (j *Journal) HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error) {
	log, err := j.ReplayEvents(ctx, persistenceID, 0)
	if err != nil {
		return 0, err
	}
	return uint64(len(log)), nil
}

// DeleteEvents drops the first toSequence retained events. An emptied log removes
// its list key; the sequence counter stays.
func (j *Journal) DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error {
	return j.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		return j.db.Update(func(txn *badger.Txn) error {
			log, err := j.read(txn, persistenceID)
			if err != nil || log == nil {
				return err
			}
			n := min(toSequence, uint64(len(log)))
			return j.write(txn, persistenceID, log[n:])
		})
	})
}

// PersistenceIDs scans the journal key space.
func (j *Journal) PersistenceIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(journalPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), journalPrefix))
		}
		return nil
	})
	return ids, err
}
