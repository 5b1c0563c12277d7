package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/persistence/codec"
	"github.com/aretw0/wflow/pkg/session"
)

const (
	eventPrefix = "event:"
	seqPrefix   = "seq:"
	timePrefix  = "time:"
	typePrefix  = "type:"
)

// EventLog implements ports.Journal with one key per event.
type EventLog struct {
	db     *badger.DB
	codec  codec.Codec
	locks  *session.Locks
	logger *slog.Logger
}

// NewEventLog creates a per-event journal over db. The caller owns db.
func NewEventLog(db *badger.DB, opts ...Option) *EventLog {
	o := buildOptions(opts)
	return &EventLog{
		db:     db,
		codec:  o.codec,
		locks:  session.NewLocks(),
		logger: o.logger.With("component", "event-store"),
	}
}

func eventKeyPrefix(aggregateID string) []byte {
	return []byte(eventPrefix + aggregateID + ":")
}

func eventKey(aggregateID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", eventPrefix, aggregateID, seq))
}

func timeKey(ts time.Time, aggregateID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s:%020d", timePrefix, ts.UnixNano(), aggregateID, seq))
}

func typeKey(t domain.EventType, aggregateID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%020d", typePrefix, t, aggregateID, seq))
}

func validateAggregateID(aggregateID string) error {
	if aggregateID == "" || strings.Contains(aggregateID, ":") {
		return domain.ValidationError("invalid aggregate id %q", aggregateID)
	}
	return nil
}

func (l *EventLog) nextSequence(txn *badger.Txn, aggregateID string) (uint64, error) {
	item, err := txn.Get([]byte(seqPrefix + aggregateID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence counter for %s", aggregateID)
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func (l *EventLog) decode(item *badger.Item) (domain.AggregateEvent, error) {
	var env domain.AggregateEvent
	err := item.Value(func(val []byte) error {
		return l.codec.Decode(val, &env)
	})
	if err != nil {
		return env, fmt.Errorf("failed to decode event %s: %w", item.Key(), err)
	}
	return env, nil
}

// PersistEvents stores each event under its own key and updates the indexes.
func (l *EventLog) PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := validateAggregateID(persistenceID); err != nil {
		return err
	}

	return l.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		err := l.db.Update(func(txn *badger.Txn) error {
			seq, err := l.nextSequence(txn, persistenceID)
			if err != nil {
				return err
			}
			for _, ev := range events {
				env := domain.NewAggregateEvent(persistenceID, seq, ev)
				data, err := l.codec.Encode(env)
				if err != nil {
					return fmt.Errorf("failed to encode event: %w", err)
				}
				key := eventKey(persistenceID, seq)
				if err := txn.SetEntry(badger.NewEntry(key, data)); err != nil {
					return err
				}
				if err := txn.Set(timeKey(ev.Timestamp, persistenceID, seq), key); err != nil {
					return err
				}
				if err := txn.Set(typeKey(ev.Type(), persistenceID, seq), key); err != nil {
					return err
				}
				seq++
			}
			counter := make([]byte, 8)
			binary.BigEndian.PutUint64(counter, seq)
			return txn.Set([]byte(seqPrefix+persistenceID), counter)
		})
		if err != nil {
			return fmt.Errorf("failed to persist events for %s: %w", persistenceID, err)
		}
		l.logger.Debug("stored event", "aggregate_id", persistenceID, "count", len(events))
		return nil
	})
}

// ReplayEvents returns the retained events from position fromSequence.
func (l *EventLog) ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error) {
	events := []domain.AggregateEvent{}
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := eventKeyPrefix(persistenceID)
		var pos uint64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if pos < fromSequence {
				pos++
				continue
			}
			env, err := l.decode(it.Item())
			if err != nil {
				return err
			}
			events = append(events, env)
			pos++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Debug("retrieved events", "aggregate_id", persistenceID, "count", len(events))
	return events, nil
}

func (l *EventLog) countKeys(txn *badger.Txn, prefix []byte) uint64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var n uint64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

// HighestSequenceNr returns the number of retained events.
func (l *EventLog) HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error) {
	var n uint64
	err := l.db.View(func(txn *badger.Txn) error {
		n = l.countKeys(txn, eventKeyPrefix(persistenceID))
		return nil
	})
	return n, err
}

// DeleteEvents drops the first toSequence retained events together with their index entries.
// The sequence counter is kept so numbers are never reused.
func (l *EventLog) DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error {
	if toSequence == 0 {
		return nil
	}
	return l.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		return l.db.Update(func(txn *badger.Txn) error {
			var doomed []domain.AggregateEvent
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			prefix := eventKeyPrefix(persistenceID)
			for it.Seek(prefix); it.ValidForPrefix(prefix) && uint64(len(doomed)) < toSequence; it.Next() {
				env, err := l.decode(it.Item())
				if err != nil {
					it.Close()
					return err
				}
				doomed = append(doomed, env)
			}
			it.Close()

			for _, env := range doomed {
				keys := [][]byte{
					eventKey(persistenceID, env.Sequence),
					timeKey(env.Event.Timestamp, persistenceID, env.Sequence),
					typeKey(env.Event.Type(), persistenceID, env.Sequence),
				}
				for _, k := range keys {
					if err := txn.Delete(k); err != nil {
						return err
					}
				}
			}
			return nil
		})
	})
}

// PersistenceIDs returns every aggregate that still has events.
func (l *EventLog) PersistenceIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventPrefix)
		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), eventPrefix)
			idx := strings.LastIndex(rest, ":")
			if idx < 0 {
				continue
			}
			if id := rest[:idx]; id != last {
				ids = append(ids, id)
				last = id
			}
		}
		return nil
	})
	return ids, err
}

// EventsByType returns all events of type t across aggregates.
func (l *EventLog) EventsByType(ctx context.Context, t domain.EventType) ([]domain.AggregateEvent, error) {
	prefix := []byte(typePrefix + string(t) + ":")
	return l.scanIndex(prefix, prefix, nil)
}

// EventsBetween returns events whose timestamp falls in [from, to).
func (l *EventLog) EventsBetween(ctx context.Context, from, to time.Time) ([]domain.AggregateEvent, error) {
	start := []byte(fmt.Sprintf("%s%020d", timePrefix, from.UnixNano()))
	end := []byte(fmt.Sprintf("%s%020d", timePrefix, to.UnixNano()))
	return l.scanIndex([]byte(timePrefix), start, end)
}

// scanIndex follows index entries under prefix, from start up to end (exclusive), to their events.
func (l *EventLog) scanIndex(prefix, start, end []byte) ([]domain.AggregateEvent, error) {
	events := []domain.AggregateEvent{}
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if end != nil && bytes.Compare(it.Item().Key(), end) >= 0 {
				break
			}
			target, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(target)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			env, err := l.decode(item)
			if err != nil {
				return err
			}
			events = append(events, env)
		}
		return nil
	})
	return events, err
}
