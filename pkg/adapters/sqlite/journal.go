// Package sqlite implements ports.Journal on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/persistence/codec"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	persistence_id TEXT NOT NULL,
	sequence_nr INTEGER NOT NULL,
	event_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (persistence_id, sequence_nr)
);

CREATE INDEX IF NOT EXISTS idx_journal_type ON journal(event_type);

CREATE TABLE IF NOT EXISTS journal_sequence (
	persistence_id TEXT PRIMARY KEY,
	next_sequence INTEGER NOT NULL
);
`

// Journal implements ports.Journal using SQLite.
type Journal struct {
	db    *sql.DB
	codec codec.Codec
}

type config struct {
	path  string
	db    *sql.DB
	codec codec.Codec
}

// Option configures a Journal.
type Option func(*config)

// WithPath sets the database file. ":memory:" keeps it in memory.
func WithPath(path string) Option {
	return func(c *config) {
		c.path = path
	}
}

// WithDB uses an existing *sql.DB. WithPath is ignored.
func WithDB(db *sql.DB) Option {
	return func(c *config) {
		c.db = db
	}
}

// WithCodec sets the payload codec.
func WithCodec(cd codec.Codec) Option {
	return func(c *config) {
		c.codec = cd
	}
}

// New opens the database and migrates the schema.
func New(opts ...Option) (*Journal, error) {
	cfg := &config{path: ":memory:", codec: codec.JSON()}
	for _, opt := range opts {
		opt(cfg)
	}

	db := cfg.db
	if db == nil {
		if cfg.path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.path), 0o755); err != nil {
				return nil, domain.WrapError(domain.KindFileSystem, "sqlite.open", err)
			}
		}
		var err error
		db, err = sql.Open("sqlite", cfg.path)
		if err != nil {
			return nil, domain.WrapError(domain.KindFileSystem, "sqlite.open", err)
		}
		// One connection serializes writers and keeps ":memory:" alive.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}
	return &Journal{db: db, codec: cfg.codec}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// PersistEvents appends events in one transaction.
func (j *Journal) PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.KindFileSystem, "sqlite.persist", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seq uint64
	err = tx.QueryRowContext(ctx,
		`SELECT next_sequence FROM journal_sequence WHERE persistence_id = ?`, persistenceID,
	).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.KindFileSystem, "sqlite.persist", err)
	}

	for _, ev := range events {
		env := domain.NewAggregateEvent(persistenceID, seq, ev)
		payload, encErr := j.codec.Encode(env)
		if encErr != nil {
			err = domain.WrapError(domain.KindSerialization, "sqlite.persist", encErr)
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO journal (persistence_id, sequence_nr, event_id, event_type, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, persistenceID, seq, ev.ID, string(ev.Type()), payload, ev.Timestamp)
		if err != nil {
			return domain.WrapError(domain.KindFileSystem, "sqlite.persist", err)
		}
		seq++
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journal_sequence (persistence_id, next_sequence)
		VALUES (?, ?)
		ON CONFLICT(persistence_id) DO UPDATE SET next_sequence = excluded.next_sequence
	`, persistenceID, seq)
	if err != nil {
		return domain.WrapError(domain.KindFileSystem, "sqlite.persist", err)
	}
	if err = tx.Commit(); err != nil {
		return domain.WrapError(domain.KindFileSystem, "sqlite.persist", err)
	}
	return nil
}

// ReplayEvents returns the retained events from position fromSequence.
func (j *Journal) ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT payload FROM journal
		WHERE persistence_id = ?
		ORDER BY sequence_nr
		LIMIT -1 OFFSET ?
	`, persistenceID, fromSequence)
	if err != nil {
		return nil, domain.WrapError(domain.KindFileSystem, "sqlite.replay", err)
	}
	defer rows.Close()

	events := []domain.AggregateEvent{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, domain.WrapError(domain.KindFileSystem, "sqlite.replay", err)
		}
		var env domain.AggregateEvent
		if err := j.codec.Decode(payload, &env); err != nil {
			return nil, domain.WrapError(domain.KindSerialization, "sqlite.replay", err)
		}
		events = append(events, env)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.KindFileSystem, "sqlite.replay", err)
	}
	return events, nil
}

// HighestSequenceNr returns the number of retained events.
func (j *Journal) HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error) {
	var n uint64
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal WHERE persistence_id = ?`, persistenceID,
	).Scan(&n)
	if err != nil {
		return 0, domain.WrapError(domain.KindFileSystem, "sqlite.highest", err)
	}
	return n, nil
}

// DeleteEvents drops the first toSequence retained events.
func (j *Journal) DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error {
	if toSequence == 0 {
		return nil
	}
	_, err := j.db.ExecContext(ctx, `
		DELETE FROM journal
		WHERE persistence_id = ? AND sequence_nr IN (
			SELECT sequence_nr FROM journal
			WHERE persistence_id = ?
			ORDER BY sequence_nr
			LIMIT ?
		)
	`, persistenceID, persistenceID, toSequence)
	if err != nil {
		return domain.WrapError(domain.KindFileSystem, "sqlite.delete", err)
	}
	return nil
}

// PersistenceIDs returns ids with retained events.
func (j *Journal) PersistenceIDs(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT DISTINCT persistence_id FROM journal ORDER BY persistence_id`)
	if err != nil {
		return nil, domain.WrapError(domain.KindFileSystem, "sqlite.list", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.WrapError(domain.KindFileSystem, "sqlite.list", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByType reports how many retained events of each type exist.
func (j *Journal) CountByType(ctx context.Context) (map[domain.EventType]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT event_type, COUNT(*) FROM journal GROUP BY event_type`)
	if err != nil {
		return nil, domain.WrapError(domain.KindFileSystem, "sqlite.count", err)
	}
	defer rows.Close()

	counts := make(map[domain.EventType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, domain.WrapError(domain.KindFileSystem, "sqlite.count", err)
		}
		counts[domain.EventType(t)] = n
	}
	return counts, rows.Err()
}
