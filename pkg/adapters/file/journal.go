// Package file implements ports.Journal on the local filesystem.
// Each persistence id is one document rewritten atomically on every change.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/persistence/codec"
	"github.com/aretw0/wflow/pkg/session"
)

const ext = ".json"

// document is the on-disk form of one journal.
type document struct {
	NextSequence uint64                  `json:"next_sequence"`
	Events       []domain.AggregateEvent `json:"events"`
}

// Journal implements ports.Journal using one file per persistence id.
type Journal struct {
	BasePath string

	codec codec.Codec
	locks *session.Locks
}

// Option configures the Journal.
type Option func(*Journal)

// WithCodec sets the document codec.
func WithCodec(c codec.Codec) Option {
	return func(j *Journal) {
		j.codec = c
	}
}

// New creates a Journal rooted at basePath.
// If basePath is empty, it defaults to ".wflow/journal".
func New(basePath string, opts ...Option) *Journal {
	if basePath == "" {
		basePath = filepath.Join(".wflow", "journal")
	}
	j := &Journal{
		BasePath: basePath,
		codec:    codec.JSON(),
		locks:    session.NewLocks(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Journal) path(persistenceID string) (string, error) {
	if persistenceID == "" {
		return "", domain.ValidationError("persistence id cannot be empty")
	}
	if strings.ContainsAny(persistenceID, `/\`) || persistenceID == "." || persistenceID == ".." {
		return "", domain.ValidationError("invalid persistence id %q", persistenceID)
	}
	return filepath.Join(j.BasePath, persistenceID+ext), nil
}

func (j *Journal) load(persistenceID string) (document, error) {
	var doc document
	path, err := j.path(persistenceID)
	if err != nil {
		return doc, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, domain.WrapError(domain.KindFileSystem, "file.read", err)
	}
	if err := j.codec.Decode(data, &doc); err != nil {
		return doc, domain.WrapError(domain.KindSerialization, "file.read", err)
	}
	return doc, nil
}

// save writes doc atomically: temp file in the same directory, fsync, rename.
func (j *Journal) save(persistenceID string, doc document) error {
	path, err := j.path(persistenceID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(j.BasePath, 0o755); err != nil {
		return domain.WrapError(domain.KindFileSystem, "file.write", fmt.Errorf("failed to ensure journal directory: %w", err))
	}

	data, err := j.codec.Encode(doc)
	if err != nil {
		return domain.WrapError(domain.KindSerialization, "file.write", err)
	}

	tmpFile, err := os.CreateTemp(j.BasePath, "tmp-"+persistenceID+"-*")
	if err != nil {
		return domain.WrapError(domain.KindFileSystem, "file.write", fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return domain.WrapError(domain.KindFileSystem, "file.write", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return domain.WrapError(domain.KindFileSystem, "file.write", fmt.Errorf("failed to fsync temp file: %w", err))
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return domain.WrapError(domain.KindFileSystem, "file.write", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return domain.WrapError(domain.KindFileSystem, "file.write", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return domain.WrapError(domain.KindFileSystem, "file.write", fmt.Errorf("failed to rename temp file: %w", err))
	}
	return nil
}

// PersistEvents appends events to the persistence id's document.
func (j *Journal) PersistEvents(ctx context.Context, persistenceID string, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return j.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		doc, err := j.load(persistenceID)
		if err != nil {
			return err
		}
		for _, ev := range events {
			doc.Events = append(doc.Events, domain.NewAggregateEvent(persistenceID, doc.NextSequence, ev))
			doc.NextSequence++
		}
		return j.save(persistenceID, doc)
	})
}

// ReplayEvents returns the retained events from position fromSequence.
func (j *Journal) ReplayEvents(ctx context.Context, persistenceID string, fromSequence uint64) ([]domain.AggregateEvent, error) {
	doc, err := j.load(persistenceID)
	if err != nil {
		return nil, err
	}
	if fromSequence >= uint64(len(doc.Events)) {
		return []domain.AggregateEvent{}, nil
	}
	return doc.Events[fromSequence:], nil
}

// HighestSequenceNr returns the number of retained events.
func (j *Journal) HighestSequenceNr(ctx context.Context, persistenceID string) (uint64, error) {
	doc, err := j.load(persistenceID)
	if err != nil {
		return 0, err
	}
	return uint64(len(doc.Events)), nil
}

// DeleteEvents drops the first toSequence retained events.
// The document survives an empty log so sequence numbers keep growing.
func (j *Journal) DeleteEvents(ctx context.Context, persistenceID string, toSequence uint64) error {
	if toSequence == 0 {
		return nil
	}
	return j.locks.WithLock(ctx, persistenceID, func(ctx context.Context) error {
		doc, err := j.load(persistenceID)
		if err != nil || len(doc.Events) == 0 {
			return err
		}
		n := min(toSequence, uint64(len(doc.Events)))
		doc.Events = doc.Events[n:]
		return j.save(persistenceID, doc)
	})
}

// PersistenceIDs returns ids whose documents still hold events.
func (j *Journal) PersistenceIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(j.BasePath)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindFileSystem, "file.list", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		n, err := j.HighestSequenceNr(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
