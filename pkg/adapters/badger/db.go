// Package badger implements journals on the embedded Badger key-value store.
//
// Two layouts are provided over the same *badger.DB handle:
//
//   - Journal keeps a session's whole log as one serialized list under
//     "journal:{persistence_id}". Appends rewrite the list; replay is a single read.
//   - EventLog stores one key per event ("event:{id}:{seq}") with a monotonic
//     counter ("seq:{id}") and secondary indexes by time and by event type.
package badger

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"

	"github.com/aretw0/wflow/internal/logging"
)

// Open opens (or creates) a Badger database at path.
// An empty path opens an in-memory database.
func Open(path string, logger *slog.Logger) (*badger.DB, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return db, nil
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
