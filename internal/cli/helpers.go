package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/domain"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger. Debug mode logs everything;
// otherwise only warnings and errors reach stderr unless level is stricter.
func createLogger(w io.Writer, debug bool, level string) *slog.Logger {
	if debug {
		return logging.NewWithWriter(w, slog.LevelDebug)
	}
	lvl := logging.ParseLevel(level)
	if lvl < slog.LevelWarn {
		lvl = slog.LevelWarn
	}
	return logging.NewWithWriter(w, lvl)
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}

// ParsePresets reads key=value pairs given on the command line.
func ParsePresets(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, domain.ValidationError("argument %q must be key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

func handleExecutionError(err error) error {
	if err == nil {
		return nil
	}
	if isInterrupted(err) {
		return nil // Exit 0 for interruptions
	}
	return err
}

func logCompletion(sessionID string, err error, quiet bool, sig os.Signal) {
	if quiet || err == nil || !isInterrupted(err) {
		return
	}
	switch sig {
	case os.Interrupt:
		fmt.Printf("> [CTRL+C]\n")
		printSystemMessage("Interrupted session '%s'.", sessionID)
	case nil:
		fmt.Printf("\n")
		printSystemMessage("Interrupted session '%s'.", sessionID)
	default:
		fmt.Printf("\n")
		printSystemMessage("Terminated session '%s'.", sessionID)
	}
}
