package cli

import (
	"context"
	"os"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/internal/config"
)

// Options are the global flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
	Quiet      bool
}

// LoadSettings reads the configuration file named by opts (the default
// location when empty).
func LoadSettings(opts Options) (*config.FileSettings, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return config.NewFileSettings(path, cfg), nil
}

// Open loads the configuration and starts a system.
func Open(ctx context.Context, opts Options, extra ...wflow.Option) (*wflow.System, error) {
	settings, err := LoadSettings(opts)
	if err != nil {
		return nil, err
	}
	logger := createLogger(os.Stderr, opts.Debug, settings.Config().LogLevel)
	sysOpts := append([]wflow.Option{wflow.WithLogger(logger)}, extra...)
	return wflow.Start(ctx, settings, sysOpts...)
}

// closeSystem shuts sys down within the configured shutdown timeout.
func closeSystem(sys *wflow.System) error {
	ctx, cancel := context.WithTimeout(context.Background(), sys.Config().ShutdownTimeout)
	defer cancel()
	return sys.Close(ctx)
}

// WithSystem starts a system, runs fn and shuts the system down.
func WithSystem(opts Options, fn func(ctx context.Context, sys *wflow.System) error, extra ...wflow.Option) (err error) {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	sys, err := Open(sigCtx, opts, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSystem(sys); err == nil {
			err = cerr
		}
	}()
	return handleExecutionError(fn(sigCtx, sys))
}
