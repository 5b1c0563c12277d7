package wflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/wflow/internal/config"
	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/internal/presentation/tui"
	"github.com/aretw0/wflow/pkg/actor"
	"github.com/aretw0/wflow/pkg/adapters/badger"
	"github.com/aretw0/wflow/pkg/adapters/file"
	adminhttp "github.com/aretw0/wflow/pkg/adapters/http"
	"github.com/aretw0/wflow/pkg/adapters/memory"
	"github.com/aretw0/wflow/pkg/adapters/process"
	"github.com/aretw0/wflow/pkg/adapters/redis"
	"github.com/aretw0/wflow/pkg/adapters/sqlite"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
	"github.com/aretw0/wflow/pkg/eventstore"
	"github.com/aretw0/wflow/pkg/observability"
	"github.com/aretw0/wflow/pkg/persistence/codec"
	"github.com/aretw0/wflow/pkg/ports"
)

// System is a running command core: storage, the event store and the
// supervision tree, wired from a configuration.
type System struct {
	Settings    ports.Settings
	Store       *eventstore.Store
	Guardian    *actor.Guardian
	Registry    *prometheus.Registry
	Broadcaster *observability.Broadcaster

	cfg     config.Config
	logger  *slog.Logger
	closers []func() error
}

// Option overrides a collaborator of the System.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	journal        ports.Journal
	prompter       ports.Prompter
	renderer       ports.Renderer
	clipboard      ports.Clipboard
	git            ports.GitClient
	shell          ports.ShellRunner
}

// WithLogger sets the logger of every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracerProvider sets the provider of the per-command spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithJournal bypasses the configured storage backend.
func WithJournal(j ports.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

func WithPrompter(p ports.Prompter) Option {
	return func(o *options) {
		o.prompter = p
	}
}

func WithRenderer(r ports.Renderer) Option {
	return func(o *options) {
		o.renderer = r
	}
}

func WithClipboard(c ports.Clipboard) Option {
	return func(o *options) {
		o.clipboard = c
	}
}

func WithGitClient(g ports.GitClient) Option {
	return func(o *options) {
		o.git = g
	}
}

func WithShell(s ports.ShellRunner) Option {
	return func(o *options) {
		o.shell = s
	}
}

// Start opens the journal selected by settings, builds the actor system and
// initializes the guardian.
func Start(ctx context.Context, settings *config.FileSettings, opts ...Option) (*System, error) {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := settings.Config()

	sys := &System{
		Settings: settings,
		cfg:      cfg,
		logger:   o.logger,
	}

	journal := o.journal
	if journal == nil {
		var closer func() error
		var err error
		journal, closer, err = OpenJournal(ctx, cfg.Storage, o.logger)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			sys.closers = append(sys.closers, closer)
		}
	}

	sys.Store = eventstore.New(journal, eventstore.WithLogger(o.logger))
	sys.Registry = observability.NewRegistry()
	sys.Broadcaster = observability.NewBroadcaster(o.logger)

	runner := process.NewRunner(process.WithLogger(o.logger))
	app := &engine.AppContext{
		Settings:   settings,
		Journal:    sys.Store,
		EventStore: sys.Store,
		Git:        o.git,
		Shell:      o.shell,
		Clipboard:  o.clipboard,
		Prompter:   o.prompter,
		Renderer:   o.renderer,
		Logger:     o.logger,
	}
	if app.Git == nil {
		app.Git = process.NewGit(runner)
	}
	if app.Shell == nil {
		app.Shell = runner
	}
	if app.Clipboard == nil {
		app.Clipboard = process.NewClipboard(runner)
	}
	if app.Prompter == nil {
		app.Prompter = tui.NewPrompter()
	}
	if app.Renderer == nil {
		app.Renderer = tui.NewRenderer()
	}

	actorOpts := []actor.Option{
		actor.WithLogger(o.logger),
		actor.WithMetrics(observability.NewMetrics(sys.Registry)),
		actor.WithBroadcaster(sys.Broadcaster),
		actor.WithCommandTimeout(cfg.CommandTimeout),
		actor.WithStrictRecovery(cfg.Recovery.Strict),
	}
	if o.tracerProvider != nil {
		actorOpts = append(actorOpts, actor.WithTracerProvider(o.tracerProvider))
	}
	sys.Guardian = actor.NewGuardian(engine.New(engine.WithLogger(o.logger)), app, actorOpts...)

	if err := sys.Guardian.Initialize(ctx); err != nil {
		sys.closeStorage()
		return nil, err
	}
	o.logger.Debug("System started", "backend", cfg.Storage.Backend, "layout", cfg.Storage.Layout)
	return sys, nil
}

// OpenJournal opens the backend named by cfg. The returned closer, when not
// nil, releases the backend.
func OpenJournal(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.Journal, func() error, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	cd, err := recordCodec(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Backend {
	case domain.BackendMemory:
		return memory.NewJournal(), nil, nil

	case domain.BackendBadger:
		db, err := badger.Open(filepath.Join(cfg.Path, "badger"), logger)
		if err != nil {
			return nil, nil, err
		}
		bopts := []badger.Option{badger.WithCodec(cd), badger.WithLogger(logger)}
		if cfg.Layout == config.LayoutEvent {
			return badger.NewEventLog(db, bopts...), db.Close, nil
		}
		return badger.NewJournal(db, bopts...), db.Close, nil

	case domain.BackendRedis:
		j, err := redis.New(ctx, &backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
			redis.WithCodec(cd),
			redis.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return j, j.Close, nil

	case domain.BackendFile:
		return file.New(filepath.Join(cfg.Path, "journal"), file.WithCodec(cd)), nil, nil

	case domain.BackendSQLite:
		j, err := sqlite.New(sqlite.WithPath(filepath.Join(cfg.Path, "wflow.db")), sqlite.WithCodec(cd))
		if err != nil {
			return nil, nil, err
		}
		return j, j.Close, nil
	}
	return nil, nil, domain.NewError(domain.KindConfiguration, "unsupported storage backend %q", cfg.Backend)
}

func recordCodec(encryptionKey string) (codec.Codec, error) {
	if encryptionKey == "" {
		return codec.JSON(), nil
	}
	key, err := codec.ParseKey(encryptionKey)
	if err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "storage.encryption_key", err)
	}
	mw, err := codec.NewEncryptionMiddleware(codec.EncryptionConfig{ActiveKey: key})
	if err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "storage.encryption_key", err)
	}
	return codec.Chain(codec.JSON(), mw), nil
}

// Submit sends cmd to the session of wc.
func (s *System) Submit(ctx context.Context, cmd engine.Command, wc domain.WorkflowContext) error {
	return s.Guardian.SubmitCommand(ctx, cmd, wc)
}

// Run submits cmds in order to the session of wc and stops at the first error.
func (s *System) Run(ctx context.Context, wc domain.WorkflowContext, cmds ...engine.Command) error {
	for _, cmd := range cmds {
		if err := s.Submit(ctx, cmd, wc); err != nil {
			return err
		}
	}
	return nil
}

// WorkflowFlow is the interactive sequence behind the bare wflow command.
// A non-empty name skips the selection prompt; presets skip argument prompts.
func WorkflowFlow(name string, presets map[string]string) []engine.Command {
	return []engine.Command{
		engine.DiscoverWorkflows{},
		engine.SelectWorkflow{Workflow: name},
		engine.StartWorkflow{},
		engine.ResolveArguments{Preset: presets},
		engine.CompleteWorkflow{},
	}
}

// AdminHandler returns the admin API over this system.
func (s *System) AdminHandler() http.Handler {
	return adminhttp.NewHandler(s.Guardian, s.Store,
		adminhttp.WithGatherer(s.Registry),
		adminhttp.WithBroadcaster(s.Broadcaster),
		adminhttp.WithVersion(Version),
		adminhttp.WithLogger(s.logger.With("component", "admin")),
	)
}

// Config returns the configuration the system was started with.
func (s *System) Config() config.Config {
	return s.cfg
}

// Close shuts the guardian down and releases storage.
func (s *System) Close(ctx context.Context) error {
	err := s.Guardian.Shutdown(ctx)
	if cerr := s.closeStorage(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return fmt.Errorf("close system: %w", err)
	}
	return nil
}

func (s *System) closeStorage() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
