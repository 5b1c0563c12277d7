package actor

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/observability"
)

type options struct {
	logger         *slog.Logger
	metrics        *observability.Metrics
	tracer         trace.Tracer
	broadcaster    *observability.Broadcaster
	commandTimeout time.Duration
	strictRecovery bool
	mailboxSize    int
}

// Option configures the actors of a system.
type Option func(*options)

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records session and command metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracerProvider sets the provider of the per-command spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = observability.Tracer(tp)
	}
}

// WithBroadcaster publishes every committed event.
func WithBroadcaster(b *observability.Broadcaster) Option {
	return func(o *options) {
		o.broadcaster = b
	}
}

// WithCommandTimeout bounds the wait for a command reply.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) {
		o.commandTimeout = d
	}
}

// WithStrictRecovery makes a failed journal replay fail the session spawn
// instead of falling back to the initial state.
func WithStrictRecovery(strict bool) Option {
	return func(o *options) {
		o.strictRecovery = strict
	}
}

// WithMailboxSize sets the buffer of every mailbox.
func WithMailboxSize(n int) Option {
	return func(o *options) {
		o.mailboxSize = n
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:         logging.NewNop(),
		tracer:         observability.Tracer(nil),
		commandTimeout: DefaultCommandTimeout,
		mailboxSize:    DefaultMailboxSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.commandTimeout <= 0 {
		o.commandTimeout = DefaultCommandTimeout
	}
	return o
}
