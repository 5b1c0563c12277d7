package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/domain"
)

// Engine orchestrates the phases of a command. It holds no session state and is
// safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessCommand runs load, validate and emit against state.
func (e *Engine) ProcessCommand(ctx context.Context, cmd Command, state domain.State, ec *Context) ([]domain.Event, error) {
	p, err := pipelineFor(cmd)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = domain.InitialState()
	}

	events, err := p.process(ctx, ec, state)
	if err != nil {
		e.logger.Debug("Command rejected",
			"session_id", ec.SessionID(),
			"command", cmd.Name(),
			"err", err,
		)
		return nil, err
	}
	e.logger.Debug("Command emitted events",
		"session_id", ec.SessionID(),
		"command", cmd.Name(),
		"events", len(events),
	)
	return events, nil
}

// HandleEvents folds events into state. It is pure: on failure state is returned
// untouched together with an Event error wrapping domain.ErrInvalidTransition.
func (e *Engine) HandleEvents(state domain.State, events []domain.Event) (domain.State, error) {
	if state == nil {
		state = domain.InitialState()
	}
	next, bad, ok := domain.Fold(state, events)
	if !ok {
		return state, &domain.Error{
			Kind: domain.KindEvent,
			Op:   "apply",
			Msg:  fmt.Sprintf("%s cannot apply to %s", events[bad].Type(), next.Phase()),
			Err:  domain.ErrInvalidTransition,
		}
	}
	return next, nil
}

// Effect runs the side-effect phase of cmd.
func (e *Engine) Effect(ctx context.Context, cmd Command, prev, next domain.State, ec *Context) error {
	p, err := pipelineFor(cmd)
	if err != nil {
		return err
	}
	return p.effect(ctx, ec, prev, next)
}
