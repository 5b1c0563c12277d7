package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
	"github.com/aretw0/wflow/pkg/observability"
	"github.com/aretw0/wflow/pkg/ports"
)

// supervisor receives the lifecycle notifications of a processor.
type supervisor interface {
	SessionCompleted(sessionID string)
	SessionFailed(sessionID string, err error)
}

type processorMsg interface{ isProcessorMsg() }

type processCommand struct {
	ctx   context.Context
	cmd   engine.Command
	reply chan<- reply[domain.State]
}

type scheduleCommand struct{ cmd engine.Command }

type completeSession struct{}

type stopProcessor struct{}

func (processCommand) isProcessorMsg()  {}
func (scheduleCommand) isProcessorMsg() {}
func (completeSession) isProcessorMsg() {}
func (stopProcessor) isProcessorMsg()   {}

// Processor owns the state of one session.
type Processor struct {
	id      string
	mb      *mailbox[processorMsg]
	engine  *engine.Engine
	journal ports.Journal
	ec      *engine.Context
	parent  supervisor
	opts    options
	logger  *slog.Logger

	// state is only touched by the processor goroutine.
	state domain.State
}

// spawnProcessor recovers the session from the journal and starts its goroutine.
func spawnProcessor(ctx context.Context, wc domain.WorkflowContext, eng *engine.Engine, app *engine.AppContext, parent supervisor, opts options) (*Processor, error) {
	if app == nil || app.Journal == nil {
		return nil, domain.NewError(domain.KindConfiguration, "no journal configured")
	}
	p := &Processor{
		id:      wc.SessionID,
		mb:      newMailbox[processorMsg](opts.mailboxSize),
		engine:  eng,
		journal: app.Journal,
		parent:  parent,
		opts:    opts,
		logger:  opts.logger.With("component", "processor", "session_id", wc.SessionID),
	}
	p.ec = engine.NewContext(wc, app, p)

	state, err := p.recover(ctx)
	if err != nil {
		return nil, err
	}
	p.state = state

	go p.loop()
	return p, nil
}

// recover folds the journal of the session. Events that do not apply to their
// predecessor are skipped.
func (p *Processor) recover(ctx context.Context) (domain.State, error) {
	events, err := p.journal.ReplayEvents(ctx, p.id, 0)
	if err != nil {
		if p.opts.strictRecovery {
			p.opts.metrics.Recovery("failed")
			return nil, &domain.Error{Kind: domain.KindRecovery, Op: "replay", SessionID: p.id, Err: err}
		}
		p.opts.metrics.Recovery("fallback")
		p.logger.Warn("Recovery failed, starting from initial state", "err", err)
		return domain.InitialState(), nil
	}

	state := domain.InitialState()
	for _, env := range events {
		next, ok := env.Event.Apply(state)
		if !ok {
			p.logger.Warn("Skipping event that does not apply during recovery",
				"sequence", env.Sequence,
				"event", env.Event.Type(),
				"phase", state.Phase(),
			)
			continue
		}
		state = next
	}
	p.opts.metrics.Recovery("ok")
	if len(events) > 0 {
		p.logger.Debug("Recovered session", "events", len(events), "phase", state.Phase())
	}
	return state, nil
}

// SessionID returns the session owned by p.
func (p *Processor) SessionID() string { return p.id }

// ProcessCommand runs cmd on the session and returns the committed state.
func (p *Processor) ProcessCommand(ctx context.Context, cmd engine.Command, timeout time.Duration) (domain.State, error) {
	return call(ctx, p.mb, timeout, func(r chan<- reply[domain.State]) processorMsg {
		return processCommand{ctx: context.WithoutCancel(ctx), cmd: cmd, reply: r}
	})
}

// ScheduleCommand enqueues cmd behind the messages already in the mailbox.
// It implements engine.Scheduler.
func (p *Processor) ScheduleCommand(cmd engine.Command) error {
	return p.mb.cast(scheduleCommand{cmd: cmd})
}

// Complete asks the supervisor to end the session. It implements engine.Scheduler.
func (p *Processor) Complete() error {
	return p.mb.cast(completeSession{})
}

// Stop asks the processor to exit once the messages before it are handled.
func (p *Processor) Stop() {
	_ = p.mb.cast(stopProcessor{})
}

// Done is closed when the processor goroutine has exited.
func (p *Processor) Done() <-chan struct{} { return p.mb.done }

func (p *Processor) loop() {
	defer close(p.mb.done)
	for {
		switch m := (<-p.mb.ch).(type) {
		case processCommand:
			state, err := p.handle(m.ctx, m.cmd)
			m.reply <- reply[domain.State]{value: state, err: err}
		case scheduleCommand:
			if _, err := p.handle(context.Background(), m.cmd); err != nil {
				p.logger.Error("Scheduled command failed", "command", m.cmd.Name(), "err", err)
			}
		case completeSession:
			p.logger.Debug("Session complete")
			p.parent.SessionCompleted(p.id)
		case stopProcessor:
			p.logger.Debug("Processor stopped")
			return
		}
	}
}

// handle runs the full pipeline of cmd. State is committed only after the
// emitted events are folded and persisted.
func (p *Processor) handle(ctx context.Context, cmd engine.Command) (state domain.State, err error) {
	start := time.Now()
	ctx, span := p.opts.tracer.Start(ctx, observability.CommandSpanName, trace.WithAttributes(
		attribute.String("wflow.session_id", p.id),
		attribute.String("wflow.command", cmd.Name()),
	))
	defer func() {
		if r := recover(); r != nil {
			err = &domain.Error{
				Kind:      domain.KindExecution,
				Op:        "process",
				SessionID: p.id,
				Command:   cmd.Name(),
				Msg:       fmt.Sprintf("panic: %v", r),
			}
			state = p.state
			p.logger.Error("Command panicked", "command", cmd.Name(), "panic", r)
			p.parent.SessionFailed(p.id, err)
		}

		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		p.opts.metrics.CommandFinished(cmd.Name(), status, time.Since(start))
	}()

	events, err := p.engine.ProcessCommand(ctx, cmd, p.state, p.ec)
	if err != nil {
		return p.state, err
	}
	next, err := p.engine.HandleEvents(p.state, events)
	if err != nil {
		return p.state, annotate(err, p.id, cmd)
	}
	if len(events) > 0 {
		if err := p.journal.PersistEvents(ctx, p.id, events); err != nil {
			return p.state, annotate(classifyPersist(err), p.id, cmd)
		}
		p.opts.metrics.EventsPersisted(len(events))
	}

	prev := p.state
	p.state = next
	p.opts.broadcaster.Publish(p.id, events)
	span.SetAttributes(
		attribute.Int("wflow.events", len(events)),
		attribute.String("wflow.phase", string(next.Phase())),
	)
	p.logger.Debug("Command committed", "command", cmd.Name(), "events", len(events), "phase", next.Phase())

	if err := p.engine.Effect(ctx, cmd, prev, next, p.ec); err != nil {
		return next, err
	}
	return next, nil
}

func classifyPersist(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return &domain.Error{Kind: domain.KindExecution, Op: "persist", Err: err}
}

// annotate fills the session and command of a classified error.
func annotate(err error, sessionID string, cmd engine.Command) error {
	de, ok := err.(*domain.Error)
	if !ok {
		return err
	}
	out := *de
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	if out.Command == "" {
		out.Command = cmd.Name()
	}
	return &out
}
