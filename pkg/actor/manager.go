package actor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

// SessionStats are the counters of a manager.
type SessionStats struct {
	ActiveSessions         int     `json:"active_sessions"`
	TotalSessionsCreated   uint64  `json:"total_sessions_created"`
	TotalCommandsProcessed uint64  `json:"total_commands_processed"`
	TotalSessionsFailed    uint64  `json:"total_sessions_failed"`
	SuccessRate            float64 `json:"success_rate"`
}

type managerMsg interface{ isManagerMsg() }

type submitCommand struct {
	ctx   context.Context
	cmd   engine.Command
	wc    domain.WorkflowContext
	reply chan<- reply[struct{}]
}

type commandDone struct {
	sessionID string
	cmd       engine.Command
	err       error
	elapsed   time.Duration
}

type processorSpawned struct {
	sessionID string
	p         *Processor
	err       error
}

type sessionCompleted struct{ sessionID string }

type sessionFailed struct {
	sessionID string
	err       error
}

type getActiveSessions struct{ reply chan<- reply[int] }

type getSessionStats struct{ reply chan<- reply[SessionStats] }

type stopManager struct {
	ctx   context.Context
	reply chan<- reply[struct{}]
}

func (submitCommand) isManagerMsg()     {}
func (commandDone) isManagerMsg()       {}
func (processorSpawned) isManagerMsg()  {}
func (sessionCompleted) isManagerMsg()  {}
func (sessionFailed) isManagerMsg()     {}
func (getActiveSessions) isManagerMsg() {}
func (getSessionStats) isManagerMsg()   {}
func (stopManager) isManagerMsg()       {}

// Manager routes commands to one processor per session.
type Manager struct {
	mb     *mailbox[managerMsg]
	engine *engine.Engine
	app    *engine.AppContext
	opts   options
	logger *slog.Logger

	// Owned by the manager goroutine.
	sessions map[string]*Processor
	spawning map[string][]submitCommand // commands waiting for a recovering processor
	created  uint64
	commands uint64
	failed   uint64
}

// NewManager starts a manager. eng and app are shared by every session it spawns.
func NewManager(eng *engine.Engine, app *engine.AppContext, opts ...Option) *Manager {
	o := buildOptions(opts)
	if eng == nil {
		eng = engine.New(engine.WithLogger(o.logger))
	}
	m := &Manager{
		mb:       newMailbox[managerMsg](o.mailboxSize),
		engine:   eng,
		app:      app,
		opts:     o,
		logger:   o.logger.With("component", "manager"),
		sessions: make(map[string]*Processor),
		spawning: make(map[string][]submitCommand),
	}
	go m.loop()
	return m
}

// SubmitCommand runs cmd on the session of wc, spawning its processor if needed.
// Errors from the command pipeline are returned unchanged.
func (m *Manager) SubmitCommand(ctx context.Context, cmd engine.Command, wc domain.WorkflowContext) error {
	if cmd == nil {
		return domain.ValidationError("command is required")
	}
	_, err := call(ctx, m.mb, 0, func(r chan<- reply[struct{}]) managerMsg {
		return submitCommand{ctx: ctx, cmd: cmd, wc: wc, reply: r}
	})
	return deliveryError(err, wc.SessionID, cmd)
}

// SessionCompleted removes a finished session. It never blocks.
func (m *Manager) SessionCompleted(sessionID string) {
	_ = m.mb.cast(sessionCompleted{sessionID: sessionID})
}

// SessionFailed removes a failed session. It never blocks.
func (m *Manager) SessionFailed(sessionID string, err error) {
	_ = m.mb.cast(sessionFailed{sessionID: sessionID, err: err})
}

// ActiveSessions returns the number of running processors.
func (m *Manager) ActiveSessions(ctx context.Context) (int, error) {
	return call(ctx, m.mb, m.opts.commandTimeout, func(r chan<- reply[int]) managerMsg {
		return getActiveSessions{reply: r}
	})
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats(ctx context.Context) (SessionStats, error) {
	return call(ctx, m.mb, m.opts.commandTimeout, func(r chan<- reply[SessionStats]) managerMsg {
		return getSessionStats{reply: r}
	})
}

// Stop stops every processor and then the manager. Processors finish the
// messages already queued; the wait is bounded by ctx.
func (m *Manager) Stop(ctx context.Context) error {
	if m.mb.stopped() {
		return nil
	}
	_, err := call(ctx, m.mb, 0, func(r chan<- reply[struct{}]) managerMsg {
		return stopManager{ctx: ctx, reply: r}
	})
	if errors.Is(err, domain.ErrActorStopped) {
		return nil
	}
	return err
}

// Done is closed when the manager goroutine has exited.
func (m *Manager) Done() <-chan struct{} { return m.mb.done }

func (m *Manager) loop() {
	defer close(m.mb.done)
	for {
		switch msg := (<-m.mb.ch).(type) {
		case submitCommand:
			m.route(msg)
		case processorSpawned:
			m.processorSpawned(msg)
		case commandDone:
			m.commandDone(msg)
		case sessionCompleted:
			if m.remove(msg.sessionID, "completed") {
				m.logger.Info("Session completed", "session_id", msg.sessionID)
			}
		case sessionFailed:
			m.sessionFailed(msg)
		case getActiveSessions:
			msg.reply <- reply[int]{value: len(m.sessions)}
		case getSessionStats:
			msg.reply <- reply[SessionStats]{value: m.stats()}
		case stopManager:
			msg.reply <- reply[struct{}]{err: m.stopAll(msg.ctx)}
			m.drain()
			return
		}
	}
}

// route hands msg to the processor of its session. A session without one gets
// a processor spawned off the manager goroutine, since recovery replays the
// journal; commands arriving meanwhile wait in arrival order.
func (m *Manager) route(msg submitCommand) {
	id := msg.wc.SessionID
	if id == "" {
		msg.reply <- reply[struct{}]{err: domain.ValidationError("session id is required")}
		return
	}
	if p, ok := m.sessions[id]; ok {
		go m.await(p, msg)
		return
	}
	if queued, ok := m.spawning[id]; ok {
		m.spawning[id] = append(queued, msg)
		return
	}
	m.spawning[id] = []submitCommand{msg}
	go m.spawn(msg.ctx, msg.wc)
}

func (m *Manager) spawn(ctx context.Context, wc domain.WorkflowContext) {
	spawnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.commandTimeout)
	defer cancel()
	p, err := spawnProcessor(spawnCtx, wc, m.engine, m.app, m, m.opts)
	if sendErr := m.mb.send(context.Background(), processorSpawned{sessionID: wc.SessionID, p: p, err: err}); sendErr != nil && p != nil {
		p.Stop()
	}
}

func (m *Manager) processorSpawned(msg processorSpawned) {
	queued := m.spawning[msg.sessionID]
	delete(m.spawning, msg.sessionID)

	if msg.err != nil {
		m.logger.Error("Failed to spawn processor", "session_id", msg.sessionID, "err", msg.err)
		err := msg.err
		if !domain.IsKind(err, domain.KindRecovery) {
			err = &domain.Error{Kind: domain.KindSpawn, Op: "spawn", SessionID: msg.sessionID, Err: err}
		}
		for _, q := range queued {
			q.reply <- reply[struct{}]{err: err}
		}
		return
	}

	m.sessions[msg.sessionID] = msg.p
	m.created++
	m.opts.metrics.SessionSpawned()
	m.logger.Debug("Spawned processor", "session_id", msg.sessionID, "total_sessions", m.created)

	// Awaiting in sequence keeps the queued commands in arrival order.
	go func() {
		for _, q := range queued {
			m.await(msg.p, q)
		}
	}()
}

// await waits for the processor reply off the manager goroutine, so that
// commands of other sessions keep flowing.
func (m *Manager) await(p *Processor, msg submitCommand) {
	start := time.Now()
	_, err := p.ProcessCommand(msg.ctx, msg.cmd, m.opts.commandTimeout)
	err = deliveryError(err, p.SessionID(), msg.cmd)

	// The counters are updated before the caller sees the reply.
	_ = m.mb.send(context.Background(), commandDone{
		sessionID: p.SessionID(),
		cmd:       msg.cmd,
		err:       err,
		elapsed:   time.Since(start),
	})
	msg.reply <- reply[struct{}]{err: err}
}

// deliveryError classifies the failures of the call itself. Errors produced by
// the command pipeline are already classified and pass through.
func deliveryError(err error, sessionID string, cmd engine.Command) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	out := &domain.Error{Kind: domain.KindGeneric, Op: "submit", SessionID: sessionID, Command: cmd.Name(), Err: err}
	switch {
	case errors.Is(err, domain.ErrCallTimeout):
		out.Kind = domain.KindTimeout
	case errors.Is(err, domain.ErrSendFailed):
		out.Kind = domain.KindSend
	case errors.Is(err, domain.ErrActorStopped):
		out.Kind = domain.KindUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = domain.KindTimeout
	}
	return out
}

func (m *Manager) commandDone(msg commandDone) {
	log := m.logger.With("session_id", msg.sessionID, "command", msg.cmd.Name(), "duration", msg.elapsed)
	switch {
	case msg.err == nil:
		m.commands++
		log.Debug("Command processed", "total_processed", m.commands)
	case domain.IsTimeout(msg.err):
		m.opts.metrics.CommandFinished(msg.cmd.Name(), "timeout", msg.elapsed)
		log.Warn("Command timed out", "err", msg.err)
	case domain.IsDelivery(msg.err):
		log.Warn("Command not delivered", "kind", domain.KindOf(msg.err), "err", msg.err)
	default:
		log.Info("Command failed", "kind", domain.KindOf(msg.err), "err", msg.err)
	}
}

func (m *Manager) sessionFailed(msg sessionFailed) {
	if !m.remove(msg.sessionID, "failed") {
		return
	}
	m.failed++
	recoverable := msg.err != nil && domain.IsRecoverable(msg.err.Error())
	m.logger.Error("Session failed",
		"session_id", msg.sessionID,
		"recoverable", recoverable,
		"total_failed", m.failed,
		"err", msg.err,
	)
}

// remove stops and forgets a session. It reports whether the session was known.
func (m *Manager) remove(sessionID, outcome string) bool {
	p, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	delete(m.sessions, sessionID)
	p.Stop()
	m.opts.metrics.SessionEnded(outcome)
	return true
}

func (m *Manager) stats() SessionStats {
	s := SessionStats{
		ActiveSessions:         len(m.sessions),
		TotalSessionsCreated:   m.created,
		TotalCommandsProcessed: m.commands,
		TotalSessionsFailed:    m.failed,
		SuccessRate:            100,
	}
	if m.created > 0 {
		s.SuccessRate = float64(m.created-m.failed) / float64(m.created) * 100
	}
	return s
}

// drain stops processors whose spawn finished after the stop request.
func (m *Manager) drain() {
	for {
		select {
		case msg := <-m.mb.ch:
			if ps, ok := msg.(processorSpawned); ok && ps.p != nil {
				ps.p.Stop()
			}
		default:
			return
		}
	}
}

func (m *Manager) stopAll(ctx context.Context) error {
	for id, queued := range m.spawning {
		for _, q := range queued {
			q.reply <- reply[struct{}]{err: domain.ErrActorStopped}
		}
		delete(m.spawning, id)
	}
	running := make([]*Processor, 0, len(m.sessions))
	for id, p := range m.sessions {
		p.Stop()
		delete(m.sessions, id)
		m.opts.metrics.SessionEnded("completed")
		running = append(running, p)
	}
	for _, p := range running {
		select {
		case <-p.Done():
		case <-ctx.Done():
			m.logger.Warn("Gave up waiting for processors", "err", ctx.Err())
			return ctx.Err()
		}
	}
	m.logger.Debug("Manager stopped", "sessions", len(running))
	return nil
}
