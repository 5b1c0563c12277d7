package actor

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

// healthTimeout bounds the manager queries behind a health check.
const healthTimeout = 2 * time.Second

// Health is the answer of Guardian.HealthCheck.
type Health struct {
	ActiveSessions         int    `json:"active_sessions"`
	TotalCommandsProcessed uint64 `json:"total_commands_processed"`
	UptimeSeconds          uint64 `json:"uptime_seconds"`
}

type guardianMsg interface{ isGuardianMsg() }

type initialize struct{ reply chan<- reply[struct{}] }

type shutdown struct{ reply chan<- reply[*Manager] }

type lookupManager struct{ reply chan<- reply[running] }

// running is the manager together with its start time.
type running struct {
	manager   *Manager
	startedAt time.Time
}

func (initialize) isGuardianMsg()    {}
func (shutdown) isGuardianMsg()      {}
func (lookupManager) isGuardianMsg() {}

// Guardian is the root of the supervision tree. It owns the manager and is the
// entry point for commands.
//
// The guardian goroutine lives as long as the process; Shutdown stops the
// manager and a later Initialize starts a fresh one.
type Guardian struct {
	mb     *mailbox[guardianMsg]
	engine *engine.Engine
	app    *engine.AppContext
	opts   []Option
	logger *slog.Logger

	// Owned by the guardian goroutine.
	manager   *Manager
	startedAt time.Time
}

// NewGuardian starts a guardian. Commands are rejected until Initialize.
func NewGuardian(eng *engine.Engine, app *engine.AppContext, opts ...Option) *Guardian {
	o := buildOptions(opts)
	g := &Guardian{
		mb:     newMailbox[guardianMsg](o.mailboxSize),
		engine: eng,
		app:    app,
		opts:   opts,
		logger: o.logger.With("component", "guardian"),
	}
	go g.loop()
	return g
}

// Initialize spawns the manager. Calling it again is a no-op.
func (g *Guardian) Initialize(ctx context.Context) error {
	_, err := call(ctx, g.mb, DefaultCommandTimeout, func(r chan<- reply[struct{}]) guardianMsg {
		return initialize{reply: r}
	})
	return err
}

// SubmitCommand forwards cmd to the manager.
func (g *Guardian) SubmitCommand(ctx context.Context, cmd engine.Command, wc domain.WorkflowContext) error {
	r, err := g.lookup(ctx)
	if err != nil {
		return err
	}
	m := r.manager
	if m == nil {
		return &domain.Error{Kind: domain.KindNotInitialized, Op: "submit", SessionID: wc.SessionID, Err: domain.ErrNotInitialized}
	}
	return m.SubmitCommand(ctx, cmd, wc)
}

// HealthCheck reports the system health. Failures degrade to zero values.
func (g *Guardian) HealthCheck(ctx context.Context) Health {
	var h Health
	r, err := g.lookup(ctx)
	if err != nil || r.manager == nil {
		return h
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	stats, err := r.manager.Stats(ctx)
	if err != nil {
		g.logger.Warn("Health check degraded", "err", err)
		return h
	}
	h.ActiveSessions = stats.ActiveSessions
	h.TotalCommandsProcessed = stats.TotalCommandsProcessed
	h.UptimeSeconds = uint64(time.Since(r.startedAt).Seconds())
	return h
}

// Stats returns the manager counters, or zeros before Initialize.
func (g *Guardian) Stats(ctx context.Context) SessionStats {
	r, err := g.lookup(ctx)
	if err != nil || r.manager == nil {
		return SessionStats{SuccessRate: 100}
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	stats, err := r.manager.Stats(ctx)
	if err != nil {
		g.logger.Warn("Stats degraded", "err", err)
		return SessionStats{SuccessRate: 100}
	}
	return stats
}

// Shutdown stops the manager and its processors, bounded by ctx.
func (g *Guardian) Shutdown(ctx context.Context) error {
	m, err := call(ctx, g.mb, DefaultCommandTimeout, func(r chan<- reply[*Manager]) guardianMsg {
		return shutdown{reply: r}
	})
	if err != nil || m == nil {
		return err
	}
	if err := m.Stop(ctx); err != nil {
		g.logger.Warn("Shutdown incomplete", "err", err)
		return err
	}
	g.logger.Debug("Shutdown complete")
	return nil
}

func (g *Guardian) lookup(ctx context.Context) (running, error) {
	return call(ctx, g.mb, DefaultCommandTimeout, func(r chan<- reply[running]) guardianMsg {
		return lookupManager{reply: r}
	})
}

func (g *Guardian) loop() {
	defer close(g.mb.done)
	for {
		switch msg := (<-g.mb.ch).(type) {
		case initialize:
			msg.reply <- reply[struct{}]{err: g.initialize()}
		case shutdown:
			m := g.manager
			g.manager = nil
			msg.reply <- reply[*Manager]{value: m}
		case lookupManager:
			msg.reply <- reply[running]{value: running{manager: g.manager, startedAt: g.startedAt}}
		}
	}
}

func (g *Guardian) initialize() error {
	if g.manager != nil {
		return nil
	}
	if g.app == nil || g.app.Journal == nil {
		return &domain.Error{Kind: domain.KindSpawn, Op: "initialize", Msg: "no journal configured"}
	}
	g.manager = NewManager(g.engine, g.app, g.opts...)
	g.startedAt = time.Now()
	g.logger.Debug("Manager started")
	return nil
}
