package engine

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/wflow/internal/logging"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/ports"
)

// Scheduler lets a running command talk back to the processor that owns its session.
type Scheduler interface {
	// ScheduleCommand enqueues cmd on the same session after the current one.
	ScheduleCommand(cmd Command) error
	// Complete ends the session.
	Complete() error
}

// AppContext holds the collaborators shared by every session.
// Any field may be nil; commands that need a missing collaborator fail with a
// Configuration error.
type AppContext struct {
	Settings   ports.Settings
	Journal    ports.Journal
	EventStore ports.EventStore
	Git        ports.GitClient
	Shell      ports.ShellRunner
	Clipboard  ports.Clipboard
	Prompter   ports.Prompter
	Renderer   ports.Renderer
	Logger     *slog.Logger
}

func (a *AppContext) logger() *slog.Logger {
	if a == nil || a.Logger == nil {
		return logging.NewNop()
	}
	return a.Logger
}

func (a *AppContext) renderer() ports.Renderer {
	if a == nil || a.Renderer == nil {
		return nopRenderer{}
	}
	return a.Renderer
}

func missing(name string) error {
	return domain.NewError(domain.KindConfiguration, "%s is not configured", name)
}

func (a *AppContext) settings() (ports.Settings, error) {
	if a == nil || a.Settings == nil {
		return nil, missing("settings")
	}
	return a.Settings, nil
}

func (a *AppContext) eventStore() (ports.EventStore, error) {
	if a == nil || a.EventStore == nil {
		return nil, missing("event store")
	}
	return a.EventStore, nil
}

func (a *AppContext) journal() (ports.Journal, error) {
	if a == nil || a.Journal == nil {
		return nil, missing("journal")
	}
	return a.Journal, nil
}

// Context is the execution context of one command.
type Context struct {
	Workflow domain.WorkflowContext
	App      *AppContext

	scheduler Scheduler
}

// NewContext binds a workflow context and the shared collaborators to a scheduler.
// scheduler may be nil outside of a processor (tests, one-shot tools).
func NewContext(wc domain.WorkflowContext, app *AppContext, scheduler Scheduler) *Context {
	if app == nil {
		app = &AppContext{}
	}
	return &Context{Workflow: wc, App: app, scheduler: scheduler}
}

// SessionID returns the session the command runs in.
func (c *Context) SessionID() string {
	return c.Workflow.SessionID
}

// ScheduleCommand enqueues a follow-up command on the owning processor.
func (c *Context) ScheduleCommand(cmd Command) error {
	if c.scheduler == nil {
		return fmt.Errorf("schedule %s: %w", cmd.Name(), domain.ErrNotInitialized)
	}
	return c.scheduler.ScheduleCommand(cmd)
}

// CompleteSession asks the owning processor to end the session.
// Without a processor there is no session to end and it does nothing.
func (c *Context) CompleteSession() error {
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Complete()
}

func (c *Context) render() ports.Renderer {
	return c.App.renderer()
}

func (c *Context) logger() *slog.Logger {
	return c.App.logger().With("session_id", c.SessionID())
}

type nopRenderer struct{}

func (nopRenderer) Message(string, ...any) {}
func (nopRenderer) Success(string, ...any) {}
func (nopRenderer) Warning(string, ...any) {}
func (nopRenderer) Markdown(string)        {}
