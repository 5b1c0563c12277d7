package domain

import (
	"os"
	"os/user"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ArgumentType determines how an argument value is resolved.
type ArgumentType string

const (
	ArgumentText    ArgumentType = "Text"
	ArgumentEnum    ArgumentType = "Enum"
	ArgumentNumber  ArgumentType = "Number"
	ArgumentBoolean ArgumentType = "Boolean"
)

// NoDefault is the YAML marker for "no default value".
const NoDefault = "~"

// Workflow is a command template with {{variable}} placeholders.
type Workflow struct {
	Name        string             `json:"name" yaml:"name"`
	Command     string             `json:"command" yaml:"command"`
	Description string             `json:"description" yaml:"description"`
	Arguments   []WorkflowArgument `json:"arguments" yaml:"arguments"`
	Tags        []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
	SourceURL   string             `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Author      string             `json:"author,omitempty" yaml:"author,omitempty"`
	AuthorURL   string             `json:"author_url,omitempty" yaml:"author_url,omitempty"`
	Shells      []string           `json:"shells,omitempty" yaml:"shells,omitempty"`
}

func (w Workflow) String() string {
	return w.Name
}

// WorkflowArgument is a single variable of a workflow's command template.
type WorkflowArgument struct {
	Name         string       `json:"name" yaml:"name"`
	Type         ArgumentType `json:"arg_type" yaml:"arg_type"`
	Description  string       `json:"description" yaml:"description"`
	DefaultValue string       `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	EnumName     string       `json:"enum_name,omitempty" yaml:"enum_name,omitempty"`
	EnumCommand  string       `json:"enum_command,omitempty" yaml:"enum_command,omitempty"`
	EnumVariants []string     `json:"enum_variants,omitempty" yaml:"enum_variants,omitempty"`
	// DynamicResolution names an earlier argument whose value is substituted
	// into EnumCommand before it runs.
	DynamicResolution string `json:"dynamic_resolution,omitempty" yaml:"dynamic_resolution,omitempty"`
}

// ResolvedType returns the argument type, defaulting to Text.
func (a WorkflowArgument) ResolvedType() ArgumentType {
	if a.Type == "" {
		return ArgumentText
	}
	return a.Type
}

// HasDefault reports whether the argument carries a usable default value.
func (a WorkflowArgument) HasDefault() bool {
	return a.DefaultValue != "" && a.DefaultValue != NoDefault
}

// Clone returns a deep copy of the workflow.
func (w Workflow) Clone() Workflow {
	out := w
	out.Tags = slices.Clone(w.Tags)
	out.Shells = slices.Clone(w.Shells)
	if w.Arguments != nil {
		out.Arguments = make([]WorkflowArgument, len(w.Arguments))
		for i, arg := range w.Arguments {
			arg.EnumVariants = slices.Clone(arg.EnumVariants)
			out.Arguments[i] = arg
		}
	}
	return out
}

// WorkflowContext carries the execution environment of a session.
type WorkflowContext struct {
	SessionID        string            `json:"session_id"`
	User             string            `json:"user"`
	Hostname         string            `json:"hostname"`
	WorkingDirectory string            `json:"working_directory"`
	Timestamp        time.Time         `json:"timestamp"`
	Env              map[string]string `json:"env,omitempty"`
	CLIArgs          []string          `json:"cli_args,omitempty"`
}

// NewWorkflowContext captures the current process environment under a fresh session id.
func NewWorkflowContext() WorkflowContext {
	ctx := WorkflowContext{
		SessionID: uuid.NewString(),
		User:      currentUser(),
		Timestamp: time.Now().UTC(),
		Env:       make(map[string]string),
	}
	if host, err := os.Hostname(); err == nil {
		ctx.Hostname = host
	} else {
		ctx.Hostname = "unknown"
	}
	if wd, err := os.Getwd(); err == nil {
		ctx.WorkingDirectory = wd
	}
	return ctx
}

// WithSessionID returns a copy of the context bound to sessionID.
func (c WorkflowContext) WithSessionID(sessionID string) WorkflowContext {
	c.SessionID = sessionID
	return c
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

// FindWorkflow returns the workflow named name, if present.
func FindWorkflow(workflows []Workflow, name string) (Workflow, bool) {
	for _, w := range workflows {
		if w.Name == name {
			return w, true
		}
	}
	return Workflow{}, false
}
