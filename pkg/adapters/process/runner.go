// Package process runs external programs: shell snippets for dynamic argument
// values, git for workflow sync and the platform clipboard tool.
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strings"

	"github.com/aretw0/wflow/internal/logging"
)

// DefaultShell runs the snippets passed to Runner.Output.
const DefaultShell = "sh"

// Runner executes local processes and captures their output.
type Runner struct {
	shell   string
	baseDir string
	env     []string
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithShell sets the shell used for snippets.
func WithShell(shell string) RunnerOption {
	return func(r *Runner) {
		r.shell = shell
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithEnv adds variables to the environment of every process.
func WithEnv(env map[string]string) RunnerOption {
	return func(r *Runner) {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			r.env = append(r.env, k+"="+env[k])
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		shell:  DefaultShell,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Output runs script with the configured shell and returns its standard output.
// It implements ports.ShellRunner.
func (r *Runner) Output(ctx context.Context, script string) (string, error) {
	return r.run(ctx, nil, nil, r.shell, "-c", script)
}

// run executes name with args. extraEnv is appended to the environment and
// stdin, when not nil, is fed to the process.
func (r *Runner) run(ctx context.Context, extraEnv []string, stdin io.Reader, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.baseDir
	cmd.Env = append(append(cmd.Environ(), r.env...), extraEnv...)
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running process", "command", name, "args", len(args))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s failed: %w", name, err)
		}
		return "", fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return stdout.String(), nil
}
