package engine_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/engine"
	"github.com/aretw0/wflow/pkg/ports"
)

type fakeSettings struct {
	mu          sync.Mutex
	language    string
	resourceURL string
	backend     string
	dir         string
}

func (s *fakeSettings) Language() string { s.mu.Lock(); defer s.mu.Unlock(); return s.language }
func (s *fakeSettings) SetLanguage(l string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = l
	return nil
}
func (s *fakeSettings) ResourceURL() string { return s.resourceURL }
func (s *fakeSettings) SetResourceURL(u string) error {
	s.resourceURL = u
	return nil
}
func (s *fakeSettings) StorageBackend() string { return s.backend }
func (s *fakeSettings) SetStorageBackend(b string) error {
	s.backend = b
	return nil
}
func (s *fakeSettings) WorkflowsDir() string { return s.dir }

// recorder captures renderer output.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) add(prefix, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, prefix+fmt.Sprintf(format, args...))
}

func (r *recorder) Message(format string, args ...any) { r.add("", format, args...) }
func (r *recorder) Success(format string, args ...any) { r.add("ok: ", format, args...) }
func (r *recorder) Warning(format string, args ...any) { r.add("warn: ", format, args...) }
func (r *recorder) Markdown(doc string)                { r.add("md: ", "%s", doc) }

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// scriptedPrompter answers prompts from a queue.
type scriptedPrompter struct {
	answers []string
	asked   []string
}

func (p *scriptedPrompter) next(msg string) (string, error) {
	p.asked = append(p.asked, msg)
	if len(p.answers) == 0 {
		return "", fmt.Errorf("unexpected prompt %q", msg)
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Select(_ context.Context, msg string, _ []string) (string, error) {
	return p.next(msg)
}

func (p *scriptedPrompter) Input(_ context.Context, msg, _ string) (string, error) {
	return p.next(msg)
}

type fakeShell struct {
	out     string
	err     error
	scripts []string
}

func (s *fakeShell) Output(_ context.Context, script string) (string, error) {
	s.scripts = append(s.scripts, script)
	return s.out, s.err
}

type fakeClipboard struct {
	copied string
	err    error
}

func (c *fakeClipboard) Copy(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.copied = text
	return nil
}

// fakeGit writes files into the destination instead of cloning.
type fakeGit struct {
	files  map[string]string
	commit string
	url    string
	opts   ports.CloneOptions
}

func (g *fakeGit) CloneRepository(_ context.Context, url, dest string, opts ports.CloneOptions) (string, error) {
	g.url, g.opts = url, opts
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	for name, body := range g.files {
		if err := os.WriteFile(filepath.Join(dest, name), []byte(body), 0o644); err != nil {
			return "", err
		}
	}
	return g.commit, nil
}

// fakeScheduler records what a command asks of its processor.
type fakeScheduler struct {
	scheduled []engine.Command
	completed bool
}

func (s *fakeScheduler) ScheduleCommand(cmd engine.Command) error {
	s.scheduled = append(s.scheduled, cmd)
	return nil
}

func (s *fakeScheduler) Complete() error {
	s.completed = true
	return nil
}

func writeWorkflow(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
}

const deployYAML = `name: deploy
description: Deploy a service
command: kubectl rollout restart deploy/{{service}} -n {{namespace}}
arguments:
  - name: namespace
    arg_type: Enum
    description: Target namespace
    enum_variants: [dev, prod]
  - name: service
    arg_type: Text
    description: Service name
    default_value: api
`

const greetYAML = `name: greet
command: echo hello {{who}}
arguments:
  - name: who
    description: Who to greet
`
