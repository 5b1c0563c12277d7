package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

func TestParsePresets(t *testing.T) {
	got, err := ParsePresets([]string{"namespace=prod", "query=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"namespace": "prod", "query": "a=b", "empty": ""}, got)

	got, err = ParsePresets(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParsePresets([]string{"novalue"})
	assert.True(t, domain.IsValidation(err))
	_, err = ParsePresets([]string{"=x"})
	assert.True(t, domain.IsValidation(err))
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(nil))
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.NoError(t, handleExecutionError(domain.WrapError(domain.KindExecution, "prompt", context.Canceled)))

	err := errors.New("boom")
	assert.Equal(t, err, handleExecutionError(err))
}

func TestCreateLogger(t *testing.T) {
	var buf bytes.Buffer
	createLogger(&buf, false, "info").Info("hidden")
	createLogger(&buf, false, "").Warn("shown", "error", "x")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "err=x")

	buf.Reset()
	createLogger(&buf, true, "error").Debug("debugging")
	assert.Contains(t, buf.String(), "debugging")
}

type recorder struct {
	mu  sync.Mutex
	out []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, fmt.Sprintf(format, args...))
}

func (r *recorder) Message(format string, args ...any) { r.add(format, args...) }
func (r *recorder) Success(format string, args ...any) { r.add(format, args...) }
func (r *recorder) Warning(format string, args ...any) { r.add(format, args...) }
func (r *recorder) Markdown(doc string)                { r.add("%s", doc) }

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	workflows := filepath.Join(dir, "workflows")
	require.NoError(t, os.MkdirAll(workflows, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workflows, "greet.yaml"),
		[]byte("name: greet\ncommand: echo {{who}}\narguments:\n  - name: who\n"), 0o644))

	path := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("language: en\nworkflows_dir: %s\nstorage:\n  backend: memory\n", workflows)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, workflows
}

func TestLoadSettings(t *testing.T) {
	path, workflows := writeConfig(t)

	settings, err := LoadSettings(Options{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, workflows, settings.WorkflowsDir())
	assert.Equal(t, domain.BackendMemory, settings.StorageBackend())
}

func TestSubmit_RunsCommands(t *testing.T) {
	path, _ := writeConfig(t)
	out := &recorder{}

	err := Submit(Options{ConfigPath: path, Quiet: true},
		[]engine.Command{engine.DiscoverWorkflows{}, engine.ListWorkflows{}},
		wflow.WithRenderer(out))
	require.NoError(t, err)

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Contains(t, out.out, "  - greet")
}

func TestSubmit_SurfacesValidation(t *testing.T) {
	path, _ := writeConfig(t)

	err := Submit(Options{ConfigPath: path, Quiet: true},
		[]engine.Command{engine.StartWorkflow{}},
		wflow.WithRenderer(&recorder{}))
	assert.True(t, domain.IsValidation(err))
}

func TestWithSystem(t *testing.T) {
	path, _ := writeConfig(t)

	var health int
	err := WithSystem(Options{ConfigPath: path}, func(ctx context.Context, sys *wflow.System) error {
		health = sys.Guardian.HealthCheck(ctx).ActiveSessions
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, health)
}
