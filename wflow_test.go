package wflow_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/internal/config"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

const greetYAML = `name: greet
command: echo hello {{who}}
arguments:
  - name: who
    description: Who to greet
`

type lines struct {
	mu  sync.Mutex
	out []string
}

func (l *lines) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = append(l.out, fmt.Sprintf(format, args...))
}

func (l *lines) Message(format string, args ...any) { l.add(format, args...) }
func (l *lines) Success(format string, args ...any) { l.add(format, args...) }
func (l *lines) Warning(format string, args ...any) { l.add(format, args...) }
func (l *lines) Markdown(doc string)                { l.add("%s", doc) }

func (l *lines) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.out, "\n")
}

type clip struct {
	mu   sync.Mutex
	text string
}

func (c *clip) Copy(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

type noPrompt struct{}

func (noPrompt) Select(context.Context, string, []string) (string, error) {
	return "", fmt.Errorf("unexpected prompt")
}

func (noPrompt) Input(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("unexpected prompt")
}

func newSettings(t *testing.T, backend string) *config.FileSettings {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Storage.Backend = backend
	cfg.CommandTimeout = 5 * time.Second
	require.NoError(t, os.MkdirAll(cfg.WorkflowsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.WorkflowsDir, "greet.yaml"), []byte(greetYAML), 0o644))
	return config.NewFileSettings(filepath.Join(dir, config.FileName), &cfg)
}

func start(t *testing.T, settings *config.FileSettings, opts ...wflow.Option) *wflow.System {
	t.Helper()
	sys, err := wflow.Start(context.Background(), settings, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sys.Close(ctx)
	})
	return sys
}

func TestSystem_RunsWorkflowFlow(t *testing.T) {
	for _, backend := range []string{domain.BackendMemory, domain.BackendFile, domain.BackendSQLite, domain.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			out := &lines{}
			c := &clip{}
			sys := start(t, newSettings(t, backend),
				wflow.WithRenderer(out), wflow.WithClipboard(c), wflow.WithPrompter(noPrompt{}))

			ctx := context.Background()
			wc := domain.NewWorkflowContext()
			require.NoError(t, sys.Run(ctx, wc, wflow.WorkflowFlow("greet", map[string]string{"who": "world"})...))

			c.mu.Lock()
			assert.Equal(t, "echo hello world", c.text)
			c.mu.Unlock()
			assert.Contains(t, out.joined(), "echo hello world")

			state, err := sys.Store.GetCurrentState(ctx, wc.SessionID)
			require.NoError(t, err)
			assert.Equal(t, domain.PhaseWorkflowCompleted, state.Phase())
		})
	}
}

func TestSystem_ValidationErrorSurfaces(t *testing.T) {
	sys := start(t, newSettings(t, domain.BackendMemory),
		wflow.WithRenderer(&lines{}), wflow.WithPrompter(noPrompt{}))

	err := sys.Run(context.Background(), domain.NewWorkflowContext(), wflow.WorkflowFlow("missing", nil)...)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestSystem_AdminHandler(t *testing.T) {
	sys := start(t, newSettings(t, domain.BackendMemory),
		wflow.WithRenderer(&lines{}), wflow.WithPrompter(noPrompt{}))
	ctx := context.Background()
	wc := domain.NewWorkflowContext()
	require.NoError(t, sys.Submit(ctx, engine.DiscoverWorkflows{}, wc))

	h := sys.AdminHandler()
	for path, want := range map[string]string{
		"/healthz":    `"total_commands_processed":1`,
		"/aggregates": wc.SessionID,
		"/metrics":    "wflow_commands_total",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), want, path)
	}
}

func TestOpenJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported backend", func(t *testing.T) {
		_, _, err := wflow.OpenJournal(ctx, config.StorageConfig{Backend: "tape"}, nil)
		assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	})

	t.Run("bad encryption key", func(t *testing.T) {
		_, _, err := wflow.OpenJournal(ctx, config.StorageConfig{Backend: domain.BackendMemory, EncryptionKey: "short"}, nil)
		assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	})

	t.Run("encrypted file journal", func(t *testing.T) {
		dir := t.TempDir()
		key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
		j, closer, err := wflow.OpenJournal(ctx, config.StorageConfig{Backend: domain.BackendFile, Path: dir, EncryptionKey: key}, nil)
		require.NoError(t, err)
		assert.Nil(t, closer)

		ev := domain.NewEvent(domain.WorkflowDiscoveredEvent{Workflow: domain.Workflow{Name: "secret-flow"}})
		require.NoError(t, j.PersistEvents(ctx, "s1", []domain.Event{ev}))

		entries, err := os.ReadDir(filepath.Join(dir, "journal"))
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		raw, err := os.ReadFile(filepath.Join(dir, "journal", entries[0].Name()))
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret-flow")

		events, err := j.ReplayEvents(ctx, "s1", 0)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, ev.ID, events[0].Event.ID)
	})

	t.Run("badger event layout", func(t *testing.T) {
		j, closer, err := wflow.OpenJournal(ctx, config.StorageConfig{
			Backend: domain.BackendBadger, Path: t.TempDir(), Layout: config.LayoutEvent,
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, closer)
		defer closer()

		require.NoError(t, j.PersistEvents(ctx, "s1", []domain.Event{
			domain.NewEvent(domain.WorkflowDiscoveredEvent{Workflow: domain.Workflow{Name: "a"}}),
		}))
		n, err := j.HighestSequenceNr(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
	})
}
