package actor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/actor"
	"github.com/aretw0/wflow/pkg/adapters/memory"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
	"github.com/aretw0/wflow/pkg/eventstore"
	"github.com/aretw0/wflow/pkg/ports"
)

type settings struct {
	mu       sync.Mutex
	language string
	dir      string
}

func (s *settings) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *settings) SetLanguage(l string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = l
	return nil
}

func (s *settings) ResourceURL() string            { return "" }
func (s *settings) SetResourceURL(string) error    { return nil }
func (s *settings) StorageBackend() string         { return domain.BackendMemory }
func (s *settings) SetStorageBackend(string) error { return nil }
func (s *settings) WorkflowsDir() string           { return s.dir }

// gatedGit blocks every clone until release is closed.
type gatedGit struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedGit() *gatedGit {
	return &gatedGit{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedGit) CloneRepository(_ context.Context, _, dest string, _ ports.CloneOptions) (string, error) {
	g.started <- struct{}{}
	<-g.release
	return "deadbeef", os.MkdirAll(dest, 0o755)
}

func (g *gatedGit) Release() { g.once.Do(func() { close(g.release) }) }

type instantGit struct{}

func (instantGit) CloneRepository(_ context.Context, _, dest string, _ ports.CloneOptions) (string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	return "cafe", os.WriteFile(filepath.Join(dest, "one.yaml"), []byte("name: one\ncommand: echo 1\n"), 0o644)
}

type panickingPrompter struct{}

func (panickingPrompter) Select(context.Context, string, []string) (string, error) {
	panic("prompter exploded")
}

func (panickingPrompter) Input(context.Context, string, string) (string, error) {
	panic("prompter exploded")
}

// brokenJournal fails every replay.
type brokenJournal struct {
	ports.Journal
}

func (brokenJournal) ReplayEvents(context.Context, string, uint64) ([]domain.AggregateEvent, error) {
	return nil, errors.New("corrupt journal")
}

// gatedReplayJournal blocks replays of one persistence id until released.
type gatedReplayJournal struct {
	ports.Journal
	id       string
	replayed chan struct{}
	release  chan struct{}
	once     sync.Once
}

func newGatedReplayJournal(inner ports.Journal, id string) *gatedReplayJournal {
	return &gatedReplayJournal{Journal: inner, id: id, replayed: make(chan struct{}, 4), release: make(chan struct{})}
}

func (j *gatedReplayJournal) ReplayEvents(ctx context.Context, id string, from uint64) ([]domain.AggregateEvent, error) {
	if id == j.id {
		j.replayed <- struct{}{}
		<-j.release
	}
	return j.Journal.ReplayEvents(ctx, id, from)
}

func (j *gatedReplayJournal) Release() { j.once.Do(func() { close(j.release) }) }

type fixture struct {
	app      *engine.AppContext
	store    *eventstore.Store
	settings *settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "workflows")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	store := eventstore.New(memory.NewJournal())
	s := &settings{language: "en", dir: dir}
	return &fixture{
		app: &engine.AppContext{
			Settings:   s,
			Journal:    store,
			EventStore: store,
		},
		store:    store,
		settings: s,
	}
}

func (f *fixture) writeWorkflow(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.settings.dir, name), []byte(body), 0o644))
}

func (f *fixture) guardian(t *testing.T, opts ...actor.Option) *actor.Guardian {
	t.Helper()
	g := actor.NewGuardian(engine.New(), f.app, opts...)
	require.NoError(t, g.Initialize(context.Background()))
	t.Cleanup(func() { _ = g.Shutdown(context.Background()) })
	return g
}

func (f *fixture) state(t *testing.T, sessionID string) domain.State {
	t.Helper()
	s, err := f.store.GetCurrentState(context.Background(), sessionID)
	require.NoError(t, err)
	return s
}

func session(id string) domain.WorkflowContext {
	return domain.NewWorkflowContext().WithSessionID(id)
}

const greetYAML = `name: greet
command: echo hello {{who}}
arguments:
  - name: who
`
