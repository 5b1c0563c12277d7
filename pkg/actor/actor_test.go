package actor_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aretw0/wflow/pkg/actor"
	"github.com/aretw0/wflow/pkg/adapters/memory"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
	"github.com/aretw0/wflow/pkg/observability"
)

func TestGuardian_FullWorkflow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeWorkflow(t, "greet.yaml", greetYAML)
	g := f.guardian(t)
	wc := session("run-1")

	for _, cmd := range []engine.Command{
		engine.DiscoverWorkflows{},
		engine.SelectWorkflow{Workflow: "greet"},
		engine.StartWorkflow{},
		engine.ResolveArguments{Preset: map[string]string{"who": "1"}},
		engine.CompleteWorkflow{},
	} {
		require.NoError(t, g.SubmitCommand(ctx, cmd, wc), cmd.Name())
	}

	done, ok := f.state(t, "run-1").(domain.WorkflowCompleted)
	require.True(t, ok)
	assert.Equal(t, "greet", done.Completed.Name)
	assert.Equal(t, "1", done.Arguments["who"])

	// Completion removes the session.
	assert.Eventually(t, func() bool {
		return g.HealthCheck(ctx).ActiveSessions == 0
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 5, g.HealthCheck(ctx).TotalCommandsProcessed)
}

func TestGuardian_NotInitialized(t *testing.T) {
	f := newFixture(t)
	g := actor.NewGuardian(engine.New(), f.app)

	err := g.SubmitCommand(context.Background(), engine.ListLanguages{}, session("s"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Equal(t, domain.KindNotInitialized, domain.KindOf(err))
	assert.Equal(t, actor.Health{}, g.HealthCheck(context.Background()))
}

func TestGuardian_InitializeWithoutJournal(t *testing.T) {
	g := actor.NewGuardian(engine.New(), &engine.AppContext{})

	err := g.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindSpawn, domain.KindOf(err))
}

func TestGuardian_ShutdownAndReinitialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.guardian(t)
	require.NoError(t, g.Initialize(ctx), "initialize is idempotent")
	require.NoError(t, g.SubmitCommand(ctx, engine.SetLanguage{Language: "es"}, session("s")))

	require.NoError(t, g.Shutdown(ctx))
	err := g.SubmitCommand(ctx, engine.GetCurrentLanguage{}, session("s"))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	require.NoError(t, g.Initialize(ctx))
	require.NoError(t, g.SubmitCommand(ctx, engine.GetCurrentLanguage{}, session("s")))
	assert.Equal(t, "es", f.state(t, "s").(domain.CurrentLanguageRetrieved).Language)
}

func TestGuardian_ValidationErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	g := f.guardian(t)

	err := g.SubmitCommand(context.Background(), engine.SelectWorkflow{Workflow: "x"}, session("s"))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err), "got %v", err)
	assert.False(t, domain.IsTimeout(err))
}

func TestManager_SessionsRunInParallel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	git := newGatedGit()
	f.app.Git = git
	g := f.guardian(t)
	t.Cleanup(git.Release)

	blocked := make(chan error, 1)
	go func() {
		blocked <- g.SubmitCommand(ctx, engine.SyncWorkflows{}, session("slow"))
	}()
	<-git.started

	// Another session is not held up by the blocked one.
	require.NoError(t, g.SubmitCommand(ctx, engine.SetLanguage{Language: "es"}, session("fast")))
	assert.Equal(t, domain.PhaseLanguageSet, f.state(t, "fast").Phase())

	select {
	case <-blocked:
		t.Fatal("slow session finished before its clone was released")
	default:
	}
	git.Release()
	require.NoError(t, <-blocked)
}

func TestManager_SameSessionIsSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	git := newGatedGit()
	f.app.Git = git
	g := f.guardian(t)
	t.Cleanup(git.Release)

	first := make(chan error, 1)
	go func() { first <- g.SubmitCommand(ctx, engine.SyncWorkflows{}, session("s")) }()
	<-git.started

	second := make(chan error, 1)
	go func() { second <- g.SubmitCommand(ctx, engine.SetLanguage{Language: "es"}, session("s")) }()

	select {
	case <-second:
		t.Fatal("second command ran while the first was still in its effect")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, "en", f.settings.Language())

	git.Release()
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Equal(t, "es", f.settings.Language())
}

func TestManager_OrderWithinSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.guardian(t)

	langs := []string{"en", "es", "en", "es", "es"}
	for _, l := range langs {
		require.NoError(t, g.SubmitCommand(ctx, engine.SetLanguage{Language: l}, session("s")))
	}
	events, err := f.store.GetEvents(ctx, "s")
	require.NoError(t, err)
	require.Len(t, events, len(langs))
	for i, env := range events {
		assert.Equal(t, langs[i], env.Event.Data.(domain.LanguageSetEvent).Language)
	}
}

func TestManager_TimeoutIsDistinct(t *testing.T) {
	f := newFixture(t)
	git := newGatedGit()
	f.app.Git = git
	g := f.guardian(t, actor.WithCommandTimeout(50*time.Millisecond))
	t.Cleanup(git.Release)

	err := g.SubmitCommand(context.Background(), engine.SyncWorkflows{}, session("s"))
	require.Error(t, err)
	assert.True(t, domain.IsTimeout(err))
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrCallTimeout)
	assert.False(t, domain.IsValidation(err))
}

func TestProcessor_EmptyEventsDoNotWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := f.guardian(t)

	require.NoError(t, g.SubmitCommand(ctx, engine.DiscoverWorkflows{}, session("s")))
	n, err := f.store.HighestSequenceNr(ctx, "s")
	require.NoError(t, err)
	assert.Zero(t, n)
	ids, err := f.store.ListAggregates(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestProcessor_RecoversFromJournal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.PersistEvents(ctx, "s", []domain.Event{
		domain.NewEvent(domain.WorkflowDiscoveredEvent{Workflow: domain.Workflow{Name: "greet", Command: "echo"}}),
		// Does not apply to WorkflowsDiscovered and is skipped.
		domain.NewEvent(domain.WorkflowCompletedEvent{}),
	}))
	g := f.guardian(t)

	require.NoError(t, g.SubmitCommand(ctx, engine.SelectWorkflow{Workflow: "greet"}, session("s")))
	events, err := f.store.GetEvents(ctx, "s")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventWorkflowSelected, events[2].Event.Type())
}

func TestProcessor_RecoveryFallsBackToInitial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.app.Journal = brokenJournal{Journal: memory.NewJournal()}
	g := f.guardian(t)

	require.NoError(t, g.SubmitCommand(ctx, engine.GetCurrentLanguage{}, session("s")))
}

func TestProcessor_StrictRecoveryFailsSpawn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.app.Journal = brokenJournal{Journal: memory.NewJournal()}
	g := f.guardian(t, actor.WithStrictRecovery(true))

	err := g.SubmitCommand(ctx, engine.GetCurrentLanguage{}, session("s"))
	require.Error(t, err)
	assert.Equal(t, domain.KindRecovery, domain.KindOf(err))
	stats := g.Stats(ctx)
	assert.Zero(t, stats.TotalSessionsCreated)
	assert.Zero(t, stats.ActiveSessions)
}

func TestProcessor_PanicFailsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.writeWorkflow(t, "greet.yaml", greetYAML)
	f.app.Prompter = panickingPrompter{}
	g := f.guardian(t)

	require.NoError(t, g.SubmitCommand(ctx, engine.DiscoverWorkflows{}, session("s")))
	err := g.SubmitCommand(ctx, engine.SelectWorkflow{}, session("s"))
	require.Error(t, err)
	assert.Equal(t, domain.KindExecution, domain.KindOf(err))
	assert.Contains(t, err.Error(), "prompter exploded")

	assert.Eventually(t, func() bool {
		s := g.Stats(ctx)
		return s.TotalSessionsFailed == 1 && s.ActiveSessions == 0
	}, time.Second, 10*time.Millisecond)
	assert.InDelta(t, 0.0, g.Stats(ctx).SuccessRate, 0.001)

	// The session can be resumed by a fresh processor.
	require.NoError(t, g.SubmitCommand(ctx, engine.SelectWorkflow{Workflow: "greet"}, session("s")))
	assert.Equal(t, domain.PhaseWorkflowSelected, f.state(t, "s").Phase())
}

func TestProcessor_ScheduledCommandRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.app.Git = instantGit{}
	g := f.guardian(t)

	require.NoError(t, g.SubmitCommand(ctx, engine.SyncWorkflows{}, session("s")))
	assert.Eventually(t, func() bool {
		synced, ok := f.state(t, "s").(domain.WorkflowsSynced)
		return ok && synced.CommitID == "cafe" && synced.SyncedCount == 1
	}, time.Second, 10*time.Millisecond)
}

func TestProcessor_Tracing(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	f := newFixture(t)
	g := f.guardian(t, actor.WithTracerProvider(tp))

	require.NoError(t, g.SubmitCommand(context.Background(), engine.SetLanguage{Language: "es"}, session("s")))
	require.Error(t, g.SubmitCommand(context.Background(), engine.StartWorkflow{}, session("s")))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, observability.CommandSpanName, s.Name)
		assert.Contains(t, s.Attributes, attribute.String("wflow.session_id", "s"))
	}
	assert.Contains(t, spans[0].Attributes, attribute.String("wflow.command", "set-language"))
	assert.Contains(t, spans[0].Attributes, attribute.Int("wflow.events", 1))
	assert.Equal(t, "Error", spans[1].Status.Code.String())
}

func TestProcessor_Broadcasts(t *testing.T) {
	b := observability.NewBroadcaster(nil)
	sub, stop := b.Subscribe("s")
	defer stop()
	f := newFixture(t)
	g := f.guardian(t, actor.WithBroadcaster(b))

	require.NoError(t, g.SubmitCommand(context.Background(), engine.SetLanguage{Language: "es"}, session("s")))
	n := <-sub
	assert.Equal(t, domain.EventLanguageSet, n.Event.Type())
}

func TestManager_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	f := newFixture(t)
	g := f.guardian(t, actor.WithMetrics(observability.NewMetrics(reg)))

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.SubmitCommand(ctx, engine.ListLanguages{}, session(id)))
		}()
	}
	wg.Wait()

	expected := `
# HELP wflow_sessions_spawned_total Total number of session processors started
# TYPE wflow_sessions_spawned_total counter
wflow_sessions_spawned_total 3
# HELP wflow_sessions_active Number of running session processors
# TYPE wflow_sessions_active gauge
wflow_sessions_active 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"wflow_sessions_spawned_total", "wflow_sessions_active"))

	stats := g.Stats(ctx)
	assert.Equal(t, 3, stats.ActiveSessions)
	assert.EqualValues(t, 3, stats.TotalSessionsCreated)
	assert.EqualValues(t, 3, stats.TotalCommandsProcessed)
	assert.InDelta(t, 100.0, stats.SuccessRate, 0.001)
}

func TestManager_RequiresSessionID(t *testing.T) {
	f := newFixture(t)
	g := f.guardian(t)

	err := g.SubmitCommand(context.Background(), engine.ListLanguages{}, domain.WorkflowContext{})
	assert.True(t, domain.IsValidation(err))
}

func TestManager_StatsWithoutSessions(t *testing.T) {
	m := actor.NewManager(nil, newFixture(t).app)
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	stats, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, actor.SessionStats{SuccessRate: 100}, stats)

	require.NoError(t, m.Stop(context.Background()))
	_, err = m.Stats(context.Background())
	assert.ErrorIs(t, err, domain.ErrActorStopped)
}

func TestManager_StoppedManagerIsUnreachable(t *testing.T) {
	m := actor.NewManager(nil, newFixture(t).app)
	require.NoError(t, m.Stop(context.Background()))

	err := m.SubmitCommand(context.Background(), engine.ListLanguages{}, session("s"))
	require.Error(t, err)
	assert.Equal(t, domain.KindUnreachable, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrActorStopped)
	assert.True(t, domain.IsDelivery(err))
}

func TestManager_RecoveryDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	journal := newGatedReplayJournal(f.store, "slow")
	f.app.Journal = journal
	g := f.guardian(t)
	t.Cleanup(journal.Release)

	slow := make(chan error, 2)
	go func() { slow <- g.SubmitCommand(ctx, engine.SetLanguage{Language: "es"}, session("slow")) }()
	<-journal.replayed
	go func() { slow <- g.SubmitCommand(ctx, engine.SetLanguage{Language: "en"}, session("slow")) }()

	require.NoError(t, g.SubmitCommand(ctx, engine.SetLanguage{Language: "es"}, session("fast")))
	assert.Equal(t, domain.PhaseLanguageSet, f.state(t, "fast").Phase())
	assert.Zero(t, len(slow), "slow session answered before its recovery finished")

	journal.Release()
	require.NoError(t, <-slow)
	require.NoError(t, <-slow)
	assert.Empty(t, journal.replayed, "one recovery per session")
	assert.Equal(t, uint64(2), g.Stats(ctx).TotalSessionsCreated)
}
