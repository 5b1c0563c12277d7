package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

func TestSyncWorkflows_ClonesAndSchedulesResult(t *testing.T) {
	h := newHarness(t)
	h.settings.resourceURL = "git@example.com:team/vault.git"
	git := &fakeGit{commit: "c0ffee", files: map[string]string{
		"deploy.yaml": deployYAML,
		"greet.yaml":  greetYAML,
		"notes.txt":   "ignored",
	}}
	h.app.Git = git

	_, err := h.run(t, engine.SyncWorkflows{SSHKey: "/keys/id"})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSyncRequested, h.state.Phase())
	assert.Equal(t, "git@example.com:team/vault.git", git.url)
	assert.Equal(t, "main", git.opts.Branch)
	assert.Equal(t, "/keys/id", git.opts.SSHKey)
	require.Equal(t, []engine.Command{engine.RecordSyncResult{CommitID: "c0ffee"}}, h.scheduler.scheduled)

	_, err = h.run(t, h.scheduler.scheduled[0])
	require.NoError(t, err)
	synced, ok := h.state.(domain.WorkflowsSynced)
	require.True(t, ok, "got %T", h.state)
	assert.Equal(t, "c0ffee", synced.CommitID)
	assert.Equal(t, 2, synced.SyncedCount)
}

func TestSyncWorkflows_DefaultRemote(t *testing.T) {
	h := newHarness(t)
	git := &fakeGit{commit: "x"}
	h.app.Git = git

	_, err := h.run(t, engine.SyncWorkflows{})
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultRemoteURL, git.url)
}

func TestSyncWorkflows_NoGitClient(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, engine.SyncWorkflows{})
	require.Error(t, err)
	assert.Equal(t, domain.KindConfiguration, domain.KindOf(err))
}

func TestSetLanguage(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, engine.SetLanguage{Language: "es"})
	require.NoError(t, err)
	assert.Equal(t, "es", h.settings.Language())
	assert.Equal(t, domain.PhaseLanguageSet, h.state.Phase())

	_, err = h.run(t, engine.SetLanguage{Language: "klingon"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, "es", h.settings.Language())
}

func TestLanguageQueries(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, engine.GetCurrentLanguage{})
	require.NoError(t, err)
	assert.Equal(t, "en", h.state.(domain.CurrentLanguageRetrieved).Language)

	_, err = h.run(t, engine.ListLanguages{})
	require.NoError(t, err)
	assert.Equal(t, domain.AvailableLanguages(), h.state.(domain.AvailableLanguagesListed).Languages)
	assert.Contains(t, h.out.Lines(), "  * en")
}

func TestSetStorageBackend(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, engine.SetStorageBackend{Backend: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", h.settings.StorageBackend())

	_, err = h.run(t, engine.SetStorageBackend{Backend: "floppy"})
	assert.True(t, domain.IsValidation(err))
}

func TestAdminCommands(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.app.EventStore.StoreEvents(ctx, "other", []domain.Event{
		domain.NewEvent(domain.LanguageSetEvent{Language: "en"}),
		domain.NewEvent(domain.LanguageSetEvent{Language: "es"}),
		domain.NewEvent(domain.LanguageSetEvent{Language: "en"}),
	}))

	_, err := h.run(t, engine.ListAggregates{})
	require.NoError(t, err)
	assert.Contains(t, h.out.Lines(), "  other")
	assert.Equal(t, domain.PhaseInitial, h.state.Phase(), "admin events leave state untouched")

	_, err = h.run(t, engine.ReplayAggregate{ID: "other"})
	require.NoError(t, err)
	assert.Contains(t, h.out.Lines(), "Aggregate other is in state LanguageSet")

	_, err = h.run(t, engine.PurgeAggregate{ID: "other", ToSequence: 2})
	require.NoError(t, err)
	n, err := h.app.Journal.HighestSequenceNr(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	_, err = h.run(t, engine.PurgeAggregate{ID: "other", ToSequence: 5})
	assert.True(t, domain.IsValidation(err))

	_, err = h.run(t, engine.PurgeAggregate{ID: "other"})
	require.NoError(t, err)
	n, err = h.app.Journal.HighestSequenceNr(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = h.run(t, engine.ReplayAggregate{ID: "other"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
