package engine

import (
	"context"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/ports"
)

const (
	// DefaultRemoteURL is the workflow vault used when neither the command nor the
	// settings name one.
	DefaultRemoteURL = "git@github.com:sagoez/workflow-vault.git"
	DefaultBranch    = "main"
)

// SyncWorkflows replaces the workflows directory with a remote repository.
// The clone happens in the effect phase, which then schedules RecordSyncResult.
type SyncWorkflows struct {
	SSHKey    string `json:"ssh_key,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

func (SyncWorkflows) Name() string { return "sync-workflows" }
func (SyncWorkflows) isCommand()   {}

type syncTarget struct {
	url    string
	branch string
	sshKey string
}

func (c SyncWorkflows) load(_ context.Context, ec *Context, _ domain.State) (syncTarget, error) {
	t := syncTarget{url: c.RemoteURL, branch: c.Branch, sshKey: c.SSHKey}
	if t.url == "" && ec.App.Settings != nil {
		t.url = ec.App.Settings.ResourceURL()
	}
	if t.url == "" {
		t.url = DefaultRemoteURL
	}
	if t.branch == "" {
		t.branch = DefaultBranch
	}
	return t, nil
}

func (SyncWorkflows) validate(t syncTarget) error {
	if t.url == "" {
		return domain.ValidationError("remote url is required")
	}
	return nil
}

func (SyncWorkflows) emit(_ context.Context, _ *Context, _ domain.State, t syncTarget) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.SyncRequestedEvent{
		RemoteURL: t.url,
		Branch:    t.branch,
		SSHKey:    t.sshKey,
	})}, nil
}

func (SyncWorkflows) effect(ctx context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.SyncRequested)
	if !ok {
		ec.render().Warning("sync was not requested")
		return nil
	}
	settings, err := ec.App.settings()
	if err != nil {
		return err
	}
	if ec.App.Git == nil {
		return missing("git client")
	}

	commit, err := ec.App.Git.CloneRepository(ctx, st.RemoteURL, settings.WorkflowsDir(), ports.CloneOptions{
		SSHKey: st.SSHKey,
		Branch: st.Branch,
	})
	if err != nil {
		return domain.WrapError(domain.KindNetwork, "clone "+st.RemoteURL, err)
	}
	ec.render().Success("Synced workflows from %s", st.RemoteURL)
	return ec.ScheduleCommand(RecordSyncResult{CommitID: commit})
}

// RecordSyncResult records the outcome of a finished clone.
type RecordSyncResult struct {
	CommitID string `json:"commit_id"`
}

func (RecordSyncResult) Name() string { return "record-sync-result" }
func (RecordSyncResult) isCommand()   {}

type syncResult struct {
	request domain.SyncRequested
	commit  string
	count   int
}

func (c RecordSyncResult) load(_ context.Context, ec *Context, s domain.State) (syncResult, error) {
	st, ok := s.(domain.SyncRequested)
	if !ok {
		return syncResult{}, domain.ValidationError("cannot record sync results: no sync was requested (state %s)", s.Phase())
	}
	settings, err := ec.App.settings()
	if err != nil {
		return syncResult{}, err
	}
	n, err := countWorkflowFiles(settings.WorkflowsDir())
	if err != nil {
		return syncResult{}, err
	}
	return syncResult{request: st, commit: c.CommitID, count: n}, nil
}

func (RecordSyncResult) validate(syncResult) error { return nil }

func (RecordSyncResult) emit(_ context.Context, _ *Context, _ domain.State, r syncResult) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.WorkflowsSyncedEvent{
		RemoteURL:   r.request.RemoteURL,
		Branch:      r.request.Branch,
		CommitID:    r.commit,
		SyncedCount: r.count,
	})}, nil
}

func (RecordSyncResult) effect(_ context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.WorkflowsSynced)
	if !ok {
		ec.render().Warning("no workflows synced")
		return nil
	}
	r := ec.render()
	r.Message("Remote: %s", st.RemoteURL)
	r.Message("Branch: %s", st.Branch)
	r.Message("Commit: %s", st.CommitID)
	r.Message("Workflows: %d", st.SyncedCount)
	return nil
}
