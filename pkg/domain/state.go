package domain

import (
	"time"

	"github.com/aretw0/wflow/internal/xjson"
)

// Phase names a WorkflowState variant.
type Phase string

const (
	PhaseInitial                   Phase = "Initial"
	PhaseWorkflowsDiscovered       Phase = "WorkflowsDiscovered"
	PhaseWorkflowsListed           Phase = "WorkflowsListed"
	PhaseWorkflowSelected          Phase = "WorkflowSelected"
	PhaseWorkflowStarted           Phase = "WorkflowStarted"
	PhaseWorkflowArgumentsResolved Phase = "WorkflowArgumentsResolved"
	PhaseWorkflowCompleted         Phase = "WorkflowCompleted"
	PhaseSyncRequested             Phase = "SyncRequested"
	PhaseWorkflowsSynced           Phase = "WorkflowsSynced"
	PhaseLanguageSet               Phase = "LanguageSet"
	PhaseCurrentLanguageRetrieved  Phase = "CurrentLanguageRetrieved"
	PhaseAvailableLanguagesListed  Phase = "AvailableLanguagesListed"
	PhaseStorageBackendSet         Phase = "StorageBackendSet"
)

// State is the phase-based state of a session.
// The set of variants is closed: only the types in this file implement it.
// States are values; a new State is only ever produced by Event.Apply.
type State interface {
	Phase() Phase
	isState()
}

// Initial is the state of a session with no applied events.
type Initial struct{}

// WorkflowsDiscovered holds the workflows found on disk.
type WorkflowsDiscovered struct {
	Workflows []Workflow `json:"discovered_workflows"`
}

// WorkflowsListed holds the workflows shown to the user.
type WorkflowsListed struct {
	Workflows []Workflow `json:"discovered_workflows"`
}

// WorkflowSelected holds the chosen workflow next to the full discovered list.
type WorkflowSelected struct {
	Workflows []Workflow `json:"discovered_workflows"`
	Selected  Workflow   `json:"selected_workflow"`
}

// WorkflowStarted adds the execution id of the run.
type WorkflowStarted struct {
	Workflows   []Workflow `json:"discovered_workflows"`
	Selected    Workflow   `json:"selected_workflow"`
	ExecutionID string     `json:"execution_id"`
}

// WorkflowArgumentsResolved adds the values of every argument.
type WorkflowArgumentsResolved struct {
	Workflows   []Workflow        `json:"discovered_workflows"`
	Selected    Workflow          `json:"selected_workflow"`
	ExecutionID string            `json:"execution_id"`
	Arguments   map[string]string `json:"resolved_arguments"`
}

// WorkflowCompleted is the terminal state of a workflow run.
type WorkflowCompleted struct {
	Workflows   []Workflow        `json:"discovered_workflows"`
	Completed   Workflow          `json:"completed_workflow"`
	ExecutionID string            `json:"execution_id"`
	Arguments   map[string]string `json:"resolved_arguments"`
}

// SyncRequested records the intent to fetch workflows from a remote.
type SyncRequested struct {
	RemoteURL string `json:"remote_url"`
	Branch    string `json:"branch"`
	SSHKey    string `json:"ssh_key,omitempty"`
}

// WorkflowsSynced records a finished sync.
type WorkflowsSynced struct {
	RemoteURL   string    `json:"remote_url"`
	Branch      string    `json:"branch"`
	CommitID    string    `json:"commit_id"`
	SyncedCount int       `json:"synced_count"`
	SyncedAt    time.Time `json:"synced_at"`
}

type LanguageSet struct {
	Language string    `json:"language"`
	SetAt    time.Time `json:"set_at"`
}

type CurrentLanguageRetrieved struct {
	Language    string    `json:"language"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

type AvailableLanguagesListed struct {
	Languages []string  `json:"languages"`
	ListedAt  time.Time `json:"listed_at"`
}

// StorageBackendSet records a change of the configured journal backend.
// The change applies to the next process start.
type StorageBackendSet struct {
	Backend string    `json:"backend"`
	SetAt   time.Time `json:"set_at"`
}

func (Initial) Phase() Phase                   { return PhaseInitial }
func (WorkflowsDiscovered) Phase() Phase       { return PhaseWorkflowsDiscovered }
func (WorkflowsListed) Phase() Phase           { return PhaseWorkflowsListed }
func (WorkflowSelected) Phase() Phase          { return PhaseWorkflowSelected }
func (WorkflowStarted) Phase() Phase           { return PhaseWorkflowStarted }
func (WorkflowArgumentsResolved) Phase() Phase { return PhaseWorkflowArgumentsResolved }
func (WorkflowCompleted) Phase() Phase         { return PhaseWorkflowCompleted }
func (SyncRequested) Phase() Phase             { return PhaseSyncRequested }
func (WorkflowsSynced) Phase() Phase           { return PhaseWorkflowsSynced }
func (LanguageSet) Phase() Phase               { return PhaseLanguageSet }
func (CurrentLanguageRetrieved) Phase() Phase  { return PhaseCurrentLanguageRetrieved }
func (AvailableLanguagesListed) Phase() Phase  { return PhaseAvailableLanguagesListed }
func (StorageBackendSet) Phase() Phase         { return PhaseStorageBackendSet }

func (Initial) isState()                   {}
func (WorkflowsDiscovered) isState()       {}
func (WorkflowsListed) isState()           {}
func (WorkflowSelected) isState()          {}
func (WorkflowStarted) isState()           {}
func (WorkflowArgumentsResolved) isState() {}
func (WorkflowCompleted) isState()         {}
func (SyncRequested) isState()             {}
func (WorkflowsSynced) isState()           {}
func (LanguageSet) isState()               {}
func (CurrentLanguageRetrieved) isState()  {}
func (AvailableLanguagesListed) isState()  {}
func (StorageBackendSet) isState()         {}

// InitialState returns the default state of a fresh session.
func InitialState() State {
	return Initial{}
}

// DiscoveredWorkflows returns the discovered list carried by s, if the phase has one.
func DiscoveredWorkflows(s State) ([]Workflow, bool) {
	switch st := s.(type) {
	case WorkflowsDiscovered:
		return st.Workflows, true
	case WorkflowsListed:
		return st.Workflows, true
	case WorkflowSelected:
		return st.Workflows, true
	case WorkflowStarted:
		return st.Workflows, true
	case WorkflowArgumentsResolved:
		return st.Workflows, true
	case WorkflowCompleted:
		return st.Workflows, true
	}
	return nil, false
}

type stateEnvelope struct {
	Phase Phase `json:"phase"`
	Data  State `json:"data"`
}

// MarshalState renders a state as {"phase": ..., "data": ...}.
func MarshalState(s State) ([]byte, error) {
	if s == nil {
		s = InitialState()
	}
	return xjson.MarshalIndent(stateEnvelope{Phase: s.Phase(), Data: s}, "", "  ")
}
