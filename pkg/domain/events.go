package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/wflow/internal/xjson"
)

// EventType is the wire discriminator of an event payload.
type EventType string

const (
	EventWorkflowDiscovered        EventType = "workflow_discovered"
	EventAvailableWorkflowsListed  EventType = "available_workflows_listed"
	EventWorkflowSelected          EventType = "workflow_selected"
	EventWorkflowStarted           EventType = "workflow_started"
	EventWorkflowArgumentsResolved EventType = "workflow_arguments_resolved"
	EventWorkflowCompleted         EventType = "workflow_completed"
	EventSyncRequested             EventType = "sync_requested"
	EventWorkflowsSynced           EventType = "workflows_synced"
	EventLanguageSet               EventType = "language_set"
	EventCurrentLanguageRetrieved  EventType = "current_language_retrieved"
	EventAvailableLanguagesListed  EventType = "available_languages_listed"
	EventStorageBackendSet         EventType = "storage_backend_set"
	EventAggregatesListed          EventType = "aggregates_listed"
	EventAggregateReplayed         EventType = "aggregate_replayed"
	EventAggregatePurged           EventType = "aggregate_purged"
)

// EventData is the kind-specific payload of an Event.
// The set is closed: apply is unexported, so only this package defines payloads.
type EventData interface {
	EventType() EventType
	// apply returns the successor of s, or false when s is not a valid predecessor.
	apply(s State, at time.Time) (State, bool)
}

// Event is an immutable fact about a session.
type Event struct {
	ID        string
	Timestamp time.Time
	Data      EventData
}

// NewEvent stamps data with a fresh id and the current time.
func NewEvent(data EventData) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Type returns the payload discriminator.
func (e Event) Type() EventType {
	if e.Data == nil {
		return ""
	}
	return e.Data.EventType()
}

// Apply transitions s. It never mutates s.
func (e Event) Apply(s State) (State, bool) {
	if e.Data == nil {
		return nil, false
	}
	if s == nil {
		s = InitialState()
	}
	return e.Data.apply(s, e.Timestamp)
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s)", e.Type(), e.ID)
}

// Fold applies events in order starting at s.
// On an invalid transition it returns the last valid state, the index of the
// rejected event and false.
func Fold(s State, events []Event) (State, int, bool) {
	if s == nil {
		s = InitialState()
	}
	for i, ev := range events {
		next, ok := ev.Apply(s)
		if !ok {
			return s, i, false
		}
		s = next
	}
	return s, -1, true
}

// --- Workflow progress ---

// WorkflowDiscoveredEvent is emitted once per workflow file found.
type WorkflowDiscoveredEvent struct {
	Workflow Workflow `json:"workflow"`
	FilePath string   `json:"file_path"`
}

func (WorkflowDiscoveredEvent) EventType() EventType { return EventWorkflowDiscovered }

func (e WorkflowDiscoveredEvent) apply(s State, _ time.Time) (State, bool) {
	switch st := s.(type) {
	case Initial:
		return WorkflowsDiscovered{Workflows: []Workflow{e.Workflow.Clone()}}, true
	case WorkflowsDiscovered:
		if _, dup := FindWorkflow(st.Workflows, e.Workflow.Name); dup {
			return WorkflowsDiscovered{Workflows: slices.Clone(st.Workflows)}, true
		}
		return WorkflowsDiscovered{Workflows: append(slices.Clone(st.Workflows), e.Workflow.Clone())}, true
	}
	return nil, false
}

type AvailableWorkflowsListedEvent struct {
	Workflows []string `json:"workflows"`
}

func (AvailableWorkflowsListedEvent) EventType() EventType { return EventAvailableWorkflowsListed }

func (e AvailableWorkflowsListedEvent) apply(s State, _ time.Time) (State, bool) {
	switch st := s.(type) {
	case WorkflowsDiscovered:
		return WorkflowsListed{Workflows: slices.Clone(st.Workflows)}, true
	case Initial:
		return WorkflowsListed{Workflows: []Workflow{}}, true
	}
	return nil, false
}

type WorkflowSelectedEvent struct {
	Workflow Workflow `json:"workflow"`
	User     string   `json:"user"`
}

func (WorkflowSelectedEvent) EventType() EventType { return EventWorkflowSelected }

func (e WorkflowSelectedEvent) apply(s State, _ time.Time) (State, bool) {
	st, ok := s.(WorkflowsDiscovered)
	if !ok {
		return nil, false
	}
	if _, found := FindWorkflow(st.Workflows, e.Workflow.Name); !found {
		return nil, false
	}
	return WorkflowSelected{
		Workflows: slices.Clone(st.Workflows),
		Selected:  e.Workflow.Clone(),
	}, true
}

type WorkflowStartedEvent struct {
	User        string `json:"user"`
	Hostname    string `json:"hostname"`
	ExecutionID string `json:"execution_id"`
}

func (WorkflowStartedEvent) EventType() EventType { return EventWorkflowStarted }

func (e WorkflowStartedEvent) apply(s State, _ time.Time) (State, bool) {
	st, ok := s.(WorkflowSelected)
	if !ok {
		return nil, false
	}
	return WorkflowStarted{
		Workflows:   slices.Clone(st.Workflows),
		Selected:    st.Selected.Clone(),
		ExecutionID: e.ExecutionID,
	}, true
}

type WorkflowArgumentsResolvedEvent struct {
	Arguments map[string]string `json:"arguments"`
}

func (WorkflowArgumentsResolvedEvent) EventType() EventType { return EventWorkflowArgumentsResolved }

func (e WorkflowArgumentsResolvedEvent) apply(s State, _ time.Time) (State, bool) {
	st, ok := s.(WorkflowStarted)
	if !ok {
		return nil, false
	}
	args := maps.Clone(e.Arguments)
	if args == nil {
		args = map[string]string{}
	}
	return WorkflowArgumentsResolved{
		Workflows:   slices.Clone(st.Workflows),
		Selected:    st.Selected.Clone(),
		ExecutionID: st.ExecutionID,
		Arguments:   args,
	}, true
}

type WorkflowCompletedEvent struct{}

func (WorkflowCompletedEvent) EventType() EventType { return EventWorkflowCompleted }

func (WorkflowCompletedEvent) apply(s State, _ time.Time) (State, bool) {
	st, ok := s.(WorkflowArgumentsResolved)
	if !ok {
		return nil, false
	}
	return WorkflowCompleted{
		Workflows:   slices.Clone(st.Workflows),
		Completed:   st.Selected.Clone(),
		ExecutionID: st.ExecutionID,
		Arguments:   maps.Clone(st.Arguments),
	}, true
}

// --- Sync ---

// SyncRequestedEvent records intent only; the clone happens in the effect phase.
type SyncRequestedEvent struct {
	RemoteURL string `json:"remote_url"`
	Branch    string `json:"branch"`
	SSHKey    string `json:"ssh_key,omitempty"`
}

func (SyncRequestedEvent) EventType() EventType { return EventSyncRequested }

func (e SyncRequestedEvent) apply(_ State, _ time.Time) (State, bool) {
	return SyncRequested{RemoteURL: e.RemoteURL, Branch: e.Branch, SSHKey: e.SSHKey}, true
}

type WorkflowsSyncedEvent struct {
	RemoteURL   string `json:"remote_url"`
	Branch      string `json:"branch"`
	CommitID    string `json:"commit_id"`
	SyncedCount int    `json:"synced_count"`
}

func (WorkflowsSyncedEvent) EventType() EventType { return EventWorkflowsSynced }

func (e WorkflowsSyncedEvent) apply(s State, at time.Time) (State, bool) {
	if _, ok := s.(SyncRequested); !ok {
		return nil, false
	}
	return WorkflowsSynced{
		RemoteURL:   e.RemoteURL,
		Branch:      e.Branch,
		CommitID:    e.CommitID,
		SyncedCount: e.SyncedCount,
		SyncedAt:    at,
	}, true
}

// --- Settings (reachable from any state) ---

type LanguageSetEvent struct {
	Language string `json:"language"`
}

func (LanguageSetEvent) EventType() EventType { return EventLanguageSet }

func (e LanguageSetEvent) apply(_ State, at time.Time) (State, bool) {
	return LanguageSet{Language: e.Language, SetAt: at}, true
}

type CurrentLanguageRetrievedEvent struct {
	Language string `json:"language"`
}

func (CurrentLanguageRetrievedEvent) EventType() EventType { return EventCurrentLanguageRetrieved }

func (e CurrentLanguageRetrievedEvent) apply(_ State, at time.Time) (State, bool) {
	return CurrentLanguageRetrieved{Language: e.Language, RetrievedAt: at}, true
}

type AvailableLanguagesListedEvent struct {
	Languages []string `json:"languages"`
}

func (AvailableLanguagesListedEvent) EventType() EventType { return EventAvailableLanguagesListed }

func (e AvailableLanguagesListedEvent) apply(_ State, at time.Time) (State, bool) {
	return AvailableLanguagesListed{Languages: slices.Clone(e.Languages), ListedAt: at}, true
}

type StorageBackendSetEvent struct {
	Backend string `json:"backend"`
}

func (StorageBackendSetEvent) EventType() EventType { return EventStorageBackendSet }

func (e StorageBackendSetEvent) apply(_ State, at time.Time) (State, bool) {
	return StorageBackendSet{Backend: e.Backend, SetAt: at}, true
}

// --- Administrative (state is left untouched) ---

type AggregatesListedEvent struct {
	AggregateIDs   []string `json:"aggregate_ids"`
	AggregateCount int      `json:"aggregate_count"`
}

func (AggregatesListedEvent) EventType() EventType { return EventAggregatesListed }

func (AggregatesListedEvent) apply(s State, _ time.Time) (State, bool) { return s, true }

type AggregateReplayedEvent struct {
	AggregateID string `json:"aggregate_id"`
	EventsCount int    `json:"events_count"`
}

func (AggregateReplayedEvent) EventType() EventType { return EventAggregateReplayed }

func (AggregateReplayedEvent) apply(s State, _ time.Time) (State, bool) { return s, true }

type AggregatePurgedEvent struct {
	AggregateID string `json:"aggregate_id"`
	ToSequence  uint64 `json:"to_sequence"`
}

func (AggregatePurgedEvent) EventType() EventType { return EventAggregatePurged }

func (AggregatePurgedEvent) apply(s State, _ time.Time) (State, bool) { return s, true }

// --- Serialization ---

type eventWire struct {
	ID        string           `json:"event_id"`
	Timestamp time.Time        `json:"timestamp"`
	Type      EventType        `json:"type"`
	Data      xjson.RawMessage `json:"data"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Data == nil {
		return nil, fmt.Errorf("event %s has no payload", e.ID)
	}
	data, err := xjson.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return xjson.Marshal(eventWire{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Type:      e.Data.EventType(),
		Data:      data,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var wire eventWire
	if err := xjson.Unmarshal(b, &wire); err != nil {
		return err
	}
	data, err := decodeEventData(wire.Type, wire.Data)
	if err != nil {
		return err
	}
	e.ID = wire.ID
	e.Timestamp = wire.Timestamp
	e.Data = data
	return nil
}

func decodeEventData(t EventType, raw []byte) (EventData, error) {
	switch t {
	case EventWorkflowDiscovered:
		return decodeAs[WorkflowDiscoveredEvent](raw)
	case EventAvailableWorkflowsListed:
		return decodeAs[AvailableWorkflowsListedEvent](raw)
	case EventWorkflowSelected:
		return decodeAs[WorkflowSelectedEvent](raw)
	case EventWorkflowStarted:
		return decodeAs[WorkflowStartedEvent](raw)
	case EventWorkflowArgumentsResolved:
		return decodeAs[WorkflowArgumentsResolvedEvent](raw)
	case EventWorkflowCompleted:
		return decodeAs[WorkflowCompletedEvent](raw)
	case EventSyncRequested:
		return decodeAs[SyncRequestedEvent](raw)
	case EventWorkflowsSynced:
		return decodeAs[WorkflowsSyncedEvent](raw)
	case EventLanguageSet:
		return decodeAs[LanguageSetEvent](raw)
	case EventCurrentLanguageRetrieved:
		return decodeAs[CurrentLanguageRetrievedEvent](raw)
	case EventAvailableLanguagesListed:
		return decodeAs[AvailableLanguagesListedEvent](raw)
	case EventStorageBackendSet:
		return decodeAs[StorageBackendSetEvent](raw)
	case EventAggregatesListed:
		return decodeAs[AggregatesListedEvent](raw)
	case EventAggregateReplayed:
		return decodeAs[AggregateReplayedEvent](raw)
	case EventAggregatePurged:
		return decodeAs[AggregatePurgedEvent](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
}

func decodeAs[T EventData](raw []byte) (EventData, error) {
	var v T
	if len(raw) > 0 && string(raw) != "null" {
		if err := xjson.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}
