package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/internal/xjson"
)

func wf(name string) Workflow {
	return Workflow{Name: name, Command: "echo " + name}
}

func discovered(names ...string) WorkflowsDiscovered {
	s := WorkflowsDiscovered{}
	for _, n := range names {
		s.Workflows = append(s.Workflows, wf(n))
	}
	return s
}

func TestEvent_Apply_Transitions(t *testing.T) {
	selected := WorkflowSelected{Workflows: []Workflow{wf("A")}, Selected: wf("A")}
	started := WorkflowStarted{Workflows: []Workflow{wf("A")}, Selected: wf("A"), ExecutionID: "exec-1"}
	resolved := WorkflowArgumentsResolved{Workflows: []Workflow{wf("A")}, Selected: wf("A"), ExecutionID: "exec-1", Arguments: map[string]string{"x": "1"}}

	tests := []struct {
		name      string
		from      State
		data      EventData
		wantOK    bool
		wantPhase Phase
	}{
		{"discover from initial", Initial{}, WorkflowDiscoveredEvent{Workflow: wf("A")}, true, PhaseWorkflowsDiscovered},
		{"discover from discovered", discovered("A"), WorkflowDiscoveredEvent{Workflow: wf("B")}, true, PhaseWorkflowsDiscovered},
		{"discover from selected", selected, WorkflowDiscoveredEvent{Workflow: wf("B")}, false, ""},
		{"list from discovered", discovered("A"), AvailableWorkflowsListedEvent{}, true, PhaseWorkflowsListed},
		{"list from initial", Initial{}, AvailableWorkflowsListedEvent{}, true, PhaseWorkflowsListed},
		{"list from started", started, AvailableWorkflowsListedEvent{}, false, ""},
		{"select known", discovered("A", "B"), WorkflowSelectedEvent{Workflow: wf("B")}, true, PhaseWorkflowSelected},
		{"select unknown", discovered("A", "B"), WorkflowSelectedEvent{Workflow: wf("C")}, false, ""},
		{"select from initial", Initial{}, WorkflowSelectedEvent{Workflow: wf("A")}, false, ""},
		{"start from selected", selected, WorkflowStartedEvent{ExecutionID: "e"}, true, PhaseWorkflowStarted},
		{"start from discovered", discovered("A"), WorkflowStartedEvent{}, false, ""},
		{"resolve from started", started, WorkflowArgumentsResolvedEvent{}, true, PhaseWorkflowArgumentsResolved},
		{"resolve from selected", selected, WorkflowArgumentsResolvedEvent{}, false, ""},
		{"complete from resolved", resolved, WorkflowCompletedEvent{}, true, PhaseWorkflowCompleted},
		{"complete from started", started, WorkflowCompletedEvent{}, false, ""},
		{"sync requested from anywhere", resolved, SyncRequestedEvent{RemoteURL: "u", Branch: "main"}, true, PhaseSyncRequested},
		{"synced from requested", SyncRequested{}, WorkflowsSyncedEvent{CommitID: "abc"}, true, PhaseWorkflowsSynced},
		{"synced without request", Initial{}, WorkflowsSyncedEvent{CommitID: "abc"}, false, ""},
		{"language set from anywhere", started, LanguageSetEvent{Language: "es"}, true, PhaseLanguageSet},
		{"language retrieved", Initial{}, CurrentLanguageRetrievedEvent{Language: "en"}, true, PhaseCurrentLanguageRetrieved},
		{"languages listed", selected, AvailableLanguagesListedEvent{Languages: []string{"en"}}, true, PhaseAvailableLanguagesListed},
		{"backend set", Initial{}, StorageBackendSetEvent{Backend: "badger"}, true, PhaseStorageBackendSet},
		{"aggregates listed keeps state", started, AggregatesListedEvent{}, true, PhaseWorkflowStarted},
		{"aggregate replayed keeps state", Initial{}, AggregateReplayedEvent{}, true, PhaseInitial},
		{"aggregate purged keeps state", selected, AggregatePurgedEvent{}, true, PhaseWorkflowSelected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := NewEvent(tt.data).Apply(tt.from)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.NotNil(t, next)
				assert.Equal(t, tt.wantPhase, next.Phase())
			} else {
				assert.Nil(t, next)
			}
		})
	}
}

func TestEvent_Apply_DuplicateDiscoveryIsIgnored(t *testing.T) {
	ev := NewEvent(WorkflowDiscoveredEvent{Workflow: wf("A")})

	s, _, ok := Fold(Initial{}, []Event{ev, ev})
	require.True(t, ok)

	st, isDiscovered := s.(WorkflowsDiscovered)
	require.True(t, isDiscovered)
	assert.Len(t, st.Workflows, 1)
}

func TestEvent_Apply_DoesNotMutatePredecessor(t *testing.T) {
	before := discovered("A")
	next, ok := NewEvent(WorkflowDiscoveredEvent{Workflow: wf("B")}).Apply(before)
	require.True(t, ok)

	assert.Len(t, before.Workflows, 1)
	assert.Len(t, next.(WorkflowsDiscovered).Workflows, 2)
}

func TestFold_FullWorkflowRun(t *testing.T) {
	events := []Event{
		NewEvent(WorkflowDiscoveredEvent{Workflow: wf("A")}),
		NewEvent(WorkflowSelectedEvent{Workflow: wf("A"), User: "alice"}),
		NewEvent(WorkflowStartedEvent{User: "alice", Hostname: "box", ExecutionID: "exec-1"}),
		NewEvent(WorkflowArgumentsResolvedEvent{Arguments: map[string]string{"x": "1"}}),
		NewEvent(WorkflowCompletedEvent{}),
	}

	s, idx, ok := Fold(nil, events)
	require.True(t, ok)
	assert.Equal(t, -1, idx)

	done, isDone := s.(WorkflowCompleted)
	require.True(t, isDone)
	assert.Equal(t, "A", done.Completed.Name)
	assert.Equal(t, "1", done.Arguments["x"])
	assert.Equal(t, "exec-1", done.ExecutionID)

	// Replaying the same log yields the same state.
	again, _, ok := Fold(InitialState(), events)
	require.True(t, ok)
	assert.Equal(t, s, again)
}

func TestFold_StopsAtInvalidEvent(t *testing.T) {
	events := []Event{
		NewEvent(WorkflowDiscoveredEvent{Workflow: wf("A")}),
		NewEvent(WorkflowDiscoveredEvent{Workflow: wf("B")}),
		NewEvent(WorkflowSelectedEvent{Workflow: wf("C")}),
		NewEvent(WorkflowStartedEvent{}),
	}

	s, idx, ok := Fold(Initial{}, events)
	assert.False(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, PhaseWorkflowsDiscovered, s.Phase())
	assert.Len(t, s.(WorkflowsDiscovered).Workflows, 2)
}

func TestEvent_JSONRoundTripKeepsPayloadKind(t *testing.T) {
	orig := NewEvent(WorkflowArgumentsResolvedEvent{Arguments: map[string]string{"ns": "default"}})

	data, err := xjson.Marshal(orig)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"workflow_arguments_resolved"`)

	var decoded Event
	require.NoError(t, xjson.Unmarshal(data, &decoded))
	assert.Equal(t, orig.ID, decoded.ID)
	assert.True(t, orig.Timestamp.Equal(decoded.Timestamp))

	payload, ok := decoded.Data.(WorkflowArgumentsResolvedEvent)
	require.True(t, ok)
	assert.Equal(t, "default", payload.Arguments["ns"])
}

func TestEvent_UnmarshalUnknownType(t *testing.T) {
	var ev Event
	err := xjson.Unmarshal([]byte(`{"event_id":"1","type":"nope","data":{}}`), &ev)
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestMarshalState(t *testing.T) {
	data, err := MarshalState(LanguageSet{Language: "es"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"phase": "LanguageSet"`)
	assert.Contains(t, string(data), `"language": "es"`)
}
