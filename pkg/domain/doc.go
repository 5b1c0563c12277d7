/*
Package domain contains the core domain models of the wflow command core.

It defines the workflow definitions read from YAML, the phase-based WorkflowState,
the Events that move a session from one phase to the next, and the storage envelopes
used by journals. This package is kept pure and free of I/O: an Event applied to a
State is a deterministic function, which is what makes replay-based recovery safe.

# Key Entities

  - Workflow: A command template with arguments, parsed from a YAML file.
  - State: A closed set of phases; each variant carries only the data valid at that phase.
  - Event: An immutable fact with a pure Apply(State) -> (State, ok) transition.
  - AggregateEvent: The persisted envelope (sequence number + metadata) of an Event.
  - Error: The error taxonomy shared by the engine, the actors and the adapters.
*/
package domain
