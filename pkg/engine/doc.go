/*
Package engine turns commands into events.

Every user action is a Command. A Command runs through four phases:

  - load gathers what the command needs (files, prompts, prior state),
  - validate checks the loaded data without side effects,
  - emit describes the resulting state changes as events,
  - effect performs side effects once the new state is committed.

The Engine drives load, validate and emit (ProcessCommand), folds events into a new
state (HandleEvents) and runs the effect phase (Effect). Persistence and ordering are
the caller's job; see package actor.

The command set is closed. Each command carries its own typed loaded data and the
Engine dispatches on the concrete command type.
*/
package engine
