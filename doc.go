/*
Package wflow is an actor-supervised, event-sourced core for running command
workflows: YAML templates with {{placeholders}} that are discovered, selected,
resolved interactively and rendered into a shell command.

# Architecture

Every user action is a Command submitted to a session. Commands travel down a
small supervision tree:

	Guardian -> Manager -> Processor (one per session) -> Engine

A Processor owns the state of one session. It runs each command through four
phases (load, validate, emit, effect), folds the emitted events into the
session state, persists them to the Journal and only then runs the side effect.
Because every state change is an event, a restarted session recovers by
replaying its journal.

# Storage

The Journal is pluggable: memory, badger (one list per session or one key per
event with time and type indexes), redis, one JSON file per session, or sqlite.
Records can be sealed with AES-GCM by setting storage.encryption_key.

# Usage

	settings := config.NewFileSettings(path, cfg)
	sys, err := wflow.Start(ctx, settings, wflow.WithLogger(logger))
	if err != nil {
		return err
	}
	defer sys.Close(ctx)

	wc := domain.NewWorkflowContext()
	err = sys.Run(ctx, wc, wflow.WorkflowFlow("deploy", nil)...)

The admin API (health, stats, Prometheus metrics, stored aggregates and a
server-sent event stream) is available through System.AdminHandler.
*/
package wflow
