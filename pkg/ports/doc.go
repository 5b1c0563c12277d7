/*
Package ports defines the driven ports (interfaces) of the wflow command core.

These interfaces decouple the engine and the actors from concrete implementations,
allowing the same core to run against different journal backends and different
terminal or git integrations.

# Key Interfaces

  - Journal: Per-session append-only event log used for actor recovery.
  - EventStore: System-wide query surface (list aggregates, replay, derive state).
  - GitClient, ShellRunner, Clipboard: External processes used by command effects.
  - Prompter, Renderer: Terminal interaction.
  - Settings: Persistent user preferences (language, resource URL, backend).
  - DistributedLocker: Cross-process locking for shared journal backends.
*/
package ports
