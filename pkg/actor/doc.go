/*
Package actor runs commands under a small supervision tree.

	Guardian -> Manager -> Processor (one per session)

Every actor is a goroutine draining its own mailbox, one message at a time.
Request/response messages ("calls") carry a reply channel; notifications
("casts") never block the sender. Commands for one session are serialized by
its processor's mailbox, while different sessions run in parallel because the
manager waits for processor replies off its own goroutine.

A processor recovers its state by replaying the session journal, then runs each
command through load, validate, emit, fold, persist, commit and effect.
*/
package actor
