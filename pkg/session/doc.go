/*
Package session implements per-session concurrency control for shared journals.

Actors already serialize the commands of one session, but a journal handle is shared
by every processor (and, for network backends, by every process). Journals whose
appends are read-modify-write use a Locks table to keep those appends atomic per
persistence id, optionally extended across processes by a DistributedLocker.
*/
package session
