/*
Package observability provides tools for monitoring the wflow actor system.

It includes Prometheus collectors for sessions and commands, the OpenTelemetry
tracer used for per-command spans, and a Broadcaster that streams committed events
to live subscribers such as the admin server.
*/
package observability
