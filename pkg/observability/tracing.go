package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies the spans emitted by wflow.
const InstrumentationName = "github.com/aretw0/wflow"

// CommandSpanName is the span wrapped around every processed command.
const CommandSpanName = "wflow.command"

// Tracer returns the wflow tracer of tp, or of the global provider when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}
