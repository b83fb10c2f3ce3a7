package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the note-curator pipeline.
var tracer = otel.Tracer("note-curator")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// Init installs a process-local tracer provider so pipeline spans are
// recorded (and samplable by any exporter wired in later). It returns a
// shutdown function for the entry point's defer.
func Init() func() {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("note-curator")

	return func() {
		_ = tp.Shutdown(context.Background())
	}
}
