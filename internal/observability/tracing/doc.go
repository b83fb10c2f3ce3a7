// Package tracing exposes the OpenTelemetry tracer used to span the batch
// phases (collect, stream, publish).
package tracing
