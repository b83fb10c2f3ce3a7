// Package observability groups the logging, metrics and tracing support for
// the pipeline.
package observability
