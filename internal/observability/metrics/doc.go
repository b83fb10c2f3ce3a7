// Package metrics exposes Prometheus instrumentation for the curation
// pipeline: collection, detail fetching, evaluation, rate-limit waits and
// batch outcomes. Metrics are registered on the default registry via
// promauto and served by cmd/worker's metrics endpoint.
package metrics
