// Package metrics provides centralized Prometheus metrics for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collection metrics track the list-collection phase.
var (
	// ReferencesCollectedTotal counts references discovered per category
	ReferencesCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "references_collected_total",
			Help: "Total number of article references discovered",
		},
		[]string{"category"},
	)

	// ListPagesFetchedTotal counts list pages fetched by outcome
	ListPagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "list_pages_fetched_total",
			Help: "Total number of list pages fetched",
		},
		[]string{"category", "status"},
	)
)

// Detail and evaluation metrics track the streaming phase.
var (
	// DetailFetchesTotal counts detail fetches by outcome
	// (success, excluded, failure)
	DetailFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detail_fetches_total",
			Help: "Total number of article detail fetches",
		},
		[]string{"status"},
	)

	// EvaluationsTotal counts LLM evaluations by outcome
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Total number of article evaluations",
		},
		[]string{"status"},
	)

	// RetryEvaluationsTotal counts duplicate-triggered retry evaluations
	RetryEvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retry_evaluations_total",
			Help: "Total number of duplicate-pattern retry evaluations",
		},
	)

	// EvaluationDuration measures LLM evaluation duration in seconds
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_duration_seconds",
			Help:    "Article evaluation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EvaluationScores observes the distribution of total scores
	EvaluationScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_total_score",
			Help:    "Distribution of evaluation total scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

// Governor and batch metrics.
var (
	// RateLimitWaitSeconds measures time spent waiting for admission
	RateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rate_limit_wait_seconds",
			Help:    "Time spent waiting for rate limit admission",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)

	// BatchRunsTotal counts batch runs by outcome
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_runs_total",
			Help: "Total number of batch runs",
		},
		[]string{"status"},
	)

	// BatchDuration measures end-to-end batch duration in seconds
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batch_duration_seconds",
			Help:    "End-to-end batch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	// ItemsProcessedTotal counts streamed references by outcome
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_processed_total",
			Help: "Total number of references processed by the streaming loop",
		},
		[]string{"status"},
	)
)
