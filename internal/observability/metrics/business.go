package metrics

import "time"

// RecordReferencesCollected records references discovered for a category.
func RecordReferencesCollected(category string, count int) {
	ReferencesCollectedTotal.WithLabelValues(category).Add(float64(count))
}

// RecordListPageFetched records one list page fetch with its outcome
// ("success", "rate_limited", "server_error", "client_error").
func RecordListPageFetched(category, status string) {
	ListPagesFetchedTotal.WithLabelValues(category, status).Inc()
}

// RecordDetailFetch records one detail fetch with its outcome
// ("success", "excluded", "failure").
func RecordDetailFetch(status string) {
	DetailFetchesTotal.WithLabelValues(status).Inc()
}

// RecordEvaluation records the result of one evaluation and its duration.
func RecordEvaluation(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	EvaluationsTotal.WithLabelValues(status).Inc()
	EvaluationDuration.Observe(duration.Seconds())
}

// RecordRetryEvaluation records a duplicate-triggered retry evaluation.
func RecordRetryEvaluation() {
	RetryEvaluationsTotal.Inc()
}

// RecordEvaluationScore observes a persisted total score.
func RecordEvaluationScore(total int) {
	EvaluationScores.Observe(float64(total))
}

// RecordRateLimitWait records time spent waiting for a service's admission.
func RecordRateLimitWait(service string, wait time.Duration) {
	RateLimitWaitSeconds.WithLabelValues(service).Observe(wait.Seconds())
}

// RecordBatchRun records one batch run with its outcome and duration.
func RecordBatchRun(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	BatchRunsTotal.WithLabelValues(status).Inc()
	BatchDuration.Observe(duration.Seconds())
}

// RecordItemProcessed records one streamed reference with its outcome
// ("evaluated", "excluded", "failed", "skipped").
func RecordItemProcessed(status string) {
	ItemsProcessedTotal.WithLabelValues(status).Inc()
}
