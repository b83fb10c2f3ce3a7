package batch

import "sync"

// statsRecorder merges per-item stats under a mutex when the streaming loop
// fans out.
type statsRecorder struct {
	mu    sync.Mutex
	stats *Stats
}

func newStatsRecorder(stats *Stats) *statsRecorder {
	return &statsRecorder{stats: stats}
}

func (r *statsRecorder) merge(local *Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Evaluated += local.Evaluated
	r.stats.Excluded += local.Excluded
	r.stats.Failed += local.Failed
}
