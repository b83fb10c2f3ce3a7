package evaluate

import (
	"log/slog"
	"sync"

	"note-curator/internal/utils/text"
)

// ringCapacity is the number of recent results the detector remembers.
const ringCapacity = 20

// summaryPrefixLength bounds the summary excerpt kept per entry.
const summaryPrefixLength = 50

// detectorEntry is one remembered evaluation result.
type detectorEntry struct {
	ArticleID     string
	Pattern       string
	Total         int
	SummaryPrefix string
}

// Outcome reports what the detector concluded about a new result.
type Outcome struct {
	// Occurrences is how many times the pattern appears in the ring,
	// including the observation just made.
	Occurrences int

	// RetryRequested is set on exactly the second occurrence of a pattern.
	RetryRequested bool
}

// DuplicateDetector watches for repeated score patterns across the most
// recent evaluations. The second identical pattern within the ring signals a
// retry; a third or later occurrence is logged as a critical anomaly but
// never triggers a second retry for the same article. State is per-process
// and deliberately not persisted across runs.
type DuplicateDetector struct {
	mu   sync.Mutex
	ring []detectorEntry
}

// NewDuplicateDetector creates an empty detector.
func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{
		ring: make([]detectorEntry, 0, ringCapacity),
	}
}

// Observe appends a result to the ring (evicting the oldest beyond capacity)
// and reports whether a retry is requested.
func (d *DuplicateDetector) Observe(articleID, pattern string, total int, summary string) Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ring = append(d.ring, detectorEntry{
		ArticleID:     articleID,
		Pattern:       pattern,
		Total:         total,
		SummaryPrefix: text.TruncateRunes(summary, summaryPrefixLength),
	})
	if len(d.ring) > ringCapacity {
		d.ring = d.ring[1:]
	}

	count := 0
	for _, entry := range d.ring {
		if entry.Pattern == pattern {
			count++
		}
	}

	if count >= 3 {
		slog.Error("score pattern repeating beyond retry",
			slog.String("article_id", articleID),
			slog.String("pattern", pattern),
			slog.Int("occurrences", count))
	}

	return Outcome{
		Occurrences:    count,
		RetryRequested: count == 2,
	}
}

// Len returns the current ring size.
func (d *DuplicateDetector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ring)
}
