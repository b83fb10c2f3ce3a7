package evaluate

import (
	"fmt"
	"testing"
)

func TestDuplicateDetector_NeverSignalsOnFirstOccurrence(t *testing.T) {
	t.Parallel()

	d := NewDuplicateDetector()

	outcome := d.Observe("a1", "20/15/15", 50, "summary")
	if outcome.RetryRequested {
		t.Error("RetryRequested on first occurrence")
	}
	if outcome.Occurrences != 1 {
		t.Errorf("Occurrences = %d, want 1", outcome.Occurrences)
	}
}

func TestDuplicateDetector_SignalsOnExactlySecondOccurrence(t *testing.T) {
	t.Parallel()

	d := NewDuplicateDetector()
	d.Observe("a1", "20/15/15", 50, "first")

	outcome := d.Observe("a2", "20/15/15", 50, "second")
	if !outcome.RetryRequested {
		t.Error("RetryRequested = false on second occurrence, want true")
	}
	if outcome.Occurrences != 2 {
		t.Errorf("Occurrences = %d, want 2", outcome.Occurrences)
	}
}

func TestDuplicateDetector_ThirdOccurrenceDoesNotSignal(t *testing.T) {
	t.Parallel()

	d := NewDuplicateDetector()
	d.Observe("a1", "20/15/15", 50, "first")
	d.Observe("a2", "20/15/15", 50, "second")

	outcome := d.Observe("a3", "20/15/15", 50, "third")
	if outcome.RetryRequested {
		t.Error("RetryRequested on third occurrence, want false")
	}
	if outcome.Occurrences != 3 {
		t.Errorf("Occurrences = %d, want 3", outcome.Occurrences)
	}
}

func TestDuplicateDetector_DistinctPatternsDoNotSignal(t *testing.T) {
	t.Parallel()

	d := NewDuplicateDetector()
	for i := 0; i < 10; i++ {
		pattern := fmt.Sprintf("%d/15/15", i)
		if outcome := d.Observe("a", pattern, 30+i, "s"); outcome.RetryRequested {
			t.Errorf("RetryRequested for distinct pattern %s", pattern)
		}
	}
}

func TestDuplicateDetector_EvictsBeyondCapacity(t *testing.T) {
	t.Parallel()

	d := NewDuplicateDetector()

	d.Observe("old", "20/15/15", 50, "oldest entry")

	// Push 20 distinct patterns so the oldest entry falls out of the ring.
	for i := 0; i < ringCapacity; i++ {
		d.Observe("fill", fmt.Sprintf("%d/1/1", i), i, "filler")
	}
	if d.Len() != ringCapacity {
		t.Fatalf("Len() = %d, want %d", d.Len(), ringCapacity)
	}

	// The original pattern was evicted, so this is a first occurrence again.
	outcome := d.Observe("new", "20/15/15", 50, "fresh")
	if outcome.RetryRequested {
		t.Error("RetryRequested for pattern whose first occurrence was evicted")
	}
	if outcome.Occurrences != 1 {
		t.Errorf("Occurrences = %d, want 1", outcome.Occurrences)
	}
}
