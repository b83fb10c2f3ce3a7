// Package entity defines the core domain entities and validation logic for the
// curation pipeline: article references, articles, evaluations and the
// transient detail/session records used while collecting from the source
// platform.
package entity

import "time"

// Article represents a persisted article whose details have been fetched.
// Only the content preview is ever stored; the full body lives in memory
// between the detail fetch and the evaluation call and is then discarded.
type Article struct {
	ID             string
	Title          string
	URL            string
	Thumbnail      string
	PublishedAt    time.Time
	Author         string
	ContentPreview string
	Category       string
	CollectedAt    time.Time
	IsEvaluated    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PreviewLimit is the number of characters of cleaned body text kept as the
// persisted content preview.
const PreviewLimit = 200
