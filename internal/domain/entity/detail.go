package entity

import "time"

// DetailRecord is the fully-fetched article record returned by the detail
// fetcher. ContentFull is used only transiently for evaluation and is never
// persisted.
type DetailRecord struct {
	Title          string
	Author         string
	Thumbnail      string
	PublishedAt    time.Time
	NoteType       string
	LikeCount      int
	CommentCount   int
	Price          int
	CanRead        bool
	ContentPreview string
	ContentFull    string
}

// IsPaid reports whether the article is behind a paywall. Paid articles are
// excluded from the pipeline and never persisted.
func (d *DetailRecord) IsPaid() bool {
	return d.Price > 0 || !d.CanRead
}

// SessionState holds the transient source-platform client state required to
// call the JSON list endpoint: the client code extracted from a landing page
// and an optional anti-CSRF token captured from cookies.
type SessionState struct {
	ClientCode string
	XSRFToken  string
}
