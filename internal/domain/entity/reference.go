package entity

import (
	"fmt"
	"time"
)

// NoteHost is the host of the source publishing platform.
const NoteHost = "note.com"

// ArticleReference is the canonical identity of a candidate article,
// discovered during list collection. The composite (Key, URLName) is unique;
// everything else is best-effort metadata captured at discovery time.
type ArticleReference struct {
	Key         string
	URLName     string
	Category    string
	Title       string
	Author      string
	Thumbnail   string
	PublishedAt time.Time
	CollectedAt time.Time
	IsProcessed bool
}

// ArticleID derives the stable article identifier from the composite key.
func (r *ArticleReference) ArticleID() string {
	return fmt.Sprintf("%s_%s", r.Key, r.URLName)
}

// ArticleURL derives the canonical article page URL.
func (r *ArticleReference) ArticleURL() string {
	return fmt.Sprintf("https://%s/%s/n/%s", NoteHost, r.URLName, r.Key)
}
