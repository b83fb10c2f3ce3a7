package scraper

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"note-curator/internal/domain/entity"
)

// flexString tolerates JSON numbers where the API sometimes returns strings
// (and vice versa), e.g. the note ID.
type flexString string

// UnmarshalJSON accepts strings, numbers and null.
func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// noteUser is the author object of a list item.
type noteUser struct {
	URLName  string `json:"urlname"`
	Nickname string `json:"nickname"`
}

// noteItem is one note in a list response or state blob. The decoder is
// permissive: optional fields may be missing and some fields appear under
// alternative names (publishAt/publish_at, eyecatch/eyecatch_url).
type noteItem struct {
	ID             flexString `json:"id"`
	Key            string     `json:"key"`
	Name           string     `json:"name"`
	User           noteUser   `json:"user"`
	PublishAtCamel string     `json:"publishAt"`
	PublishAtSnake string     `json:"publish_at"`
	Eyecatch       string     `json:"eyecatch"`
	EyecatchURL    string     `json:"eyecatch_url"`
	Body           string     `json:"body"`
	Type           string     `json:"type"`
	LikeCount      int        `json:"like_count"`
	CommentCount   int        `json:"comment_count"`
	Price          int        `json:"price"`
	CanRead        *bool      `json:"can_read"`
	IsLiked        bool       `json:"is_liked"`
}

// publishAt returns the publish timestamp under whichever name it arrived.
func (n *noteItem) publishAt() string {
	if n.PublishAtCamel != "" {
		return n.PublishAtCamel
	}
	return n.PublishAtSnake
}

// thumbnail returns the eyecatch URL under whichever name it arrived.
func (n *noteItem) thumbnail() string {
	if n.Eyecatch != "" {
		return n.Eyecatch
	}
	return n.EyecatchURL
}

// canRead defaults to true when the field is absent.
func (n *noteItem) canRead() bool {
	if n.CanRead == nil {
		return true
	}
	return *n.CanRead
}

// toReference converts the list item into an article reference for the given
// category.
func (n *noteItem) toReference(category string, collectedAt time.Time) *entity.ArticleReference {
	return &entity.ArticleReference{
		Key:         n.Key,
		URLName:     n.User.URLName,
		Category:    category,
		Title:       n.Name,
		Author:      n.User.Nickname,
		Thumbnail:   n.thumbnail(),
		PublishedAt: parseNoteTime(n.publishAt()),
		CollectedAt: collectedAt,
	}
}

// noteListResponse is the JSON shape of the list endpoint. isLast appears
// both camel- and snake-cased across endpoint versions.
type noteListResponse struct {
	Data struct {
		IsLastCamel bool `json:"isLast"`
		IsLastSnake bool `json:"is_last"`
		Sections    []struct {
			Notes []noteItem `json:"notes"`
		} `json:"sections"`
	} `json:"data"`
}

// isLast reports whether the endpoint signalled the final page.
func (r *noteListResponse) isLast() bool {
	return r.Data.IsLastCamel || r.Data.IsLastSnake
}

// notes flattens all sections into one item list.
func (r *noteListResponse) notes() []noteItem {
	var items []noteItem
	for _, section := range r.Data.Sections {
		items = append(items, section.Notes...)
	}
	return items
}

// noteTimeLayouts are tried in order when parsing platform timestamps.
// Timestamps without zone information are treated as UTC.
var noteTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseNoteTime parses a platform timestamp, returning the zero time when
// the value is empty or unparseable.
func parseNoteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range noteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// Some payloads carry epoch seconds.
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}
