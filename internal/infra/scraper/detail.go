package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/sony/gobreaker"

	"note-curator/internal/domain/entity"
	"note-curator/internal/resilience/circuitbreaker"
	"note-curator/internal/resilience/retry"
	"note-curator/internal/utils/text"
	"note-curator/pkg/ratelimit"
)

// contentFullLimit caps the in-memory body handed to the evaluator.
const contentFullLimit = 50000

// bodySelectors are tried in order when resolving the article body from
// page HTML.
var bodySelectors = []string{
	"div.note-common-styles__textnote-body",
	`div[class*="textnote-body"]`,
	`div[class*="content"]`,
	`div[class*="article-body"]`,
	"main",
	"article",
}

// DetailFetcher fetches a single article's full record on demand (phase 2).
// The embedded state blob is the preferred source; element-level HTML
// parsing and readability extraction are the fallbacks. Paid or unreadable
// articles surface as entity.ErrPermanentExclusion and are never persisted.
type DetailFetcher struct {
	client   *Client
	governor *ratelimit.Governor
	breaker  *circuitbreaker.Breaker
	policy   retry.Policy
}

// NewDetailFetcher creates a detail fetcher with circuit breaker and retry
// protection around the page fetch.
func NewDetailFetcher(client *Client, governor *ratelimit.Governor) *DetailFetcher {
	return &DetailFetcher{
		client:   client,
		governor: governor,
		breaker:  circuitbreaker.ForPages(),
		policy:   retry.PagePolicy(),
	}
}

// Fetch returns the detail record for (urlname, key).
func (f *DetailFetcher) Fetch(ctx context.Context, urlname, key string) (*entity.DetailRecord, error) {
	pageURL := fmt.Sprintf("%s/%s/n/%s", f.client.baseURL, urlname, key)

	if err := f.governor.Await(ctx, ratelimit.ServiceNote); err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	var record *entity.DetailRecord

	retryErr := retry.Do(ctx, f.policy, func() error {
		fetched, err := circuitbreaker.Call(f.breaker, func() (*entity.DetailRecord, error) {
			return f.doFetch(ctx, pageURL, urlname, key)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("note page circuit breaker open, request rejected",
					slog.String("service", "note-page"),
					slog.String("url", pageURL),
					slog.String("state", f.breaker.State().String()))
			}
			return err
		}

		record = fetched
		return nil
	})

	f.governor.Record(ratelimit.ServiceNote)

	if retryErr != nil {
		return nil, retryErr
	}

	if record.IsPaid() {
		return nil, fmt.Errorf("%s/%s: %w", urlname, key, entity.ErrPermanentExclusion)
	}

	return record, nil
}

// doFetch performs the page fetch and parse without retry or circuit breaker.
func (f *DetailFetcher) doFetch(ctx context.Context, pageURL, urlname, key string) (*entity.DetailRecord, error) {
	resp, err := f.client.get(ctx, pageURL, "", f.client.cachedSession())
	if err != nil {
		return nil, fmt.Errorf("fetch article page: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("article page returned %s", resp.Status),
		}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read article page: %w", err)
	}

	return parseDetail(string(body), pageURL, urlname, key)
}

// parseDetail resolves the detail record from page HTML: state blob first,
// then element-level resolution rules.
func parseDetail(html, pageURL, urlname, key string) (*entity.DetailRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: article page: %v", entity.ErrParseFailure, err)
	}

	if state, err := extractStateJSON(doc); err == nil {
		if item, ok := findNoteInState(state, key); ok {
			return recordFromNote(&item, urlname), nil
		}
	}

	return recordFromHTML(doc, html, pageURL, urlname), nil
}

// recordFromNote builds the record from the state-blob note object.
func recordFromNote(item *noteItem, urlname string) *entity.DetailRecord {
	author := item.User.Nickname
	if author == "" {
		author = urlname
	}

	cleaned := text.StripTags(item.Body)

	return &entity.DetailRecord{
		Title:          item.Name,
		Author:         author,
		Thumbnail:      item.thumbnail(),
		PublishedAt:    parseNoteTime(item.publishAt()),
		NoteType:       item.Type,
		LikeCount:      item.LikeCount,
		CommentCount:   item.CommentCount,
		Price:          item.Price,
		CanRead:        item.canRead(),
		ContentPreview: text.TruncateRunes(cleaned, entity.PreviewLimit),
		ContentFull:    text.TruncateRunes(cleaned, contentFullLimit),
	}
}

// recordFromHTML resolves each field from page markup, taking the first
// populated source per field.
func recordFromHTML(doc *goquery.Document, html, pageURL, urlname string) *entity.DetailRecord {
	title, titleAuthor := splitOGTitle(metaContent(doc, `meta[property="og:title"]`))
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	author := titleAuthor
	if author == "" {
		author = jsonLDAuthor(doc)
	}
	if author == "" {
		author = metaContent(doc, `meta[name="author"]`)
	}
	if author == "" {
		author = metaContent(doc, `meta[property="article:author"]`)
	}
	if author == "" {
		author = urlname
	}

	published := parseNoteTime(doc.Find("time[datetime]").First().AttrOr("datetime", ""))
	if published.IsZero() {
		published = parseNoteTime(metaContent(doc, `meta[property="article:published_time"]`))
	}

	body := extractBodyText(doc, html, pageURL)
	if body == "" {
		desc := metaContent(doc, `meta[name="description"]`)
		if desc == "" {
			desc = metaContent(doc, `meta[property="og:description"]`)
		}
		body = text.TruncateRunes(text.StripTags(desc), entity.PreviewLimit)
	}

	return &entity.DetailRecord{
		Title:          title,
		Author:         author,
		Thumbnail:      metaContent(doc, `meta[property="og:image"]`),
		PublishedAt:    published,
		NoteType:       "TextNote",
		CanRead:        true,
		ContentPreview: text.TruncateRunes(body, entity.PreviewLimit),
		ContentFull:    text.TruncateRunes(body, contentFullLimit),
	}
}

// extractBodyText resolves the body via the selector chain, then readability
// extraction as the last non-meta fallback.
func extractBodyText(doc *goquery.Document, html, pageURL string) string {
	for _, selector := range bodySelectors {
		if found := doc.Find(selector).First(); found.Length() > 0 {
			if cleaned := text.StripTags(found.Text()); cleaned != "" {
				return cleaned
			}
		}
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		slog.Debug("readability extraction failed",
			slog.String("url", pageURL),
			slog.Any("error", err))
		return ""
	}

	return text.StripTags(article.TextContent)
}

// splitOGTitle strips the platform's trailing "｜author" suffix from the
// og:title value, returning both halves.
func splitOGTitle(ogTitle string) (title, author string) {
	if ogTitle == "" {
		return "", ""
	}
	if idx := strings.LastIndex(ogTitle, "｜"); idx > 0 {
		return strings.TrimSpace(ogTitle[:idx]), strings.TrimSpace(ogTitle[idx+len("｜"):])
	}
	return strings.TrimSpace(ogTitle), ""
}

// jsonLDAuthor pulls author.name from an embedded JSON-LD block.
func jsonLDAuthor(doc *goquery.Document) string {
	var author string

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}

		switch v := data["author"].(type) {
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				author = name
				return false
			}
		case string:
			if v != "" {
				author = v
				return false
			}
		}
		return true
	})

	return author
}

// metaContent returns the trimmed content attribute of the first match.
func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}
