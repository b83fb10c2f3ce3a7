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
	"time"

	"github.com/PuerkitoBio/goquery"

	"note-curator/internal/domain/entity"
	"note-curator/internal/observability/metrics"
	"note-curator/internal/pkg/config"
	"note-curator/internal/resilience/retry"
	"note-curator/pkg/ratelimit"
)

// Backoffs applied by the page loop. Vars so tests can shorten them.
var (
	rateLimitBackoff   = 30 * time.Second
	serverErrorBackoff = 10 * time.Second
)

// ListCollector discovers article references for configured categories
// (phase 1 of the pipeline). Interests URLs go through the JSON list
// endpoint with pagination; anything else falls back to extracting the
// state blob embedded in the landing page.
type ListCollector struct {
	client   *Client
	governor *ratelimit.Governor
	settings config.CollectionSettings
	loc      *time.Location

	now func() time.Time
}

// NewListCollector creates a collector with the given dependencies.
// loc determines the recency window's day math.
func NewListCollector(client *Client, governor *ratelimit.Governor, settings config.CollectionSettings, loc *time.Location) *ListCollector {
	if loc == nil {
		loc = time.UTC
	}
	return &ListCollector{
		client:   client,
		governor: governor,
		settings: settings,
		loc:      loc,
		now:      time.Now,
	}
}

// Collect enumerates references for one configured category, filtered to the
// recency window and deduplicated by key within the pass.
func (c *ListCollector) Collect(ctx context.Context, source config.CollectionURL) ([]*entity.ArticleReference, error) {
	session, err := c.client.Session(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("Collect: %w", err)
	}

	if label, ok := interestsLabel(source.URL); ok {
		return c.collectFromAPI(ctx, session, source, label)
	}
	return c.collectFromHTML(ctx, session, source)
}

// collectFromAPI pages through the JSON list endpoint.
//
// Status policy per page: 429 waits 30 seconds and retries the same page;
// a 5xx waits 10 seconds and retries the same page once, a second 5xx gives
// up on the category; any other 4xx stops pagination. Pagination also stops
// on is_last, on an empty page and at the configured page ceiling.
func (c *ListCollector) collectFromAPI(ctx context.Context, session *entity.SessionState, source config.CollectionURL, label string) ([]*entity.ArticleReference, error) {
	referer := fmt.Sprintf("%s/interests/%s", c.client.baseURL, url.PathEscape(label))

	var refs []*entity.ArticleReference
	seen := make(map[string]struct{})
	retriedServerError := false

	for page := 1; page <= c.settings.MaxPagesPerCategory; {
		waitStart := c.now()
		if err := c.governor.Await(ctx, ratelimit.ServiceNote); err != nil {
			return refs, fmt.Errorf("collectFromAPI: %w", err)
		}
		metrics.RecordRateLimitWait(ratelimit.ServiceNote, c.now().Sub(waitStart))

		data, err := c.fetchListPage(ctx, session, label, page, referer)
		c.governor.Record(ratelimit.ServiceNote)

		if err != nil {
			var httpErr *retry.HTTPError
			if errors.As(err, &httpErr) {
				switch {
				case httpErr.StatusCode == http.StatusTooManyRequests:
					metrics.RecordListPageFetched(source.Category, "rate_limited")
					slog.Warn("list endpoint rate limited, backing off",
						slog.String("category", source.Category),
						slog.Int("page", page),
						slog.Duration("backoff", rateLimitBackoff))
					if err := sleepCtx(ctx, rateLimitBackoff); err != nil {
						return refs, err
					}
					continue

				case httpErr.StatusCode >= http.StatusInternalServerError:
					metrics.RecordListPageFetched(source.Category, "server_error")
					if retriedServerError {
						slog.Warn("list endpoint failing, giving up on category",
							slog.String("category", source.Category),
							slog.Int("page", page),
							slog.Any("error", err))
						return refs, nil
					}
					retriedServerError = true
					if err := sleepCtx(ctx, serverErrorBackoff); err != nil {
						return refs, err
					}
					continue

				default:
					metrics.RecordListPageFetched(source.Category, "client_error")
					slog.Warn("list endpoint rejected request, stopping pagination",
						slog.String("category", source.Category),
						slog.Int("page", page),
						slog.Int("status", httpErr.StatusCode))
					return refs, nil
				}
			}

			if ctx.Err() != nil {
				return refs, fmt.Errorf("collectFromAPI: %w", ctx.Err())
			}

			slog.Warn("list page fetch failed, stopping pagination",
				slog.String("category", source.Category),
				slog.Int("page", page),
				slog.Any("error", err))
			return refs, nil
		}

		metrics.RecordListPageFetched(source.Category, "success")
		retriedServerError = false

		items := data.notes()
		if len(items) == 0 {
			slog.Info("list page empty, stopping pagination",
				slog.String("category", source.Category),
				slog.Int("page", page))
			break
		}

		pageRefs := c.convertItems(items, source.Category, seen)
		recent, sawOld := c.filterRecent(pageRefs)
		refs = append(refs, recent...)

		if c.settings.StopAfterOldArticles && sawOld {
			slog.Info("old articles reached, stopping pagination",
				slog.String("category", source.Category),
				slog.Int("page", page))
			break
		}
		if data.isLast() {
			break
		}

		page++
		if err := sleepCtx(ctx, c.settings.RequestDelay()); err != nil {
			return refs, err
		}
	}

	return refs, nil
}

// collectFromHTML extracts references from the state blob embedded in the
// landing page (the non-interests fallback; no pagination).
func (c *ListCollector) collectFromHTML(ctx context.Context, session *entity.SessionState, source config.CollectionURL) ([]*entity.ArticleReference, error) {
	if err := c.governor.Await(ctx, ratelimit.ServiceNote); err != nil {
		return nil, fmt.Errorf("collectFromHTML: %w", err)
	}

	resp, err := c.client.get(ctx, source.URL, "", session)
	c.governor.Record(ratelimit.ServiceNote)
	if err != nil {
		return nil, fmt.Errorf("collectFromHTML: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		metrics.RecordListPageFetched(source.Category, "client_error")
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("landing page returned %s", resp.Status),
		}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("collectFromHTML: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("collectFromHTML: parse HTML: %w", err)
	}

	state, err := extractStateJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("collectFromHTML: %w", err)
	}

	items := findNotesInState(state)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no notes found in landing page state", entity.ErrParseFailure)
	}

	metrics.RecordListPageFetched(source.Category, "success")

	seen := make(map[string]struct{})
	refs, _ := c.filterRecent(c.convertItems(items, source.Category, seen))
	return refs, nil
}

// fetchListPage calls the JSON list endpoint for one page.
func (c *ListCollector) fetchListPage(ctx context.Context, session *entity.SessionState, label string, page int, referer string) (*noteListResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v3/mkit_layouts/json?context=top_keyword&page=%d&args[label_name]=%s",
		c.client.baseURL, page, url.QueryEscape(label))

	resp, err := c.client.get(ctx, endpoint, referer, session)
	if err != nil {
		return nil, fmt.Errorf("fetchListPage: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("list endpoint returned %s", resp.Status),
		}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("fetchListPage: %w", err)
	}

	var data noteListResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: list response: %v", entity.ErrParseFailure, err)
	}

	return &data, nil
}

// convertItems turns list items into references, skipping incomplete entries
// and deduplicating by key within the collection pass.
func (c *ListCollector) convertItems(items []noteItem, category string, seen map[string]struct{}) []*entity.ArticleReference {
	collectedAt := c.now()
	refs := make([]*entity.ArticleReference, 0, len(items))

	for _, item := range items {
		if item.Key == "" || item.User.URLName == "" {
			slog.Debug("skipping incomplete list item",
				slog.String("id", string(item.ID)),
				slog.String("title", item.Name))
			continue
		}
		if _, dup := seen[item.Key]; dup {
			continue
		}
		seen[item.Key] = struct{}{}
		refs = append(refs, item.toReference(category, collectedAt))
	}

	return refs
}

// filterRecent keeps references published within the threshold window and
// reports whether any older item was seen. References without a publish time
// are kept: they were just discovered and cannot be aged out.
func (c *ListCollector) filterRecent(refs []*entity.ArticleReference) ([]*entity.ArticleReference, bool) {
	threshold := c.now().In(c.loc).AddDate(0, 0, -c.settings.OldArticleThresholdDays)

	recent := make([]*entity.ArticleReference, 0, len(refs))
	sawOld := false
	for _, ref := range refs {
		if !ref.PublishedAt.IsZero() && ref.PublishedAt.Before(threshold) {
			sawOld = true
			continue
		}
		recent = append(recent, ref)
	}

	return recent, sawOld
}

// interestsLabel extracts the decoded label from an interests URL.
func interestsLabel(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "interests" && i+1 < len(segments) {
			label, err := url.PathUnescape(segments[i+1])
			if err != nil {
				return segments[i+1], true
			}
			return label, true
		}
	}
	return "", false
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
