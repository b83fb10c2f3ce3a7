// Package scraper implements the source-platform protocol: session
// bootstrapping, paginated list discovery and article detail fetching.
// State embedded in page HTML is preferred; element-level HTML parsing is
// the fallback.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"

	"note-curator/internal/domain/entity"
	"note-curator/internal/resilience/retry"
)

// maxBodySize limits response bodies read into memory.
const maxBodySize = 10 << 20 // 10 MiB

// userAgent presented on every platform request.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Client code extraction patterns, in preference order: the `ccd` field of
// the inline state blob, then any `clientCode` assignment in the same blob.
var (
	ccdPattern        = regexp.MustCompile(`"ccd"\s*:\s*"([0-9a-f]{64})"`)
	clientCodePattern = regexp.MustCompile(`clientCode["']?\s*[:=]\s*["']([0-9a-f]{64})`)
)

// xsrfCookieName is the cookie carrying the anti-CSRF token. Its absence is
// tolerated; the list endpoint accepts requests without it.
const xsrfCookieName = "XSRF-TOKEN"

// Client is the shared HTTP client for the source platform. It lazily
// acquires the session state (client code + optional CSRF token) on first
// need and reuses it for the whole batch; concurrent callers serialize the
// first extraction.
type Client struct {
	http    *http.Client
	baseURL string

	mu      sync.Mutex
	session *entity.SessionState
}

// NewClient creates a platform client around the given HTTP client.
func NewClient(httpClient *http.Client) *Client {
	return &Client{
		http:    httpClient,
		baseURL: "https://" + entity.NoteHost,
	}
}

// Session returns the current session state, fetching it from seedURL when
// none has been acquired yet.
func (c *Client) Session(ctx context.Context, seedURL string) (*entity.SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	var session *entity.SessionState
	err := retry.Do(ctx, retry.ListPolicy(), func() error {
		extracted, err := c.extractSession(ctx, seedURL)
		if err != nil {
			return err
		}
		session = extracted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Session: %w", err)
	}

	c.session = session
	slog.Info("platform session acquired",
		slog.Bool("has_xsrf_token", session.XSRFToken != ""))
	return session, nil
}

// extractSession fetches the landing page and pulls the 64-hex client code
// out of the inline state blob, capturing a cookie-borne CSRF token when the
// server sets one.
func (c *Client) extractSession(ctx context.Context, seedURL string) (*entity.SessionState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, seedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("landing page returned %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read landing page: %w", err)
	}

	code := extractClientCode(string(body))
	if code == "" {
		return nil, fmt.Errorf("%w: client code not found in landing page", entity.ErrParseFailure)
	}

	session := &entity.SessionState{ClientCode: code}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == xsrfCookieName {
			session.XSRFToken = cookie.Value
			break
		}
	}

	return session, nil
}

// extractClientCode scans the page for the embedded 64-hex client code.
func extractClientCode(html string) string {
	if m := ccdPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	if m := clientCodePattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

// get performs a GET with the browser-shaped headers the platform expects.
// session may be nil for plain page fetches.
func (c *Client) get(ctx context.Context, rawURL, referer string, session *entity.SessionState) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if session != nil {
		req.Header.Set("X-Note-Client-Code", session.ClientCode)
		if session.XSRFToken != "" {
			req.Header.Set("X-Xsrf-Token", session.XSRFToken)
		}
	}

	return c.http.Do(req)
}

// readBody drains a response body with the shared size cap.
func readBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// cachedSession returns the already-acquired session, or nil when the batch
// has not bootstrapped one yet. Detail pages render without a session; the
// code and token are only required by the JSON list endpoint.
func (c *Client) cachedSession() *entity.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}
