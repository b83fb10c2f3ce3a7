// Package retry implements the pipeline's outbound-call retry discipline.
//
// Unlike a generic backoff helper, the policy here is tied to the error
// taxonomy of the pipeline: every failure is retried unless it is terminal
// (cancellation, rejected credentials, paywalled articles, client-side HTTP
// rejections), and a rate-limited response suspends the caller for a fixed
// hold instead of the exponential curve — the source platform expects a long
// quiet period after a 429, not a quick re-knock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"note-curator/internal/domain/entity"
)

// Policy describes how one class of outbound call is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, the first call included.
	MaxAttempts int

	// InitialDelay seeds the doubling backoff curve.
	InitialDelay time.Duration

	// MaxDelay caps the curve.
	MaxDelay time.Duration

	// RateLimitHold, when positive, replaces the backoff entirely after a
	// rate-limited failure. Holds are exact: no jitter is applied, so the
	// caller resumes as soon as the window plausibly reopened.
	RateLimitHold time.Duration

	// JitterFraction is the fraction of the backoff added as random jitter.
	JitterFraction float64
}

// PagePolicy covers article page fetches.
func PagePolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       10 * time.Second,
		RateLimitHold:  30 * time.Second,
		JitterFraction: 0.1,
	}
}

// ListPolicy covers session bootstrap against the list endpoint. The page
// loop itself applies the endpoint's bespoke status policy; this only guards
// the landing-page fetch.
func ListPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		RateLimitHold:  30 * time.Second,
		JitterFraction: 0.1,
	}
}

// LLMPolicy is a policy for scoring-service calls. Attempts are kept low
// because every retry burns quota under the governor. The evaluation service
// retries scoring calls in its own loop and does not use this policy.
func LLMPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.1,
	}
}

// StorePolicy covers database writes: fast retries for transient
// connection hiccups, no rate-limit handling.
func StorePolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		JitterFraction: 0.1,
	}
}

// Do runs op under the policy. It returns nil on the first success, the
// original error when it is terminal, and an exhaustion error wrapping the
// last failure otherwise. The wait between attempts honors ctx.
func Do(ctx context.Context, p Policy, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if Terminal(err) {
			slog.Warn("terminal error, not retrying",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return err
		}

		if attempt >= p.MaxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := p.wait(attempt, err)
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}
}

// wait computes the pause before the next attempt: the fixed hold for
// rate-limited failures, the jittered doubling curve for everything else.
func (p Policy) wait(attempt int, err error) time.Duration {
	if p.RateLimitHold > 0 && errors.Is(err, entity.ErrRateLimited) {
		return p.RateLimitHold
	}

	d := p.InitialDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}

	if p.JitterFraction > 0 {
		// #nosec G404 -- jitter needs no cryptographic randomness.
		d += time.Duration(rand.Float64() * float64(d) * p.JitterFraction)
	}
	return d
}

// Terminal reports whether an error must not be retried. The default is to
// retry: transport failures and 408, 429 and 5xx responses all come back
// around. Terminal kinds are the ones where a repeat attempt cannot change
// the outcome within this batch.
func Terminal(err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Taxonomy kinds that no retry can fix. Parse failures are terminal
	// here: a malformed page stays malformed, and the evaluator's own call
	// loop owns the LLM-side parse retries.
	if errors.Is(err, entity.ErrAuthFailure) ||
		errors.Is(err, entity.ErrPermanentExclusion) ||
		errors.Is(err, entity.ErrParseFailure) ||
		errors.Is(err, entity.ErrConfigMissing) ||
		errors.Is(err, entity.ErrNotFound) {
		return true
	}

	// Client-side HTTP rejections, rate limiting and timeouts excepted.
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 &&
			httpErr.StatusCode != http.StatusTooManyRequests &&
			httpErr.StatusCode != http.StatusRequestTimeout {
			return true
		}
	}

	return false
}

// HTTPError carries a remote status code through the retry and
// classification layers.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is folds rate-limited responses into the pipeline taxonomy, so
// errors.Is(err, entity.ErrRateLimited) matches a 429 regardless of which
// layer produced it.
func (e *HTTPError) Is(target error) bool {
	return target == entity.ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}
