package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"note-curator/internal/domain/entity"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesByDefault(t *testing.T) {
	t.Parallel()

	// Plain transport-ish errors are retried: the discipline defaults to
	// retry and only terminal kinds short-circuit.
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_TerminalErrorsShortCircuit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"auth failure", fmt.Errorf("llm: %w", entity.ErrAuthFailure)},
		{"permanent exclusion", fmt.Errorf("u/abc: %w", entity.ErrPermanentExclusion)},
		{"parse failure", fmt.Errorf("state blob: %w", entity.ErrParseFailure)},
		{"http 404", &HTTPError{StatusCode: http.StatusNotFound, Message: "gone"}},
		{"context canceled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastPolicy(5), func() error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("Do() = %v, want the terminal error back", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1 (no retries)", calls)
			}
		})
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		calls++
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, Message: "down"}
	})
	if err == nil {
		t.Fatal("Do() = nil, want exhaustion error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_HonorsCancellation(t *testing.T) {
	t.Parallel()

	p := fastPolicy(5)
	p.InitialDelay = time.Hour // would hang without cancellation
	p.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, p, func() error {
		return &HTTPError{StatusCode: 500, Message: "down"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
}

func TestPolicy_Wait_RateLimitHoldIsFixed(t *testing.T) {
	t.Parallel()

	p := Policy{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       4 * time.Second,
		RateLimitHold:  30 * time.Second,
		JitterFraction: 0.5,
	}

	limited := &HTTPError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
	for attempt := 1; attempt <= 3; attempt++ {
		// The hold is exact on every attempt: no curve, no jitter.
		if got := p.wait(attempt, limited); got != 30*time.Second {
			t.Errorf("wait(%d, 429) = %v, want 30s", attempt, got)
		}
	}

	// Without a hold configured, a 429 rides the normal curve.
	p.RateLimitHold = 0
	if got := p.wait(1, limited); got < time.Second || got > 2*time.Second {
		t.Errorf("wait(1, 429) without hold = %v, want jittered 1s", got)
	}
}

func TestPolicy_Wait_DoublesAndCaps(t *testing.T) {
	t.Parallel()

	p := Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
	}
	plain := errors.New("boom")

	wants := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, want := range wants {
		if got := p.wait(i+1, plain); got != want {
			t.Errorf("wait(%d) = %v, want %v", i+1, got, want)
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"context canceled", context.Canceled, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"auth failure", entity.ErrAuthFailure, true},
		{"permanent exclusion", entity.ErrPermanentExclusion, true},
		{"not found", entity.ErrNotFound, true},
		{"http 404", &HTTPError{StatusCode: 404}, true},
		{"http 403", &HTTPError{StatusCode: 403}, true},
		{"http 429 retried", &HTTPError{StatusCode: 429}, false},
		{"http 408 retried", &HTTPError{StatusCode: 408}, false},
		{"http 500 retried", &HTTPError{StatusCode: 500}, false},
		{"parse failure", entity.ErrParseFailure, true},
		{"plain error retried", errors.New("boom"), false},
		{"wrapped 404", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 404}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Terminal(tt.err); got != tt.want {
				t.Errorf("Terminal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPError_FoldsIntoTaxonomy(t *testing.T) {
	t.Parallel()

	limited := &HTTPError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}
	if !errors.Is(limited, entity.ErrRateLimited) {
		t.Error("a 429 HTTPError should match entity.ErrRateLimited")
	}

	serverErr := &HTTPError{StatusCode: 500, Message: "boom"}
	if errors.Is(serverErr, entity.ErrRateLimited) {
		t.Error("a 500 HTTPError must not match entity.ErrRateLimited")
	}

	want := "HTTP 429: slow down"
	if limited.Error() != want {
		t.Errorf("Error() = %q, want %q", limited.Error(), want)
	}
}
