// Package circuitbreaker guards the pipeline's external services with
// github.com/sony/gobreaker, classifying failures so that only genuine
// service-health signals trip a circuit: a paywalled article or a malformed
// page is the article's problem, not the platform's, and rejected
// credentials repeat identically without indicating an outage.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"note-curator/internal/domain/entity"
	"note-curator/internal/resilience/retry"
)

// Breaker wraps one gobreaker circuit.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// ForLLM returns the breaker guarding a scoring endpoint. It trips on a 60%
// failure ratio once five calls have been seen in a 30-second window and
// stays open for a minute; half-open probes are limited to three calls.
func ForLLM(name string) *Breaker {
	return newBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
}

// ForPages returns the breaker guarding article page fetches. Page structure
// varies per article, so ratio tripping would let a run of odd articles poison
// the circuit; it trips only on five consecutive transport-level failures and
// then backs off for a full hour, since a blocked scraper rarely recovers
// quickly.
func ForPages() *Breaker {
	return newBreaker(gobreaker.Settings{
		Name:        "note-page",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     1 * time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

func newBreaker(settings gobreaker.Settings) *Breaker {
	settings.IsSuccessful = isHealthSignal
	settings.OnStateChange = func(name string, from gobreaker.State, to gobreaker.State) {
		slog.Warn("circuit breaker state changed",
			slog.String("circuit", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	}

	return &Breaker{
		cb:   gobreaker.NewCircuitBreaker(settings),
		name: settings.Name,
	}
}

// isHealthSignal decides whether an error counts against the circuit.
// Item-level failures pass through without charging it: exclusions, parse
// failures and client-side rejections say nothing about service health, and
// auth failures repeat identically until the operator fixes the key.
func isHealthSignal(err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, entity.ErrPermanentExclusion) ||
		errors.Is(err, entity.ErrParseFailure) ||
		errors.Is(err, entity.ErrAuthFailure) {
		return true
	}

	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) {
		// 4xx is the item's fault, except 429 which is load shedding.
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 &&
			httpErr.StatusCode != http.StatusTooManyRequests {
			return true
		}
	}

	return false
}

// Call runs fn through the breaker, preserving its result type. When the
// circuit is open the call fails fast with gobreaker.ErrOpenState.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

// Name returns the circuit's name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the circuit's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Open reports whether the circuit is currently rejecting calls.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}
