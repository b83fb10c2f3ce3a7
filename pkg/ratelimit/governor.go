// Package ratelimit provides the request governor shared by the collector and
// the evaluator: per-named-service admission control enforcing per-second,
// per-minute and per-day ceilings.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// minuteWindow is the sliding window used for the per-minute ceiling.
const minuteWindow = 60 * time.Second

// Status reports the current counters of one service, for observability.
type Status struct {
	RequestsThisMinute int
	RequestsToday      int
	MinuteLimit        int
	DailyLimit         int
}

// Governor admits outbound requests per named service. Admission is
// serialized per service; different services never contend. It never errors:
// Await blocks until admission is possible (up to the next local midnight
// when the daily quota is exhausted) or until the context is cancelled.
type Governor struct {
	mu       sync.RWMutex
	services map[string]*serviceLimiter
	clock    Clock
	loc      *time.Location
}

// serviceLimiter holds the admission state of a single service: a
// monotonically ordered history of request instants (pruned to the minute
// window), a daily counter reset at local midnight, and an optional
// token-bucket limiter for the per-second ceiling.
type serviceLimiter struct {
	mu         sync.Mutex
	limit      Limit
	history    []time.Time
	dailyCount int
	dailyDate  string
	perSecond  *rate.Limiter
}

// NewGovernor creates a governor with the given per-service limits. The
// location determines where "midnight" falls for the daily quota reset.
func NewGovernor(limits map[string]Limit, loc *time.Location, clock Clock) *Governor {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}

	g := &Governor{
		services: make(map[string]*serviceLimiter, len(limits)),
		clock:    clock,
		loc:      loc,
	}
	for name, limit := range limits {
		g.AddService(name, limit)
	}
	return g
}

// AddService registers (or replaces) the limit for a named service.
func (g *Governor) AddService(name string, limit Limit) {
	s := &serviceLimiter{limit: limit}
	if limit.RequestsPerSecond > 0 {
		s.perSecond = rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.RequestsPerSecond)
	}

	g.mu.Lock()
	g.services[name] = s
	g.mu.Unlock()
}

// Await blocks until a request to the named service can be admitted under all
// configured windows. Unknown services are admitted immediately. The wait is
// interrupted by context cancellation.
func (g *Governor) Await(ctx context.Context, service string) error {
	s := g.service(service)
	if s == nil {
		return nil
	}

	for {
		s.mu.Lock()
		wait := s.waitDuration(g.clock.Now(), g.loc)
		s.mu.Unlock()

		if wait <= 0 {
			break
		}

		slog.Debug("rate limit reached, waiting",
			slog.String("service", service),
			slog.Duration("wait", wait))

		if err := g.sleep(ctx, wait); err != nil {
			return fmt.Errorf("rate limit wait aborted: %w", err)
		}
	}

	if s.perSecond != nil {
		if err := s.perSecond.Wait(ctx); err != nil {
			return fmt.Errorf("per-second limit wait aborted: %w", err)
		}
	}

	return nil
}

// Record appends the current instant to the service's request history and
// bumps the daily counter.
func (g *Governor) Record(service string) {
	s := g.service(service)
	if s == nil {
		return
	}

	now := g.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetDailyIfNeeded(now, g.loc)
	s.history = append(s.history, now)
	s.dailyCount++
}

// Status returns the current counters for the named service, or false when
// the service is not registered.
func (g *Governor) Status(service string) (Status, bool) {
	s := g.service(service)
	if s == nil {
		return Status{}, false
	}

	now := g.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetDailyIfNeeded(now, g.loc)
	s.prune(now)

	return Status{
		RequestsThisMinute: len(s.history),
		RequestsToday:      s.dailyCount,
		MinuteLimit:        s.limit.RequestsPerMinute,
		DailyLimit:         s.limit.RequestsPerDay,
	}, true
}

func (g *Governor) service(name string) *serviceLimiter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.services[name]
}

// sleep waits through the injected clock so tests can drive time, while
// still honoring context cancellation during long waits.
func (g *Governor) sleep(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	go func() {
		g.clock.Sleep(d)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitDuration computes how long admission must be deferred at `now`.
// Zero means a request can be admitted immediately. Caller holds s.mu.
func (s *serviceLimiter) waitDuration(now time.Time, loc *time.Location) time.Duration {
	s.resetDailyIfNeeded(now, loc)
	s.prune(now)

	// Daily quota exhausted: wait until the next local midnight.
	if s.limit.RequestsPerDay > 0 && s.dailyCount >= s.limit.RequestsPerDay {
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		return midnight.Sub(now)
	}

	// Minute window full: wait until the oldest in-window request expires.
	if s.limit.RequestsPerMinute > 0 && len(s.history) >= s.limit.RequestsPerMinute {
		oldest := s.history[0]
		if wait := minuteWindow - now.Sub(oldest); wait > 0 {
			return wait
		}
	}

	return 0
}

// prune drops history entries older than the minute window.
func (s *serviceLimiter) prune(now time.Time) {
	cutoff := now.Add(-minuteWindow)
	idx := 0
	for idx < len(s.history) && !s.history[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		s.history = append(s.history[:0], s.history[idx:]...)
	}
}

// resetDailyIfNeeded zeroes the daily counter when the local calendar day
// changes.
func (s *serviceLimiter) resetDailyIfNeeded(now time.Time, loc *time.Location) {
	date := now.In(loc).Format("2006-01-02")
	if date != s.dailyDate {
		s.dailyCount = 0
		s.dailyDate = date
	}
}
