package config

import (
	"fmt"
	"log/slog"
	"strings"

	"note-curator/pkg/ratelimit"
)

// LoadGovernorLimits builds the per-service quota table for the request
// governor, starting from the built-in defaults and applying environment
// overrides. Invalid overrides log a warning and keep the default.
//
// Environment variables (per service NAME in upper case):
//   - RATELIMIT_<NAME>_PER_SECOND
//   - RATELIMIT_<NAME>_PER_MINUTE
//   - RATELIMIT_<NAME>_PER_DAY
//
// Example:
//
//	RATELIMIT_GROQ_PER_MINUTE=15 halves the default Groq per-minute quota.
func LoadGovernorLimits() map[string]ratelimit.Limit {
	limits := ratelimit.DefaultLimits()

	for name, limit := range limits {
		prefix := fmt.Sprintf("RATELIMIT_%s", strings.ToUpper(name))

		limit.RequestsPerSecond = GetEnvInt(prefix+"_PER_SECOND", limit.RequestsPerSecond)
		limit.RequestsPerMinute = GetEnvInt(prefix+"_PER_MINUTE", limit.RequestsPerMinute)
		limit.RequestsPerDay = GetEnvInt(prefix+"_PER_DAY", limit.RequestsPerDay)

		if limit.RequestsPerMinute <= 0 || limit.RequestsPerDay <= 0 {
			slog.Warn("invalid rate limit override, using defaults",
				slog.String("service", name))
			limit = ratelimit.DefaultLimits()[name]
		}

		limits[name] = limit
	}

	return limits
}
