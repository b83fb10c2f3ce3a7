package ratelimit

// Limit describes the admission ceilings for a single named service.
// RequestsPerSecond is optional (0 disables the per-second window);
// RequestsPerMinute and RequestsPerDay are always enforced.
type Limit struct {
	RequestsPerSecond int
	RequestsPerMinute int
	RequestsPerDay    int
}

// Default service limits, mirroring the quotas of the external services the
// pipeline talks to. They can be overridden per service via AddService.
const (
	// ServiceNote is the source publishing platform (list + article pages).
	ServiceNote = "note"

	// ServiceGroq is the LLM scoring service.
	ServiceGroq = "groq"

	// ServiceTwitter is the social posting service used by the external bot.
	ServiceTwitter = "twitter"
)

// DefaultLimits returns the built-in per-service quota table.
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		ServiceNote: {
			RequestsPerSecond: 2,
			RequestsPerMinute: 60,
			RequestsPerDay:    5000,
		},
		ServiceGroq: {
			RequestsPerMinute: 30,
			RequestsPerDay:    14400,
		},
		ServiceTwitter: {
			RequestsPerMinute: 300,
			RequestsPerDay:    2000,
		},
	}
}
