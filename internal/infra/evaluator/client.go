// Package evaluator provides the LLM chat-completion clients used to score
// articles. Groq (OpenAI-compatible) is the default backend; Claude is the
// alternate, selected via EVALUATOR_TYPE.
package evaluator

import "context"

// Role is a typed chat message role.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message with a typed role.
type Message struct {
	Role    Role
	Content string
}

// Request is a chat-completion request. The sampling knobs map directly onto
// the scoring service's API; temperature is set per call because the
// evaluator jitters it.
type Request struct {
	Messages         []Message
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Client is a chat-completion backend. Complete returns the raw text of the
// first choice; parsing is the caller's concern.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
