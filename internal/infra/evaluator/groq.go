package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"note-curator/internal/domain/entity"
	"note-curator/internal/resilience/circuitbreaker"
	"note-curator/internal/resilience/retry"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint.
const groqBaseURL = "https://api.groq.com/openai/v1"

// callTimeout bounds a single completion call.
const callTimeout = 60 * time.Second

// Groq implements Client against Groq's chat-completion API through the
// OpenAI-compatible SDK. A circuit breaker guards the endpoint; retry policy
// belongs to the evaluation service, which owns the backoff/governor loop.
type Groq struct {
	client  *openai.Client
	model   string
	breaker *circuitbreaker.Breaker
}

// NewGroq creates a Groq client with the given API key and model.
func NewGroq(apiKey, model string) *Groq {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL

	slog.Info("initialized groq evaluator client",
		slog.String("model", model))

	return &Groq{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		breaker: circuitbreaker.ForLLM("groq-api"),
	}
}

// Complete performs one chat-completion call and returns the first choice's
// content. Errors are classified into the pipeline taxonomy so the retry
// loop can branch on kind.
func (g *Groq) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	content, err := circuitbreaker.Call(g.breaker, func() (string, error) {
		return g.doComplete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("groq api circuit breaker open, request rejected",
				slog.String("service", "groq-api"),
				slog.String("state", g.breaker.State().String()))
			return "", fmt.Errorf("groq api unavailable: circuit breaker open")
		}
		return "", err
	}

	return content, nil
}

func (g *Groq) doComplete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            g.model,
		Messages:         messages,
		Temperature:      float32(req.Temperature),
		MaxTokens:        req.MaxTokens,
		TopP:             float32(req.TopP),
		FrequencyPenalty: float32(req.FrequencyPenalty),
		PresencePenalty:  float32(req.PresencePenalty),
	})
	if err != nil {
		return "", classifyGroqError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: groq api returned no choices", entity.ErrParseFailure)
	}

	return resp.Choices[0].Message.Content, nil
}

// classifyGroqError maps SDK errors onto the pipeline taxonomy.
func classifyGroqError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("groq api: %v: %w", apiErr.Message, entity.ErrAuthFailure)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("groq api: %w", entity.ErrRateLimited)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return &retry.HTTPError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		}
	}
	return fmt.Errorf("groq api error: %w", err)
}
