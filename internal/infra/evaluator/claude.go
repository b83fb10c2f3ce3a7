package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"note-curator/internal/domain/entity"
	"note-curator/internal/resilience/circuitbreaker"
)

// Claude implements Client using Anthropic's Messages API. It is the
// alternate scoring backend (EVALUATOR_TYPE=claude).
type Claude struct {
	client  anthropic.Client
	model   string
	breaker *circuitbreaker.Breaker
}

// NewClaude creates a Claude client with the given API key and model.
func NewClaude(apiKey, model string) *Claude {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	slog.Info("initialized claude evaluator client",
		slog.String("model", model))

	return &Claude{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		breaker: circuitbreaker.ForLLM("claude-api"),
	}
}

// Complete performs one message call and returns the first text block.
func (c *Claude) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	content, err := circuitbreaker.Call(c.breaker, func() (string, error) {
		return c.doComplete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("claude api circuit breaker open, request rejected",
				slog.String("service", "claude-api"),
				slog.String("state", c.breaker.State().String()))
			return "", fmt.Errorf("claude api unavailable: circuit breaker open")
		}
		return "", err
	}

	return content, nil
}

func (c *Claude) doComplete(ctx context.Context, req Request) (string, error) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		default:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(m.Content),
			))
		}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		System:      system,
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
	})
	if err != nil {
		slog.ErrorContext(ctx, "claude completion failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("%w: claude api returned empty response", entity.ErrParseFailure)
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("%w: claude api returned unexpected block type", entity.ErrParseFailure)
	}

	return textBlock.Text, nil
}
