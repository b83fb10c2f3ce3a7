// Package evaluate implements the streaming evaluator: prompt construction,
// LLM scoring, response parsing, duplicate-pattern detection and the
// alternate-prompt retry path.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"note-curator/internal/domain/entity"
	"note-curator/internal/infra/evaluator"
	"note-curator/internal/observability/metrics"
	"note-curator/internal/pkg/config"
	"note-curator/internal/utils/text"
	"note-curator/pkg/ratelimit"
)

// contentLimit caps the cleaned body text sent to the scoring service.
const contentLimit = 4000

// Retry temperature band: drawn uniformly from [base+0.2, base+0.5] and
// clamped to [0.5, 0.8].
const (
	retryTempOffsetMin = 0.2
	retryTempOffsetMax = 0.5
	retryTempMin       = 0.5
	retryTempMax       = 0.8
)

// baseTempJitter is the uniform jitter applied to the configured temperature
// on every primary call.
const baseTempJitter = 0.05

// Service produces a valid Evaluation for an article. It owns the call retry
// loop (exponential backoff honoring the request governor) and the
// duplicate-triggered retry path with the alternate prompt.
type Service struct {
	client   evaluator.Client
	governor *ratelimit.Governor
	detector *DuplicateDetector
	prompts  config.PromptSettings

	randFloat func() float64
	now       func() time.Time
}

// NewService creates an evaluation service.
func NewService(client evaluator.Client, governor *ratelimit.Governor, detector *DuplicateDetector, prompts config.PromptSettings) *Service {
	return &Service{
		client:    client,
		governor:  governor,
		detector:  detector,
		prompts:   prompts,
		randFloat: rand.Float64,
		now:       time.Now,
	}
}

// EvaluateArticle scores an article from its persisted preview. This is the
// standalone entry point; the orchestrator uses EvaluateWithContent so the
// full body never leaves transient memory.
func (s *Service) EvaluateArticle(ctx context.Context, article *entity.Article) (*entity.Evaluation, error) {
	return s.evaluate(ctx, article, article.ContentPreview)
}

// EvaluateWithContent scores an article using an externally supplied full
// body. The body is only read here, never stored.
func (s *Service) EvaluateWithContent(ctx context.Context, article *entity.Article, fullBody string) (*entity.Evaluation, error) {
	return s.evaluate(ctx, article, fullBody)
}

func (s *Service) evaluate(ctx context.Context, article *entity.Article, body string) (*entity.Evaluation, error) {
	content := prepareContent(body, article.Title)

	messages := buildMessages(s.prompts.EvaluationPrompt, article, content)
	result, err := s.callAndParse(ctx, messages, s.sampleTemperature(), article.ID)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", article.ID, err)
	}

	eval := entity.NewEvaluation(article.ID, result.Quality, result.Originality, result.Entertainment, result.Summary, s.now())

	outcome := s.detector.Observe(article.ID, eval.ScorePattern(), eval.TotalScore, eval.AISummary)
	if !outcome.RetryRequested {
		metrics.RecordEvaluationScore(eval.TotalScore)
		return eval, nil
	}

	slog.Info("duplicate score pattern detected, retrying with alternate prompt",
		slog.String("article_id", article.ID),
		slog.String("pattern", eval.ScorePattern()))

	retryEval, retryErr := s.retryEvaluate(ctx, article, content, eval)
	if retryErr != nil {
		// Fall back to the original result when the retry fails.
		slog.Warn("retry evaluation failed, keeping original result",
			slog.String("article_id", article.ID),
			slog.Any("error", retryErr))
		metrics.RecordEvaluationScore(eval.TotalScore)
		return eval, nil
	}

	metrics.RecordRetryEvaluation()
	metrics.RecordEvaluationScore(retryEval.TotalScore)
	return retryEval, nil
}

// retryEvaluate performs the duplicate-triggered second call with the
// alternate prompt pair and bumped sampling temperature. A retried article
// never re-enters retry: the retry result is recorded in the ring but its
// outcome is ignored.
func (s *Service) retryEvaluate(ctx context.Context, article *entity.Article, content string, original *entity.Evaluation) (*entity.Evaluation, error) {
	messages := buildMessages(s.prompts.RetryEvaluationPrompt, article, content)

	result, err := s.callAndParse(ctx, messages, s.retryTemperature(), article.ID)
	if err != nil {
		return nil, err
	}

	eval := entity.NewEvaluation(article.ID, result.Quality, result.Originality, result.Entertainment, result.Summary, s.now())
	eval.IsRetryEvaluation = true
	eval.RetryReason = fmt.Sprintf("duplicate score pattern %s", original.ScorePattern())
	eval.EvaluationMetadata = map[string]any{
		"score_pattern_original": original.ScorePattern(),
		"score_pattern_retry":    eval.ScorePattern(),
		"original_total_score":   original.TotalScore,
		"retry_total_score":      eval.TotalScore,
	}

	s.detector.Observe(article.ID, eval.ScorePattern(), eval.TotalScore, eval.AISummary)

	return eval, nil
}

// callAndParse performs the LLM call with the configured retry policy:
// exponential backoff (retry_delay * 2^attempt) across transport and parse
// failures, honoring the governor between attempts. Authentication failures
// and context cancellation surface immediately.
func (s *Service) callAndParse(ctx context.Context, messages []evaluator.Message, temperature float64, articleID string) (*scoreResult, error) {
	settings := s.prompts.GroqSettings
	maxRetries := s.prompts.RateLimit.MaxRetries
	retryDelay := s.prompts.RateLimit.RetryDelay()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		waitStart := s.now()
		if err := s.governor.Await(ctx, ratelimit.ServiceGroq); err != nil {
			return nil, err
		}
		metrics.RecordRateLimitWait(ratelimit.ServiceGroq, s.now().Sub(waitStart))

		start := s.now()
		raw, err := s.client.Complete(ctx, evaluator.Request{
			Messages:         messages,
			Temperature:      temperature,
			MaxTokens:        settings.MaxTokens,
			TopP:             settings.TopP,
			FrequencyPenalty: settings.FrequencyPenalty,
			PresencePenalty:  settings.PresencePenalty,
		})
		s.governor.Record(ratelimit.ServiceGroq)
		duration := s.now().Sub(start)

		if err == nil {
			result, perr := parseResponse(raw, articleID)
			if perr == nil {
				metrics.RecordEvaluation(true, duration)
				return result, nil
			}
			err = perr
		}

		metrics.RecordEvaluation(false, duration)
		lastErr = err

		if errors.Is(err, entity.ErrAuthFailure) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		if attempt < maxRetries-1 {
			delay := retryDelay * time.Duration(1<<attempt)
			slog.Warn("llm call failed, retrying",
				slog.String("article_id", articleID),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Any("error", err))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("llm call failed after %d attempts: %w", maxRetries, lastErr)
}

// sampleTemperature jitters the configured base temperature by ±0.05 and
// clamps it to [0.1, 0.8].
func (s *Service) sampleTemperature() float64 {
	base := s.prompts.GroqSettings.Temperature
	jittered := base + (s.randFloat()*2-1)*baseTempJitter
	return evaluator.ClampTemperature(jittered, evaluator.TemperatureMin, evaluator.TemperatureMax)
}

// retryTemperature draws the bumped retry temperature.
func (s *Service) retryTemperature() float64 {
	base := s.prompts.GroqSettings.Temperature
	t := base + retryTempOffsetMin + s.randFloat()*(retryTempOffsetMax-retryTempOffsetMin)
	return evaluator.ClampTemperature(t, retryTempMin, retryTempMax)
}

// prepareContent cleans the body for evaluation: tags stripped, whitespace
// collapsed, truncated to the content limit. An empty body becomes a
// title-only stub.
func prepareContent(body, title string) string {
	cleaned := text.TruncateRunes(text.StripTags(body), contentLimit)
	if cleaned == "" {
		return fmt.Sprintf("タイトルのみ: %s", title)
	}
	return cleaned
}
