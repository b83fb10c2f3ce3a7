package evaluate

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"note-curator/internal/domain/entity"
	"note-curator/internal/utils/jsonutil"
)

// Default component scores applied when the response omits a field.
const (
	defaultQuality       = 20
	defaultOriginality   = 15
	defaultEntertainment = 15
)

// placeholderSummary fills in when the response carries no summary.
const placeholderSummary = "要約を取得できませんでした"

// scoreResult is the structured result of parsing one LLM response. Values
// carry the response's numbers as-is (after defaulting); range clamping and
// total recomputation happen at Evaluation construction.
type scoreResult struct {
	ArticleID     string
	Quality       int
	Originality   int
	Entertainment int
	Summary       string
}

// rawResponse mirrors the JSON object the prompt instructs the model to
// return. Pointer fields distinguish "absent" from zero; scores are floats
// because models occasionally emit decimals.
type rawResponse struct {
	ArticleID     *string  `json:"article_id"`
	Quality       *float64 `json:"quality_score"`
	Originality   *float64 `json:"originality_score"`
	Entertainment *float64 `json:"entertainment_score"`
	Total         *float64 `json:"total_score"`
	AISummary     *string  `json:"ai_summary"`
}

// parseResponse extracts and validates the first balanced JSON object of an
// LLM response. Missing fields get defaults; a mismatched article_id is
// overwritten with the expected one (the model's claim of identity is never
// trusted); the model's total_score is ignored entirely. Parsing is
// deterministic: the same content always yields the same result.
func parseResponse(content, expectedArticleID string) (*scoreResult, error) {
	jsonText, ok := jsonutil.ExtractFirstObject(content)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", entity.ErrParseFailure)
	}

	var raw rawResponse
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParseFailure, err)
	}

	result := &scoreResult{
		ArticleID:     expectedArticleID,
		Quality:       defaultQuality,
		Originality:   defaultOriginality,
		Entertainment: defaultEntertainment,
		Summary:       placeholderSummary,
	}

	if raw.Quality != nil {
		result.Quality = int(*raw.Quality)
	}
	if raw.Originality != nil {
		result.Originality = int(*raw.Originality)
	}
	if raw.Entertainment != nil {
		result.Entertainment = int(*raw.Entertainment)
	}
	if raw.AISummary != nil && *raw.AISummary != "" {
		result.Summary = *raw.AISummary
	}

	if raw.ArticleID != nil && *raw.ArticleID != "" && *raw.ArticleID != expectedArticleID {
		slog.Warn("response article_id mismatch, overwriting",
			slog.String("expected", expectedArticleID),
			slog.String("got", *raw.ArticleID))
	}

	return result, nil
}
