package entity

import (
	"fmt"
	"strings"
	"time"
)

// Score ranges for the three evaluation components and the summary length
// bounds enforced on every persisted evaluation.
const (
	QualityScoreMax       = 40
	OriginalityScoreMax   = 30
	EntertainmentScoreMax = 30
	TotalScoreMax         = QualityScoreMax + OriginalityScoreMax + EntertainmentScoreMax

	SummaryMinLength = 10
	SummaryMaxLength = 300
)

// summaryPad is appended to summaries shorter than SummaryMinLength so that
// the length floor always holds.
const summaryPad = "。"

// Evaluation is the scored output for an article. Exactly one evaluation is
// current per article; a retry evaluation is stored under its own
// (article_id, is_retry_evaluation) key and supersedes the original. The
// evaluator does not set OriginalEvaluationID; the original and retry score
// patterns are recorded in EvaluationMetadata.
type Evaluation struct {
	ID                   int64
	ArticleID            string
	QualityScore         int
	OriginalityScore     int
	EntertainmentScore   int
	TotalScore           int
	AISummary            string
	IsRetryEvaluation    bool
	OriginalEvaluationID *int64
	RetryReason          string
	EvaluationMetadata   map[string]any
	EvaluatedAt          time.Time
	CreatedAt            time.Time
}

// NewEvaluation constructs a valid Evaluation from raw component scores and a
// summary. Scores are clamped to their documented ranges, the total is always
// recomputed from the components, and the summary is normalized to the
// [SummaryMinLength, SummaryMaxLength] rune bounds. The model-reported total
// is deliberately not a parameter: it is advisory only.
func NewEvaluation(articleID string, quality, originality, entertainment int, summary string, evaluatedAt time.Time) *Evaluation {
	quality = clampScore(quality, QualityScoreMax)
	originality = clampScore(originality, OriginalityScoreMax)
	entertainment = clampScore(entertainment, EntertainmentScoreMax)

	return &Evaluation{
		ArticleID:          articleID,
		QualityScore:       quality,
		OriginalityScore:   originality,
		EntertainmentScore: entertainment,
		TotalScore:         quality + originality + entertainment,
		AISummary:          NormalizeSummary(summary),
		EvaluatedAt:        evaluatedAt,
		CreatedAt:          evaluatedAt,
	}
}

// ScorePattern returns the "{quality}/{originality}/{entertainment}" triple
// used by the duplicate detector.
func (e *Evaluation) ScorePattern() string {
	return fmt.Sprintf("%d/%d/%d", e.QualityScore, e.OriginalityScore, e.EntertainmentScore)
}

// Validate checks the evaluation invariants: component ranges, the
// total-equals-sum rule and the summary length bounds.
func (e *Evaluation) Validate() error {
	if e.ArticleID == "" {
		return &ValidationError{Field: "article_id", Message: "article ID is required"}
	}
	if e.QualityScore < 0 || e.QualityScore > QualityScoreMax {
		return &ValidationError{Field: "quality_score", Message: fmt.Sprintf("must be within [0,%d]", QualityScoreMax)}
	}
	if e.OriginalityScore < 0 || e.OriginalityScore > OriginalityScoreMax {
		return &ValidationError{Field: "originality_score", Message: fmt.Sprintf("must be within [0,%d]", OriginalityScoreMax)}
	}
	if e.EntertainmentScore < 0 || e.EntertainmentScore > EntertainmentScoreMax {
		return &ValidationError{Field: "entertainment_score", Message: fmt.Sprintf("must be within [0,%d]", EntertainmentScoreMax)}
	}
	if sum := e.QualityScore + e.OriginalityScore + e.EntertainmentScore; e.TotalScore != sum {
		return &ValidationError{Field: "total_score", Message: fmt.Sprintf("total %d does not equal component sum %d", e.TotalScore, sum)}
	}
	if n := len([]rune(e.AISummary)); n < SummaryMinLength || n > SummaryMaxLength {
		return &ValidationError{
			Field:   "ai_summary",
			Message: fmt.Sprintf("length %d outside [%d,%d]", n, SummaryMinLength, SummaryMaxLength),
		}
	}
	return nil
}

// NormalizeSummary trims the summary, truncates it to SummaryMaxLength runes
// and pads anything shorter than SummaryMinLength up to the floor.
func NormalizeSummary(summary string) string {
	summary = strings.TrimSpace(summary)
	runes := []rune(summary)
	if len(runes) > SummaryMaxLength {
		return string(runes[:SummaryMaxLength])
	}
	for len(runes) < SummaryMinLength {
		runes = append(runes, []rune(summaryPad)...)
	}
	return string(runes)
}

func clampScore(score, max int) int {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}
