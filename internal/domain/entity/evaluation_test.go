package entity

import (
	"strings"
	"testing"
	"time"
)

func evalTime() time.Time {
	return time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
}

func TestNewEvaluation_RecomputesTotal(t *testing.T) {
	t.Parallel()

	eval := NewEvaluation("abc_u", 30, 20, 20, "sixteen-char text here.", evalTime())

	if eval.TotalScore != 70 {
		t.Errorf("TotalScore = %d, want 70", eval.TotalScore)
	}
	if err := eval.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestNewEvaluation_ClampsComponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                string
		q, o, e             int
		wantQ, wantO, wantE int
	}{
		{"above max", 55, 45, 31, 40, 30, 30},
		{"below zero", -5, -1, -100, 0, 0, 0},
		{"at max round-trips without clamping", 40, 30, 30, 40, 30, 30},
		{"at zero", 0, 0, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := NewEvaluation("id", tt.q, tt.o, tt.e, "a perfectly fine summary", evalTime())
			if eval.QualityScore != tt.wantQ || eval.OriginalityScore != tt.wantO || eval.EntertainmentScore != tt.wantE {
				t.Errorf("scores = %d/%d/%d, want %d/%d/%d",
					eval.QualityScore, eval.OriginalityScore, eval.EntertainmentScore,
					tt.wantQ, tt.wantO, tt.wantE)
			}
			if eval.TotalScore != tt.wantQ+tt.wantO+tt.wantE {
				t.Errorf("TotalScore = %d, want %d", eval.TotalScore, tt.wantQ+tt.wantO+tt.wantE)
			}
			if err := eval.Validate(); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestNormalizeSummary_Bounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		summary string
		wantLen int
	}{
		{"exactly at floor", strings.Repeat("a", 10), 10},
		{"exactly at ceiling", strings.Repeat("a", 300), 300},
		{"one below floor is padded", strings.Repeat("a", 9), 10},
		{"one above ceiling is truncated", strings.Repeat("a", 301), 300},
		{"empty is padded to floor", "", 10},
		{"multibyte counted in runes", strings.Repeat("あ", 301), 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSummary(tt.summary)
			if n := len([]rune(got)); n != tt.wantLen {
				t.Errorf("NormalizeSummary length = %d, want %d", n, tt.wantLen)
			}
		})
	}
}

func TestEvaluation_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Evaluation {
		return NewEvaluation("abc_u", 30, 20, 20, "a perfectly fine summary", evalTime())
	}

	t.Run("total mismatch rejected", func(t *testing.T) {
		eval := valid()
		eval.TotalScore = 99
		if err := eval.Validate(); err == nil {
			t.Error("Validate() = nil, want error for total mismatch")
		}
	})

	t.Run("missing article id rejected", func(t *testing.T) {
		eval := valid()
		eval.ArticleID = ""
		if err := eval.Validate(); err == nil {
			t.Error("Validate() = nil, want error for missing article ID")
		}
	})

	t.Run("out-of-range component rejected", func(t *testing.T) {
		eval := valid()
		eval.QualityScore = 41
		eval.TotalScore = 41 + eval.OriginalityScore + eval.EntertainmentScore
		if err := eval.Validate(); err == nil {
			t.Error("Validate() = nil, want error for quality above max")
		}
	})

	t.Run("short summary rejected", func(t *testing.T) {
		eval := valid()
		eval.AISummary = "tiny"
		if err := eval.Validate(); err == nil {
			t.Error("Validate() = nil, want error for short summary")
		}
	})
}

func TestEvaluation_ScorePattern(t *testing.T) {
	t.Parallel()

	eval := NewEvaluation("id", 20, 15, 15, "a perfectly fine summary", evalTime())
	if got := eval.ScorePattern(); got != "20/15/15" {
		t.Errorf("ScorePattern() = %q, want %q", got, "20/15/15")
	}
}
