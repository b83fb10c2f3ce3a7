package scraper

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNoteItem_AlternativeFieldNames(t *testing.T) {
	t.Parallel()

	camel := `{"key":"k","name":"t","user":{"urlname":"u"},"publishAt":"2025-06-01T00:00:00Z","eyecatch":"camel.png"}`
	snake := `{"key":"k","name":"t","user":{"urlname":"u"},"publish_at":"2025-06-01T00:00:00Z","eyecatch_url":"snake.png"}`

	var fromCamel, fromSnake noteItem
	if err := json.Unmarshal([]byte(camel), &fromCamel); err != nil {
		t.Fatalf("unmarshal camel: %v", err)
	}
	if err := json.Unmarshal([]byte(snake), &fromSnake); err != nil {
		t.Fatalf("unmarshal snake: %v", err)
	}

	if fromCamel.publishAt() != fromSnake.publishAt() {
		t.Errorf("publishAt differs: %q vs %q", fromCamel.publishAt(), fromSnake.publishAt())
	}
	if fromCamel.thumbnail() != "camel.png" {
		t.Errorf("camel thumbnail = %q", fromCamel.thumbnail())
	}
	if fromSnake.thumbnail() != "snake.png" {
		t.Errorf("snake thumbnail = %q", fromSnake.thumbnail())
	}
}

func TestNoteItem_FlexibleID(t *testing.T) {
	t.Parallel()

	var numeric, str noteItem
	if err := json.Unmarshal([]byte(`{"id":42,"key":"k"}`), &numeric); err != nil {
		t.Fatalf("unmarshal numeric id: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"id":"42","key":"k"}`), &str); err != nil {
		t.Fatalf("unmarshal string id: %v", err)
	}

	if numeric.ID != "42" || str.ID != "42" {
		t.Errorf("IDs = %q / %q, want both \"42\"", numeric.ID, str.ID)
	}
}

func TestNoteItem_CanReadDefaultsTrue(t *testing.T) {
	t.Parallel()

	var absent, explicit noteItem
	_ = json.Unmarshal([]byte(`{"key":"k"}`), &absent)
	_ = json.Unmarshal([]byte(`{"key":"k","can_read":false}`), &explicit)

	if !absent.canRead() {
		t.Error("canRead() = false for absent field, want true")
	}
	if explicit.canRead() {
		t.Error("canRead() = true for explicit false")
	}
}

func TestParseNoteTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339 utc", "2025-06-15T10:00:00Z", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 jst", "2025-06-15T10:00:00+09:00", time.Date(2025, 6, 15, 10, 0, 0, 0, time.FixedZone("", 9*3600))},
		{"naive treated as utc", "2025-06-15T10:00:00", time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)},
		{"date only", "2025-06-15", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"empty", "", time.Time{}},
		{"garbage", "not a time", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseNoteTime(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("parseNoteTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNoteListResponse_IsLastVariants(t *testing.T) {
	t.Parallel()

	var camel, snake noteListResponse
	_ = json.Unmarshal([]byte(`{"data":{"isLast":true}}`), &camel)
	_ = json.Unmarshal([]byte(`{"data":{"is_last":true}}`), &snake)

	if !camel.isLast() || !snake.isLast() {
		t.Error("isLast() should accept both field spellings")
	}
}
