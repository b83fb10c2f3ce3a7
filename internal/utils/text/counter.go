// Package text provides utilities for text processing and analysis.
// This package includes reusable functions for character counting, cleaning
// and truncation shared by the scraper and the evaluator.
package text

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CountRunes counts the number of Unicode characters (runes) in the given text.
// This function correctly handles multi-byte characters including Japanese,
// emoji and other Unicode characters by counting runes instead of bytes.
func CountRunes(text string) int {
	return len([]rune(text))
}

// TruncateRunes returns the first limit runes of the text. Byte-based slicing
// would split multi-byte characters, so truncation is always rune-based.
func TruncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// StripTags removes HTML tags and collapses runs of whitespace into single
// spaces. It is a lightweight cleaner for preview and evaluation content, not
// a sanitizer.
func StripTags(html string) string {
	cleaned := tagPattern.ReplaceAllString(html, "")
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
