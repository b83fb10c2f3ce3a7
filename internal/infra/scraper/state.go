package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"note-curator/internal/domain/entity"
	"note-curator/internal/utils/jsonutil"
)

// stateMarkers locate the inline state blob inside page scripts, in
// preference order.
var stateMarkers = []string{
	"window.__INITIAL_STATE__",
	"__PRELOADED_STATE__",
}

// extractStateJSON finds the inline state blob in the document's script tags
// and parses it. It first looks for a known assignment marker, then falls
// back to the largest script[type="application/json"] whose body is a JSON
// object (the Next.js-style data script).
func extractStateJSON(doc *goquery.Document) (map[string]any, error) {
	var jsonText string

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, marker := range stateMarkers {
			idx := strings.Index(text, marker)
			if idx < 0 {
				continue
			}
			if obj, ok := jsonutil.ExtractFirstObject(text[idx:]); ok {
				jsonText = obj
				return false
			}
		}
		return true
	})

	if jsonText == "" {
		// Data script variant: the whole script body is a JSON object.
		doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if strings.HasPrefix(text, "{") && len(text) > len(jsonText) {
				jsonText = text
			}
			return true
		})
	}

	if jsonText == "" {
		return nil, fmt.Errorf("%w: state blob not found", entity.ErrParseFailure)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(jsonText), &data); err != nil {
		return nil, fmt.Errorf("%w: state blob: %v", entity.ErrParseFailure, err)
	}

	return data, nil
}

// findNotesInState walks the state blob looking for a "notes" array and
// decodes it into list items. The blob layout varies between pages, so the
// search is depth-first over maps and slices rather than a fixed path.
func findNotesInState(data map[string]any) []noteItem {
	raw := findKeyedArray(data, "notes", 0)
	if raw == nil {
		return nil
	}

	items := make([]noteItem, 0, len(raw))
	for _, entry := range raw {
		item, ok := decodeNote(entry)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items
}

// findNoteInState locates the note object matching the given key (or id)
// anywhere in the state blob.
func findNoteInState(data map[string]any, key string) (noteItem, bool) {
	var found noteItem
	ok := walkState(data, 0, func(m map[string]any) bool {
		k, _ := m["key"].(string)
		id := fmt.Sprintf("%v", m["id"])
		if k != key && id != key {
			return false
		}
		item, decoded := decodeNote(m)
		if !decoded {
			return false
		}
		found = item
		return true
	})
	return found, ok
}

// decodeNote re-marshals a generic map into the typed note item.
func decodeNote(entry any) (noteItem, bool) {
	m, isMap := entry.(map[string]any)
	if !isMap {
		return noteItem{}, false
	}

	data, err := json.Marshal(m)
	if err != nil {
		return noteItem{}, false
	}

	var item noteItem
	if err := json.Unmarshal(data, &item); err != nil {
		return noteItem{}, false
	}
	return item, true
}

// maxStateDepth bounds the recursive walk over the state blob.
const maxStateDepth = 12

// findKeyedArray returns the first array stored under the given key.
func findKeyedArray(node any, key string, depth int) []any {
	if depth > maxStateDepth {
		return nil
	}

	switch v := node.(type) {
	case map[string]any:
		if arr, ok := v[key].([]any); ok && len(arr) > 0 {
			return arr
		}
		for _, child := range v {
			if arr := findKeyedArray(child, key, depth+1); arr != nil {
				return arr
			}
		}
	case []any:
		for _, child := range v {
			if arr := findKeyedArray(child, key, depth+1); arr != nil {
				return arr
			}
		}
	}
	return nil
}

// walkState visits every map in the blob until visit returns true.
func walkState(node any, depth int, visit func(map[string]any) bool) bool {
	if depth > maxStateDepth {
		return false
	}

	switch v := node.(type) {
	case map[string]any:
		if visit(v) {
			return true
		}
		for _, child := range v {
			if walkState(child, depth+1, visit) {
				return true
			}
		}
	case []any:
		for _, child := range v {
			if walkState(child, depth+1, visit) {
				return true
			}
		}
	}
	return false
}
