package tasks

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSONObject recovers a single JSON object from model output text.
// Models sometimes wrap JSON in markdown fences, surround it with prose, or
// leave a trailing comma before a closing brace; all three are tolerated.
func ExtractJSONObject(text string) (map[string]interface{}, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	// Direct parse first: the common case with well-behaved models.
	var direct map[string]interface{}
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct, nil
	}

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		if obj, err := parseObjectCandidate(m[1]); err == nil {
			return obj, nil
		}
	}

	// Fall back to the outermost brace pair.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in text")
	}
	return parseObjectCandidate(text[start : end+1])
}

func parseObjectCandidate(candidate string) (map[string]interface{}, error) {
	candidate = strings.TrimSpace(candidate)
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return obj, nil
	}

	repaired := trailingCommaPattern.ReplaceAllString(candidate, "$1")
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return obj, nil
}

// RawPreview truncates raw model output for failure records. Previews are
// capped at 512 bytes so failure payloads stay small.
func RawPreview(text string) string {
	const maxPreview = 512
	return cutAtRuneBoundary(strings.TrimSpace(text), maxPreview)
}

// cutAtRuneBoundary truncates s to at most max bytes, backing up so the cut
// never splits a UTF-8 rune.
func cutAtRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// clampFloat bounds v to [lo, hi].
func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// stringField reads a string value from a decoded JSON object, trimmed.
func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// floatField reads a numeric value, accepting JSON numbers and numeric
// strings.
func floatField(obj map[string]interface{}, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// boolField reads a boolean value, accepting "true"/"false" strings.
func boolField(obj map[string]interface{}, key string) (bool, bool) {
	switch v := obj[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// sliceField reads an array value from a decoded JSON object.
func sliceField(obj map[string]interface{}, key string) []interface{} {
	if v, ok := obj[key].([]interface{}); ok {
		return v
	}
	return nil
}

// objectField reads a nested object value.
func objectField(obj map[string]interface{}, key string) map[string]interface{} {
	if v, ok := obj[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// stringSliceField reads an array of strings, skipping non-string entries
// and empties.
func stringSliceField(obj map[string]interface{}, key string) []string {
	raw := sliceField(obj, key)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
