package tasks

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject_Direct(t *testing.T) {
	obj, err := ExtractJSONObject(`{"caption": "Join us", "hashtags": ["hiring"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Join us", obj["caption"])
}

func TestExtractJSONObject_MarkdownFence(t *testing.T) {
	text := "Here is the result:\n```json\n{\"content\": \"copy\"}\n```\nLet me know!"
	obj, err := ExtractJSONObject(text)
	require.NoError(t, err)
	assert.Equal(t, "copy", obj["content"])
}

func TestExtractJSONObject_SurroundingProse(t *testing.T) {
	text := `Sure! The recommendations are {"recommendations": [{"channel": "LINKEDIN", "reason": "reach"}]} as requested.`
	obj, err := ExtractJSONObject(text)
	require.NoError(t, err)
	assert.Contains(t, obj, "recommendations")
}

func TestExtractJSONObject_TrailingComma(t *testing.T) {
	obj, err := ExtractJSONObject(`{"a": 1, "b": [1, 2,],}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	_, err := ExtractJSONObject("I could not produce a result.")
	assert.Error(t, err)

	_, err = ExtractJSONObject("")
	assert.Error(t, err)
}

func TestRawPreview_Caps(t *testing.T) {
	long := strings.Repeat("x", 2000)
	assert.Len(t, RawPreview(long), 512)
	assert.Equal(t, "short", RawPreview("  short  "))
}

func TestRawPreview_NeverSplitsARune(t *testing.T) {
	// Byte 512 lands inside the two-byte "é".
	text := strings.Repeat("a", 511) + strings.Repeat("é", 10)
	preview := RawPreview(text)
	assert.True(t, utf8.ValidString(preview))
	assert.Len(t, preview, 511)
}

func TestClampFloat(t *testing.T) {
	assert.Equal(t, 0.0, clampFloat(-5, 0, 100))
	assert.Equal(t, 100.0, clampFloat(250, 0, 100))
	assert.Equal(t, 42.0, clampFloat(42, 0, 100))
}
