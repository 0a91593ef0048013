package tasks

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
)

func textResponse(text string) *interfaces.InvokeResponse {
	return &interfaces.InvokeResponse{Text: text}
}

func testDraft() *models.Draft {
	return &models.Draft{
		RoleTitle:      "Backend Engineer",
		CompanyName:    "Acme GmbH",
		Location:       "Berlin",
		SeniorityLevel: "Senior",
		EmploymentType: "Full-time",
		JobDescription: "Build the platform.",
		Benefits:       []string{"Remote fridays"},
	}
}

func TestParseChannels_DropsUnknownAndDuplicates(t *testing.T) {
	ctx := &TaskContext{SupportedChannels: models.SupportedChannels}
	resp := textResponse(`{"recommendations": [
		{"channel": "linked-in", "reason": "reach", "expected_cpa": 12.5},
		{"channel": "LINKEDIN", "reason": "dup"},
		{"channel": "MYSPACE", "reason": "nope"},
		{"channel": "Google Jobs", "reason": "seo"}
	]}`)

	payload, fail := parseChannelsResponse(resp, ctx)
	require.Nil(t, fail)
	result := payload.(*ChannelsResult)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, models.ChannelLinkedIn, result.Recommendations[0].Channel)
	require.NotNil(t, result.Recommendations[0].ExpectedCPA)
	assert.Equal(t, 12.5, *result.Recommendations[0].ExpectedCPA)
	assert.Equal(t, models.ChannelGoogleJobs, result.Recommendations[1].Channel)
}

func TestParseChannels_AllUnknownFails(t *testing.T) {
	ctx := &TaskContext{SupportedChannels: models.SupportedChannels}
	resp := textResponse(`{"recommendations": [{"channel": "MYSPACE", "reason": "x"}]}`)

	_, fail := parseChannelsResponse(resp, ctx)
	require.NotNil(t, fail)
	assert.Equal(t, FailInvalidChannel, fail.Reason)
}

func TestParseChannels_MissingArray(t *testing.T) {
	_, fail := parseChannelsResponse(textResponse(`{"channels": []}`), &TaskContext{})
	require.NotNil(t, fail)
	assert.Equal(t, FailStructuredMissing, fail.Reason)
}

func TestParseChannelPicker_ClampsAndBounds(t *testing.T) {
	ctx := &TaskContext{SupportedChannels: models.SupportedChannels}
	resp := textResponse(`{
		"top_channel": {"id": "tiktok", "fit_score": 180, "reason_short": "young audience"},
		"recommended_medium": "hologram",
		"alternatives": [
			{"id": "INSTAGRAM", "reason": "a"},
			{"id": "TIKTOK", "reason": "same as top"},
			{"id": "X", "reason": "b"},
			{"id": "FACEBOOK", "reason": "c"}
		],
		"compliance_flags": ["f1", "f2", "f3", "f4", "f5", "f6", "f7"]
	}`)

	payload, fail := parseChannelPickerResponse(resp, ctx)
	require.Nil(t, fail)
	result := payload.(*ChannelPickResult)
	assert.Equal(t, models.ChannelTikTok, result.TopChannel)
	assert.Equal(t, 100.0, result.FitScore)
	assert.Equal(t, "text", result.RecommendedMedium)
	assert.Len(t, result.Alternatives, 2)
	assert.Equal(t, models.ChannelInstagram, result.Alternatives[0].ID)
	assert.Equal(t, models.ChannelX, result.Alternatives[1].ID)
	assert.Len(t, result.ComplianceFlags, 5)
}

func TestParseChannelPicker_InvalidFitScore(t *testing.T) {
	resp := textResponse(`{"top_channel": {"id": "LINKEDIN", "fit_score": "great"}, "recommended_medium": "text"}`)
	_, fail := parseChannelPickerResponse(resp, &TaskContext{})
	require.NotNil(t, fail)
	assert.Equal(t, FailInvalidFitScore, fail.Reason)
}

func TestParseChannelPicker_UnknownTopChannel(t *testing.T) {
	resp := textResponse(`{"top_channel": {"id": "MYSPACE", "fit_score": 70}, "recommended_medium": "text"}`)
	_, fail := parseChannelPickerResponse(resp, &TaskContext{})
	require.NotNil(t, fail)
	assert.Equal(t, FailInvalidChannel, fail.Reason)
}

func TestParseSuggest_FiltersAndClamps(t *testing.T) {
	ctx := &TaskContext{VisibleFieldIDs: []string{"industry", "workModel"}}
	resp := textResponse(`{"suggestions": [
		{"field_id": "industry", "value": "Software", "confidence": 3.5},
		{"field_id": "salary", "value": "90000", "confidence": 0.9},
		{"field_id": "bogusField", "value": "x", "confidence": 0.5},
		{"field_id": "workModel", "value": "", "confidence": 0.5}
	]}`)

	payload, fail := parseSuggestResponse(resp, ctx)
	require.Nil(t, fail)
	result := payload.(*SuggestResult)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "industry", result.Candidates[0].FieldID)
	assert.Equal(t, 1.0, result.Candidates[0].Confidence)
}

func TestParseRefine_FallsBackToInputForDroppedFields(t *testing.T) {
	ctx := &TaskContext{Draft: testDraft()}
	resp := textResponse(`{
		"refined": {"roleTitle": "Senior Backend Engineer (Go)", "jobDescription": "Own the platform backend."},
		"summary": "Sharpened title and description.",
		"metadata": {"improvement_score": 240, "original_score": -3, "key_improvements": ["title"]}
	}`)

	payload, fail := parseRefineResponse(resp, ctx)
	require.Nil(t, fail)
	result := payload.(*RefineResult)
	assert.Equal(t, "Senior Backend Engineer (Go)", result.Draft.RoleTitle)
	assert.Equal(t, "Acme GmbH", result.Draft.CompanyName)
	assert.Equal(t, []string{"Remote fridays"}, result.Draft.Benefits)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, 100, result.Metadata.ImprovementScore)
	assert.Equal(t, 0, result.Metadata.OriginalScore)
}

func TestParseRefine_NoRecognizedFields(t *testing.T) {
	_, fail := parseRefineResponse(textResponse(`{"refined": {"somethingElse": true}}`), &TaskContext{})
	require.NotNil(t, fail)
	assert.Equal(t, FailStructuredMissing, fail.Reason)
}

func TestParseAssetCopy_PlainTextFallback(t *testing.T) {
	ctx := &TaskContext{PlanRow: &models.AssetPlanRow{FormatID: models.FormatXPost, ChannelID: models.ChannelX}}
	payload, fail := parseAssetCopyResponse(textResponse("We are hiring a Backend Engineer in Berlin!"), ctx)
	require.Nil(t, fail)
	assert.Equal(t, "We are hiring a Backend Engineer in Berlin!", payload.(*AssetCopyResult).Content)
}

func TestParseAssetCopy_EmptyResponse(t *testing.T) {
	_, fail := parseAssetCopyResponse(textResponse("   "), &TaskContext{})
	require.NotNil(t, fail)
	assert.Equal(t, FailEmptyResponse, fail.Reason)
}

func TestParseAssetBatch(t *testing.T) {
	resp := textResponse(`{"items": {"X:X_POST": "short post", "X:SOCIAL_IMAGE_CAPTION": "caption", "bad": 42}}`)
	payload, fail := parseAssetBatchResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*AssetBatchResult)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, "short post", result.Items["X:X_POST"])
}

func TestParseImageCaption_TruncatesTo180(t *testing.T) {
	long := strings.Repeat("a", 300)
	resp := textResponse(`{"caption": "` + long + `", "hashtags": ["hiring", "#berlin"]}`)
	payload, fail := parseImageCaptionResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*ImageCaptionResult)
	assert.LessOrEqual(t, len(result.Caption), 180)
	assert.Equal(t, []string{"#hiring", "#berlin"}, result.Hashtags)
}

func TestParseImageCaption_TruncationKeepsValidUTF8(t *testing.T) {
	// Byte 180 lands inside the two-byte "ü".
	long := strings.Repeat("a", 179) + strings.Repeat("ü", 20)
	resp := textResponse(`{"caption": "` + long + `"}`)
	payload, fail := parseImageCaptionResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*ImageCaptionResult)
	assert.True(t, utf8.ValidString(result.Caption))
	assert.LessOrEqual(t, len(result.Caption), 180)
}

func TestParseVideoConfig_ClampsDurationAndAspect(t *testing.T) {
	resp := textResponse(`{"duration_seconds": 600, "aspect_ratio": "4:3", "style": "upbeat"}`)
	payload, fail := parseVideoConfigResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*VideoConfigResult)
	assert.Equal(t, 60, result.DurationSeconds)
	assert.Equal(t, "9:16", result.AspectRatio)
}

func TestParseVideoStoryboard_Renumbers(t *testing.T) {
	resp := textResponse(`{"scenes": [
		{"sequence": 7, "description": "office shot", "overlay_text": "Join Acme"},
		{"description": ""},
		{"sequence": 2, "description": "CTA", "overlay_text": "Apply now"}
	]}`)
	payload, fail := parseVideoStoryboardResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*VideoStoryboardResult)
	require.Len(t, result.Scenes, 2)
	assert.Equal(t, 1, result.Scenes[0].Sequence)
	assert.Equal(t, 2, result.Scenes[1].Sequence)
}

func TestParseVideoCompliance(t *testing.T) {
	payload, fail := parseVideoComplianceResponse(textResponse(`{"approved": false, "flags": ["age wording"]}`), &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*VideoComplianceResult)
	assert.False(t, result.Approved)
	assert.Equal(t, []string{"age wording"}, result.Flags)

	_, fail = parseVideoComplianceResponse(textResponse(`{"flags": []}`), &TaskContext{})
	require.NotNil(t, fail)
	assert.Equal(t, FailStructuredMissing, fail.Reason)
}

func TestParseCopilot_ToolCall(t *testing.T) {
	resp := textResponse(`{"type": "tool_call", "tool": "get_job", "input": {}}`)
	payload, fail := parseCopilotResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*CopilotResult)
	assert.Equal(t, "tool_call", result.Type)
	assert.Equal(t, "get_job", result.Tool)
}

func TestParseCopilot_FinalWithActions(t *testing.T) {
	resp := textResponse(`{"type": "final", "message": "Updated the title.", "actions": [
		{"type": "field_update", "payload": {"field_id": "roleTitle", "value": "Staff Engineer"}},
		{"type": ""}
	]}`)
	payload, fail := parseCopilotResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*CopilotResult)
	assert.Equal(t, "final", result.Type)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, ActionFieldUpdate, result.Actions[0].Type)
}

func TestParseCopilot_BareTextBecomesFinal(t *testing.T) {
	payload, fail := parseCopilotResponse(textResponse("Your posting looks solid already."), &TaskContext{})
	require.Nil(t, fail)
	result := payload.(*CopilotResult)
	assert.Equal(t, "final", result.Type)
	assert.Equal(t, "Your posting looks solid already.", result.Message)
}

func TestDecodeObject_PrefersPreparsedJSON(t *testing.T) {
	resp := &interfaces.InvokeResponse{
		Text: "not json at all",
		JSON: map[string]interface{}{"caption": "from schema"},
	}
	payload, fail := parseImageCaptionResponse(resp, &TaskContext{})
	require.Nil(t, fail)
	assert.Equal(t, "from schema", payload.(*ImageCaptionResult).Caption)
}

func TestFailurePreviewIsCapped(t *testing.T) {
	long := "prose without json " + strings.Repeat("y", 1000)
	_, fail := parseChannelsResponse(textResponse(long), &TaskContext{})
	require.NotNil(t, fail)
	assert.LessOrEqual(t, len(fail.RawPreview), 512)
}
