package tasks

import (
	"fmt"
	"strings"

	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
)

// failure builds a TaskFailure with a capped raw preview.
func failure(reason, message, raw string) *models.TaskFailure {
	return &models.TaskFailure{
		Reason:     reason,
		Message:    message,
		RawPreview: RawPreview(raw),
	}
}

// decodeObject recovers the response object, preferring the provider's
// pre-parsed JSON (schema-enforced responses) over text extraction.
func decodeObject(resp *interfaces.InvokeResponse) (map[string]interface{}, *models.TaskFailure) {
	if resp == nil || (len(resp.JSON) == 0 && strings.TrimSpace(resp.Text) == "") {
		return nil, failure(FailEmptyResponse, "model returned an empty response", "")
	}
	if len(resp.JSON) > 0 {
		return resp.JSON, nil
	}
	obj, err := ExtractJSONObject(resp.Text)
	if err != nil {
		return nil, failure(FailStructuredMissing, fmt.Sprintf("no JSON object in response: %v", err), resp.Text)
	}
	return obj, nil
}

func parseSuggestResponse(resp *interfaces.InvokeResponse, ctx *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}

	raw := sliceField(obj, "suggestions")
	if raw == nil {
		return nil, failure(FailStructuredMissing, "response is missing the suggestions array", resp.Text)
	}

	visible := make(map[string]bool, len(ctx.VisibleFieldIDs))
	for _, id := range ctx.VisibleFieldIDs {
		visible[id] = true
	}

	result := &SuggestResult{}
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		fieldID := stringField(entry, "field_id")
		value := stringField(entry, "value")
		if fieldID == "" || value == "" || !models.IsDraftField(fieldID) {
			continue
		}
		if len(visible) > 0 && !visible[fieldID] {
			continue
		}
		confidence, _ := floatField(entry, "confidence")
		result.Candidates = append(result.Candidates, Suggestion{
			FieldID:    fieldID,
			Value:      value,
			Rationale:  stringField(entry, "rationale"),
			Confidence: clampFloat(confidence, 0, 1),
			Source:     stringField(entry, "source"),
		})
	}
	return result, nil
}

func parseRefineResponse(resp *interfaces.InvokeResponse, ctx *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}

	refinedObj := objectField(obj, "refined")
	if refinedObj == nil {
		// Some models return the posting fields at the top level.
		refinedObj = obj
	}

	refined := &models.Draft{}
	assigned := 0
	for _, id := range models.ScalarFieldIDs {
		if v, ok := refinedObj[id].(string); ok && strings.TrimSpace(v) != "" {
			if err := refined.SetField(id, v); err == nil {
				assigned++
			}
		}
	}
	for _, id := range models.ListFieldIDs {
		if v, ok := refinedObj[id]; ok {
			if err := refined.SetField(id, v); err == nil {
				assigned++
			}
		}
	}
	if assigned == 0 {
		return nil, failure(FailStructuredMissing, "refined object contains no recognized draft fields", resp.Text)
	}

	// Fall back to the input for fields the model dropped: refinement must
	// never lose information the user entered.
	if ctx.Draft != nil {
		merged := ctx.Draft.Clone()
		merged.Merge(refined)
		refined = merged
	}

	result := &RefineResult{
		Draft:   refined,
		Summary: stringField(obj, "summary"),
	}
	if metaObj := objectField(obj, "metadata"); metaObj != nil {
		improvement, _ := floatField(metaObj, "improvement_score")
		original, _ := floatField(metaObj, "original_score")
		result.Metadata = &models.RefinementMetadata{
			ImprovementScore: int(clampFloat(improvement, 0, 100)),
			OriginalScore:    int(clampFloat(original, 0, 100)),
			KeyImprovements:  stringSliceField(metaObj, "key_improvements"),
			ImpactSummary:    stringField(metaObj, "impact_summary"),
		}
	}
	return result, nil
}

func parseChannelsResponse(resp *interfaces.InvokeResponse, ctx *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}

	raw := sliceField(obj, "recommendations")
	if raw == nil {
		return nil, failure(FailStructuredMissing, "response is missing the recommendations array", resp.Text)
	}

	allowed := ctx.SupportedChannels
	if len(allowed) == 0 {
		allowed = models.SupportedChannels
	}

	result := &ChannelsResult{}
	seen := make(map[models.Channel]bool)
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		channel := models.NormalizeChannel(stringField(entry, "channel"), allowed)
		if channel == "" || seen[channel] {
			// Unknown and duplicate channels are dropped, not fatal.
			continue
		}
		seen[channel] = true
		rec := models.ChannelRecommendation{
			Channel: channel,
			Reason:  stringField(entry, "reason"),
		}
		if cpa, ok := floatField(entry, "expected_cpa"); ok && cpa >= 0 {
			rec.ExpectedCPA = &cpa
		}
		result.Recommendations = append(result.Recommendations, rec)
	}
	if len(result.Recommendations) == 0 {
		return nil, failure(FailInvalidChannel, "no recommendation matched the supported channel list", resp.Text)
	}
	return result, nil
}

func parseChannelPickerResponse(resp *interfaces.InvokeResponse, ctx *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}

	topObj := objectField(obj, "top_channel")
	if topObj == nil {
		return nil, failure(FailStructuredMissing, "response is missing the top_channel object", resp.Text)
	}

	allowed := ctx.SupportedChannels
	if len(allowed) == 0 {
		allowed = models.SupportedChannels
	}

	channel := models.NormalizeChannel(stringField(topObj, "id"), allowed)
	if channel == "" {
		return nil, failure(FailInvalidChannel,
			fmt.Sprintf("top channel %q is not in the supported channel list", stringField(topObj, "id")), resp.Text)
	}

	fitScore, ok := floatField(topObj, "fit_score")
	if !ok {
		return nil, failure(FailInvalidFitScore, "top_channel.fit_score is missing or not numeric", resp.Text)
	}

	medium := strings.ToLower(stringField(obj, "recommended_medium"))
	switch medium {
	case "video", "image", "text":
	default:
		medium = "text"
	}

	result := &ChannelPickResult{
		TopChannel:        channel,
		FitScore:          clampFloat(fitScore, 0, 100),
		ReasonShort:       stringField(topObj, "reason_short"),
		RecommendedMedium: medium,
		CopyHint:          stringField(obj, "copy_hint"),
	}

	for _, item := range sliceField(obj, "alternatives") {
		if len(result.Alternatives) == 2 {
			break
		}
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		alt := models.NormalizeChannel(stringField(entry, "id"), allowed)
		if alt == "" || alt == channel {
			continue
		}
		result.Alternatives = append(result.Alternatives, ChannelAlternative{
			ID:     alt,
			Reason: stringField(entry, "reason"),
		})
	}

	flags := stringSliceField(obj, "compliance_flags")
	if len(flags) > 5 {
		flags = flags[:5]
	}
	result.ComplianceFlags = flags
	return result, nil
}

func parseAssetCopyResponse(resp *interfaces.InvokeResponse, ctx *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		// Text-mode copy tasks may legitimately answer with plain prose.
		if resp != nil && strings.TrimSpace(resp.Text) != "" && fail.Reason == FailStructuredMissing {
			return &AssetCopyResult{Content: strings.TrimSpace(resp.Text)}, nil
		}
		return nil, fail
	}

	content := stringField(obj, "content")
	if content == "" {
		return nil, failure(FailStructuredMissing, "response is missing the content field", resp.Text)
	}
	result := &AssetCopyResult{Content: content}
	if ctx.PlanRow != nil {
		result.PlanID = string(ctx.PlanRow.ChannelID) + ":" + string(ctx.PlanRow.FormatID)
	}
	return result, nil
}

func parseAssetBatchResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}

	itemsObj := objectField(obj, "items")
	if itemsObj == nil {
		return nil, failure(FailStructuredMissing, "response is missing the items object", resp.Text)
	}

	result := &AssetBatchResult{Items: make(map[string]string, len(itemsObj))}
	for planID, v := range itemsObj {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			result.Items[planID] = strings.TrimSpace(s)
		}
	}
	if len(result.Items) == 0 {
		return nil, failure(FailStructuredMissing, "items object contains no usable entries", resp.Text)
	}
	return result, nil
}

func parseImagePromptResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		if resp != nil && strings.TrimSpace(resp.Text) != "" && fail.Reason == FailStructuredMissing {
			return &ImagePromptResult{Prompt: strings.TrimSpace(resp.Text)}, nil
		}
		return nil, fail
	}
	prompt := stringField(obj, "prompt")
	if prompt == "" {
		return nil, failure(FailStructuredMissing, "response is missing the prompt field", resp.Text)
	}
	return &ImagePromptResult{Prompt: prompt}, nil
}

func parseImageCaptionResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}
	caption := stringField(obj, "caption")
	if caption == "" {
		return nil, failure(FailStructuredMissing, "response is missing the caption field", resp.Text)
	}
	if len(caption) > 180 {
		caption = strings.TrimSpace(cutAtRuneBoundary(caption, 180))
	}
	hashtags := stringSliceField(obj, "hashtags")
	for i, tag := range hashtags {
		hashtags[i] = "#" + strings.TrimPrefix(tag, "#")
	}
	return &ImageCaptionResult{Caption: caption, Hashtags: hashtags}, nil
}

func parseVideoConfigResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}
	duration, _ := floatField(obj, "duration_seconds")
	aspect := stringField(obj, "aspect_ratio")
	switch aspect {
	case "9:16", "1:1", "16:9":
	default:
		aspect = "9:16"
	}
	return &VideoConfigResult{
		DurationSeconds: int(clampFloat(duration, 15, 60)),
		AspectRatio:     aspect,
		Style:           stringField(obj, "style"),
	}, nil
}

func parseVideoStoryboardResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}
	raw := sliceField(obj, "scenes")
	if raw == nil {
		return nil, failure(FailStructuredMissing, "response is missing the scenes array", resp.Text)
	}
	result := &VideoStoryboardResult{}
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		description := stringField(entry, "description")
		if description == "" {
			continue
		}
		sequence, _ := floatField(entry, "sequence")
		result.Scenes = append(result.Scenes, VideoScene{
			Sequence:    int(sequence),
			Description: description,
			OverlayText: stringField(entry, "overlay_text"),
		})
	}
	if len(result.Scenes) == 0 {
		return nil, failure(FailStructuredMissing, "storyboard contains no usable scenes", resp.Text)
	}
	// Renumber so downstream stages never see gaps or zeros.
	for i := range result.Scenes {
		result.Scenes[i].Sequence = i + 1
	}
	return result, nil
}

func parseVideoCaptionResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		if resp != nil && strings.TrimSpace(resp.Text) != "" && fail.Reason == FailStructuredMissing {
			return &VideoCaptionResult{Caption: strings.TrimSpace(resp.Text)}, nil
		}
		return nil, fail
	}
	caption := stringField(obj, "caption")
	if caption == "" {
		return nil, failure(FailStructuredMissing, "response is missing the caption field", resp.Text)
	}
	return &VideoCaptionResult{Caption: caption}, nil
}

func parseVideoComplianceResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		return nil, fail
	}
	approved, ok := boolField(obj, "approved")
	if !ok {
		return nil, failure(FailStructuredMissing, "response is missing the approved field", resp.Text)
	}
	return &VideoComplianceResult{
		Approved: approved,
		Flags:    stringSliceField(obj, "flags"),
	}, nil
}

func parseCopilotResponse(resp *interfaces.InvokeResponse, _ *TaskContext) (interface{}, *models.TaskFailure) {
	obj, fail := decodeObject(resp)
	if fail != nil {
		// A bare text answer is treated as a final message without actions.
		if resp != nil && strings.TrimSpace(resp.Text) != "" && fail.Reason == FailStructuredMissing {
			return &CopilotResult{Type: "final", Message: strings.TrimSpace(resp.Text)}, nil
		}
		return nil, fail
	}

	result := &CopilotResult{Type: stringField(obj, "type")}
	switch result.Type {
	case "tool_call":
		result.Tool = stringField(obj, "tool")
		if result.Tool == "" {
			return nil, failure(FailStructuredMissing, "tool_call response is missing the tool name", resp.Text)
		}
		result.Input = objectField(obj, "input")
		return result, nil
	case "final":
	default:
		result.Type = "final"
	}

	result.Message = stringField(obj, "message")
	for _, item := range sliceField(obj, "actions") {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		actionType := CopilotActionType(stringField(entry, "type"))
		if actionType == "" {
			continue
		}
		result.Actions = append(result.Actions, CopilotAction{
			Type:    actionType,
			Payload: objectField(entry, "payload"),
		})
	}
	if result.Message == "" && len(result.Actions) == 0 {
		return nil, failure(FailStructuredMissing, "final response carries neither a message nor actions", resp.Text)
	}
	return result, nil
}
