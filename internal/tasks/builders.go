package tasks

import (
	"encoding/json"

	"github.com/botsonlabs/jobforge/internal/models"
)

// strictDirective is prepended to prompts on retry after a parse failure.
// It is the only behavioral difference between a first attempt and a retry.
const strictDirective = "Respond with exactly one JSON object matching the response contract. " +
	"Do not use markdown fences. Do not add any text before or after the object.\n\n"

// renderPrompt marshals a prompt document to indented JSON. Builders are
// pure: same context in, same string out. Struct-based documents keep field
// order stable across runs.
func renderPrompt(ctx *TaskContext, doc interface{}) string {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		b = []byte("{}")
	}
	if ctx.StrictMode {
		return strictDirective + string(b)
	}
	return string(b)
}

// contract wraps a literal response-contract JSON snippet so it embeds
// verbatim in the prompt document.
type contract = json.RawMessage

type conversationEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func conversationEntries(messages []*models.ConversationMessage, limit int) []conversationEntry {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	out := make([]conversationEntry, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		out = append(out, conversationEntry{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func buildSuggestPrompt(ctx *TaskContext) string {
	doc := struct {
		Task                string        `json:"task"`
		Instructions        string        `json:"instructions"`
		JobPosting          *models.Draft `json:"job_posting"`
		VisibleFields       []string      `json:"visible_fields,omitempty"`
		UpdatedField        string        `json:"updated_field,omitempty"`
		PreviousSuggestions []Suggestion  `json:"previous_suggestions,omitempty"`
		CompanyContext      string        `json:"company_context,omitempty"`
		ResponseContract    contract      `json:"response_contract"`
	}{
		Task: "suggest_field_values",
		Instructions: "Propose values for empty fields of this job posting draft. " +
			"Only suggest fields listed in visible_fields. Never overwrite a field " +
			"the user already filled. Keep each rationale to one sentence.",
		JobPosting:          ctx.Snapshot(),
		VisibleFields:       ctx.VisibleFieldIDs,
		UpdatedField:        ctx.UpdatedFieldID,
		PreviousSuggestions: ctx.PreviousSuggestions,
		CompanyContext:      ctx.CompanyContext,
		ResponseContract: contract(`{"suggestions":[{"field_id":"string","value":"string",` +
			`"rationale":"string","confidence":"number 0..1","source":"string"}]}`),
	}
	return renderPrompt(ctx, doc)
}

func buildRefinePrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string        `json:"task"`
		Instructions     string        `json:"instructions"`
		JobPosting       *models.Draft `json:"job_posting"`
		FieldCatalog     []string      `json:"field_catalog"`
		ResponseContract contract      `json:"response_contract"`
	}{
		Task: "refine_job_posting",
		Instructions: "Rewrite this job posting to be clearer and more attractive to " +
			"candidates while staying factually faithful to the input. Return the " +
			"complete refined posting with every field present in the input. Keep " +
			"field ids exactly as given in field_catalog. Never invent salary, " +
			"location or company facts that are not in the input.",
		JobPosting:   ctx.Draft,
		FieldCatalog: append(append([]string{}, models.ScalarFieldIDs...), models.ListFieldIDs...),
		ResponseContract: contract(`{"refined":{"roleTitle":"string","...":"all input fields"},` +
			`"summary":"string, one paragraph","metadata":{"improvement_score":"integer 0..100",` +
			`"original_score":"integer 0..100","key_improvements":["string"],"impact_summary":"string"}}`),
	}
	return renderPrompt(ctx, doc)
}

func buildChannelsPrompt(ctx *TaskContext) string {
	doc := struct {
		Task              string           `json:"task"`
		Instructions      string           `json:"instructions"`
		JobPosting        *models.Draft    `json:"job_posting"`
		SupportedChannels []models.Channel `json:"supported_channels"`
		ResponseContract  contract         `json:"response_contract"`
	}{
		Task: "recommend_channels",
		Instructions: "Rank the supported distribution channels by expected recruiting " +
			"performance for this job posting, best first. Use only channel ids from " +
			"supported_channels. Give one short reason per channel. expected_cpa is an " +
			"optional cost-per-application estimate in EUR.",
		JobPosting:        ctx.Snapshot(),
		SupportedChannels: ctx.SupportedChannels,
		ResponseContract: contract(`{"recommendations":[{"channel":"string from supported_channels",` +
			`"reason":"string","expected_cpa":"number, optional"}]}`),
	}
	return renderPrompt(ctx, doc)
}

func buildChannelPickerPrompt(ctx *TaskContext) string {
	doc := struct {
		Task              string           `json:"task"`
		Instructions      string           `json:"instructions"`
		JobPosting        *models.Draft    `json:"job_posting"`
		SupportedChannels []models.Channel `json:"supported_channels"`
		ResponseContract  contract         `json:"response_contract"`
	}{
		Task: "pick_top_channel",
		Instructions: "Pick the single best distribution channel for this job posting. " +
			"fit_score is 0..100. recommended_medium is one of video, image, text. " +
			"List at most 2 alternatives and at most 5 compliance flags.",
		JobPosting:        ctx.Snapshot(),
		SupportedChannels: ctx.SupportedChannels,
		ResponseContract: contract(`{"top_channel":{"id":"string from supported_channels",` +
			`"fit_score":"number 0..100","reason_short":"string"},` +
			`"recommended_medium":"video|image|text","copy_hint":"string",` +
			`"alternatives":[{"id":"string","reason":"string"}],"compliance_flags":["string"]}`),
	}
	return renderPrompt(ctx, doc)
}

func buildAssetMasterPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string              `json:"task"`
		Instructions     string              `json:"instructions"`
		JobPosting       *models.Draft       `json:"job_posting"`
		Plan             *models.AssetPlanRow `json:"plan"`
		ResponseContract contract            `json:"response_contract"`
	}{
		Task: "write_master_copy",
		Instructions: "Write the canonical long-form recruiting copy for this job " +
			"posting. This master text is later adapted per channel, so cover role, " +
			"company, duties, requirements and benefits in full sentences without " +
			"channel-specific formatting.",
		JobPosting: ctx.Snapshot(),
		Plan:       ctx.PlanRow,
		ResponseContract: contract(`{"content":"string, the full master copy"}`),
	}
	return renderPrompt(ctx, doc)
}

func buildAssetAdaptPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string              `json:"task"`
		Instructions     string              `json:"instructions"`
		MasterContent    string              `json:"master_content"`
		JobPosting       *models.Draft       `json:"job_posting"`
		Plan             *models.AssetPlanRow `json:"plan"`
		ResponseContract contract            `json:"response_contract"`
	}{
		Task: "adapt_copy_for_channel",
		Instructions: "Adapt the master copy to the target channel and format in plan. " +
			"Respect the channel's tone and typical length. Do not introduce facts " +
			"absent from the master copy or the job posting.",
		MasterContent: ctx.MasterContent,
		JobPosting:    ctx.Snapshot(),
		Plan:          ctx.PlanRow,
		ResponseContract: contract(`{"content":"string, the adapted copy"}`),
	}
	return renderPrompt(ctx, doc)
}

func buildAssetChannelBatchPrompt(ctx *TaskContext) string {
	type planItem struct {
		PlanID    string          `json:"plan_id"`
		FormatID  models.FormatID `json:"format_id"`
		ChannelID models.Channel  `json:"channel_id"`
	}
	items := make([]planItem, 0, len(ctx.PlanRows))
	for _, row := range ctx.PlanRows {
		items = append(items, planItem{
			PlanID:    string(row.ChannelID) + ":" + string(row.FormatID),
			FormatID:  row.FormatID,
			ChannelID: row.ChannelID,
		})
	}
	doc := struct {
		Task             string        `json:"task"`
		Instructions     string        `json:"instructions"`
		MasterContent    string        `json:"master_content"`
		JobPosting       *models.Draft `json:"job_posting"`
		Plan             []planItem    `json:"plan"`
		ResponseContract contract      `json:"response_contract"`
	}{
		Task: "adapt_copy_batch",
		Instructions: "Adapt the master copy for every plan entry in one pass. The " +
			"items object must contain exactly one entry per plan_id.",
		MasterContent: ctx.MasterContent,
		JobPosting:    ctx.Snapshot(),
		Plan:          items,
		ResponseContract: contract(`{"items":{"<plan_id>":"string, adapted copy per plan entry"}}`),
	}
	return renderPrompt(ctx, doc)
}

func buildImagePromptPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string        `json:"task"`
		Instructions     string        `json:"instructions"`
		JobPosting       *models.Draft `json:"job_posting"`
		ResponseContract contract      `json:"response_contract"`
	}{
		Task: "write_hero_image_prompt",
		Instructions: "Write one image-generation prompt for a hero image promoting " +
			"this job posting. Describe scene, mood and style in concrete visual " +
			"terms. No text overlays, no logos, no real people's names.",
		JobPosting: ctx.Snapshot(),
		ResponseContract: contract(`{"prompt":"string, the image generation prompt"}`),
	}
	return renderPrompt(ctx, doc)
}

func buildImageCaptionPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string        `json:"task"`
		Instructions     string        `json:"instructions"`
		JobPosting       *models.Draft `json:"job_posting"`
		ImagePrompt      string        `json:"image_prompt,omitempty"`
		ResponseContract contract      `json:"response_contract"`
	}{
		Task: "write_image_caption",
		Instructions: "Write a social media caption for the hero image of this job " +
			"posting. The caption must be at most 180 characters. Add 2 to 5 " +
			"hashtags without the leading # repeated in the caption text.",
		JobPosting:  ctx.Snapshot(),
		ImagePrompt: ctx.ImagePrompt,
		ResponseContract: contract(`{"caption":"string, max 180 characters","hashtags":["string"]}`),
	}
	return renderPrompt(ctx, doc)
}

func buildVideoConfigPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string        `json:"task"`
		Instructions     string        `json:"instructions"`
		JobPosting       *models.Draft `json:"job_posting"`
		ResponseContract contract      `json:"response_contract"`
	}{
		Task: "plan_video_config",
		Instructions: "Choose the production parameters for a short recruiting video " +
			"for this job posting. duration_seconds between 15 and 60. aspect_ratio " +
			"is one of 9:16, 1:1, 16:9.",
		JobPosting: ctx.Snapshot(),
		ResponseContract: contract(`{"duration_seconds":"integer 15..60",` +
			`"aspect_ratio":"9:16|1:1|16:9","style":"string"}`),
	}
	return renderPrompt(ctx, doc)
}

func buildVideoStoryboardPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string             `json:"task"`
		Instructions     string             `json:"instructions"`
		JobPosting       *models.Draft      `json:"job_posting"`
		Config           *VideoConfigResult `json:"config,omitempty"`
		ResponseContract contract           `json:"response_contract"`
	}{
		Task: "write_video_storyboard",
		Instructions: "Write a scene-by-scene storyboard for a recruiting video with " +
			"the given config. 3 to 6 scenes, each with a visual description and a " +
			"short text overlay. The last scene is the call to action.",
		JobPosting: ctx.Snapshot(),
		Config:     ctx.VideoConfig,
		ResponseContract: contract(`{"scenes":[{"sequence":"integer starting at 1",` +
			`"description":"string","overlay_text":"string"}]}`),
	}
	return renderPrompt(ctx, doc)
}

func buildVideoCaptionPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string                 `json:"task"`
		Instructions     string                 `json:"instructions"`
		JobPosting       *models.Draft          `json:"job_posting"`
		Storyboard       *VideoStoryboardResult `json:"storyboard,omitempty"`
		ResponseContract contract               `json:"response_contract"`
	}{
		Task: "write_video_caption",
		Instructions: "Write the social media caption posted alongside the recruiting " +
			"video described by the storyboard. Keep it under 200 characters.",
		JobPosting: ctx.Snapshot(),
		Storyboard: ctx.VideoStoryboard,
		ResponseContract: contract(`{"caption":"string"}`),
	}
	return renderPrompt(ctx, doc)
}

func buildVideoCompliancePrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string                 `json:"task"`
		Instructions     string                 `json:"instructions"`
		JobPosting       *models.Draft          `json:"job_posting"`
		Storyboard       *VideoStoryboardResult `json:"storyboard,omitempty"`
		Caption          string                 `json:"caption,omitempty"`
		ResponseContract contract               `json:"response_contract"`
	}{
		Task: "review_video_compliance",
		Instructions: "Review storyboard and caption for discrimination, misleading " +
			"claims and platform policy issues. approved is false if any flag is " +
			"blocking. List every concern as a short flag string.",
		JobPosting: ctx.Snapshot(),
		Storyboard: ctx.VideoStoryboard,
		Caption:    ctx.VideoCaption,
		ResponseContract: contract(`{"approved":"boolean","flags":["string"]}`),
	}
	return renderPrompt(ctx, doc)
}

func buildCopilotPrompt(ctx *TaskContext) string {
	doc := struct {
		Task             string              `json:"task"`
		Instructions     string              `json:"instructions"`
		Stage            string              `json:"stage,omitempty"`
		JobPosting       *models.Draft       `json:"job_posting"`
		RefinedPosting   *models.Draft       `json:"refined_posting,omitempty"`
		Conversation     []conversationEntry `json:"conversation"`
		Tools            contract            `json:"tools"`
		Actions          contract            `json:"actions"`
		ResponseContract contract            `json:"response_contract"`
	}{
		Task: "copilot_turn",
		Instructions: "You are the job posting copilot. Answer the user's latest " +
			"message. When you need data, emit a tool_call response and wait for the " +
			"tool result in the conversation. When you are done, emit a final " +
			"response with an answer message and zero or more actions that update " +
			"the job. Only reference fields from the job posting.",
		Stage:          ctx.Stage,
		JobPosting:     ctx.Draft,
		RefinedPosting: ctx.RefinedDraft,
		Conversation:   conversationEntries(ctx.Conversation, 40),
		Tools: contract(`[{"name":"get_job","description":"Fetch the current job record",` +
			`"input":{}},{"name":"get_channel_recommendations",` +
			`"description":"Fetch the stored channel recommendations","input":{}},` +
			`{"name":"refresh_channels","description":"Re-rank the distribution ` +
			`channels for the finalized posting and store the result","input":{}}]`),
		Actions: contract(`["field_update","field_batch_update","refined_field_update",` +
			`"refined_field_batch_update","channel_recommendations_update","asset_update"]`),
		ResponseContract: contract(`{"type":"tool_call|final","tool":"string, tool_call only",` +
			`"input":"object, tool_call only","message":"string, final only",` +
			`"actions":[{"type":"string from actions","payload":"object"}]}`),
	}
	return renderPrompt(ctx, doc)
}
