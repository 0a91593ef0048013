package tasks

import (
	"github.com/botsonlabs/jobforge/internal/models"
)

// Failure reasons emitted by parsers and the orchestrator. These are part
// of the caller-facing contract and must stay stable.
const (
	FailInvokeFailed      = "invoke_failed"
	FailStructuredMissing = "structured_missing"
	FailInvalidChannel    = "invalid_channel"
	FailInvalidFitScore   = "invalid_fit_score"
	FailEmptyResponse     = "empty_response"
	FailParserException   = "parser_exception"
	FailUnknownFailure    = "unknown_failure"
)

// Suggestion is one autofill candidate from the suggest task.
type Suggestion struct {
	FieldID    string  `json:"field_id"`
	Value      string  `json:"value"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// TaskContext is the explicit value threaded through builder, adapter and
// parser. Builders must treat every user-controlled string in it as data,
// never as instructions.
type TaskContext struct {
	JobID string
	Route string // request-scoped telemetry tag

	// Attempt and StrictMode are set by the orchestrator. StrictMode is the
	// sole behavioral change on retry: builders prepend a directive
	// requiring a single JSON object with no surrounding prose.
	Attempt    int
	StrictMode bool

	// Job snapshot
	Draft        *models.Draft
	RefinedDraft *models.Draft

	// suggest
	VisibleFieldIDs     []string
	UpdatedFieldID      string
	PreviousSuggestions []Suggestion
	CompanyContext      string

	// channels / channel_picker
	SupportedChannels []models.Channel

	// asset tasks
	PlanRow       *models.AssetPlanRow
	PlanRows      []models.AssetPlanRow
	MasterContent string

	// staged video tasks: each stage consumes the previous stage's output
	VideoConfig     *VideoConfigResult
	VideoStoryboard *VideoStoryboardResult
	VideoCaption    string

	// image tasks
	ImagePrompt string

	// copilot
	Conversation []*models.ConversationMessage
	Stage        string
}

// Snapshot returns the draft the task should reason about: the refined
// draft when present, else the original.
func (c *TaskContext) Snapshot() *models.Draft {
	if c.RefinedDraft != nil {
		return c.RefinedDraft
	}
	return c.Draft
}

// RefineResult is the payload of the refine task.
type RefineResult struct {
	Draft    *models.Draft
	Summary  string
	Metadata *models.RefinementMetadata
}

// SuggestResult is the payload of the suggest task.
type SuggestResult struct {
	Candidates []Suggestion
}

// ChannelsResult is the payload of the channels task.
type ChannelsResult struct {
	Recommendations []models.ChannelRecommendation
}

// ChannelAlternative is a runner-up in the channel_picker result.
type ChannelAlternative struct {
	ID     models.Channel `json:"id"`
	Reason string         `json:"reason"`
}

// ChannelPickResult is the payload of the channel_picker task.
type ChannelPickResult struct {
	TopChannel        models.Channel
	FitScore          float64
	ReasonShort       string
	RecommendedMedium string // video, image or text
	CopyHint          string
	Alternatives      []ChannelAlternative // at most 2
	ComplianceFlags   []string             // at most 5
}

// AssetCopyResult is the payload of asset_master and asset_adapt.
type AssetCopyResult struct {
	PlanID  string
	Content string
}

// AssetBatchResult is the payload of asset_channel_batch: copy bundles
// keyed by plan_id.
type AssetBatchResult struct {
	Items map[string]string
}

// VideoConfigResult is the payload of video_config.
type VideoConfigResult struct {
	DurationSeconds int    `json:"duration_seconds"`
	AspectRatio     string `json:"aspect_ratio"`
	Style           string `json:"style"`
}

// VideoScene is one storyboard entry.
type VideoScene struct {
	Sequence    int    `json:"sequence"`
	Description string `json:"description"`
	OverlayText string `json:"overlay_text"`
}

// VideoStoryboardResult is the payload of video_storyboard.
type VideoStoryboardResult struct {
	Scenes []VideoScene
}

// VideoCaptionResult is the payload of video_caption.
type VideoCaptionResult struct {
	Caption string
}

// VideoComplianceResult is the payload of video_compliance.
type VideoComplianceResult struct {
	Approved bool
	Flags    []string
}

// ImagePromptResult is the payload of image_prompt.
type ImagePromptResult struct {
	Prompt string
}

// ImageCaptionResult is the payload of image_caption.
type ImageCaptionResult struct {
	Caption  string // at most 180 characters
	Hashtags []string
}

// CopilotActionType enumerates the actions the copilot agent may emit.
type CopilotActionType string

const (
	ActionFieldUpdate             CopilotActionType = "field_update"
	ActionFieldBatchUpdate        CopilotActionType = "field_batch_update"
	ActionRefinedFieldUpdate      CopilotActionType = "refined_field_update"
	ActionRefinedFieldBatchUpdate CopilotActionType = "refined_field_batch_update"
	ActionChannelRecsUpdate       CopilotActionType = "channel_recommendations_update"
	ActionAssetUpdate             CopilotActionType = "asset_update"
)

// CopilotAction is one side effect emitted alongside a copilot reply.
type CopilotAction struct {
	Type    CopilotActionType      `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// CopilotResult is the sum-typed payload of the copilot_agent task: either
// a tool call request or a final message with actions.
type CopilotResult struct {
	Type    string // "tool_call" or "final"
	Tool    string
	Input   map[string]interface{}
	Message string
	Actions []CopilotAction
}
