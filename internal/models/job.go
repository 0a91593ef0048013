package models

import (
	"time"
)

// JobState is the lifecycle stage of a job record.
type JobState string

const (
	JobStateDraft           JobState = "draft"
	JobStateRefined         JobState = "refined"
	JobStateFinalized       JobState = "finalized"
	JobStateChannelsReady   JobState = "channels_ready"
	JobStateAssetsGenerating JobState = "assets_generating"
	JobStateAssetsReady     JobState = "assets_ready"
)

// FinalizationSource records which draft variant the user approved.
type FinalizationSource string

const (
	SourceOriginal FinalizationSource = "original"
	SourceRefined  FinalizationSource = "refined"
	SourceEdited   FinalizationSource = "edited"
)

// IsValidFinalizationSource reports whether s is a recognized source.
func IsValidFinalizationSource(s FinalizationSource) bool {
	switch s {
	case SourceOriginal, SourceRefined, SourceEdited:
		return true
	}
	return false
}

// AssetStatus is the per-asset generation state. READY and FAILED are
// terminal within a run.
type AssetStatus string

const (
	AssetStatusPending    AssetStatus = "PENDING"
	AssetStatusGenerating AssetStatus = "GENERATING"
	AssetStatusReady      AssetStatus = "READY"
	AssetStatusFailed     AssetStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s AssetStatus) IsTerminal() bool {
	return s == AssetStatusReady || s == AssetStatusFailed
}

// AssetRunStatus is the aggregate state of an asset-generation run.
type AssetRunStatus string

const (
	AssetRunPlanning   AssetRunStatus = "planning"
	AssetRunGenerating AssetRunStatus = "generating"
	AssetRunCompleted  AssetRunStatus = "completed"
	AssetRunFailed     AssetRunStatus = "failed"
)

// MediaStatus is the lifecycle of a single non-text artifact (hero image,
// video).
type MediaStatus string

const (
	MediaStatusIdle       MediaStatus = "IDLE"
	MediaStatusPrompting  MediaStatus = "PROMPTING"
	MediaStatusGenerating MediaStatus = "GENERATING"
	MediaStatusReady      MediaStatus = "READY"
	MediaStatusFailed     MediaStatus = "FAILED"
)

// TaskFailure is the caller-facing failure surface for LLM-side errors.
// RawPreview is capped at 512 characters at construction time.
type TaskFailure struct {
	Reason     string `json:"reason"`
	Message    string `json:"message"`
	RawPreview string `json:"raw_preview,omitempty"`
}

// RefinementMetadata summarizes how the refined draft compares to the
// original. Scores are clamped to [0,100] by the parser.
type RefinementMetadata struct {
	ImprovementScore int      `json:"improvement_score"`
	OriginalScore    int      `json:"original_score"`
	KeyImprovements  []string `json:"key_improvements,omitempty"`
	ImpactSummary    string   `json:"impact_summary,omitempty"`
}

// Refinement holds the output of the refine task.
type Refinement struct {
	Draft     *Draft              `json:"draft"`
	Summary   string              `json:"summary"`
	Metadata  *RefinementMetadata `json:"metadata,omitempty"`
	RefinedAt time.Time           `json:"refined_at"`
}

// Finalization records the approval event.
type Finalization struct {
	Source      FinalizationSource `json:"source"`
	FinalizedAt time.Time          `json:"finalized_at"`
}

// AssetRun tracks one asset-generation run for a job.
type AssetRun struct {
	Status         AssetRunStatus `json:"status"`
	PlannedCount   int            `json:"planned_count"`
	CompletedCount int            `json:"completed_count"`
	Error          string         `json:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Asset is one creative artifact targeting a channel and format.
type Asset struct {
	ID        string      `json:"id"`
	FormatID  FormatID    `json:"format_id"`
	ChannelID Channel     `json:"channel_id"`
	Status    AssetStatus `json:"status"`
	Content   string      `json:"content,omitempty"`
	LogoURL   string      `json:"logo_url,omitempty"`
	Failure   *TaskFailure `json:"failure,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// HeroImage is the single hero-image record for a job.
type HeroImage struct {
	Status     MediaStatus  `json:"status"`
	Provider   string       `json:"provider,omitempty"`
	Model      string       `json:"model,omitempty"`
	ImageBytes []byte       `json:"image_bytes,omitempty"`
	ImageURL   string       `json:"image_url,omitempty"`
	Caption    string       `json:"caption,omitempty"`
	Hashtags   []string     `json:"hashtags,omitempty"`
	Failure    *TaskFailure `json:"failure,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Video is the single video record for a job. One video per job: the
// storyboard covers the job as a whole, not an individual channel.
type Video struct {
	Status          MediaStatus  `json:"status"`
	Provider        string       `json:"provider,omitempty"`
	Model           string       `json:"model,omitempty"`
	VideoURL        string       `json:"video_url,omitempty"`
	PosterURL       string       `json:"poster_url,omitempty"`
	DurationSeconds int          `json:"duration_seconds,omitempty"`
	Caption         string       `json:"caption,omitempty"`
	Failure         *TaskFailure `json:"failure,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// MessageRole is a copilot conversation role.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// MessageMetadata carries optional structured context on a conversation
// message.
type MessageMetadata struct {
	ClientMessageID string  `json:"client_message_id,omitempty"`
	FieldID         string  `json:"field_id,omitempty"`
	Rationale       string  `json:"rationale,omitempty"`
	Value           string  `json:"value,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	Source          string  `json:"source,omitempty"`
}

// ConversationMessage is one entry of a job's copilot conversation.
type ConversationMessage struct {
	ID        string           `json:"id"`
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ChannelRecommendations is the stored recommendation set plus bookkeeping.
type ChannelRecommendations struct {
	Items     []ChannelRecommendation `json:"items"`
	UpdatedAt time.Time               `json:"updated_at"`
	Failure   *TaskFailure            `json:"failure,omitempty"`
}

// Job is the durable per-job document: the single source of truth the UI
// polls. One document per jobId; no cross-document joins.
type Job struct {
	ID        string    `json:"id" badgerhold:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	State *Draft `json:"state"`

	Refined      *Refinement   `json:"refined,omitempty"`
	Finalization *Finalization `json:"finalization,omitempty"`

	Channels *ChannelRecommendations `json:"channels,omitempty"`

	AssetRun *AssetRun         `json:"asset_run,omitempty"`
	Assets   map[string]*Asset `json:"assets,omitempty"`

	HeroImage *HeroImage `json:"hero_image,omitempty"`
	Video     *Video     `json:"video,omitempty"`

	Conversation []*ConversationMessage `json:"conversation,omitempty"`
}

// FinalDraft returns the draft variant selected at finalization, falling
// back to the current state when the job is not finalized yet.
func (j *Job) FinalDraft() *Draft {
	if j.Finalization != nil && j.Finalization.Source == SourceRefined && j.Refined != nil && j.Refined.Draft != nil {
		return j.Refined.Draft
	}
	return j.State
}

// TerminalAssetCount counts assets that reached READY or FAILED.
func (j *Job) TerminalAssetCount() int {
	n := 0
	for _, a := range j.Assets {
		if a.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Lifecycle derives the job's lifecycle stage from its record.
func (j *Job) Lifecycle() JobState {
	switch {
	case j.AssetRun != nil && (j.AssetRun.Status == AssetRunCompleted):
		return JobStateAssetsReady
	case j.AssetRun != nil:
		return JobStateAssetsGenerating
	case j.Channels != nil && len(j.Channels.Items) > 0:
		return JobStateChannelsReady
	case j.Finalization != nil:
		return JobStateFinalized
	case j.Refined != nil:
		return JobStateRefined
	default:
		return JobStateDraft
	}
}
