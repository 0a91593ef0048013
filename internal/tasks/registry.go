package tasks

import (
	"fmt"
	"sort"

	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
)

// Task names. These are the routing keys used by the orchestrator, the
// routing policy and per-task config overrides.
const (
	TaskSuggest           = "suggest"
	TaskRefine            = "refine"
	TaskChannels          = "channels"
	TaskChannelPicker     = "channel_picker"
	TaskAssetMaster       = "asset_master"
	TaskAssetAdapt        = "asset_adapt"
	TaskAssetChannelBatch = "asset_channel_batch"
	TaskImagePrompt       = "image_prompt"
	TaskImageCaption      = "image_caption"
	TaskVideoConfig       = "video_config"
	TaskVideoStoryboard   = "video_storyboard"
	TaskVideoCaption      = "video_caption"
	TaskVideoCompliance   = "video_compliance"
	TaskCopilotAgent      = "copilot_agent"
)

// Builder turns a task context into the user prompt. Builders are pure
// functions of the context.
type Builder func(ctx *TaskContext) string

// Parser converts a raw provider response into the task's typed payload, or
// a structured failure.
type Parser func(resp *interfaces.InvokeResponse, ctx *TaskContext) (interface{}, *models.TaskFailure)

// Task is one registered LLM task: prompt construction, decoding contract
// and retry posture.
type Task struct {
	Name        string
	System      string
	Mode        interfaces.InvokeMode
	Temperature float32
	MaxTokens   int

	// MaxTokensByProvider overrides MaxTokens for specific providers, keyed
	// by provider name.
	MaxTokensByProvider map[string]int

	// MaxAttempts bounds the orchestrator's retry loop, including the first
	// attempt. Zero means the default of 3.
	MaxAttempts int

	// StrictOnRetry makes retries after a parse failure prepend the strict
	// JSON directive to the prompt.
	StrictOnRetry bool

	// OutputSchema is enforced server-side by schema-capable providers.
	OutputSchema map[string]interface{}

	Build Builder
	Parse Parser
}

const (
	systemRecruiting = "You are an expert recruiting content strategist for a hiring platform. " +
		"You write precise, factual, bias-free content and always answer in the requested JSON shape."
	systemCopilot = "You are the hiring copilot embedded in a job posting editor. " +
		"You help the user improve their posting through conversation and structured actions. " +
		"You never fabricate data about the company or the role."
)

var registry = map[string]*Task{}

func register(t *Task) {
	if _, exists := registry[t.Name]; exists {
		panic(fmt.Sprintf("duplicate task registration: %s", t.Name))
	}
	if t.MaxAttempts == 0 {
		t.MaxAttempts = 3
	}
	registry[t.Name] = t
}

// MaxTokensFor resolves the token budget for a provider: the per-provider
// override when one exists, else the task-wide value.
func (t *Task) MaxTokensFor(provider string) int {
	if v, ok := t.MaxTokensByProvider[provider]; ok {
		return v
	}
	return t.MaxTokens
}

// Lookup returns the registered task for name.
func Lookup(name string) (*Task, error) {
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown task: %s", name)
	}
	return t, nil
}

// Names returns all registered task names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func channelEnum() []interface{} {
	out := make([]interface{}, len(models.SupportedChannels))
	for i, c := range models.SupportedChannels {
		out[i] = string(c)
	}
	return out
}

func init() {
	register(&Task{
		Name:          TaskSuggest,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.5,
		MaxTokens:     2048,
		StrictOnRetry: true,
		Build:         buildSuggestPrompt,
		Parse:         parseSuggestResponse,
	})

	register(&Task{
		Name:          TaskRefine,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.4,
		MaxTokens:     8192,
		StrictOnRetry: true,
		Build:         buildRefinePrompt,
		Parse:         parseRefineResponse,
	})

	register(&Task{
		Name:          TaskChannels,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.3,
		MaxTokens:     4096,
		StrictOnRetry: true,
		OutputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"recommendations"},
			"properties": map[string]interface{}{
				"recommendations": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":     "object",
						"required": []interface{}{"channel", "reason"},
						"properties": map[string]interface{}{
							"channel":      map[string]interface{}{"type": "string", "enum": channelEnum()},
							"reason":       map[string]interface{}{"type": "string"},
							"expected_cpa": map[string]interface{}{"type": "number"},
						},
					},
				},
			},
		},
		Build: buildChannelsPrompt,
		Parse: parseChannelsResponse,
	})

	register(&Task{
		Name:          TaskChannelPicker,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.2,
		MaxTokens:     2048,
		StrictOnRetry: true,
		OutputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"top_channel", "recommended_medium"},
			"properties": map[string]interface{}{
				"top_channel": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"id", "fit_score"},
					"properties": map[string]interface{}{
						"id":           map[string]interface{}{"type": "string", "enum": channelEnum()},
						"fit_score":    map[string]interface{}{"type": "number", "minimum": float64(0), "maximum": float64(100)},
						"reason_short": map[string]interface{}{"type": "string"},
					},
				},
				"recommended_medium": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{"video", "image", "text"},
				},
				"copy_hint": map[string]interface{}{"type": "string"},
				"alternatives": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":     map[string]interface{}{"type": "string"},
							"reason": map[string]interface{}{"type": "string"},
						},
					},
				},
				"compliance_flags": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
			},
		},
		Build: buildChannelPickerPrompt,
		Parse: parseChannelPickerResponse,
	})

	register(&Task{
		Name:        TaskAssetMaster,
		System:      systemRecruiting,
		Mode:        interfaces.InvokeModeJSON,
		Temperature: 0.6,
		MaxTokens:   8192,
		Build:       buildAssetMasterPrompt,
		Parse:       parseAssetCopyResponse,
	})

	register(&Task{
		Name:        TaskAssetAdapt,
		System:      systemRecruiting,
		Mode:        interfaces.InvokeModeJSON,
		Temperature: 0.6,
		MaxTokens:   4096,
		Build:       buildAssetAdaptPrompt,
		Parse:       parseAssetCopyResponse,
	})

	register(&Task{
		Name:          TaskAssetChannelBatch,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.6,
		MaxTokens:     8192,
		StrictOnRetry: true,
		Build:         buildAssetChannelBatchPrompt,
		Parse:         parseAssetBatchResponse,
	})

	register(&Task{
		Name:        TaskImagePrompt,
		System:      systemRecruiting,
		Mode:        interfaces.InvokeModeJSON,
		Temperature: 0.7,
		MaxTokens:   1024,
		Build:       buildImagePromptPrompt,
		Parse:       parseImagePromptResponse,
	})

	register(&Task{
		Name:          TaskImageCaption,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.7,
		MaxTokens:     1024,
		StrictOnRetry: true,
		OutputSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"caption"},
			"properties": map[string]interface{}{
				"caption": map[string]interface{}{"type": "string"},
				"hashtags": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string"},
				},
			},
		},
		Build: buildImageCaptionPrompt,
		Parse: parseImageCaptionResponse,
	})

	register(&Task{
		Name:          TaskVideoConfig,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.3,
		MaxTokens:     512,
		StrictOnRetry: true,
		Build:         buildVideoConfigPrompt,
		Parse:         parseVideoConfigResponse,
	})

	register(&Task{
		Name:          TaskVideoStoryboard,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.7,
		MaxTokens:     4096,
		StrictOnRetry: true,
		Build:         buildVideoStoryboardPrompt,
		Parse:         parseVideoStoryboardResponse,
	})

	register(&Task{
		Name:        TaskVideoCaption,
		System:      systemRecruiting,
		Mode:        interfaces.InvokeModeJSON,
		Temperature: 0.7,
		MaxTokens:   512,
		Build:       buildVideoCaptionPrompt,
		Parse:       parseVideoCaptionResponse,
	})

	register(&Task{
		Name:          TaskVideoCompliance,
		System:        systemRecruiting,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.1,
		MaxTokens:     1024,
		StrictOnRetry: true,
		Build:         buildVideoCompliancePrompt,
		Parse:         parseVideoComplianceResponse,
	})

	register(&Task{
		Name:          TaskCopilotAgent,
		System:        systemCopilot,
		Mode:          interfaces.InvokeModeJSON,
		Temperature:   0.5,
		MaxTokens:     4096,
		MaxAttempts:   2,
		StrictOnRetry: true,
		Build:         buildCopilotPrompt,
		Parse:         parseCopilotResponse,
	})
}
