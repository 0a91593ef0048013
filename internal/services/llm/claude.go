package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
)

// jsonModeDirective is appended to the system prompt when a JSON-mode task
// runs against Claude, which has no server-side structured-output switch.
const jsonModeDirective = "\n\nRespond with a single valid JSON object and nothing else. No prose, no markdown fences."

// ClaudeProvider implements the Provider interface using the Anthropic API.
type ClaudeProvider struct {
	config  *common.ClaudeConfig
	client  anthropic.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewClaudeProvider creates a Claude provider. The API key is resolved with
// environment-first priority via common.ResolveAPIKey.
func NewClaudeProvider(claudeConfig *common.ClaudeConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*ClaudeProvider, error) {
	ctx := context.Background()
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "anthropic_api_key", claudeConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required for Claude provider (set ANTHROPIC_API_KEY or claude.api_key in config): %w", err)
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-haiku-3-5-20241022"
	}

	interval, err := time.ParseDuration(claudeConfig.RateLimit)
	if err != nil || interval <= 0 {
		interval = time.Second
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	logger.Debug().
		Str("model", claudeConfig.Model).
		Int("max_tokens", claudeConfig.MaxTokens).
		Msg("Claude provider initialized")

	return &ClaudeProvider{
		config:  claudeConfig,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}, nil
}

// Name returns the provider identifier.
func (p *ClaudeProvider) Name() string {
	return string(common.LLMProviderClaude)
}

// SupportsOutputSchema reports schema capability. Claude JSON mode is
// prompt-enforced, not schema-enforced.
func (p *ClaudeProvider) SupportsOutputSchema() bool {
	return false
}

// Invoke executes one completion against the Anthropic API. Provider errors
// are returned verbatim so the orchestrator can classify rate limits by
// message substring.
func (p *ClaudeProvider) Invoke(ctx context.Context, req *interfaces.InvokeRequest) (*interfaces.InvokeResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	system := req.System
	if req.Mode == interfaces.InvokeModeJSON {
		system += jsonModeDirective
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = p.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	p.logger.Debug().
		Str("model", model).
		Str("task", req.TaskType).
		Str("route", req.Route).
		Dur("duration", time.Since(start)).
		Msg("Claude invocation completed")

	return &interfaces.InvokeResponse{
		Text: text.String(),
		Metadata: interfaces.InvokeMetadata{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			Model:        model,
			FinishReason: string(resp.StopReason),
		},
	}, nil
}

// Close releases resources.
func (p *ClaudeProvider) Close() error {
	return nil
}
