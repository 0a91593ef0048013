package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
)

// GeminiProvider implements the Provider interface using the Google Gemini
// API. When a task supplies an output schema, Gemini enforces JSON output
// matching the schema server-side.
type GeminiProvider struct {
	config  *common.GeminiConfig
	client  *genai.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, geminiConfig *common.GeminiConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*GeminiProvider, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required for Gemini provider (set GEMINI_API_KEY or gemini.api_key in config): %w", err)
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-3-flash-preview"
	}

	interval, err := time.ParseDuration(geminiConfig.RateLimit)
	if err != nil || interval <= 0 {
		interval = 4 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Msg("Gemini provider initialized")

	return &GeminiProvider{
		config:  geminiConfig,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return string(common.LLMProviderGemini)
}

// SupportsOutputSchema reports schema capability.
func (p *GeminiProvider) SupportsOutputSchema() bool {
	return true
}

// Invoke executes one completion against the Gemini API.
func (p *GeminiProvider) Invoke(ctx context.Context, req *interfaces.InvokeRequest) (*interfaces.InvokeResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = p.config.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	schemaEnforced := false
	if req.Mode == interfaces.InvokeModeJSON {
		config.ResponseMIMEType = "application/json"
		if len(req.OutputSchema) > 0 {
			genaiSchema, err := convertToGenaiSchema(req.OutputSchema)
			if err != nil {
				p.logger.Error().Err(err).Str("task", req.TaskType).Msg("Failed to convert output schema")
				// Continue with plain JSON mode rather than failing
			} else if genaiSchema != nil {
				config.ResponseSchema = genaiSchema
				schemaEnforced = true
			}
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.User, genai.RoleUser),
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	out := &interfaces.InvokeResponse{
		Text: responseText,
		Metadata: interfaces.InvokeMetadata{
			Model: model,
		},
	}
	if resp.UsageMetadata != nil {
		out.Metadata.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Metadata.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) > 0 {
		out.Metadata.FinishReason = string(resp.Candidates[0].FinishReason)
	}

	// With an enforced schema the body is guaranteed JSON; surface it parsed
	// so parsers can skip text extraction.
	if schemaEnforced {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(responseText), &parsed); err == nil {
			out.JSON = parsed
		}
	}

	p.logger.Debug().
		Str("model", model).
		Str("task", req.TaskType).
		Str("route", req.Route).
		Bool("schema_enforced", schemaEnforced).
		Dur("duration", time.Since(start)).
		Msg("Gemini invocation completed")

	return out, nil
}

// Close releases resources.
func (p *GeminiProvider) Close() error {
	p.client = nil
	return nil
}
