package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/botsonlabs/jobforge/internal/interfaces"
)

const (
	defaultImageModel = "imagen-3.0-generate-002"
	defaultVideoModel = "veo-2.0-generate-001"

	videoPollInterval = 10 * time.Second
)

// GeminiImageGenerator renders hero images through the Imagen API.
type GeminiImageGenerator struct {
	client *genai.Client
	model  string
	logger arbor.ILogger
}

// NewGeminiImageGenerator creates an image backend sharing the Gemini
// provider's client.
func NewGeminiImageGenerator(provider *GeminiProvider, model string, logger arbor.ILogger) *GeminiImageGenerator {
	if model == "" {
		model = defaultImageModel
	}
	return &GeminiImageGenerator{
		client: provider.client,
		model:  model,
		logger: logger,
	}
}

// GenerateImage renders one image from the prompt.
func (g *GeminiImageGenerator) GenerateImage(ctx context.Context, prompt string) (*interfaces.GeneratedImage, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("image generation returned no images")
	}

	img := resp.GeneratedImages[0].Image
	g.logger.Debug().
		Str("model", g.model).
		Int("bytes", len(img.ImageBytes)).
		Msg("Hero image generated")

	return &interfaces.GeneratedImage{
		Bytes:    img.ImageBytes,
		MIMEType: img.MIMEType,
		Model:    g.model,
	}, nil
}

// GeminiVideoGenerator renders short videos through the Veo API. Veo runs as
// a long-running operation; generation blocks on polling until the operation
// completes or ctx expires.
type GeminiVideoGenerator struct {
	client *genai.Client
	model  string
	logger arbor.ILogger
}

// NewGeminiVideoGenerator creates a video backend sharing the Gemini
// provider's client.
func NewGeminiVideoGenerator(provider *GeminiProvider, model string, logger arbor.ILogger) *GeminiVideoGenerator {
	if model == "" {
		model = defaultVideoModel
	}
	return &GeminiVideoGenerator{
		client: provider.client,
		model:  model,
		logger: logger,
	}
}

// GenerateVideo renders one video from the prompt.
func (g *GeminiVideoGenerator) GenerateVideo(ctx context.Context, prompt string, config *interfaces.VideoRenderConfig) (*interfaces.GeneratedVideo, error) {
	genConfig := &genai.GenerateVideosConfig{}
	if config != nil && config.AspectRatio != "" {
		genConfig.AspectRatio = config.AspectRatio
	}

	op, err := g.client.Models.GenerateVideos(ctx, g.model, prompt, nil, genConfig)
	if err != nil {
		return nil, fmt.Errorf("video generation failed to start: %w", err)
	}

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(videoPollInterval):
		}
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("video generation polling failed: %w", err)
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return nil, fmt.Errorf("video generation returned no videos")
	}

	video := op.Response.GeneratedVideos[0].Video
	g.logger.Debug().
		Str("model", g.model).
		Str("uri", video.URI).
		Msg("Video generated")

	return &interfaces.GeneratedVideo{
		URL:   video.URI,
		Model: g.model,
	}, nil
}
