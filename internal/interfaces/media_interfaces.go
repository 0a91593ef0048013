package interfaces

import (
	"context"
)

// GeneratedImage is the output of an image backend.
type GeneratedImage struct {
	Bytes    []byte
	MIMEType string
	Model    string
}

// ImageGenerator renders one image from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error)
}

// VideoRenderConfig carries the production parameters for a video render.
type VideoRenderConfig struct {
	DurationSeconds int
	AspectRatio     string
}

// GeneratedVideo is the output of a video backend.
type GeneratedVideo struct {
	URL       string
	PosterURL string
	Model     string
}

// VideoGenerator renders one short video from a text prompt.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, prompt string, config *VideoRenderConfig) (*GeneratedVideo, error)
}
