package assets

import (
	"context"
	"strings"
	"time"

	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/tasks"
)

// compliance rejection is a pipeline outcome, not a parser failure.
const failComplianceRejected = "compliance_rejected"

// GenerateVideo runs the staged video pipeline for a job: production config,
// storyboard, caption, compliance review, then the actual render. Each stage
// feeds the next; any stage failure marks the video FAILED with that stage's
// failure. Concurrent requests for the same job share one in-flight run.
func (c *Coordinator) GenerateVideo(ctx context.Context, jobID, route string) (*models.Video, error) {
	v, err, _ := c.heroFlight.Do("video:"+jobID, func() (interface{}, error) {
		return c.generateVideo(ctx, jobID, route)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Video), nil
}

func (c *Coordinator) generateVideo(ctx context.Context, jobID, route string) (*models.Video, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Finalization == nil {
		return nil, interfaces.ErrNotFinalized
	}

	draft := job.FinalDraft()
	rec := &models.Video{Status: models.MediaStatusPrompting, UpdatedAt: time.Now().UTC()}
	if err := c.store.SetVideo(ctx, jobID, rec); err != nil {
		return nil, err
	}

	tctx := &tasks.TaskContext{JobID: jobID, Route: route, Draft: draft}

	configResult, fail := c.runner.Run(ctx, tasks.TaskVideoConfig, tctx)
	if fail != nil {
		return c.storeVideoFailure(ctx, jobID, fail)
	}
	tctx.VideoConfig = configResult.Payload.(*tasks.VideoConfigResult)

	storyboardResult, fail := c.runner.Run(ctx, tasks.TaskVideoStoryboard, tctx)
	if fail != nil {
		return c.storeVideoFailure(ctx, jobID, fail)
	}
	tctx.VideoStoryboard = storyboardResult.Payload.(*tasks.VideoStoryboardResult)

	captionResult, fail := c.runner.Run(ctx, tasks.TaskVideoCaption, tctx)
	if fail != nil {
		return c.storeVideoFailure(ctx, jobID, fail)
	}
	tctx.VideoCaption = captionResult.Payload.(*tasks.VideoCaptionResult).Caption

	complianceResult, fail := c.runner.Run(ctx, tasks.TaskVideoCompliance, tctx)
	if fail != nil {
		return c.storeVideoFailure(ctx, jobID, fail)
	}
	compliance := complianceResult.Payload.(*tasks.VideoComplianceResult)
	if !compliance.Approved {
		return c.storeVideoFailure(ctx, jobID, &models.TaskFailure{
			Reason:  failComplianceRejected,
			Message: strings.Join(compliance.Flags, "; "),
		})
	}

	rec = &models.Video{Status: models.MediaStatusGenerating, UpdatedAt: time.Now().UTC()}
	if err := c.store.SetVideo(ctx, jobID, rec); err != nil {
		return nil, err
	}

	if c.videoGen == nil {
		return c.storeVideoFailure(ctx, jobID, &models.TaskFailure{
			Reason:  tasks.FailInvokeFailed,
			Message: "no video backend configured",
		})
	}

	renderCtx, cancel := context.WithTimeout(ctx, c.opts.VideoTimeout)
	video, err := c.videoGen.GenerateVideo(renderCtx, renderVideoPrompt(tctx.VideoStoryboard, tctx.VideoConfig), &interfaces.VideoRenderConfig{
		DurationSeconds: tctx.VideoConfig.DurationSeconds,
		AspectRatio:     tctx.VideoConfig.AspectRatio,
	})
	cancel()
	if err != nil {
		return c.storeVideoFailure(ctx, jobID, &models.TaskFailure{
			Reason:  tasks.FailInvokeFailed,
			Message: err.Error(),
		})
	}

	rec = &models.Video{
		Status:          models.MediaStatusReady,
		Provider:        complianceResult.Provider,
		Model:           video.Model,
		VideoURL:        video.URL,
		PosterURL:       video.PosterURL,
		DurationSeconds: tctx.VideoConfig.DurationSeconds,
		Caption:         tctx.VideoCaption,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := c.store.SetVideo(ctx, jobID, rec); err != nil {
		return nil, err
	}

	c.logger.Info().Str("job_id", jobID).Msg("Video ready")
	return rec, nil
}

// renderVideoPrompt flattens the storyboard into the prompt sent to the
// video backend.
func renderVideoPrompt(storyboard *tasks.VideoStoryboardResult, config *tasks.VideoConfigResult) string {
	var b strings.Builder
	if config != nil && config.Style != "" {
		b.WriteString("Style: ")
		b.WriteString(config.Style)
		b.WriteString(". ")
	}
	for _, scene := range storyboard.Scenes {
		b.WriteString(scene.Description)
		if scene.OverlayText != "" {
			b.WriteString(" (overlay: ")
			b.WriteString(scene.OverlayText)
			b.WriteString(")")
		}
		b.WriteString(". ")
	}
	return strings.TrimSpace(b.String())
}

func (c *Coordinator) storeVideoFailure(ctx context.Context, jobID string, fail *models.TaskFailure) (*models.Video, error) {
	rec := &models.Video{
		Status:    models.MediaStatusFailed,
		Failure:   fail,
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.store.SetVideo(ctx, jobID, rec); err != nil {
		return nil, err
	}
	c.logger.Warn().Str("job_id", jobID).Str("reason", fail.Reason).Msg("Video generation failed")
	return rec, nil
}
