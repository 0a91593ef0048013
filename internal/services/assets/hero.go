package assets

import (
	"context"
	"time"

	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/tasks"
)

// GenerateHeroImage produces the job's hero image: prompt, render, caption.
// Concurrent requests for the same job share one in-flight generation; the
// stored record is returned to every caller. With forceRefresh false an
// existing READY image is returned without regenerating.
func (c *Coordinator) GenerateHeroImage(ctx context.Context, jobID string, forceRefresh bool, route string) (*models.HeroImage, error) {
	v, err, _ := c.heroFlight.Do("hero:"+jobID, func() (interface{}, error) {
		return c.generateHeroImage(ctx, jobID, forceRefresh, route)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.HeroImage), nil
}

func (c *Coordinator) generateHeroImage(ctx context.Context, jobID string, forceRefresh bool, route string) (*models.HeroImage, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Finalization == nil {
		return nil, interfaces.ErrNotFinalized
	}
	if job.HeroImage != nil && job.HeroImage.Status == models.MediaStatusReady && !forceRefresh {
		return job.HeroImage, nil
	}

	draft := job.FinalDraft()
	rec := &models.HeroImage{Status: models.MediaStatusPrompting, UpdatedAt: time.Now().UTC()}
	if err := c.store.SetHeroImage(ctx, jobID, rec); err != nil {
		return nil, err
	}

	tctx := &tasks.TaskContext{JobID: jobID, Route: route, Draft: draft}
	promptResult, fail := c.runner.Run(ctx, tasks.TaskImagePrompt, tctx)
	if fail != nil {
		return c.storeHeroFailure(ctx, jobID, fail)
	}
	prompt := promptResult.Payload.(*tasks.ImagePromptResult).Prompt

	rec = &models.HeroImage{Status: models.MediaStatusGenerating, UpdatedAt: time.Now().UTC()}
	if err := c.store.SetHeroImage(ctx, jobID, rec); err != nil {
		return nil, err
	}

	if c.imageGen == nil {
		return c.storeHeroFailure(ctx, jobID, &models.TaskFailure{
			Reason:  tasks.FailInvokeFailed,
			Message: "no image backend configured",
		})
	}

	renderCtx, cancel := context.WithTimeout(ctx, c.opts.HeroImageTimeout)
	image, err := c.imageGen.GenerateImage(renderCtx, prompt)
	cancel()
	if err != nil {
		return c.storeHeroFailure(ctx, jobID, &models.TaskFailure{
			Reason:  tasks.FailInvokeFailed,
			Message: err.Error(),
		})
	}

	tctx.ImagePrompt = prompt
	captionResult, fail := c.runner.Run(ctx, tasks.TaskImageCaption, tctx)
	if fail != nil {
		return c.storeHeroFailure(ctx, jobID, fail)
	}
	caption := captionResult.Payload.(*tasks.ImageCaptionResult)

	rec = &models.HeroImage{
		Status:     models.MediaStatusReady,
		Provider:   captionResult.Provider,
		Model:      image.Model,
		ImageBytes: image.Bytes,
		Caption:    caption.Caption,
		Hashtags:   caption.Hashtags,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := c.store.SetHeroImage(ctx, jobID, rec); err != nil {
		return nil, err
	}

	c.logger.Info().Str("job_id", jobID).Msg("Hero image ready")
	return rec, nil
}

func (c *Coordinator) storeHeroFailure(ctx context.Context, jobID string, fail *models.TaskFailure) (*models.HeroImage, error) {
	rec := &models.HeroImage{
		Status:    models.MediaStatusFailed,
		Failure:   fail,
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.store.SetHeroImage(ctx, jobID, rec); err != nil {
		return nil, err
	}
	c.logger.Warn().Str("job_id", jobID).Str("reason", fail.Reason).Msg("Hero image failed")
	return rec, nil
}
