package assets

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/orchestrator"
	"github.com/botsonlabs/jobforge/internal/tasks"
)

// Options tunes the coordinator.
type Options struct {
	// Parallelism bounds concurrent per-asset adaptation tasks. Zero means 4.
	Parallelism int
	// BatchPerChannel adapts all formats of a channel in one LLM call instead
	// of one call per asset.
	BatchPerChannel bool
	// TextTimeout bounds one text task, HeroImageTimeout one image render,
	// VideoTimeout the whole video pipeline.
	TextTimeout      time.Duration
	HeroImageTimeout time.Duration
	VideoTimeout     time.Duration
}

func (o *Options) normalize() {
	if o.Parallelism <= 0 {
		o.Parallelism = 4
	}
	if o.TextTimeout <= 0 {
		o.TextTimeout = 30 * time.Second
	}
	if o.HeroImageTimeout <= 0 {
		o.HeroImageTimeout = 120 * time.Second
	}
	if o.VideoTimeout <= 0 {
		o.VideoTimeout = 300 * time.Second
	}
}

// OptionsFromConfig derives coordinator options from the assets config.
func OptionsFromConfig(cfg *common.AssetsConfig) Options {
	opts := Options{}
	if cfg == nil {
		return opts
	}
	opts.Parallelism = cfg.Parallelism
	opts.BatchPerChannel = cfg.BatchPerChannel
	if d, err := time.ParseDuration(cfg.TextTimeout); err == nil {
		opts.TextTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HeroImageTimeout); err == nil {
		opts.HeroImageTimeout = d
	}
	if d, err := time.ParseDuration(cfg.VideoTimeout); err == nil {
		opts.VideoTimeout = d
	}
	return opts
}

// Coordinator drives asset generation runs: plan expansion, master copy,
// per-channel adaptation with bounded parallelism, and the hero image and
// video side pipelines. Progress is streamed into the job store so the UI
// can poll partial results.
type Coordinator struct {
	store    interfaces.JobStorage
	runner   *orchestrator.Runner
	imageGen interfaces.ImageGenerator
	videoGen interfaces.VideoGenerator
	logger   arbor.ILogger
	opts     Options

	heroFlight singleflight.Group
}

// NewCoordinator creates the asset coordinator. imageGen and videoGen may be
// nil; the corresponding pipelines then fail with a configuration failure
// instead of rendering.
func NewCoordinator(
	store interfaces.JobStorage,
	runner *orchestrator.Runner,
	imageGen interfaces.ImageGenerator,
	videoGen interfaces.VideoGenerator,
	logger arbor.ILogger,
	opts Options,
) *Coordinator {
	opts.normalize()
	return &Coordinator{
		store:    store,
		runner:   runner,
		imageGen: imageGen,
		videoGen: videoGen,
		logger:   logger,
		opts:     opts,
	}
}

// normalizeChannels maps the raw channel selection onto the catalog. Any
// entry that cannot be mapped fails the whole request.
func normalizeChannels(raw []string) ([]models.Channel, error) {
	seen := make(map[models.Channel]bool, len(raw))
	var out []models.Channel
	for _, r := range raw {
		c := models.NormalizeChannel(r, models.SupportedChannels)
		if c == "" {
			return nil, fmt.Errorf("%w: %q", interfaces.ErrUnknownChannel, r)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// StartRun plans an asset run for the selected channels and launches
// generation in the background. The returned job snapshot carries the
// planned PENDING assets; callers poll the job for progress.
func (c *Coordinator) StartRun(ctx context.Context, jobID string, channels []string, route string) (*models.Job, error) {
	selected, err := normalizeChannels(channels)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no channels selected", interfaces.ErrUnknownChannel)
	}

	rows := models.PlanAssets(selected)
	job, err := c.store.PlanAssetRun(ctx, jobID, rows)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("job_id", jobID).
		Str("route", route).
		Int("planned", len(rows)).
		Msg("Asset run planned")

	// The run outlives the HTTP request that started it.
	go c.run(context.Background(), jobID, route)

	return job, nil
}

// run executes one planned asset run to completion.
func (c *Coordinator) run(ctx context.Context, jobID, route string) {
	if err := c.store.MarkAssetRunGenerating(ctx, jobID); err != nil {
		c.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark asset run generating")
		return
	}

	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		c.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job for asset run")
		return
	}
	draft := job.FinalDraft()

	master, fail := c.generateMaster(ctx, jobID, route, draft)
	if fail != nil {
		c.failAllAssets(ctx, job, fail)
		c.finish(ctx, jobID)
		return
	}

	if c.opts.BatchPerChannel {
		c.adaptByChannel(ctx, job, draft, master, route)
	} else {
		c.adaptPerAsset(ctx, job, draft, master, route)
	}

	c.finish(ctx, jobID)
}

func (c *Coordinator) finish(ctx context.Context, jobID string) {
	if err := c.store.FinishAssetRun(ctx, jobID); err != nil {
		c.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to finish asset run")
		return
	}
	c.logger.Info().Str("job_id", jobID).Msg("Asset run finished")
}

// generateMaster produces the canonical long-form copy every channel asset
// is adapted from.
func (c *Coordinator) generateMaster(ctx context.Context, jobID, route string, draft *models.Draft) (string, *models.TaskFailure) {
	tctx := &tasks.TaskContext{
		JobID: jobID,
		Route: route,
		Draft: draft,
	}
	result, fail := c.runner.Run(ctx, tasks.TaskAssetMaster, tctx)
	if fail != nil {
		return "", fail
	}
	return result.Payload.(*tasks.AssetCopyResult).Content, nil
}

// adaptPerAsset runs one adaptation task per planned asset with bounded
// parallelism, streaming each terminal state into the store as it lands.
func (c *Coordinator) adaptPerAsset(ctx context.Context, job *models.Job, draft *models.Draft, master, route string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)

	for assetID, asset := range job.Assets {
		assetID, asset := assetID, asset
		g.Go(func() error {
			c.markGenerating(gctx, job.ID, assetID)

			tctx := &tasks.TaskContext{
				JobID:         job.ID,
				Route:         route,
				Draft:         draft,
				MasterContent: master,
				PlanRow:       &models.AssetPlanRow{FormatID: asset.FormatID, ChannelID: asset.ChannelID},
			}
			result, fail := c.runner.Run(gctx, tasks.TaskAssetAdapt, tctx)
			if fail != nil {
				c.storeAssetFailure(gctx, job.ID, assetID, fail)
				return nil
			}
			c.storeAssetContent(gctx, job.ID, assetID, result.Payload.(*tasks.AssetCopyResult).Content, draft, asset.FormatID)
			return nil
		})
	}
	g.Wait()
}

// adaptByChannel adapts all formats of one channel in a single batch call.
func (c *Coordinator) adaptByChannel(ctx context.Context, job *models.Job, draft *models.Draft, master, route string) {
	byChannel := make(map[models.Channel]map[string]*models.Asset)
	for assetID, asset := range job.Assets {
		if byChannel[asset.ChannelID] == nil {
			byChannel[asset.ChannelID] = make(map[string]*models.Asset)
		}
		byChannel[asset.ChannelID][assetID] = asset
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)

	for channel, channelAssets := range byChannel {
		channel, channelAssets := channel, channelAssets
		g.Go(func() error {
			var rows []models.AssetPlanRow
			for assetID, asset := range channelAssets {
				c.markGenerating(gctx, job.ID, assetID)
				rows = append(rows, models.AssetPlanRow{FormatID: asset.FormatID, ChannelID: asset.ChannelID})
			}

			tctx := &tasks.TaskContext{
				JobID:         job.ID,
				Route:         route,
				Draft:         draft,
				MasterContent: master,
				PlanRows:      rows,
			}
			result, fail := c.runner.Run(gctx, tasks.TaskAssetChannelBatch, tctx)
			if fail != nil {
				for assetID := range channelAssets {
					c.storeAssetFailure(gctx, job.ID, assetID, fail)
				}
				return nil
			}

			items := result.Payload.(*tasks.AssetBatchResult).Items
			for assetID, asset := range channelAssets {
				planID := string(channel) + ":" + string(asset.FormatID)
				content, ok := items[planID]
				if !ok {
					c.storeAssetFailure(gctx, job.ID, assetID, &models.TaskFailure{
						Reason:  tasks.FailStructuredMissing,
						Message: fmt.Sprintf("batch response is missing entry %s", planID),
					})
					continue
				}
				c.storeAssetContent(gctx, job.ID, assetID, content, draft, asset.FormatID)
			}
			return nil
		})
	}
	g.Wait()
}

func (c *Coordinator) markGenerating(ctx context.Context, jobID, assetID string) {
	status := models.AssetStatusGenerating
	if err := c.store.UpsertAsset(ctx, jobID, assetID, &interfaces.AssetPatch{Status: &status}); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Str("asset_id", assetID).Msg("Failed to mark asset generating")
	}
}

func (c *Coordinator) storeAssetContent(ctx context.Context, jobID, assetID, content string, draft *models.Draft, format models.FormatID) {
	status := models.AssetStatusReady
	patch := &interfaces.AssetPatch{Status: &status, Content: &content}
	// Image-caption formats carry the company logo for rendering.
	if format == models.FormatSocialImageCaption && draft.LogoURL != "" {
		patch.LogoURL = &draft.LogoURL
	}
	if err := c.store.UpsertAsset(ctx, jobID, assetID, patch); err != nil {
		c.logger.Error().Err(err).Str("job_id", jobID).Str("asset_id", assetID).Msg("Failed to store asset content")
	}
}

func (c *Coordinator) storeAssetFailure(ctx context.Context, jobID, assetID string, fail *models.TaskFailure) {
	status := models.AssetStatusFailed
	if err := c.store.UpsertAsset(ctx, jobID, assetID, &interfaces.AssetPatch{Status: &status, Failure: fail}); err != nil {
		c.logger.Error().Err(err).Str("job_id", jobID).Str("asset_id", assetID).Msg("Failed to store asset failure")
	}
}

// failAllAssets marks every planned asset FAILED with the same failure. Used
// when the master copy itself could not be produced.
func (c *Coordinator) failAllAssets(ctx context.Context, job *models.Job, fail *models.TaskFailure) {
	for assetID := range job.Assets {
		c.storeAssetFailure(ctx, job.ID, assetID, fail)
	}
}
