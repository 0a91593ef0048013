package jobs

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/orchestrator"
	"github.com/botsonlabs/jobforge/internal/tasks"
)

// Service owns the job posting lifecycle up to channel selection: draft
// editing, field suggestions, refinement, finalization and channel
// recommendations. Asset generation is handled by the assets service.
type Service struct {
	store  interfaces.JobStorage
	runner *orchestrator.Runner
	logger arbor.ILogger
}

// NewService creates the job lifecycle service.
func NewService(store interfaces.JobStorage, runner *orchestrator.Runner, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		runner: runner,
		logger: logger,
	}
}

// Create stores a new job with the given initial draft.
func (s *Service) Create(ctx context.Context, draft *models.Draft) (*models.Job, error) {
	if draft == nil {
		draft = &models.Draft{}
	}
	draft.Normalize()

	now := time.Now().UTC()
	job := &models.Job{
		ID:        common.NewJobID(),
		CreatedAt: now,
		UpdatedAt: now,
		State:     draft,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info().Str("job_id", job.ID).Msg("Job created")
	return job, nil
}

// Get loads a job by id.
func (s *Service) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// List returns jobs newest-first.
func (s *Service) List(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return s.store.ListJobs(ctx, opts)
}

// Delete removes a job permanently.
func (s *Service) Delete(ctx context.Context, jobID string) error {
	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info().Str("job_id", jobID).Msg("Job deleted")
	return nil
}

// UpdateDraft merges a draft patch into the job's working draft.
func (s *Service) UpdateDraft(ctx context.Context, jobID string, patch *models.Draft) (*models.Job, error) {
	return s.store.PutDraft(ctx, jobID, patch)
}

// SuggestInput carries the request context for field suggestions.
type SuggestInput struct {
	VisibleFieldIDs []string
	UpdatedFieldID  string
	CompanyContext  string
	Route           string
}

// Suggest proposes values for empty draft fields. Suggestions are advisory
// and are not persisted; the UI decides what to apply.
func (s *Service) Suggest(ctx context.Context, jobID string, in *SuggestInput) (*tasks.SuggestResult, *models.TaskFailure, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if in == nil {
		in = &SuggestInput{}
	}

	visible := in.VisibleFieldIDs
	if len(visible) == 0 {
		visible = job.State.EmptyFieldIDs()
	}

	tctx := &tasks.TaskContext{
		JobID:           jobID,
		Route:           in.Route,
		Draft:           job.State,
		VisibleFieldIDs: visible,
		UpdatedFieldID:  in.UpdatedFieldID,
		CompanyContext:  in.CompanyContext,
	}

	result, fail := s.runner.Run(ctx, tasks.TaskSuggest, tctx)
	if fail != nil {
		return nil, fail, nil
	}
	return result.Payload.(*tasks.SuggestResult), nil, nil
}

// Refine runs the refinement task over the current draft and stores the
// refined variant alongside the original. The draft must carry every
// required field first.
func (s *Service) Refine(ctx context.Context, jobID, route string) (*models.Job, *models.TaskFailure, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if !job.State.IsRefinable() {
		return nil, nil, interfaces.ErrNotRefinable
	}

	tctx := &tasks.TaskContext{
		JobID: jobID,
		Route: route,
		Draft: job.State,
	}

	result, fail := s.runner.Run(ctx, tasks.TaskRefine, tctx)
	if fail != nil {
		s.logger.Warn().
			Str("job_id", jobID).
			Str("reason", fail.Reason).
			Msg("Refinement failed")
		return nil, fail, nil
	}

	payload := result.Payload.(*tasks.RefineResult)
	ref := &models.Refinement{
		Draft:     payload.Draft,
		Summary:   payload.Summary,
		Metadata:  payload.Metadata,
		RefinedAt: time.Now().UTC(),
	}
	if err := s.store.PutRefinement(ctx, jobID, ref); err != nil {
		return nil, nil, err
	}

	job, err = s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, nil, nil
}

// Finalize records which draft variant the user approved. For the edited
// source the caller supplies the final draft; for original and refined the
// stored variants are used.
func (s *Service) Finalize(ctx context.Context, jobID string, source models.FinalizationSource, edited *models.Draft) (*models.Job, error) {
	return s.store.Finalize(ctx, jobID, edited, source)
}

// RecommendChannels ranks the distribution channels for a finalized job and
// stores the result on the job document. LLM failures are stored too so the
// UI can render the failure on reload.
func (s *Service) RecommendChannels(ctx context.Context, jobID, route string) (*models.Job, *models.TaskFailure, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if job.Finalization == nil {
		return nil, nil, interfaces.ErrNotFinalized
	}

	tctx := &tasks.TaskContext{
		JobID:             jobID,
		Route:             route,
		Draft:             job.FinalDraft(),
		SupportedChannels: models.SupportedChannels,
	}

	result, fail := s.runner.Run(ctx, tasks.TaskChannels, tctx)
	if fail != nil {
		recs := &models.ChannelRecommendations{
			UpdatedAt: time.Now().UTC(),
			Failure:   fail,
		}
		if storeErr := s.store.SetChannelRecommendations(ctx, jobID, recs); storeErr != nil {
			return nil, nil, storeErr
		}
		return nil, fail, nil
	}

	payload := result.Payload.(*tasks.ChannelsResult)
	recs := &models.ChannelRecommendations{
		Items:     payload.Recommendations,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.SetChannelRecommendations(ctx, jobID, recs); err != nil {
		return nil, nil, err
	}

	job, err = s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, nil, nil
}

// PickChannel returns the single best channel for the job with a fit score
// and medium recommendation. The result is advisory and not persisted.
func (s *Service) PickChannel(ctx context.Context, jobID, route string) (*tasks.ChannelPickResult, *models.TaskFailure, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	tctx := &tasks.TaskContext{
		JobID:             jobID,
		Route:             route,
		Draft:             job.FinalDraft(),
		SupportedChannels: models.SupportedChannels,
	}

	result, fail := s.runner.Run(ctx, tasks.TaskChannelPicker, tctx)
	if fail != nil {
		return nil, fail, nil
	}
	return result.Payload.(*tasks.ChannelPickResult), nil, nil
}
