package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
)

// JobStorage implements the JobStorage interface for Badger. A per-job mutex
// serializes state-machine transitions; it is held only over the load-mutate-
// persist window, never over LLM calls.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// jobLock returns the mutex serializing writes for one job.
func (s *JobStorage) jobLock(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[jobID] = lock
	}
	return lock
}

// load fetches a job document or ErrJobNotFound.
func (s *JobStorage) load(jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// mutate runs fn under the job's write lock and persists the result.
func (s *JobStorage) mutate(jobID string, fn func(*models.Job) error) (*models.Job, error) {
	lock := s.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.load(jobID)
	if err != nil {
		return nil, err
	}

	if err := fn(job); err != nil {
		return nil, err
	}

	job.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	return job, nil
}

// CreateJob persists a new job document.
func (s *JobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.State == nil {
		job.State = &models.Draft{}
	}
	job.State.Normalize()

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetJob fetches a job document by ID.
func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.load(jobID)
}

// ListJobs returns jobs ordered by creation time, newest first.
func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// DeleteJob removes a job document.
func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	lock := s.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	err := s.db.Store().Delete(jobID, models.Job{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// PutDraft merges scalar fields individually and replaces list fields
// wholesale, per the draft merge contract.
func (s *JobStorage) PutDraft(ctx context.Context, jobID string, patch *models.Draft) (*models.Job, error) {
	return s.mutate(jobID, func(job *models.Job) error {
		if job.State == nil {
			job.State = &models.Draft{}
		}
		job.State.Merge(patch)
		return nil
	})
}

// PutRefinement stores the refinement, replacing any previous one.
func (s *JobStorage) PutRefinement(ctx context.Context, jobID string, ref *models.Refinement) error {
	_, err := s.mutate(jobID, func(job *models.Job) error {
		if ref.RefinedAt.IsZero() {
			ref.RefinedAt = time.Now()
		}
		if ref.Draft != nil {
			ref.Draft.Normalize()
		}
		job.Refined = ref
		return nil
	})
	return err
}

// Finalize records the approval event. An edited final draft replaces the
// job state; the stored source is immutable within the event.
func (s *JobStorage) Finalize(ctx context.Context, jobID string, finalDraft *models.Draft, source models.FinalizationSource) (*models.Job, error) {
	if !models.IsValidFinalizationSource(source) {
		return nil, interfaces.ErrInvalidSource
	}

	return s.mutate(jobID, func(job *models.Job) error {
		switch source {
		case models.SourceRefined:
			if job.Refined == nil || job.Refined.Draft == nil {
				return fmt.Errorf("%w: no refined draft to finalize", interfaces.ErrInvalidSource)
			}
		case models.SourceEdited:
			if finalDraft == nil {
				return fmt.Errorf("%w: edited finalization requires a final draft", interfaces.ErrInvalidSource)
			}
			finalDraft.Normalize()
			job.State = finalDraft
		}

		final := job.State
		if source == models.SourceRefined {
			final = job.Refined.Draft
		}
		if missing := final.MissingRequired(); len(missing) > 0 {
			return fmt.Errorf("%w: %v", interfaces.ErrNotRefinable, missing)
		}

		job.Finalization = &models.Finalization{
			Source:      source,
			FinalizedAt: time.Now(),
		}
		return nil
	})
}

// SetChannelRecommendations replaces the stored recommendation set.
func (s *JobStorage) SetChannelRecommendations(ctx context.Context, jobID string, recs *models.ChannelRecommendations) error {
	_, err := s.mutate(jobID, func(job *models.Job) error {
		if recs.UpdatedAt.IsZero() {
			recs.UpdatedAt = time.Now()
		}
		job.Channels = recs
		return nil
	})
	return err
}

// PlanAssetRun creates the asset run and its PENDING asset rows. A run is
// rejected while a previous one is still generating, and requires a
// finalized job.
func (s *JobStorage) PlanAssetRun(ctx context.Context, jobID string, rows []models.AssetPlanRow) (*models.Job, error) {
	return s.mutate(jobID, func(job *models.Job) error {
		if job.Finalization == nil {
			return interfaces.ErrNotFinalized
		}
		if job.AssetRun != nil &&
			(job.AssetRun.Status == models.AssetRunPlanning || job.AssetRun.Status == models.AssetRunGenerating) {
			return interfaces.ErrRunInProgress
		}

		now := time.Now()
		job.AssetRun = &models.AssetRun{
			Status:       models.AssetRunPlanning,
			PlannedCount: len(rows),
			StartedAt:    now,
			UpdatedAt:    now,
		}

		// A new run replaces the previous run's assets wholesale.
		job.Assets = make(map[string]*models.Asset, len(rows))
		for _, row := range rows {
			id := common.NewAssetID()
			job.Assets[id] = &models.Asset{
				ID:        id,
				FormatID:  row.FormatID,
				ChannelID: row.ChannelID,
				Status:    models.AssetStatusPending,
				UpdatedAt: now,
			}
		}
		return nil
	})
}

// UpsertAsset merges a patch into one asset. Terminal statuses are
// immutable for the run; transitions out of them fail with ErrAssetTerminal.
// A completed-count overrun marks the run FAILED with internal_invariant;
// the failed run state is persisted before the sentinel is returned.
func (s *JobStorage) UpsertAsset(ctx context.Context, jobID, assetID string, patch *interfaces.AssetPatch) error {
	breach := false
	_, err := s.mutate(jobID, func(job *models.Job) error {
		asset, ok := job.Assets[assetID]
		if !ok {
			return interfaces.ErrAssetNotFound
		}

		if patch.Status != nil {
			if asset.Status.IsTerminal() && *patch.Status != asset.Status {
				return interfaces.ErrAssetTerminal
			}
			wasTerminal := asset.Status.IsTerminal()
			asset.Status = *patch.Status
			if !wasTerminal && asset.Status.IsTerminal() && job.AssetRun != nil {
				job.AssetRun.CompletedCount++
				job.AssetRun.UpdatedAt = time.Now()
			}
		}
		if patch.Content != nil {
			asset.Content = *patch.Content
		}
		if patch.LogoURL != nil {
			asset.LogoURL = *patch.LogoURL
		}
		if patch.Failure != nil {
			asset.Failure = patch.Failure
		}
		asset.UpdatedAt = time.Now()

		if job.AssetRun != nil && job.AssetRun.CompletedCount > job.AssetRun.PlannedCount {
			// Internal invariant breach: abort the run, no recovery attempt.
			// Returning nil here lets mutate persist the failed run state.
			job.AssetRun.Status = models.AssetRunFailed
			job.AssetRun.Error = "internal_invariant"
			breach = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if breach {
		return interfaces.ErrInvariantBroken
	}
	return nil
}

// FinishAssetRun closes the run once every planned asset is terminal. The
// run completes only when no asset is PENDING or GENERATING.
func (s *JobStorage) FinishAssetRun(ctx context.Context, jobID string) error {
	_, err := s.mutate(jobID, func(job *models.Job) error {
		if job.AssetRun == nil {
			return nil
		}
		for _, asset := range job.Assets {
			if !asset.Status.IsTerminal() {
				return fmt.Errorf("%w: asset %s still %s", interfaces.ErrInvariantBroken, asset.ID, asset.Status)
			}
		}
		failed := 0
		for _, asset := range job.Assets {
			if asset.Status == models.AssetStatusFailed {
				failed++
			}
		}
		if failed == len(job.Assets) && len(job.Assets) > 0 {
			job.AssetRun.Status = models.AssetRunFailed
			job.AssetRun.Error = "all assets failed"
		} else {
			job.AssetRun.Status = models.AssetRunCompleted
		}
		job.AssetRun.UpdatedAt = time.Now()
		return nil
	})
	return err
}

// MarkAssetRunGenerating transitions the run from planning to generating.
func (s *JobStorage) MarkAssetRunGenerating(ctx context.Context, jobID string) error {
	_, err := s.mutate(jobID, func(job *models.Job) error {
		if job.AssetRun != nil && job.AssetRun.Status == models.AssetRunPlanning {
			job.AssetRun.Status = models.AssetRunGenerating
			job.AssetRun.UpdatedAt = time.Now()
		}
		return nil
	})
	return err
}

// SetHeroImage replaces the single hero-image record.
func (s *JobStorage) SetHeroImage(ctx context.Context, jobID string, rec *models.HeroImage) error {
	_, err := s.mutate(jobID, func(job *models.Job) error {
		rec.UpdatedAt = time.Now()
		job.HeroImage = rec
		return nil
	})
	return err
}

// SetVideo replaces the single video record.
func (s *JobStorage) SetVideo(ctx context.Context, jobID string, rec *models.Video) error {
	_, err := s.mutate(jobID, func(job *models.Job) error {
		rec.UpdatedAt = time.Now()
		job.Video = rec
		return nil
	})
	return err
}

// AppendCopilotMessage appends a message in createdAt order. User messages
// with a clientMessageId dedup against earlier entries carrying the same id.
func (s *JobStorage) AppendCopilotMessage(ctx context.Context, jobID string, msg *models.ConversationMessage) (bool, error) {
	appended := false
	_, err := s.mutate(jobID, func(job *models.Job) error {
		if msg.Role == models.RoleUser && msg.Metadata != nil && msg.Metadata.ClientMessageID != "" {
			for _, existing := range job.Conversation {
				if existing.Metadata != nil && existing.Metadata.ClientMessageID == msg.Metadata.ClientMessageID {
					return nil // idempotent: already appended
				}
			}
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		job.Conversation = append(job.Conversation, msg)
		appended = true
		return nil
	})
	return appended, err
}
