package interfaces

import (
	"context"
	"errors"

	"github.com/botsonlabs/jobforge/internal/models"
)

// Sentinel errors surfaced by the job store. The HTTP layer maps these to
// stable status codes (404, 400, 409).
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidSource   = errors.New("invalid finalization source")
	ErrNotRefinable    = errors.New("draft is missing required fields")
	ErrNotFinalized    = errors.New("job is not finalized")
	ErrRunInProgress   = errors.New("asset run already in progress")
	ErrAssetTerminal   = errors.New("asset status is terminal")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrUnknownChannel  = errors.New("channel not in allow-list")
	ErrInvariantBroken = errors.New("internal invariant violated")
)

// JobListOptions controls job listing
type JobListOptions struct {
	Limit  int
	Offset int
}

// AssetPatch is a partial asset update. Nil fields are left untouched.
type AssetPatch struct {
	Status  *models.AssetStatus
	Content *string
	LogoURL *string
	Failure *models.TaskFailure
}

// JobStorage is the durable per-job lifecycle store. All mutating operations
// are atomic per job document and enforce the state-machine invariants at
// write time.
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error

	// PutDraft merges scalar fields and replaces list fields wholesale.
	PutDraft(ctx context.Context, jobID string, patch *models.Draft) (*models.Job, error)

	// PutRefinement replaces the stored refined draft and stamps RefinedAt.
	// Refinement failures are returned to the caller, never stored here.
	PutRefinement(ctx context.Context, jobID string, ref *models.Refinement) error

	// Finalize records the approval event. The stored source is immutable for
	// that event; re-finalization is a new event.
	Finalize(ctx context.Context, jobID string, finalDraft *models.Draft, source models.FinalizationSource) (*models.Job, error)

	// SetChannelRecommendations replaces the previous set atomically.
	SetChannelRecommendations(ctx context.Context, jobID string, recs *models.ChannelRecommendations) error

	// PlanAssetRun creates the asset run and one PENDING asset per plan row.
	// Fails with ErrRunInProgress while a previous run is still active.
	PlanAssetRun(ctx context.Context, jobID string, rows []models.AssetPlanRow) (*models.Job, error)

	// UpsertAsset merges a patch into an asset. READY and FAILED are terminal
	// and cannot be overwritten except by a new run.
	UpsertAsset(ctx context.Context, jobID, assetID string, patch *AssetPatch) error

	// MarkAssetRunGenerating transitions the run from planning to generating.
	MarkAssetRunGenerating(ctx context.Context, jobID string) error

	// FinishAssetRun closes the run once every asset is terminal.
	FinishAssetRun(ctx context.Context, jobID string) error

	SetHeroImage(ctx context.Context, jobID string, rec *models.HeroImage) error
	SetVideo(ctx context.Context, jobID string, rec *models.Video) error

	// AppendCopilotMessage preserves append order. User messages carrying a
	// clientMessageId deduplicate against earlier entries with the same id;
	// the bool reports whether the message was actually appended.
	AppendCopilotMessage(ctx context.Context, jobID string, msg *models.ConversationMessage) (bool, error)
}

// KeyValueStorage is generic key/value storage (API keys, settings)
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) (map[string]string, error)
}

// StorageManager aggregates the typed storages behind one handle
type StorageManager interface {
	JobStorage() JobStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
